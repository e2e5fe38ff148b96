package store_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nedlands/propnet/internal/domain"
	"github.com/nedlands/propnet/internal/store"
	testutil "github.com/nedlands/propnet/internal/testing"
)

func TestPropertyCreateDerivesOwnership(t *testing.T) {
	st, cleanup := testutil.NewTestStore(t)
	defer cleanup()

	prop := testutil.NewPropertyFixture(t, st, "10 Example Avenue")

	got, err := st.Properties.GetByID(st.DB(), prop.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PropertyAvailable, got.Status)
	assert.True(t, got.NetworkOwnership.IsZero())
}

func TestPropertyListFiltersByStatus(t *testing.T) {
	st, cleanup := testutil.NewTestStore(t)
	defer cleanup()

	testutil.NewPropertyFixture(t, st, "1 Available Lane")
	tenant := testutil.NewParticipantFixture(t, st, "Tenant", 100000)
	testutil.NewTenantedPropertyFixture(t, st, "2 Tenanted Lane", tenant.ID)

	all, err := st.Properties.List(st.DB(), "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	tenanted, err := st.Properties.List(st.DB(), domain.PropertyTenanted)
	require.NoError(t, err)
	require.Len(t, tenanted, 1)
	assert.Equal(t, "2 Tenanted Lane", tenanted[0].Address)
	require.NotNil(t, tenanted[0].TenantID)
	assert.Equal(t, tenant.ID, *tenanted[0].TenantID)
}

func TestPropertySaveKeepsOwnershipInvariant(t *testing.T) {
	st, cleanup := testutil.NewTestStore(t)
	defer cleanup()

	prop := testutil.NewPropertyFixture(t, st, "3 Invariant Close")

	// Sell a quarter of the supply; ownership must be derived, not
	// whatever the caller left in the struct.
	prop.TokensAvailable = decimal.NewFromInt(75000)
	prop.NetworkOwnership = decimal.NewFromInt(42)
	require.NoError(t, st.Properties.Save(st.DB(), prop))

	got, err := st.Properties.GetByID(st.DB(), prop.ID)
	require.NoError(t, err)
	assert.True(t, got.NetworkOwnership.Equal(decimal.NewFromFloat(0.25)),
		"ownership %s", got.NetworkOwnership)
}

func TestPropertySaveMissingIsNotFound(t *testing.T) {
	st, cleanup := testutil.NewTestStore(t)
	defer cleanup()

	ghost := &domain.PropertyState{ID: "missing"}
	err := st.Properties.Save(st.DB(), ghost)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSetTenantLeasesProperty(t *testing.T) {
	st, cleanup := testutil.NewTestStore(t)
	defer cleanup()

	prop := testutil.NewPropertyFixture(t, st, "5 Lease Court")
	renter := testutil.NewParticipantFixture(t, st, "Renter", 50000)

	got, err := st.Properties.SetTenant(st.DB(), prop.ID, renter.ID, decimal.NewFromInt(620), 2, 14)
	require.NoError(t, err)
	assert.Equal(t, domain.PropertyTenanted, got.Status)
	require.NotNil(t, got.TenantID)
	assert.Equal(t, renter.ID, *got.TenantID)
	require.NotNil(t, got.LeaseStartMonth)
	assert.Equal(t, 2, *got.LeaseStartMonth)
	require.NotNil(t, got.LeaseEndMonth)
	assert.Equal(t, 14, *got.LeaseEndMonth)
	assert.True(t, got.WeeklyRent.Equal(decimal.NewFromInt(620)))

	// The lease survives a round trip through the database.
	reread, err := st.Properties.GetByID(st.DB(), prop.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PropertyTenanted, reread.Status)
	require.NotNil(t, reread.TenantID)
	assert.Equal(t, renter.ID, *reread.TenantID)
}

func TestClearTenantReturnsPropertyToPool(t *testing.T) {
	st, cleanup := testutil.NewTestStore(t)
	defer cleanup()

	renter := testutil.NewParticipantFixture(t, st, "Departing Renter", 50000)
	prop := testutil.NewTenantedPropertyFixture(t, st, "6 Vacate Way", renter.ID)

	got, err := st.Properties.ClearTenant(st.DB(), prop.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PropertyAvailable, got.Status)
	assert.Nil(t, got.TenantID)
	assert.Nil(t, got.LeaseStartMonth)
	assert.Nil(t, got.LeaseEndMonth)

	reread, err := st.Properties.GetByID(st.DB(), prop.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PropertyAvailable, reread.Status)
	assert.Nil(t, reread.TenantID)
}

func TestTenantOpsMissingPropertyIsNotFound(t *testing.T) {
	st, cleanup := testutil.NewTestStore(t)
	defer cleanup()

	_, err := st.Properties.SetTenant(st.DB(), "missing", "tenant", decimal.NewFromInt(600), 1, 12)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = st.Properties.ClearTenant(st.DB(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAdjustTokensAvailableBounds(t *testing.T) {
	st, cleanup := testutil.NewTestStore(t)
	defer cleanup()

	prop := testutil.NewPropertyFixture(t, st, "4 Bounds Street")

	// Sell 40000 tokens to the network.
	got, err := st.Properties.AdjustTokensAvailable(st.DB(), prop.ID, decimal.NewFromInt(-40000))
	require.NoError(t, err)
	assert.True(t, got.TokensAvailable.Equal(decimal.NewFromInt(60000)))
	assert.True(t, got.NetworkOwnership.Equal(decimal.NewFromFloat(0.4)))

	// The pool cannot go negative.
	_, err = st.Properties.AdjustTokensAvailable(st.DB(), prop.ID, decimal.NewFromInt(-60001))
	assert.Error(t, err)

	// Nor exceed total supply.
	_, err = st.Properties.AdjustTokensAvailable(st.DB(), prop.ID, decimal.NewFromInt(40001))
	assert.Error(t, err)

	// Failed adjustments leave the row untouched.
	got, err = st.Properties.GetByID(st.DB(), prop.ID)
	require.NoError(t, err)
	assert.True(t, got.TokensAvailable.Equal(decimal.NewFromInt(60000)))
}
