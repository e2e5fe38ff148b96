package di

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nedlands/propnet/internal/domain"
	"github.com/nedlands/propnet/internal/market"
	"github.com/nedlands/propnet/internal/npc"
	testutil "github.com/nedlands/propnet/internal/testing"
)

func TestSeedPropertiesLeasesTenantedSeeds(t *testing.T) {
	st, cleanup := testutil.NewTestStore(t)
	defer cleanup()

	cal := market.DefaultCalibration()
	engine := npc.NewEngine(st, cal, zerolog.Nop())
	_, err := engine.EnsureParticipants(st.DB())
	require.NoError(t, err)

	require.NoError(t, seedProperties(st, cal, zerolog.Nop()))

	props, err := st.Properties.List(st.DB(), "")
	require.NoError(t, err)
	require.Len(t, props, 6)

	tenanted := 0
	for _, p := range props {
		if p.Status != domain.PropertyTenanted {
			assert.Nil(t, p.TenantID)
			continue
		}
		tenanted++
		require.NotNil(t, p.TenantID, "%s tenanted without a tenant", p.Address)
		require.NotNil(t, p.LeaseStartMonth)
		require.NotNil(t, p.LeaseEndMonth)
		assert.Equal(t, 1, *p.LeaseStartMonth)
		assert.Equal(t, seedLeaseMonths, *p.LeaseEndMonth)

		tenant, err := st.Participants.GetByID(st.DB(), *p.TenantID)
		require.NoError(t, err)
		assert.Equal(t, domain.RoleRenter, tenant.Role)
	}
	// One lease per NPC renter in the cast.
	assert.Equal(t, 2, tenanted)

	// Re-seeding an already populated database is a no-op.
	require.NoError(t, seedProperties(st, cal, zerolog.Nop()))
	again, err := st.Properties.List(st.DB(), "")
	require.NoError(t, err)
	assert.Len(t, again, 6)
}
