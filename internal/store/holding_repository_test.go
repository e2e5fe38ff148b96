package store_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nedlands/propnet/internal/store"
	testutil "github.com/nedlands/propnet/internal/testing"
)

func TestHoldingGetAbsentIsNilNil(t *testing.T) {
	st, cleanup := testutil.NewTestStore(t)
	defer cleanup()

	h, err := st.Holdings.Get(st.DB(), "p1", "prop1")
	require.NoError(t, err)
	assert.Nil(t, h)
}

func TestHoldingAddWeightsAveragePrice(t *testing.T) {
	st, cleanup := testutil.NewTestStore(t)
	defer cleanup()

	p := testutil.NewParticipantFixture(t, st, "Alex Kim", 100000)
	prop := testutil.NewPropertyFixture(t, st, "1 Test Street")

	total := prop.TotalTokens

	h, err := st.Holdings.Add(st.DB(), p.ID, prop.ID,
		decimal.NewFromInt(1000), decimal.NewFromInt(1), total)
	require.NoError(t, err)
	assert.True(t, h.TokenAmount.Equal(decimal.NewFromInt(1000)))
	assert.True(t, h.AvgPurchasePrice.Equal(decimal.NewFromInt(1)))
	assert.True(t, h.OwnershipPercent.Equal(decimal.NewFromInt(1)))

	// 1000 @ 1.00 then 1000 @ 2.00 averages to 1.50.
	h, err = st.Holdings.Add(st.DB(), p.ID, prop.ID,
		decimal.NewFromInt(1000), decimal.NewFromInt(2), total)
	require.NoError(t, err)
	assert.True(t, h.TokenAmount.Equal(decimal.NewFromInt(2000)))
	assert.True(t, h.AvgPurchasePrice.Equal(decimal.NewFromFloat(1.5)))
}

func TestHoldingRemoveDeletesEmptyPosition(t *testing.T) {
	st, cleanup := testutil.NewTestStore(t)
	defer cleanup()

	p := testutil.NewParticipantFixture(t, st, "Seller", 100000)
	prop := testutil.NewPropertyFixture(t, st, "2 Test Street")
	total := prop.TotalTokens

	_, err := st.Holdings.Add(st.DB(), p.ID, prop.ID,
		decimal.NewFromInt(500), decimal.NewFromInt(1), total)
	require.NoError(t, err)

	remaining, err := st.Holdings.Remove(st.DB(), p.ID, prop.ID,
		decimal.NewFromInt(200), total)
	require.NoError(t, err)
	assert.True(t, remaining.Equal(decimal.NewFromInt(300)))

	remaining, err = st.Holdings.Remove(st.DB(), p.ID, prop.ID,
		decimal.NewFromInt(300), total)
	require.NoError(t, err)
	assert.True(t, remaining.IsZero())

	// The zero-token row must be gone, not stored.
	h, err := st.Holdings.Get(st.DB(), p.ID, prop.ID)
	require.NoError(t, err)
	assert.Nil(t, h)
}

func TestHoldingRemoveMoreThanHeldFails(t *testing.T) {
	st, cleanup := testutil.NewTestStore(t)
	defer cleanup()

	p := testutil.NewParticipantFixture(t, st, "Short Seller", 100000)
	prop := testutil.NewPropertyFixture(t, st, "3 Test Street")

	_, err := st.Holdings.Add(st.DB(), p.ID, prop.ID,
		decimal.NewFromInt(100), decimal.NewFromInt(1), prop.TotalTokens)
	require.NoError(t, err)

	_, err = st.Holdings.Remove(st.DB(), p.ID, prop.ID,
		decimal.NewFromInt(101), prop.TotalTokens)
	assert.Error(t, err)
}

func TestHoldingRemoveAbsentIsNotFound(t *testing.T) {
	st, cleanup := testutil.NewTestStore(t)
	defer cleanup()

	_, err := st.Holdings.Remove(st.DB(), "p1", "prop1",
		decimal.NewFromInt(1), decimal.NewFromInt(100000))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestHoldingSumTokensAcrossProperties(t *testing.T) {
	st, cleanup := testutil.NewTestStore(t)
	defer cleanup()

	p := testutil.NewParticipantFixture(t, st, "Voter", 100000)
	propA := testutil.NewPropertyFixture(t, st, "4 Test Street")
	propB := testutil.NewPropertyFixture(t, st, "5 Test Street")

	_, err := st.Holdings.Add(st.DB(), p.ID, propA.ID,
		decimal.NewFromInt(300), decimal.NewFromInt(1), propA.TotalTokens)
	require.NoError(t, err)
	_, err = st.Holdings.Add(st.DB(), p.ID, propB.ID,
		decimal.NewFromInt(450), decimal.NewFromInt(1), propB.TotalTokens)
	require.NoError(t, err)

	sum, err := st.Holdings.SumTokens(st.DB(), p.ID)
	require.NoError(t, err)
	assert.True(t, sum.Equal(decimal.NewFromInt(750)))

	holdings, err := st.Holdings.ListByParticipant(st.DB(), p.ID)
	require.NoError(t, err)
	assert.Len(t, holdings, 2)

	byProp, err := st.Holdings.ListByProperty(st.DB(), propA.ID)
	require.NoError(t, err)
	require.Len(t, byProp, 1)
	assert.Equal(t, p.ID, byProp[0].ParticipantID)
}
