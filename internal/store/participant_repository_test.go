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

func TestParticipantCreateAndGet(t *testing.T) {
	st, cleanup := testutil.NewTestStore(t)
	defer cleanup()

	p := testutil.NewParticipantFixture(t, st, "Sarah Chen", 100000)
	require.NotEmpty(t, p.ID)

	got, err := st.Participants.GetByID(st.DB(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sarah Chen", got.Name)
	assert.Equal(t, domain.KindHuman, got.Kind)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(100000)))
	assert.True(t, got.IsActive)
}

func TestParticipantGetByIDNotFound(t *testing.T) {
	st, cleanup := testutil.NewTestStore(t)
	defer cleanup()

	_, err := st.Participants.GetByID(st.DB(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestParticipantGetByNameAbsentIsNilNil(t *testing.T) {
	st, cleanup := testutil.NewTestStore(t)
	defer cleanup()

	got, err := st.Participants.GetByName(st.DB(), "Nobody")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestParticipantNamesAreUnique(t *testing.T) {
	st, cleanup := testutil.NewTestStore(t)
	defer cleanup()

	testutil.NewParticipantFixture(t, st, "Marcus Thompson", 100000)

	dup := &domain.Participant{
		Name:    "Marcus Thompson",
		Kind:    domain.KindHuman,
		Role:    domain.RoleInvestor,
		Balance: decimal.NewFromInt(100000),
	}
	err := st.Participants.Create(st.DB(), dup)
	assert.Error(t, err)
}

func TestParticipantPersonalityAndGoalsRoundTrip(t *testing.T) {
	st, cleanup := testutil.NewTestStore(t)
	defer cleanup()

	p := &domain.Participant{
		Name:    "Emily Rodriguez",
		Kind:    domain.KindNPC,
		Role:    domain.RoleInvestor,
		Balance: decimal.NewFromInt(100000),
		Personality: &domain.Personality{
			RiskTolerance: 0.7,
			ActivityLevel: 0.5,
			Patience:      0.3,
		},
		Goals: []domain.Goal{
			{Type: domain.GoalAccumulate, TargetValue: decimal.NewFromInt(50000), Priority: 8},
		},
		IsActive: true,
	}
	require.NoError(t, st.Participants.Create(st.DB(), p))

	got, err := st.Participants.GetByID(st.DB(), p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Personality)
	assert.InDelta(t, 0.7, got.Personality.RiskTolerance, 1e-9)
	require.Len(t, got.Goals, 1)
	assert.Equal(t, domain.GoalAccumulate, got.Goals[0].Type)
	assert.Equal(t, 8, got.Goals[0].Priority)
}

func TestParticipantListFilters(t *testing.T) {
	st, cleanup := testutil.NewTestStore(t)
	defer cleanup()

	testutil.NewParticipantFixture(t, st, "Investor One", 100000)
	npc := &domain.Participant{
		Name:     "OSF Market Maker",
		Kind:     domain.KindNPC,
		Role:     domain.RoleMarketMaker,
		Balance:  decimal.NewFromInt(100000),
		IsActive: true,
	}
	require.NoError(t, st.Participants.Create(st.DB(), npc))

	all, err := st.Participants.List(st.DB(), "", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	npcs, err := st.Participants.List(st.DB(), domain.KindNPC, "")
	require.NoError(t, err)
	require.Len(t, npcs, 1)
	assert.Equal(t, "OSF Market Maker", npcs[0].Name)

	makers, err := st.Participants.List(st.DB(), "", domain.RoleMarketMaker)
	require.NoError(t, err)
	assert.Len(t, makers, 1)
}

func TestAdjustBalanceNeverGoesNegative(t *testing.T) {
	st, cleanup := testutil.NewTestStore(t)
	defer cleanup()

	p := testutil.NewParticipantFixture(t, st, "David Park", 1000)

	_, err := st.Participants.AdjustBalance(st.DB(), p.ID, decimal.NewFromInt(1500), store.BalanceSub)
	require.Error(t, err)

	// The failed subtraction must not have written anything.
	got, err := st.Participants.GetByID(st.DB(), p.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(1000)))

	next, err := st.Participants.AdjustBalance(st.DB(), p.ID, decimal.NewFromInt(400), store.BalanceSub)
	require.NoError(t, err)
	assert.True(t, next.Equal(decimal.NewFromInt(600)))

	next, err = st.Participants.AdjustBalance(st.DB(), p.ID, decimal.NewFromInt(100), store.BalanceAdd)
	require.NoError(t, err)
	assert.True(t, next.Equal(decimal.NewFromInt(700)))
}

func TestAddInvestedAndDividendsAccumulate(t *testing.T) {
	st, cleanup := testutil.NewTestStore(t)
	defer cleanup()

	p := testutil.NewParticipantFixture(t, st, "Janet Williams", 100000)

	require.NoError(t, st.Participants.AddInvested(st.DB(), p.ID, decimal.NewFromInt(5000)))
	require.NoError(t, st.Participants.AddInvested(st.DB(), p.ID, decimal.NewFromInt(2500)))
	require.NoError(t, st.Participants.AddDividends(st.DB(), p.ID, decimal.NewFromFloat(123.45)))

	got, err := st.Participants.GetByID(st.DB(), p.ID)
	require.NoError(t, err)
	assert.True(t, got.TotalInvested.Equal(decimal.NewFromInt(7500)))
	assert.True(t, got.TotalDividends.Equal(decimal.NewFromFloat(123.45)))
}
