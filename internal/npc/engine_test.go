package npc_test

import (
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nedlands/propnet/internal/domain"
	"github.com/nedlands/propnet/internal/market"
	"github.com/nedlands/propnet/internal/npc"
	"github.com/nedlands/propnet/internal/store"
	testutil "github.com/nedlands/propnet/internal/testing"
)

func newEngine(t *testing.T) (*npc.Engine, *store.Store, func()) {
	t.Helper()
	st, cleanup := testutil.NewTestStore(t)
	return npc.NewEngine(st, market.DefaultCalibration(), zerolog.Nop()), st, cleanup
}

func TestEnsureParticipantsIsIdempotent(t *testing.T) {
	e, st, cleanup := newEngine(t)
	defer cleanup()

	created, err := e.EnsureParticipants(st.DB())
	require.NoError(t, err)
	assert.Equal(t, len(npc.Profiles), created)

	created, err = e.EnsureParticipants(st.DB())
	require.NoError(t, err)
	assert.Zero(t, created)

	count, err := st.Participants.Count(st.DB())
	require.NoError(t, err)
	assert.Equal(t, len(npc.Profiles), count)
}

func TestEnsureParticipantsSeedsProfileState(t *testing.T) {
	e, st, cleanup := newEngine(t)
	defer cleanup()

	_, err := e.EnsureParticipants(st.DB())
	require.NoError(t, err)

	sarah, err := st.Participants.GetByName(st.DB(), "Sarah Chen")
	require.NoError(t, err)
	require.NotNil(t, sarah)

	assert.Equal(t, domain.KindNPC, sarah.Kind)
	assert.Equal(t, domain.RoleInvestor, sarah.Role)
	assert.True(t, sarah.Balance.Equal(decimal.NewFromInt(100000)))
	assert.True(t, sarah.IsActive)
	require.NotNil(t, sarah.Personality)
	assert.Equal(t, 0.2, sarah.Personality.RiskTolerance)
	require.Len(t, sarah.Goals, 1)
	assert.Equal(t, domain.GoalIncome, sarah.Goals[0].Type)
}

func tickProperties() []*domain.PropertyState {
	return []*domain.PropertyState{
		{
			ID:               "prop-1",
			Address:          "14 Cottesloe Parade",
			PropertyType:     "house",
			TotalTokens:      decimal.NewFromInt(100000),
			TokensAvailable:  decimal.NewFromInt(100000),
			WeeklyRent:       decimal.NewFromInt(650),
			CurrentValuation: decimal.NewFromInt(750000),
			TokenPrice:       decimal.NewFromInt(1),
		},
	}
}

func TestProcessTickIsDeterministicPerSeed(t *testing.T) {
	e, st, cleanup := newEngine(t)
	defer cleanup()

	_, err := e.EnsureParticipants(st.DB())
	require.NoError(t, err)

	run := func(seed int64) []npc.Decision {
		rng := rand.New(rand.NewSource(seed))
		decisions, err := e.ProcessTick(st.DB(), 1, tickProperties(), market.NewState(), rng)
		require.NoError(t, err)
		return decisions
	}

	assert.Equal(t, run(42), run(42))
}

func TestProcessTickRespectsRoles(t *testing.T) {
	e, st, cleanup := newEngine(t)
	defer cleanup()

	_, err := e.EnsureParticipants(st.DB())
	require.NoError(t, err)

	serviceNames := map[string]bool{}
	for _, p := range npc.Profiles {
		if p.Role == domain.RoleService {
			serviceNames[p.Name] = true
		}
	}

	for seed := int64(0); seed < 30; seed++ {
		rng := rand.New(rand.NewSource(seed))
		// Month 1 is not a quarter month: no developer listings either.
		decisions, err := e.ProcessTick(st.DB(), 1, tickProperties(), market.NewState(), rng)
		require.NoError(t, err)

		perParticipant := map[string]int{}
		for _, d := range decisions {
			assert.False(t, serviceNames[d.Name], "service provider %s initiated %s", d.Name, d.ActionType)
			assert.NotEqual(t, "request_service", d.ActionType)
			assert.NotEmpty(t, d.ParticipantID)
			assert.NotEmpty(t, d.Reasoning)
			perParticipant[d.ParticipantID]++
		}
		for id, n := range perParticipant {
			assert.Equal(t, 1, n, "participant %s acted %d times in one tick", id, n)
		}
	}
}

func TestProcessTickDeveloperProposesOnQuarterMonths(t *testing.T) {
	e, st, cleanup := newEngine(t)
	defer cleanup()

	_, err := e.EnsureParticipants(st.DB())
	require.NoError(t, err)

	found := false
	for seed := int64(0); seed < 100 && !found; seed++ {
		rng := rand.New(rand.NewSource(seed))
		decisions, err := e.ProcessTick(st.DB(), 3, tickProperties(), market.NewState(), rng)
		require.NoError(t, err)
		for _, d := range decisions {
			if d.ActionType == "request_service" {
				assert.Equal(t, "Sunset Developments", d.Name)
				found = true
			}
		}
	}
	assert.True(t, found, "developer never proposed a listing across 100 seeds")
}

func TestProcessTickPersistsGoalProgress(t *testing.T) {
	e, st, cleanup := newEngine(t)
	defer cleanup()

	_, err := e.EnsureParticipants(st.DB())
	require.NoError(t, err)

	// David Park's accumulation target is 100000; push him past it.
	david, err := st.Participants.GetByName(st.DB(), "David Park")
	require.NoError(t, err)
	require.NotNil(t, david)
	require.NoError(t, st.Participants.AddInvested(st.DB(), david.ID, decimal.NewFromInt(150000)))

	rng := rand.New(rand.NewSource(7))
	_, err = e.ProcessTick(st.DB(), 1, tickProperties(), market.NewState(), rng)
	require.NoError(t, err)

	after, err := st.Participants.GetByName(st.DB(), "David Park")
	require.NoError(t, err)
	require.Len(t, after.Goals, 1)
	assert.True(t, after.Goals[0].Completed)
	assert.True(t, after.Goals[0].Progress.Equal(decimal.NewFromInt(150000)),
		"progress %s", after.Goals[0].Progress)
}

func TestProcessTickSkipsInactiveParticipants(t *testing.T) {
	e, st, cleanup := newEngine(t)
	defer cleanup()

	_, err := e.EnsureParticipants(st.DB())
	require.NoError(t, err)

	maker, err := st.Participants.GetByName(st.DB(), "Network Market Maker")
	require.NoError(t, err)
	require.NotNil(t, maker)
	_, err = st.DB().Exec("UPDATE participants SET is_active = 0 WHERE id = ?", maker.ID)
	require.NoError(t, err)

	for seed := int64(0); seed < 30; seed++ {
		rng := rand.New(rand.NewSource(seed))
		decisions, err := e.ProcessTick(st.DB(), 1, tickProperties(), market.NewState(), rng)
		require.NoError(t, err)
		for _, d := range decisions {
			assert.NotEqual(t, maker.ID, d.ParticipantID)
		}
	}
}
