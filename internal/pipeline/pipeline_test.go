package pipeline_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nedlands/propnet/internal/actions"
	"github.com/nedlands/propnet/internal/clock"
	"github.com/nedlands/propnet/internal/domain"
	"github.com/nedlands/propnet/internal/eventgen"
	"github.com/nedlands/propnet/internal/market"
	"github.com/nedlands/propnet/internal/narrator"
	"github.com/nedlands/propnet/internal/npc"
	"github.com/nedlands/propnet/internal/pipeline"
	"github.com/nedlands/propnet/internal/store"
	testutil "github.com/nedlands/propnet/internal/testing"
)

func newPipeline(t *testing.T, seed int64) (*pipeline.Pipeline, *store.Store, func()) {
	t.Helper()
	st, cleanup := testutil.NewTestStore(t)

	log := zerolog.Nop()
	cal := market.DefaultCalibration()
	model := market.NewModel(log)
	state := market.NewState()
	generator := eventgen.New(model, cal, log)
	npcs := npc.NewEngine(st, cal, log)
	processor := actions.NewProcessor(st, log)

	narr, err := narrator.New(context.Background(), "", "", log)
	require.NoError(t, err)

	p := pipeline.New(st, model, state, generator, npcs, processor, narr, seed, log)
	return p, st, cleanup
}

func TestTickCommitsSnapshotEventsAndValuations(t *testing.T) {
	p, st, cleanup := newPipeline(t, 42)
	defer cleanup()

	tenant := testutil.NewParticipantFixture(t, st, "Tenant", 50000)
	testutil.NewPropertyFixture(t, st, "1 Pipeline Road")
	testutil.NewTenantedPropertyFixture(t, st, "2 Pipeline Road", tenant.ID)

	result, err := p.Tick(context.Background(), 1, nil)
	require.NoError(t, err)

	snap, err := st.Snapshots.GetByMonth(st.DB(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.TotalProperties)
	assert.Equal(t, narrator.Fallback(1, result.EventsGenerated), snap.GovernorSummary)

	// One tenanted property at $650/week: 4.33 weeks of rent, 80
	// percent paid out as dividends.
	assert.True(t, snap.RentCollected.Equal(decimal.NewFromFloat(2814.5)),
		"rent %s", snap.RentCollected)
	assert.True(t, snap.DividendsPaid.Equal(decimal.NewFromFloat(2251.6)),
		"dividends %s", snap.DividendsPaid)

	// Every property is revalued each month.
	props, err := st.Properties.List(st.DB(), "")
	require.NoError(t, err)
	for _, prop := range props {
		assert.Equal(t, 1, prop.LastValuationMonth)
		assert.False(t, prop.CurrentValuation.Equal(decimal.NewFromInt(750000)),
			"valuation unchanged for %s", prop.Address)
	}

	// Generated events are persisted with the committed month.
	count, err := st.Events.CountByMonth(st.DB(), 1)
	require.NoError(t, err)
	assert.Equal(t, result.EventsGenerated, count)
}

func TestTickProcessesQueuedActions(t *testing.T) {
	p, st, cleanup := newPipeline(t, 42)
	defer cleanup()

	buyer := testutil.NewParticipantFixture(t, st, "Buyer", 100000)
	prop := testutil.NewPropertyFixture(t, st, "3 Pipeline Road")

	data, _ := json.Marshal(map[string]interface{}{
		"property_id":  prop.ID,
		"token_amount": 1000,
		"max_price":    "1.5",
	})
	queued := []clock.QueuedAction{{
		ID:            "queued-buy",
		ParticipantID: buyer.ID,
		ActionType:    "buy_tokens",
		Data:          data,
		Priority:      5,
		QueuedAt:      time.Now().UTC(),
	}}

	result, err := p.Tick(context.Background(), 1, queued)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ActionsProcessed)

	h, err := st.Holdings.Get(st.DB(), buyer.ID, prop.ID)
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.True(t, h.TokenAmount.Equal(decimal.NewFromInt(1000)))

	action, err := st.Actions.GetByID(st.DB(), "queued-buy")
	require.NoError(t, err)
	assert.Equal(t, domain.ActionCompleted, action.Status)

	// The snapshot records the month's traded volume.
	snap, err := st.Snapshots.GetByMonth(st.DB(), 1)
	require.NoError(t, err)
	assert.True(t, snap.TokensTraded.Equal(decimal.NewFromInt(1000)),
		"tokens traded %s", snap.TokensTraded)

	// Re-delivery of the same action in a later tick is a no-op.
	result, err = p.Tick(context.Background(), 2, queued)
	require.NoError(t, err)
	assert.Zero(t, result.ActionsProcessed)

	h, err = st.Holdings.Get(st.DB(), buyer.ID, prop.ID)
	require.NoError(t, err)
	assert.True(t, h.TokenAmount.Equal(decimal.NewFromInt(1000)))

	snap, err = st.Snapshots.GetByMonth(st.DB(), 2)
	require.NoError(t, err)
	assert.True(t, snap.TokensTraded.IsZero(), "tokens traded %s", snap.TokensTraded)
}

func TestTickSkipsRentWithoutTenant(t *testing.T) {
	p, st, cleanup := newPipeline(t, 42)
	defer cleanup()

	// A row marked tenanted with nobody on the lease must not produce
	// rent or dividends.
	prop := &domain.PropertyState{
		Address:          "9 Pipeline Road",
		Suburb:           "Subiaco",
		PropertyType:     "house",
		Status:           domain.PropertyTenanted,
		EnabledAtMonth:   1,
		TotalTokens:      decimal.NewFromInt(100000),
		TokensAvailable:  decimal.NewFromInt(100000),
		TokenPrice:       decimal.NewFromInt(1),
		WeeklyRent:       decimal.NewFromInt(650),
		CurrentValuation: decimal.NewFromInt(750000),
	}
	require.NoError(t, st.Properties.Create(st.DB(), prop))

	_, err := p.Tick(context.Background(), 1, nil)
	require.NoError(t, err)

	snap, err := st.Snapshots.GetByMonth(st.DB(), 1)
	require.NoError(t, err)
	assert.True(t, snap.RentCollected.IsZero(), "rent %s", snap.RentCollected)
	assert.True(t, snap.DividendsPaid.IsZero(), "dividends %s", snap.DividendsPaid)
}

func TestTickFailureLeavesNoTrace(t *testing.T) {
	p, st, cleanup := newPipeline(t, 42)
	defer cleanup()

	testutil.NewPropertyFixture(t, st, "4 Pipeline Road")

	// A pre-existing snapshot for the month forces the transaction to
	// roll back at the end, after every other write has happened.
	require.NoError(t, st.Snapshots.Create(st.DB(), &domain.NetworkSnapshot{NetworkMonth: 1}))

	pending := &domain.PendingAction{
		ParticipantID:  "ghost",
		ActionType:     "vote",
		Data:           json.RawMessage(`{"proposal_id":"p","vote":"yes"}`),
		QueuedForMonth: 1,
	}
	require.NoError(t, st.Actions.Queue(st.DB(), pending))

	before := p.MarketState()
	eventsBefore, err := st.Events.CountByMonth(st.DB(), 1)
	require.NoError(t, err)

	_, err = p.Tick(context.Background(), 1, nil)
	require.ErrorIs(t, err, store.ErrSnapshotExists)

	// Market state, valuations, events, and the pending queue are all
	// exactly as they were.
	assert.Equal(t, before, p.MarketState())

	props, err := st.Properties.List(st.DB(), "")
	require.NoError(t, err)
	assert.True(t, props[0].CurrentValuation.Equal(decimal.NewFromInt(750000)))
	assert.Zero(t, props[0].LastValuationMonth)

	eventsAfter, err := st.Events.CountByMonth(st.DB(), 1)
	require.NoError(t, err)
	assert.Equal(t, eventsBefore, eventsAfter)

	action, err := st.Actions.GetByID(st.DB(), pending.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionPending, action.Status)
}

func TestTickReplaysIdenticallyPerSeed(t *testing.T) {
	run := func() (market.State, []int) {
		p, st, cleanup := newPipeline(t, 42)
		defer cleanup()
		testutil.NewPropertyFixture(t, st, "5 Pipeline Road")
		testutil.NewPropertyFixture(t, st, "6 Pipeline Road")

		var counts []int
		for month := 1; month <= 6; month++ {
			result, err := p.Tick(context.Background(), month, nil)
			require.NoError(t, err)
			counts = append(counts, result.EventsGenerated)
		}
		return p.MarketState(), counts
	}

	stateA, countsA := run()
	stateB, countsB := run()
	assert.Equal(t, stateA, stateB)
	assert.Equal(t, countsA, countsB)
}

func TestGenerateAdHocEventsPersistsAndShiftsState(t *testing.T) {
	p, st, cleanup := newPipeline(t, 42)
	defer cleanup()

	testutil.NewPropertyFixture(t, st, "7 Pipeline Road")

	var total int
	for i := 0; i < 10; i++ {
		generated, err := p.GenerateAdHocEvents(1)
		require.NoError(t, err)
		total += len(generated)
	}
	require.Positive(t, total, "no events across 10 ad-hoc draws")

	count, err := st.Events.CountByMonth(st.DB(), 1)
	require.NoError(t, err)
	assert.Equal(t, total, count)
}

func TestDecodeFullStateRoundTrip(t *testing.T) {
	p, st, cleanup := newPipeline(t, 42)
	defer cleanup()

	testutil.NewPropertyFixture(t, st, "8 Pipeline Road")

	_, err := p.Tick(context.Background(), 1, nil)
	require.NoError(t, err)

	snap, err := st.Snapshots.GetByMonth(st.DB(), 1)
	require.NoError(t, err)
	require.NotEmpty(t, snap.FullState)

	decoded, err := pipeline.DecodeFullState(snap.FullState)
	require.NoError(t, err)
	assert.EqualValues(t, 1, decoded["month"])
	assert.Contains(t, decoded, "market")
	assert.Contains(t, decoded, "condition")

	empty, err := pipeline.DecodeFullState(nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}
