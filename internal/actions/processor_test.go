package actions_test

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nedlands/propnet/internal/actions"
	"github.com/nedlands/propnet/internal/domain"
	"github.com/nedlands/propnet/internal/store"
	testutil "github.com/nedlands/propnet/internal/testing"
)

func newProcessor(t *testing.T) (*actions.Processor, *store.Store, func()) {
	t.Helper()
	st, cleanup := testutil.NewTestStore(t)
	return actions.NewProcessor(st, zerolog.Nop()), st, cleanup
}

func payload(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestBuyThenSellRoundTrip(t *testing.T) {
	p, st, cleanup := newProcessor(t)
	defer cleanup()

	buyer := testutil.NewParticipantFixture(t, st, "Buyer", 100000)
	prop := testutil.NewPropertyFixture(t, st, "1 Trading Terrace")

	buy := p.Process(st.DB(), buyer.ID, "buy_tokens", payload(t, actions.BuyTokensPayload{
		PropertyID:  prop.ID,
		TokenAmount: decimal.NewFromInt(10000),
		MaxPrice:    decimal.NewFromInt(2),
	}), 1)
	require.True(t, buy.Success, "buy failed: %s", buy.Message)

	// 10000 tokens at $1 each.
	got, err := st.Participants.GetByID(st.DB(), buyer.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(90000)), "balance %s", got.Balance)
	assert.True(t, got.TotalInvested.Equal(decimal.NewFromInt(10000)))

	propAfter, err := st.Properties.GetByID(st.DB(), prop.ID)
	require.NoError(t, err)
	assert.True(t, propAfter.TokensAvailable.Equal(decimal.NewFromInt(90000)))
	assert.True(t, propAfter.NetworkOwnership.Equal(decimal.NewFromFloat(0.1)))

	sell := p.Process(st.DB(), buyer.ID, "sell_tokens", payload(t, actions.SellTokensPayload{
		PropertyID:  prop.ID,
		TokenAmount: decimal.NewFromInt(5000),
	}), 1)
	require.True(t, sell.Success, "sell failed: %s", sell.Message)

	got, err = st.Participants.GetByID(st.DB(), buyer.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(95000)), "balance %s", got.Balance)

	holding, err := st.Holdings.Get(st.DB(), buyer.ID, prop.ID)
	require.NoError(t, err)
	require.NotNil(t, holding)
	assert.True(t, holding.TokenAmount.Equal(decimal.NewFromInt(5000)))
}

func TestBuyTokensRejections(t *testing.T) {
	p, st, cleanup := newProcessor(t)
	defer cleanup()

	buyer := testutil.NewParticipantFixture(t, st, "Poor Buyer", 100)
	prop := testutil.NewPropertyFixture(t, st, "2 Rejection Road")

	cases := []struct {
		name    string
		payload actions.BuyTokensPayload
		code    string
	}{
		{
			"more tokens than available",
			actions.BuyTokensPayload{PropertyID: prop.ID, TokenAmount: decimal.NewFromInt(200000)},
			actions.ErrCodeInsufficientTokens,
		},
		{
			"price above cap",
			actions.BuyTokensPayload{PropertyID: prop.ID, TokenAmount: decimal.NewFromInt(10), MaxPrice: decimal.NewFromFloat(0.5)},
			actions.ErrCodePriceTooHigh,
		},
		{
			"insufficient balance",
			actions.BuyTokensPayload{PropertyID: prop.ID, TokenAmount: decimal.NewFromInt(200)},
			actions.ErrCodeInsufficientFunds,
		},
		{
			"missing property",
			actions.BuyTokensPayload{PropertyID: "missing", TokenAmount: decimal.NewFromInt(10)},
			actions.ErrCodeNotFound,
		},
		{
			"zero token amount",
			actions.BuyTokensPayload{PropertyID: prop.ID},
			actions.ErrCodeInvalidParams,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := p.Process(st.DB(), buyer.ID, "buy_tokens", payload(t, tc.payload), 1)
			assert.False(t, result.Success)
			assert.Equal(t, tc.code, result.Error)
		})
	}

	// No failed attempt may have touched the balance.
	got, err := st.Participants.GetByID(st.DB(), buyer.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(100)))
}

func TestSellWithoutHoldingFails(t *testing.T) {
	p, st, cleanup := newProcessor(t)
	defer cleanup()

	seller := testutil.NewParticipantFixture(t, st, "No Tokens", 100000)
	prop := testutil.NewPropertyFixture(t, st, "3 Empty Street")

	result := p.Process(st.DB(), seller.ID, "sell_tokens", payload(t, actions.SellTokensPayload{
		PropertyID:  prop.ID,
		TokenAmount: decimal.NewFromInt(10),
	}), 1)
	assert.False(t, result.Success)
	assert.Equal(t, actions.ErrCodeInsufficientTokens, result.Error)
}

func TestSellBelowMinPriceFails(t *testing.T) {
	p, st, cleanup := newProcessor(t)
	defer cleanup()

	seller := testutil.NewParticipantFixture(t, st, "Min Price Seller", 100000)
	prop := testutil.NewPropertyFixture(t, st, "4 Floor Street")

	buy := p.Process(st.DB(), seller.ID, "buy_tokens", payload(t, actions.BuyTokensPayload{
		PropertyID:  prop.ID,
		TokenAmount: decimal.NewFromInt(100),
	}), 1)
	require.True(t, buy.Success)

	result := p.Process(st.DB(), seller.ID, "sell_tokens", payload(t, actions.SellTokensPayload{
		PropertyID:  prop.ID,
		TokenAmount: decimal.NewFromInt(100),
		MinPrice:    decimal.NewFromInt(5),
	}), 1)
	assert.False(t, result.Success)
	assert.Equal(t, actions.ErrCodePriceTooLow, result.Error)
}

func TestPayRentRequiresTenancy(t *testing.T) {
	p, st, cleanup := newProcessor(t)
	defer cleanup()

	tenant := testutil.NewParticipantFixture(t, st, "The Tenant", 10000)
	stranger := testutil.NewParticipantFixture(t, st, "A Stranger", 10000)
	prop := testutil.NewTenantedPropertyFixture(t, st, "5 Lease Lane", tenant.ID)

	denied := p.Process(st.DB(), stranger.ID, "pay_rent", payload(t, actions.PayRentPayload{
		PropertyID: prop.ID,
		Weeks:      2,
	}), 1)
	assert.False(t, denied.Success)
	assert.Equal(t, actions.ErrCodeNotTenant, denied.Error)

	paid := p.Process(st.DB(), tenant.ID, "pay_rent", payload(t, actions.PayRentPayload{
		PropertyID: prop.ID,
		Weeks:      2,
	}), 1)
	require.True(t, paid.Success, "pay_rent failed: %s", paid.Message)

	// Two weeks at $650.
	got, err := st.Participants.GetByID(st.DB(), tenant.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(8700)), "balance %s", got.Balance)

	propAfter, err := st.Properties.GetByID(st.DB(), prop.ID)
	require.NoError(t, err)
	assert.True(t, propAfter.TotalRentCollected.Equal(decimal.NewFromInt(1300)))
}

func TestCollectRentDistributesDividendPool(t *testing.T) {
	p, st, cleanup := newProcessor(t)
	defer cleanup()

	owner := testutil.NewParticipantFixture(t, st, "Owner", 100000)
	tenant := testutil.NewParticipantFixture(t, st, "Rent Payer", 100000)
	prop := testutil.NewTenantedPropertyFixture(t, st, "6 Dividend Drive", tenant.ID)

	// The owner holds a quarter of the supply; the rest stays in the
	// available pool.
	buy := p.Process(st.DB(), owner.ID, "buy_tokens", payload(t, actions.BuyTokensPayload{
		PropertyID:  prop.ID,
		TokenAmount: decimal.NewFromInt(25000),
	}), 2)
	require.True(t, buy.Success, "buy_tokens failed: %s", buy.Message)

	result := p.Process(st.DB(), owner.ID, "collect_rent", payload(t, actions.CollectRentPayload{
		PropertyID: prop.ID,
	}), 3)
	require.True(t, result.Success, "collect_rent failed: %s", result.Message)

	// Monthly rent 650 x 4.33 = 2814.50; dividend pool 80% = 2251.60.
	propAfter, err := st.Properties.GetByID(st.DB(), prop.ID)
	require.NoError(t, err)
	assert.True(t, propAfter.TotalRentCollected.Equal(decimal.NewFromFloat(2814.50)),
		"rent %s", propAfter.TotalRentCollected)
	assert.True(t, propAfter.TotalDividendsPaid.Equal(decimal.NewFromFloat(2251.60)),
		"dividends %s", propAfter.TotalDividendsPaid)

	// The owner's quarter of the pool lands on their balance and the
	// dividend counter: 2251.60 x 0.25 = 562.90.
	ownerAfter, err := st.Participants.GetByID(st.DB(), owner.ID)
	require.NoError(t, err)
	assert.True(t, ownerAfter.TotalDividends.Equal(decimal.NewFromFloat(562.90)),
		"total dividends %s", ownerAfter.TotalDividends)
	assert.True(t, ownerAfter.Balance.Equal(decimal.NewFromFloat(75562.90)),
		"balance %s", ownerAfter.Balance)

	events, err := st.Events.List(st.DB(), store.EventFilter{EventType: "dividend"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 3, events[0].NetworkMonth)
	assert.InDelta(t, 562.90, events[0].Data["amount"].(float64), 0.001)
}

func TestCollectRentOnUntenantedFails(t *testing.T) {
	p, st, cleanup := newProcessor(t)
	defer cleanup()

	owner := testutil.NewParticipantFixture(t, st, "Hopeful Owner", 100000)
	prop := testutil.NewPropertyFixture(t, st, "7 Vacant View")

	result := p.Process(st.DB(), owner.ID, "collect_rent", payload(t, actions.CollectRentPayload{
		PropertyID: prop.ID,
	}), 1)
	assert.False(t, result.Success)
	assert.Equal(t, actions.ErrCodeNotTenanted, result.Error)
}

func TestVoteRequiresHoldings(t *testing.T) {
	p, st, cleanup := newProcessor(t)
	defer cleanup()

	voter := testutil.NewParticipantFixture(t, st, "Empty Voter", 100000)

	result := p.Process(st.DB(), voter.ID, "vote", payload(t, actions.VotePayload{
		ProposalID: "prop-1",
		Vote:       "for",
	}), 1)
	assert.False(t, result.Success)
	assert.Equal(t, actions.ErrCodeNoVotingPower, result.Error)

	invalid := p.Process(st.DB(), voter.ID, "vote", payload(t, actions.VotePayload{
		ProposalID: "prop-1",
		Vote:       "maybe",
	}), 1)
	assert.Equal(t, actions.ErrCodeInvalidVote, invalid.Error)
}

func TestVoteQueuesTallyWithCapturedPower(t *testing.T) {
	p, st, cleanup := newProcessor(t)
	defer cleanup()

	voter := testutil.NewParticipantFixture(t, st, "Token Voter", 100000)
	prop := testutil.NewPropertyFixture(t, st, "8 Ballot Boulevard")

	buy := p.Process(st.DB(), voter.ID, "buy_tokens", payload(t, actions.BuyTokensPayload{
		PropertyID:  prop.ID,
		TokenAmount: decimal.NewFromInt(2500),
	}), 1)
	require.True(t, buy.Success)

	result := p.Process(st.DB(), voter.ID, "vote", payload(t, actions.VotePayload{
		ProposalID: "prop-1",
		Vote:       "for",
	}), 1)
	require.True(t, result.Success, "vote failed: %s", result.Message)
	assert.InDelta(t, 2500, result.Data["voting_power"], 1e-9)

	pending, err := st.Actions.ListPending(st.DB(), 1)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "tally_vote", pending[0].ActionType)

	// Draining the queued tally records the vote in the governance log.
	tally, already := p.ProcessQueued(st.DB(), pending[0], 2)
	require.False(t, already)
	require.True(t, tally.Success, "tally failed: %s", tally.Message)
	assert.InDelta(t, 2500, tally.Data["voting_power"], 1e-9)

	events, err := st.Events.List(st.DB(), store.EventFilter{EventType: "governance"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "for", events[0].Data["vote"])
}

func TestCompleteServiceRequiresProviderRole(t *testing.T) {
	p, st, cleanup := newProcessor(t)
	defer cleanup()

	investor := testutil.NewParticipantFixture(t, st, "Not A Provider", 100000)

	denied := p.Process(st.DB(), investor.ID, "complete_service", payload(t, actions.CompleteServicePayload{
		RequestID: "req-1",
		Amount:    decimal.NewFromInt(500),
	}), 1)
	assert.False(t, denied.Success)
	assert.Equal(t, actions.ErrCodeNotServiceProvider, denied.Error)

	provider := &domain.Participant{
		Name:     "BuildRight Maintenance",
		Kind:     domain.KindNPC,
		Role:     domain.RoleService,
		Balance:  decimal.NewFromInt(1000),
		IsActive: true,
	}
	require.NoError(t, st.Participants.Create(st.DB(), provider))

	done := p.Process(st.DB(), provider.ID, "complete_service", payload(t, actions.CompleteServicePayload{
		RequestID: "req-1",
		Amount:    decimal.NewFromInt(500),
	}), 1)
	require.True(t, done.Success)

	got, err := st.Participants.GetByID(st.DB(), provider.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(1500)))
}

func TestRequestServiceEmitsEvent(t *testing.T) {
	p, st, cleanup := newProcessor(t)
	defer cleanup()

	requester := testutil.NewParticipantFixture(t, st, "Requester", 100000)

	result := p.Process(st.DB(), requester.ID, "request_service", payload(t, actions.RequestServicePayload{
		ServiceType: "plumbing",
		Description: "Leaking tap in the kitchen",
	}), 4)
	require.True(t, result.Success)

	events, err := st.Events.List(st.DB(), store.EventFilter{EventType: "service_request"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 4, events[0].NetworkMonth)
}

func TestUnknownActionType(t *testing.T) {
	p, st, cleanup := newProcessor(t)
	defer cleanup()

	result := p.Process(st.DB(), "anyone", "teleport", nil, 1)
	assert.False(t, result.Success)
	assert.Equal(t, actions.ErrCodeInvalidActionType, result.Error)
}

func TestProcessQueuedIsIdempotent(t *testing.T) {
	p, st, cleanup := newProcessor(t)
	defer cleanup()

	buyer := testutil.NewParticipantFixture(t, st, "Queued Buyer", 100000)
	prop := testutil.NewPropertyFixture(t, st, "9 Queue Quay")

	action := &domain.PendingAction{
		ParticipantID:  buyer.ID,
		ActionType:     "buy_tokens",
		Data:           payload(t, actions.BuyTokensPayload{PropertyID: prop.ID, TokenAmount: decimal.NewFromInt(1000)}),
		QueuedForMonth: 1,
	}
	require.NoError(t, st.Actions.Queue(st.DB(), action))

	result, already := p.ProcessQueued(st.DB(), action, 1)
	require.True(t, result.Success)
	assert.False(t, already)
	assert.Equal(t, action.ID, result.ActionID)

	// Re-delivery of the now-terminal action must not double-apply.
	stored, err := st.Actions.GetByID(st.DB(), action.ID)
	require.NoError(t, err)
	_, already = p.ProcessQueued(st.DB(), stored, 1)
	assert.True(t, already)

	got, err := st.Participants.GetByID(st.DB(), buyer.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(99000)), "balance %s", got.Balance)
}

func TestQueuedContentionFirstComeFirstServed(t *testing.T) {
	p, st, cleanup := newProcessor(t)
	defer cleanup()

	first := testutil.NewParticipantFixture(t, st, "First Mover", 200000)
	second := testutil.NewParticipantFixture(t, st, "Second Mover", 200000)
	prop := testutil.NewPropertyFixture(t, st, "10 Contention Court")

	// Both want 60000 of the 100000 available tokens.
	for _, id := range []string{first.ID, second.ID} {
		a := &domain.PendingAction{
			ParticipantID:  id,
			ActionType:     "buy_tokens",
			Data:           payload(t, actions.BuyTokensPayload{PropertyID: prop.ID, TokenAmount: decimal.NewFromInt(60000)}),
			QueuedForMonth: 1,
		}
		require.NoError(t, st.Actions.Queue(st.DB(), a))
	}

	pending, err := st.Actions.ListPending(st.DB(), 1)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	r1, _ := p.ProcessQueued(st.DB(), pending[0], 1)
	r2, _ := p.ProcessQueued(st.DB(), pending[1], 1)

	assert.True(t, r1.Success)
	assert.False(t, r2.Success)
	assert.Equal(t, actions.ErrCodeInsufficientTokens, r2.Error)
}
