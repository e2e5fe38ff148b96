// Package actions validates and executes participant intents against
// the state store. Every failure carries a stable error code so the
// API and the NPC engine can react without parsing messages.
package actions

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nedlands/propnet/internal/domain"
	"github.com/nedlands/propnet/internal/store"
)

// Stable error codes returned in Result.Error.
const (
	ErrCodeInvalidActionType  = "INVALID_ACTION_TYPE"
	ErrCodeInvalidParams      = "INVALID_PARAMS"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeInsufficientTokens = "INSUFFICIENT_TOKENS"
	ErrCodePriceTooHigh       = "PRICE_TOO_HIGH"
	ErrCodePriceTooLow        = "PRICE_TOO_LOW"
	ErrCodeInsufficientFunds  = "INSUFFICIENT_BALANCE"
	ErrCodeNotTenant          = "NOT_TENANT"
	ErrCodeNotTenanted        = "NOT_TENANTED"
	ErrCodeInvalidVote        = "INVALID_VOTE"
	ErrCodeNoVotingPower      = "NO_VOTING_POWER"
	ErrCodeNotServiceProvider = "NOT_SERVICE_PROVIDER"
	ErrCodeProcessingError    = "PROCESSING_ERROR"
)

// Result is the outcome of a single action execution.
type Result struct {
	Success    bool                   `json:"success"`
	ActionID   string                 `json:"action_id"`
	ActionType string                 `json:"action_type"`
	Message    string                 `json:"message"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

// monthlyRentWeeks converts weekly rent to monthly.
var monthlyRentWeeks = decimal.NewFromFloat(4.33)

// dividendPayoutRatio is the fraction of monthly rent distributed to
// token holders; the remainder covers expenses and the reserve.
var dividendPayoutRatio = decimal.NewFromFloat(0.80)

type handler func(q store.Querier, participantID string, data json.RawMessage, month int) Result

// Processor executes actions. Callers choose the transaction scope by
// passing either the database or an open transaction as the Querier.
type Processor struct {
	store    *store.Store
	handlers map[string]handler
	log      zerolog.Logger
}

// NewProcessor creates an action processor.
func NewProcessor(st *store.Store, log zerolog.Logger) *Processor {
	p := &Processor{
		store: st,
		log:   log.With().Str("component", "actions").Logger(),
	}
	p.handlers = map[string]handler{
		"buy_tokens":       p.handleBuyTokens,
		"sell_tokens":      p.handleSellTokens,
		"pay_rent":         p.handlePayRent,
		"collect_rent":     p.handleCollectRent,
		"vote":             p.handleVote,
		"tally_vote":       p.handleTallyVote,
		"request_service":  p.handleRequestService,
		"complete_service": p.handleCompleteService,
	}
	return p
}

// Process validates and executes a single action.
func (p *Processor) Process(q store.Querier, participantID, actionType string, data json.RawMessage, month int) Result {
	actionID := uuid.New().String()

	h, ok := p.handlers[actionType]
	if !ok {
		return Result{
			ActionID:   actionID,
			ActionType: actionType,
			Message:    fmt.Sprintf("Unknown action type: %s", actionType),
			Error:      ErrCodeInvalidActionType,
		}
	}

	result := h(q, participantID, data, month)
	result.ActionID = actionID
	result.ActionType = actionType

	if !result.Success {
		p.log.Debug().
			Str("action_type", actionType).
			Str("participant_id", participantID).
			Str("error", result.Error).
			Msg("Action rejected")
	}
	return result
}

// ProcessQueued executes a persisted pending action and marks it
// terminal. Re-processing an already terminal action is a no-op with
// AlreadyProcessed set, so duplicate delivery can never double-apply.
func (p *Processor) ProcessQueued(q store.Querier, a *domain.PendingAction, month int) (Result, bool) {
	if a.Status == domain.ActionCompleted || a.Status == domain.ActionFailed {
		return Result{ActionID: a.ID, ActionType: a.ActionType, Message: "already processed"}, true
	}

	result := p.Process(q, a.ParticipantID, a.ActionType, a.Data, month)
	result.ActionID = a.ID

	encoded, err := json.Marshal(result)
	if err != nil {
		encoded = nil
	}
	var actionErr *string
	if !result.Success {
		actionErr = &result.Error
	}
	if err := p.store.Actions.Complete(q, a.ID, encoded, actionErr); err != nil {
		p.log.Error().Err(err).Str("action_id", a.ID).Msg("Failed to finalize action")
	}
	return result, false
}

func fail(actionType, message, code string) Result {
	return Result{ActionType: actionType, Message: message, Error: code}
}

func (p *Processor) handleBuyTokens(q store.Querier, participantID string, data json.RawMessage, month int) Result {
	var payload BuyTokensPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.PropertyID == "" || !payload.TokenAmount.IsPositive() {
		return fail("buy_tokens", "Invalid property or token amount", ErrCodeInvalidParams)
	}
	if payload.MaxPrice.IsZero() {
		payload.MaxPrice = decimal.NewFromInt(999999)
	}

	participant, err := p.store.Participants.GetByID(q, participantID)
	if err != nil {
		return p.notFoundOrInternal("buy_tokens", "Participant not found", err)
	}

	prop, err := p.store.Properties.GetByID(q, payload.PropertyID)
	if err != nil {
		return p.notFoundOrInternal("buy_tokens", "Property not found", err)
	}

	if prop.TokensAvailable.LessThan(payload.TokenAmount) {
		return fail("buy_tokens",
			fmt.Sprintf("Only %s tokens available", prop.TokensAvailable),
			ErrCodeInsufficientTokens)
	}
	if prop.TokenPrice.GreaterThan(payload.MaxPrice) {
		return fail("buy_tokens",
			fmt.Sprintf("Price $%s exceeds max $%s", prop.TokenPrice, payload.MaxPrice),
			ErrCodePriceTooHigh)
	}

	totalCost := payload.TokenAmount.Mul(prop.TokenPrice)
	if participant.Balance.LessThan(totalCost) {
		return fail("buy_tokens",
			fmt.Sprintf("Insufficient balance: $%s < $%s", participant.Balance, totalCost),
			ErrCodeInsufficientFunds)
	}

	newBalance, err := p.store.Participants.AdjustBalance(q, participantID, totalCost, store.BalanceSub)
	if err != nil {
		return p.internal("buy_tokens", err)
	}
	if err := p.store.Participants.AddInvested(q, participantID, totalCost); err != nil {
		return p.internal("buy_tokens", err)
	}
	if _, err := p.store.Holdings.Add(q, participantID, prop.ID, payload.TokenAmount, prop.TokenPrice, prop.TotalTokens); err != nil {
		return p.internal("buy_tokens", err)
	}
	if _, err := p.store.Properties.AdjustTokensAvailable(q, prop.ID, payload.TokenAmount.Neg()); err != nil {
		return p.internal("buy_tokens", err)
	}

	p.log.Info().
		Str("participant_id", participantID).
		Str("property_id", prop.ID).
		Str("tokens", payload.TokenAmount.String()).
		Str("cost", totalCost.String()).
		Msg("Tokens bought")

	return Result{
		Success: true,
		Message: fmt.Sprintf("Bought %s tokens for $%s", payload.TokenAmount, totalCost),
		Data: map[string]interface{}{
			"property_id":     prop.ID,
			"tokens":          payload.TokenAmount.InexactFloat64(),
			"price_per_token": prop.TokenPrice.InexactFloat64(),
			"total_cost":      totalCost.InexactFloat64(),
			"new_balance":     newBalance.InexactFloat64(),
		},
	}
}

func (p *Processor) handleSellTokens(q store.Querier, participantID string, data json.RawMessage, month int) Result {
	var payload SellTokensPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.PropertyID == "" || !payload.TokenAmount.IsPositive() {
		return fail("sell_tokens", "Invalid property or token amount", ErrCodeInvalidParams)
	}

	if _, err := p.store.Participants.GetByID(q, participantID); err != nil {
		return p.notFoundOrInternal("sell_tokens", "Participant not found", err)
	}

	holding, err := p.store.Holdings.Get(q, participantID, payload.PropertyID)
	if err != nil {
		return p.internal("sell_tokens", err)
	}
	held := decimal.Zero
	if holding != nil {
		held = holding.TokenAmount
	}
	if held.LessThan(payload.TokenAmount) {
		return fail("sell_tokens",
			fmt.Sprintf("Insufficient tokens: have %s, need %s", held, payload.TokenAmount),
			ErrCodeInsufficientTokens)
	}

	prop, err := p.store.Properties.GetByID(q, payload.PropertyID)
	if err != nil {
		return p.notFoundOrInternal("sell_tokens", "Property not found", err)
	}
	if prop.TokenPrice.LessThan(payload.MinPrice) {
		return fail("sell_tokens",
			fmt.Sprintf("Price $%s below minimum $%s", prop.TokenPrice, payload.MinPrice),
			ErrCodePriceTooLow)
	}

	proceeds := payload.TokenAmount.Mul(prop.TokenPrice)

	if _, err := p.store.Holdings.Remove(q, participantID, prop.ID, payload.TokenAmount, prop.TotalTokens); err != nil {
		return p.internal("sell_tokens", err)
	}
	newBalance, err := p.store.Participants.AdjustBalance(q, participantID, proceeds, store.BalanceAdd)
	if err != nil {
		return p.internal("sell_tokens", err)
	}
	if _, err := p.store.Properties.AdjustTokensAvailable(q, prop.ID, payload.TokenAmount); err != nil {
		return p.internal("sell_tokens", err)
	}

	p.log.Info().
		Str("participant_id", participantID).
		Str("property_id", prop.ID).
		Str("tokens", payload.TokenAmount.String()).
		Str("proceeds", proceeds.String()).
		Msg("Tokens sold")

	return Result{
		Success: true,
		Message: fmt.Sprintf("Sold %s tokens for $%s", payload.TokenAmount, proceeds),
		Data: map[string]interface{}{
			"property_id":     prop.ID,
			"tokens":          payload.TokenAmount.InexactFloat64(),
			"price_per_token": prop.TokenPrice.InexactFloat64(),
			"total_proceeds":  proceeds.InexactFloat64(),
			"new_balance":     newBalance.InexactFloat64(),
		},
	}
}

func (p *Processor) handlePayRent(q store.Querier, participantID string, data json.RawMessage, month int) Result {
	var payload PayRentPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.PropertyID == "" {
		return fail("pay_rent", "Invalid rent payment parameters", ErrCodeInvalidParams)
	}
	if payload.Weeks < 1 {
		payload.Weeks = 1
	}

	participant, err := p.store.Participants.GetByID(q, participantID)
	if err != nil {
		return p.notFoundOrInternal("pay_rent", "Participant not found", err)
	}

	prop, err := p.store.Properties.GetByID(q, payload.PropertyID)
	if err != nil {
		return p.notFoundOrInternal("pay_rent", "Property not found", err)
	}

	if prop.TenantID == nil || *prop.TenantID != participantID {
		return fail("pay_rent", "You are not the tenant of this property", ErrCodeNotTenant)
	}

	totalRent := prop.WeeklyRent.Mul(decimal.NewFromInt(int64(payload.Weeks)))
	if participant.Balance.LessThan(totalRent) {
		return fail("pay_rent",
			fmt.Sprintf("Insufficient balance for rent: $%s < $%s", participant.Balance, totalRent),
			ErrCodeInsufficientFunds)
	}

	newBalance, err := p.store.Participants.AdjustBalance(q, participantID, totalRent, store.BalanceSub)
	if err != nil {
		return p.internal("pay_rent", err)
	}
	prop.TotalRentCollected = prop.TotalRentCollected.Add(totalRent)
	if err := p.store.Properties.Save(q, prop); err != nil {
		return p.internal("pay_rent", err)
	}

	p.log.Info().
		Str("participant_id", participantID).
		Str("property_id", prop.ID).
		Int("weeks", payload.Weeks).
		Str("amount", totalRent.String()).
		Msg("Rent paid")

	return Result{
		Success: true,
		Message: fmt.Sprintf("Paid $%s rent for %d week(s)", totalRent, payload.Weeks),
		Data: map[string]interface{}{
			"property_id": prop.ID,
			"weeks":       payload.Weeks,
			"weekly_rent": prop.WeeklyRent.InexactFloat64(),
			"total_paid":  totalRent.InexactFloat64(),
			"new_balance": newBalance.InexactFloat64(),
		},
	}
}

func (p *Processor) handleCollectRent(q store.Querier, participantID string, data json.RawMessage, month int) Result {
	var payload CollectRentPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.PropertyID == "" {
		return fail("collect_rent", "Invalid rent collection parameters", ErrCodeInvalidParams)
	}

	prop, err := p.store.Properties.GetByID(q, payload.PropertyID)
	if err != nil {
		return p.notFoundOrInternal("collect_rent", "Property not found", err)
	}
	if prop.Status != domain.PropertyTenanted || prop.TenantID == nil {
		return fail("collect_rent", "Property is not tenanted", ErrCodeNotTenanted)
	}

	monthlyRent := prop.WeeklyRent.Mul(monthlyRentWeeks)
	dividendPool := monthlyRent.Mul(dividendPayoutRatio)

	prop.TotalRentCollected = prop.TotalRentCollected.Add(monthlyRent)
	prop.TotalDividendsPaid = prop.TotalDividendsPaid.Add(dividendPool)
	if err := p.store.Properties.Save(q, prop); err != nil {
		return p.internal("collect_rent", err)
	}

	// Distribute the pool pro-rata over token holders. Tokens still in
	// the available pool earn nothing; their share stays with the
	// property reserve.
	holdings, err := p.store.Holdings.ListByProperty(q, prop.ID)
	if err != nil {
		return p.internal("collect_rent", err)
	}
	distributed := decimal.Zero
	holdersPaid := 0
	for _, h := range holdings {
		share := dividendPool.Mul(h.TokenAmount).Div(prop.TotalTokens).Round(2)
		if !share.IsPositive() {
			continue
		}
		holdersPaid++
		if _, err := p.store.Participants.AdjustBalance(q, h.ParticipantID, share, store.BalanceAdd); err != nil {
			return p.internal("collect_rent", err)
		}
		if err := p.store.Participants.AddDividends(q, h.ParticipantID, share); err != nil {
			return p.internal("collect_rent", err)
		}
		distributed = distributed.Add(share)
	}

	shortID := prop.ID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}
	event := &domain.NetworkEvent{
		NetworkMonth: month,
		EventType:    "dividend",
		Title:        fmt.Sprintf("Dividend Payment - Property %s", shortID),
		Description:  fmt.Sprintf("Distributed $%s to token holders", distributed.StringFixed(2)),
		PropertyID:   &prop.ID,
		Data:         map[string]interface{}{"amount": distributed.InexactFloat64()},
	}
	if err := p.store.Events.Create(q, event); err != nil {
		return p.internal("collect_rent", err)
	}

	return Result{
		Success: true,
		Message: fmt.Sprintf("Collected $%s rent, distributed $%s dividends",
			monthlyRent.StringFixed(2), distributed.StringFixed(2)),
		Data: map[string]interface{}{
			"property_id":            prop.ID,
			"rent_collected":         monthlyRent.InexactFloat64(),
			"dividend_pool":          dividendPool.InexactFloat64(),
			"dividends_distributed":  distributed.InexactFloat64(),
			"holders_paid":           holdersPaid,
		},
	}
}

func (p *Processor) handleVote(q store.Querier, participantID string, data json.RawMessage, month int) Result {
	var payload VotePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fail("vote", "Invalid vote parameters", ErrCodeInvalidParams)
	}
	if payload.Vote != "for" && payload.Vote != "against" && payload.Vote != "abstain" {
		return fail("vote", "Invalid vote choice", ErrCodeInvalidVote)
	}

	if _, err := p.store.Participants.GetByID(q, participantID); err != nil {
		return p.notFoundOrInternal("vote", "Participant not found", err)
	}

	votingPower, err := p.store.Holdings.SumTokens(q, participantID)
	if err != nil {
		return p.internal("vote", err)
	}
	if !votingPower.IsPositive() {
		return fail("vote", "No voting power - you need token holdings to vote", ErrCodeNoVotingPower)
	}

	// Votes are tallied at pipeline time: queue a deferred action for
	// the current month carrying the power captured now.
	voteData, err := json.Marshal(map[string]interface{}{
		"proposal_id":  payload.ProposalID,
		"vote":         payload.Vote,
		"voting_power": votingPower.InexactFloat64(),
	})
	if err != nil {
		return p.internal("vote", err)
	}
	action := &domain.PendingAction{
		ParticipantID:  participantID,
		ActionType:     "tally_vote",
		Data:           voteData,
		QueuedForMonth: month,
	}
	if err := p.store.Actions.Queue(q, action); err != nil && !errors.Is(err, store.ErrDuplicateAction) {
		return p.internal("vote", err)
	}

	return Result{
		Success: true,
		Message: fmt.Sprintf("Vote '%s' queued with %s voting power", payload.Vote, votingPower),
		Data: map[string]interface{}{
			"proposal_id":  payload.ProposalID,
			"vote":         payload.Vote,
			"voting_power": votingPower.InexactFloat64(),
		},
	}
}

// handleTallyVote records a deferred vote into the governance event
// log with the voting power captured at submission time.
func (p *Processor) handleTallyVote(q store.Querier, participantID string, data json.RawMessage, month int) Result {
	var payload TallyVotePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fail("tally_vote", "Invalid tally parameters", ErrCodeInvalidParams)
	}

	event := &domain.NetworkEvent{
		NetworkMonth:  month,
		EventType:     "governance",
		Title:         fmt.Sprintf("Vote Tallied: %s", payload.ProposalID),
		Description:   fmt.Sprintf("A '%s' vote was counted with %s voting power.", payload.Vote, payload.VotingPower),
		ParticipantID: &participantID,
		Data: map[string]interface{}{
			"proposal_id":  payload.ProposalID,
			"vote":         payload.Vote,
			"voting_power": payload.VotingPower.InexactFloat64(),
		},
	}
	if err := p.store.Events.Create(q, event); err != nil {
		return p.internal("tally_vote", err)
	}

	return Result{
		Success: true,
		Message: fmt.Sprintf("Vote '%s' tallied for proposal %s", payload.Vote, payload.ProposalID),
		Data: map[string]interface{}{
			"proposal_id":  payload.ProposalID,
			"vote":         payload.Vote,
			"voting_power": payload.VotingPower.InexactFloat64(),
		},
	}
}

func (p *Processor) handleRequestService(q store.Querier, participantID string, data json.RawMessage, month int) Result {
	var payload RequestServicePayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ServiceType == "" {
		return fail("request_service", "Invalid service request parameters", ErrCodeInvalidParams)
	}

	event := &domain.NetworkEvent{
		NetworkMonth:  month,
		EventType:     "service_request",
		Title:         fmt.Sprintf("Service Request: %s", payload.ServiceType),
		Description:   payload.Description,
		ParticipantID: &participantID,
		Data: map[string]interface{}{
			"service_type": payload.ServiceType,
			"status":       "pending",
		},
	}
	if payload.PropertyID != "" {
		event.PropertyID = &payload.PropertyID
	}
	if err := p.store.Events.Create(q, event); err != nil {
		return p.internal("request_service", err)
	}

	return Result{
		Success: true,
		Message: fmt.Sprintf("Service request submitted: %s", payload.ServiceType),
		Data: map[string]interface{}{
			"property_id":  payload.PropertyID,
			"service_type": payload.ServiceType,
		},
	}
}

func (p *Processor) handleCompleteService(q store.Querier, participantID string, data json.RawMessage, month int) Result {
	var payload CompleteServicePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fail("complete_service", "Invalid service completion parameters", ErrCodeInvalidParams)
	}

	participant, err := p.store.Participants.GetByID(q, participantID)
	if err != nil {
		return p.notFoundOrInternal("complete_service", "Participant not found", err)
	}
	if participant.Role != domain.RoleService {
		return fail("complete_service", "Only service providers can complete jobs", ErrCodeNotServiceProvider)
	}

	newBalance, err := p.store.Participants.AdjustBalance(q, participantID, payload.Amount, store.BalanceAdd)
	if err != nil {
		return p.internal("complete_service", err)
	}

	event := &domain.NetworkEvent{
		NetworkMonth:  month,
		EventType:     "service_completed",
		Title:         "Service Completed",
		Description:   payload.Notes,
		ParticipantID: &participantID,
		Data: map[string]interface{}{
			"request_id":  payload.RequestID,
			"amount_paid": payload.Amount.InexactFloat64(),
		},
	}
	if err := p.store.Events.Create(q, event); err != nil {
		return p.internal("complete_service", err)
	}

	return Result{
		Success: true,
		Message: fmt.Sprintf("Service completed, earned $%s", payload.Amount),
		Data: map[string]interface{}{
			"request_id":    payload.RequestID,
			"amount_earned": payload.Amount.InexactFloat64(),
			"new_balance":   newBalance.InexactFloat64(),
		},
	}
}

func (p *Processor) notFoundOrInternal(actionType, message string, err error) Result {
	if errors.Is(err, store.ErrNotFound) {
		return fail(actionType, message, ErrCodeNotFound)
	}
	return p.internal(actionType, err)
}

func (p *Processor) internal(actionType string, err error) Result {
	p.log.Error().Err(err).Str("action_type", actionType).Msg("Action processing error")
	return fail(actionType, fmt.Sprintf("Action failed: %v", err), ErrCodeProcessingError)
}
