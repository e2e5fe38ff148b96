package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nedlands/propnet/internal/actions"
	"github.com/nedlands/propnet/internal/clock"
	"github.com/nedlands/propnet/internal/store"
)

// ActionHandlers executes participant actions immediately, outside the
// tick queue. Each request runs in its own transaction at the current
// network month.
type ActionHandlers struct {
	store     *store.Store
	processor *actions.Processor
	clock     *clock.Clock
	log       zerolog.Logger
}

// NewActionHandlers creates action handlers.
func NewActionHandlers(st *store.Store, p *actions.Processor, c *clock.Clock, log zerolog.Logger) *ActionHandlers {
	return &ActionHandlers{
		store:     st,
		processor: p,
		clock:     c,
		log:       log.With().Str("handler", "actions").Logger(),
	}
}

// errActionFailed forces a rollback when a handler reports failure.
var errActionFailed = errors.New("action failed")

type executeRequest struct {
	ParticipantID string          `json:"participant_id"`
	ActionType    string          `json:"action_type"`
	Data          json.RawMessage `json:"data"`
}

// HandleExecute handles POST /api/actions/execute
func (h *ActionHandlers) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, http.StatusBadRequest, "INVALID_PARAMS", "invalid request body")
		return
	}
	h.execute(w, req)
}

// HandleBuyTokens handles POST /api/actions/buy-tokens
func (h *ActionHandlers) HandleBuyTokens(w http.ResponseWriter, r *http.Request) {
	h.executeTyped(w, r, "buy_tokens")
}

// HandleSellTokens handles POST /api/actions/sell-tokens
func (h *ActionHandlers) HandleSellTokens(w http.ResponseWriter, r *http.Request) {
	h.executeTyped(w, r, "sell_tokens")
}

// HandlePayRent handles POST /api/actions/pay-rent
func (h *ActionHandlers) HandlePayRent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ParticipantID string `json:"participant_id"`
		PropertyID    string `json:"property_id"`
		Weeks         int    `json:"weeks"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, http.StatusBadRequest, "INVALID_PARAMS", "invalid request body")
		return
	}

	data, _ := json.Marshal(actions.PayRentPayload{
		PropertyID: req.PropertyID,
		Weeks:      req.Weeks,
	})
	h.execute(w, executeRequest{
		ParticipantID: req.ParticipantID,
		ActionType:    "pay_rent",
		Data:          data,
	})
}

// executeTyped covers the buy/sell convenience routes, which share a
// request shape.
func (h *ActionHandlers) executeTyped(w http.ResponseWriter, r *http.Request, actionType string) {
	var req struct {
		ParticipantID string          `json:"participant_id"`
		PropertyID    string          `json:"property_id"`
		TokenAmount   decimal.Decimal `json:"token_amount"`
		MaxPrice      decimal.Decimal `json:"max_price"`
		MinPrice      decimal.Decimal `json:"min_price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, http.StatusBadRequest, "INVALID_PARAMS", "invalid request body")
		return
	}

	var payload interface{}
	if actionType == "buy_tokens" {
		payload = actions.BuyTokensPayload{
			PropertyID:  req.PropertyID,
			TokenAmount: req.TokenAmount,
			MaxPrice:    req.MaxPrice,
		}
	} else {
		payload = actions.SellTokensPayload{
			PropertyID:  req.PropertyID,
			TokenAmount: req.TokenAmount,
			MinPrice:    req.MinPrice,
		}
	}
	data, _ := json.Marshal(payload)
	h.execute(w, executeRequest{
		ParticipantID: req.ParticipantID,
		ActionType:    actionType,
		Data:          data,
	})
}

func (h *ActionHandlers) execute(w http.ResponseWriter, req executeRequest) {
	if req.ParticipantID == "" || req.ActionType == "" {
		writeError(w, h.log, http.StatusBadRequest, "INVALID_PARAMS", "participant_id and action_type are required")
		return
	}

	month := h.clock.CurrentMonth()

	var result actions.Result
	err := h.store.WithTx(func(tx *sql.Tx) error {
		result = h.processor.Process(tx, req.ParticipantID, req.ActionType, req.Data, month)
		if !result.Success {
			// Roll back any partial writes from the failed handler.
			return errActionFailed
		}
		return nil
	})
	if err != nil && !errors.Is(err, errActionFailed) {
		writeStoreError(w, h.log, err)
		return
	}

	if !result.Success {
		writeError(w, h.log, statusForActionError(result.Error), result.Error, result.Message)
		return
	}

	h.log.Info().
		Str("participant_id", req.ParticipantID).
		Str("action_type", req.ActionType).
		Int("month", month).
		Msg("Action executed")

	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"data":     result,
		"metadata": meta(),
	})
}
