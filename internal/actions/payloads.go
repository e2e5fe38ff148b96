package actions

import "github.com/shopspring/decimal"

// BuyTokensPayload is the action_data variant for buy_tokens.
type BuyTokensPayload struct {
	PropertyID  string          `json:"property_id"`
	TokenAmount decimal.Decimal `json:"token_amount"`
	MaxPrice    decimal.Decimal `json:"max_price"`
}

// SellTokensPayload is the action_data variant for sell_tokens.
type SellTokensPayload struct {
	PropertyID  string          `json:"property_id"`
	TokenAmount decimal.Decimal `json:"token_amount"`
	MinPrice    decimal.Decimal `json:"min_price"`
}

// PayRentPayload is the action_data variant for pay_rent.
type PayRentPayload struct {
	PropertyID string `json:"property_id"`
	Weeks      int    `json:"weeks"`
}

// CollectRentPayload is the action_data variant for collect_rent.
type CollectRentPayload struct {
	PropertyID string `json:"property_id"`
}

// VotePayload is the action_data variant for vote.
type VotePayload struct {
	ProposalID string `json:"proposal_id"`
	Vote       string `json:"vote"` // for, against, abstain
}

// TallyVotePayload is the action_data variant for the deferred
// tally_vote action queued by a successful vote.
type TallyVotePayload struct {
	ProposalID  string          `json:"proposal_id"`
	Vote        string          `json:"vote"`
	VotingPower decimal.Decimal `json:"voting_power"`
}

// RequestServicePayload is the action_data variant for request_service.
type RequestServicePayload struct {
	PropertyID  string `json:"property_id,omitempty"`
	ServiceType string `json:"service_type"`
	Description string `json:"description,omitempty"`
}

// CompleteServicePayload is the action_data variant for complete_service.
type CompleteServicePayload struct {
	RequestID string          `json:"request_id"`
	Amount    decimal.Decimal `json:"amount"`
	Notes     string          `json:"notes,omitempty"`
}
