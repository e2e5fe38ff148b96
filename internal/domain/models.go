// Package domain contains the core entities of the network simulation.
// The domain layer is pure: no infrastructure dependencies, typed values
// only. Money and token amounts use decimal arithmetic throughout.
package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ParticipantKind distinguishes humans from autonomous agents.
type ParticipantKind string

const (
	KindHuman ParticipantKind = "human"
	KindNPC   ParticipantKind = "npc"
)

// Role describes a participant's function in the network.
type Role string

const (
	RoleInvestor    Role = "investor"
	RoleRenter      Role = "renter"
	RoleHomeowner   Role = "homeowner"
	RoleService     Role = "service"
	RoleFoundation  Role = "foundation"
	RoleMarketMaker Role = "market_maker"
	RoleDeveloper   Role = "developer"
)

// Personality holds the behavioral vector of an NPC. All values in [0, 1].
type Personality struct {
	RiskTolerance float64 `json:"risk_tolerance"`
	ActivityLevel float64 `json:"activity_level"`
	Patience      float64 `json:"patience"`
	Contrarian    float64 `json:"contrarian"`
	Loyalty       float64 `json:"loyalty"`
}

// GoalType classifies what an agent is trying to achieve.
type GoalType string

const (
	GoalAccumulate GoalType = "accumulate"
	GoalIncome     GoalType = "income"
	GoalDivest     GoalType = "divest"
	GoalStabilize  GoalType = "stabilize"
)

// Goal is a single objective evaluated each tick in priority order.
// Completed is monotonic: once set it never un-sets.
type Goal struct {
	Type          GoalType        `json:"type"`
	TargetValue   decimal.Decimal `json:"target_value"`
	Priority      int             `json:"priority"` // 1..10, higher first
	DeadlineMonth *int            `json:"deadline_month,omitempty"`
	Progress      decimal.Decimal `json:"progress"`
	Completed     bool            `json:"completed"`
}

// Participant is a network member, human or NPC.
type Participant struct {
	ID              string          `json:"id"`
	ExternalUserID  *string         `json:"external_user_id,omitempty"` // nil for NPCs
	Name            string          `json:"name"`
	Kind            ParticipantKind `json:"kind"`
	Role            Role            `json:"role"`
	Balance         decimal.Decimal `json:"balance"`
	TotalInvested   decimal.Decimal `json:"total_invested"`
	TotalDividends  decimal.Decimal `json:"total_dividends"`
	Personality     *Personality    `json:"personality,omitempty"` // set for NPCs only
	Goals           []Goal          `json:"goals,omitempty"`
	IsActive        bool            `json:"is_active"`
	LastActionMonth int             `json:"last_action_month"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Holding is a participant's token position in a single property.
// Empty holdings (token_amount = 0) are removed, never stored.
type Holding struct {
	ID               string          `json:"id"`
	ParticipantID    string          `json:"participant_id"`
	PropertyID       string          `json:"property_id"`
	TokenAmount      decimal.Decimal `json:"token_amount"`
	AvgPurchasePrice decimal.Decimal `json:"avg_purchase_price"`
	OwnershipPercent decimal.Decimal `json:"ownership_percent"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// PropertyStatus is the lifecycle state of a property in the network.
type PropertyStatus string

const (
	PropertyDraft     PropertyStatus = "draft"
	PropertyAvailable PropertyStatus = "available"
	PropertyTenanted  PropertyStatus = "tenanted"
	PropertySold      PropertyStatus = "sold"
)

// PropertyState is the simulation state of a tokenized property.
// Invariant: NetworkOwnership = (TotalTokens - TokensAvailable) / TotalTokens.
type PropertyState struct {
	ID                 string          `json:"id"`
	Address            string          `json:"address"`
	Suburb             string          `json:"suburb"`
	PropertyType       string          `json:"property_type"` // house, apartment
	Status             PropertyStatus  `json:"status"`
	EnabledAtMonth     int             `json:"enabled_at_month"`
	TotalTokens        decimal.Decimal `json:"total_tokens"`
	TokensAvailable    decimal.Decimal `json:"tokens_available"`
	TokenPrice         decimal.Decimal `json:"token_price"`
	NetworkOwnership   decimal.Decimal `json:"network_ownership"` // 0..1
	TenantID           *string         `json:"tenant_id,omitempty"`
	WeeklyRent         decimal.Decimal `json:"weekly_rent"`
	LeaseStartMonth    *int            `json:"lease_start_month,omitempty"`
	LeaseEndMonth      *int            `json:"lease_end_month,omitempty"`
	TotalRentCollected decimal.Decimal `json:"total_rent_collected"`
	TotalDividendsPaid decimal.Decimal `json:"total_dividends_paid"`
	MaintenanceReserve decimal.Decimal `json:"maintenance_reserve"`
	CurrentValuation   decimal.Decimal `json:"current_valuation"`
	LastValuationMonth int             `json:"last_valuation_month"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// RecomputeOwnership derives NetworkOwnership from the token counters.
func (p *PropertyState) RecomputeOwnership() {
	if p.TotalTokens.IsZero() {
		p.NetworkOwnership = decimal.Zero
		return
	}
	sold := p.TotalTokens.Sub(p.TokensAvailable)
	p.NetworkOwnership = sold.Div(p.TotalTokens)
}

// ActionStatus is the lifecycle state of a queued action.
// Actions are immutable once terminal (completed or failed).
type ActionStatus string

const (
	ActionPending    ActionStatus = "pending"
	ActionProcessing ActionStatus = "processing"
	ActionCompleted  ActionStatus = "completed"
	ActionFailed     ActionStatus = "failed"
)

// PendingAction is a participant intent queued for the next tick.
type PendingAction struct {
	ID             string          `json:"id"`
	ParticipantID  string          `json:"participant_id"`
	ActionType     string          `json:"action_type"`
	Data           json.RawMessage `json:"data,omitempty"`
	Priority       int             `json:"priority"` // default 5, higher processed first
	Status         ActionStatus    `json:"status"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          *string         `json:"error,omitempty"`
	QueuedAt       time.Time       `json:"queued_at"`
	ProcessedAt    *time.Time      `json:"processed_at,omitempty"`
	QueuedForMonth int             `json:"queued_for_month"`
}

// NetworkSnapshot is the immutable per-month record of network state.
type NetworkSnapshot struct {
	ID                string          `json:"id"`
	NetworkMonth      int             `json:"network_month"`
	TotalProperties   int             `json:"total_properties"`
	TotalParticipants int             `json:"total_participants"`
	TotalValuation    decimal.Decimal `json:"total_valuation"`
	TotalTokensIssued decimal.Decimal `json:"total_tokens_issued"`
	AvgTokenPrice     decimal.Decimal `json:"avg_token_price"`
	AvgYield          decimal.Decimal `json:"avg_yield"`
	ActionsProcessed  int             `json:"actions_processed"`
	TokensTraded      decimal.Decimal `json:"tokens_traded"`
	DividendsPaid     decimal.Decimal `json:"dividends_paid"`
	RentCollected     decimal.Decimal `json:"rent_collected"`
	FullState         []byte          `json:"-"` // msgpack-encoded state blob, optional
	GovernorSummary   string          `json:"governor_summary"`
	ProcessingTimeMs  int64           `json:"processing_time_ms"`
	CreatedAt         time.Time       `json:"created_at"`
}

// EventSeverity grades network events.
type EventSeverity string

const (
	SeverityInfo     EventSeverity = "info"
	SeverityWarning  EventSeverity = "warning"
	SeverityAlert    EventSeverity = "alert"
	SeverityCritical EventSeverity = "critical"
)

// NetworkEvent is an append-only record of something that happened
// during a simulated month.
type NetworkEvent struct {
	ID            string                 `json:"id"`
	NetworkMonth  int                    `json:"network_month"`
	EventType     string                 `json:"event_type"`
	Severity      EventSeverity          `json:"severity"`
	Title         string                 `json:"title"`
	Description   string                 `json:"description"`
	ParticipantID *string                `json:"participant_id,omitempty"`
	PropertyID    *string                `json:"property_id,omitempty"`
	Data          map[string]interface{} `json:"data,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}
