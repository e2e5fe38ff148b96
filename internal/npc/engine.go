// Package npc drives the autonomous participants. Each profile carries
// a personality vector and a goal list; once per tick the engine rolls
// whether each NPC acts, scores the market, and emits at most one
// action intent per NPC. All randomness comes from the caller's rng so
// seeded runs replay identically.
package npc

import (
	"encoding/json"
	"fmt"
	"math/rand"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nedlands/propnet/internal/domain"
	"github.com/nedlands/propnet/internal/market"
	"github.com/nedlands/propnet/internal/store"
)

// Decision is an action intent produced by an NPC for the current tick.
type Decision struct {
	ParticipantID string
	Name          string
	ActionType    string
	Data          json.RawMessage
	Confidence    float64
	Reasoning     string
}

// Engine evaluates all NPC profiles against the current network state.
type Engine struct {
	store       *store.Store
	calibration market.Calibration
	log         zerolog.Logger
}

// NewEngine creates an NPC engine.
func NewEngine(st *store.Store, cal market.Calibration, log zerolog.Logger) *Engine {
	return &Engine{
		store:       st,
		calibration: cal,
		log:         log.With().Str("component", "npc").Logger(),
	}
}

// EnsureParticipants creates any missing NPC participants. Lookup is
// by name, so calling this on every startup is safe.
func (e *Engine) EnsureParticipants(q store.Querier) (created int, err error) {
	for i := range Profiles {
		p := &Profiles[i]
		existing, err := e.store.Participants.GetByName(q, p.Name)
		if err != nil {
			return created, fmt.Errorf("failed to look up npc %s: %w", p.Name, err)
		}
		if existing != nil {
			continue
		}

		personality := p.Personality
		participant := &domain.Participant{
			Name:        p.Name,
			Kind:        domain.KindNPC,
			Role:        p.Role,
			Balance:     startingBalance,
			Personality: &personality,
			Goals:       p.Goals,
			IsActive:    true,
		}
		if err := e.store.Participants.Create(q, participant); err != nil {
			return created, fmt.Errorf("failed to create npc %s: %w", p.Name, err)
		}
		created++
	}
	if created > 0 {
		e.log.Info().Int("created", created).Msg("NPC participants created")
	}
	return created, nil
}

// ProcessTick produces this month's NPC decisions. Profiles are
// iterated in their fixed declaration order.
func (e *Engine) ProcessTick(
	q store.Querier,
	month int,
	properties []*domain.PropertyState,
	state *market.State,
	rng *rand.Rand,
) ([]Decision, error) {
	var decisions []Decision

	for i := range Profiles {
		profile := &Profiles[i]
		participant, err := e.store.Participants.GetByName(q, profile.Name)
		if err != nil {
			return nil, err
		}
		if participant == nil || !participant.IsActive {
			continue
		}

		if err := e.refreshGoals(q, participant); err != nil {
			return nil, err
		}

		if !e.shouldAct(participant, month, rng) {
			continue
		}

		holdings, err := e.store.Holdings.ListByParticipant(q, participant.ID)
		if err != nil {
			return nil, err
		}

		decision := e.decide(profile, participant, holdings, properties, state, month, rng)
		if decision == nil {
			continue
		}

		e.log.Info().
			Str("npc", profile.Name).
			Str("action", decision.ActionType).
			Float64("confidence", decision.Confidence).
			Str("reasoning", decision.Reasoning).
			Msg("NPC decision")
		decisions = append(decisions, *decision)
	}

	e.log.Info().Int("month", month).Int("decisions", len(decisions)).Msg("NPC tick processed")
	return decisions, nil
}

// refreshGoals updates goal progress from the participant's running
// counters and persists the list when anything moved. Accumulation
// tracks total invested, income tracks total dividends, divestment
// tracks cash on hand. Completion is monotonic.
func (e *Engine) refreshGoals(q store.Querier, p *domain.Participant) error {
	changed := false
	for i := range p.Goals {
		g := &p.Goals[i]
		if g.Completed {
			continue
		}

		var progress decimal.Decimal
		switch g.Type {
		case domain.GoalAccumulate:
			progress = p.TotalInvested
		case domain.GoalIncome:
			progress = p.TotalDividends
		case domain.GoalDivest:
			progress = p.Balance
		default:
			continue
		}

		if !progress.Equal(g.Progress) {
			g.Progress = progress
			changed = true
		}
		if g.TargetValue.IsPositive() && progress.GreaterThanOrEqual(g.TargetValue) {
			g.Completed = true
			changed = true
			e.log.Info().
				Str("npc", p.Name).
				Str("goal", string(g.Type)).
				Str("target", g.TargetValue.String()).
				Msg("NPC goal completed")
		}
	}
	if !changed {
		return nil
	}
	return e.store.Participants.SaveGoals(q, p.ID, p.Goals)
}

// shouldAct rolls whether an NPC acts this month. Base chance is the
// activity level, plus an urgency bonus for goals within three months
// of deadline, boosted 20 percent when investor lending momentum is
// strong.
func (e *Engine) shouldAct(p *domain.Participant, month int, rng *rand.Rand) bool {
	base := 0.5
	if p.Personality != nil {
		base = p.Personality.ActivityLevel
	}

	urgency := 0.0
	for _, g := range p.Goals {
		if g.Completed || g.DeadlineMonth == nil {
			continue
		}
		if *g.DeadlineMonth-month <= 3 {
			urgency += 0.2 * float64(g.Priority) / 10
		}
	}

	if e.calibration.InvestorLendingMomentum > 0.15 {
		base *= 1.2
	}

	prob := base + urgency
	if prob > 1.0 {
		prob = 1.0
	}
	return rng.Float64() < prob
}

// scoreProperties scores each property 0..100 for buying. Base 50,
// adjusted for yield against the calibrated targets, rental market
// tightness, token price relative to par, and personality.
func (e *Engine) scoreProperties(
	profile *Profile,
	properties []*domain.PropertyState,
	state *market.State,
) map[string]float64 {
	targetYield := e.calibration.TargetYieldHouse
	minYield := e.calibration.MinimumAcceptableYield

	rentalBoost := 0.0
	if e.calibration.VacancyRate < 0.01 {
		rentalBoost = 10
	} else if e.calibration.VacancyRate < 0.02 {
		rentalBoost = 5
	}

	condition := state.Condition()

	scores := make(map[string]float64, len(properties))
	for _, prop := range properties {
		score := 50.0

		propYield := grossYield(prop)
		switch {
		case propYield >= targetYield:
			score += 15
		case propYield >= minYield:
			score += 5
		default:
			score -= 10
		}

		score += rentalBoost

		price, _ := prop.TokenPrice.Float64()
		if price < 1.0 {
			score += (1.0 - price) * 20
		} else if price > 1.2 {
			score -= (price - 1.2) * 15
		}

		if e.calibration.WADiscountToNational < 0.8 {
			score += 5
		}

		switch profile.Archetype {
		case ArchetypeConservative:
			if propYield >= targetYield {
				score += 10
			}
		case ArchetypeAggressive:
			if condition == market.ConditionBoom || condition == market.ConditionStable {
				score += 15
			}
			if e.calibration.AnnualRentGrowth > 0.05 {
				score += 10
			}
		case ArchetypeOpportunist:
			if profile.Personality.Contrarian > 0 &&
				(condition == market.ConditionDeclining || condition == market.ConditionBust) {
				score += 20 * profile.Personality.Contrarian
			}
		}

		if score < 0 {
			score = 0
		}
		if score > 100 {
			score = 100
		}
		scores[prop.ID] = score
	}
	return scores
}

func (e *Engine) decide(
	profile *Profile,
	p *domain.Participant,
	holdings []*domain.Holding,
	properties []*domain.PropertyState,
	state *market.State,
	month int,
	rng *rand.Rand,
) *Decision {
	switch profile.Role {
	case domain.RoleMarketMaker:
		return e.marketMakerDecision(profile, p, properties, rng)
	case domain.RoleDeveloper:
		return e.developerDecision(profile, p, month)
	case domain.RoleService:
		// Service providers react to requests, they do not initiate.
		return nil
	case domain.RoleRenter:
		return e.renterDecision(profile, p, properties, rng)
	default:
		return e.investorDecision(profile, p, holdings, properties, state, rng)
	}
}

func (e *Engine) investorDecision(
	profile *Profile,
	p *domain.Participant,
	holdings []*domain.Holding,
	properties []*domain.PropertyState,
	state *market.State,
	rng *rand.Rand,
) *Decision {
	var primary *domain.Goal
	for i := range p.Goals {
		if !p.Goals[i].Completed {
			primary = &p.Goals[i]
			break
		}
	}
	if primary == nil {
		return nil
	}

	scores := e.scoreProperties(profile, properties, state)

	switch primary.Type {
	case domain.GoalAccumulate:
		if p.Balance.LessThan(decimal.NewFromInt(1000)) {
			return nil
		}
		bestID, bestScore := bestScored(properties, scores)
		if bestID == "" || bestScore < 40 {
			return nil
		}

		risk := 0.5
		if p.Personality != nil {
			risk = p.Personality.RiskTolerance
		}
		invest := p.Balance.Mul(decimal.NewFromFloat(risk * 0.3))
		floor := decimal.NewFromInt(1000)
		ceiling := p.Balance.Mul(decimal.NewFromFloat(0.5))
		if invest.LessThan(floor) {
			invest = floor
		}
		if invest.GreaterThan(ceiling) {
			invest = ceiling
		}

		tokens := tokensForBudget(properties, bestID, invest)
		if !tokens.IsPositive() {
			return nil
		}
		return e.newDecision(p, "buy_tokens", buyPayload(bestID, tokens, "1.5"),
			bestScore/100,
			fmt.Sprintf("Accumulation goal: investing $%s in property with score %.0f", invest.StringFixed(0), bestScore))

	case domain.GoalIncome:
		// Already positioned: wait for dividends.
		if len(holdings) > 0 {
			return nil
		}
		var bestID string
		bestScore := -1.0
		for _, prop := range properties {
			if grossYield(prop)*100 < profile.incomeYieldFloor() {
				continue
			}
			if s := scores[prop.ID]; s > bestScore {
				bestID, bestScore = prop.ID, s
			}
		}
		if bestID == "" {
			return nil
		}
		invest := decimal.Min(p.Balance.Mul(decimal.NewFromFloat(0.25)), decimal.NewFromInt(20000))
		tokens := tokensForBudget(properties, bestID, invest)
		if !tokens.IsPositive() {
			return nil
		}
		return e.newDecision(p, "buy_tokens", buyPayload(bestID, tokens, "1.2"),
			0.7, "Income goal: buying high-yield property for dividends")

	case domain.GoalDivest:
		if len(holdings) == 0 {
			return nil
		}
		h := holdings[rng.Intn(len(holdings))]
		sell := h.TokenAmount.Mul(decimal.NewFromFloat(0.5))
		return e.newDecision(p, "sell_tokens", sellPayload(h.PropertyID, sell, "0.8"),
			0.6, fmt.Sprintf("Divesting: selling %s tokens", sell.StringFixed(0)))
	}
	return nil
}

func (e *Engine) marketMakerDecision(
	profile *Profile,
	p *domain.Participant,
	properties []*domain.PropertyState,
	rng *rand.Rand,
) *Decision {
	if len(properties) == 0 {
		return nil
	}
	prop := properties[rng.Intn(len(properties))]
	amount := decimal.NewFromInt(5000)

	if rng.Float64() < 0.5 {
		return e.newDecision(p, "buy_tokens", buyPayload(prop.ID, amount, "1.1"),
			0.9, "Market making: providing buy-side liquidity")
	}
	return e.newDecision(p, "sell_tokens", sellPayload(prop.ID, amount, "0.9"),
		0.9, "Market making: providing sell-side liquidity")
}

func (e *Engine) developerDecision(profile *Profile, p *domain.Participant, month int) *Decision {
	if month%3 != 0 {
		return nil
	}
	data, _ := json.Marshal(map[string]interface{}{
		"service_type": "new_listing",
		"description":  fmt.Sprintf("%s is preparing a new property for the network", profile.Name),
	})
	return e.newDecision(p, "request_service", data,
		0.8, "Developer: proposing new property listing")
}

func (e *Engine) renterDecision(
	profile *Profile,
	p *domain.Participant,
	properties []*domain.PropertyState,
	rng *rand.Rand,
) *Decision {
	// Rent itself is settled by the monthly pipeline. Occasionally a
	// renter invests spare savings.
	if p.Balance.LessThanOrEqual(decimal.NewFromInt(10000)) || rng.Float64() >= 0.2 {
		return nil
	}
	if len(properties) == 0 {
		return nil
	}
	prop := properties[rng.Intn(len(properties))]
	return e.newDecision(p, "buy_tokens", buyPayload(prop.ID, decimal.NewFromInt(1000), "1.0"),
		0.5, "Renter: investing savings into property tokens")
}

func (e *Engine) newDecision(p *domain.Participant, actionType string, data json.RawMessage, confidence float64, reasoning string) *Decision {
	return &Decision{
		ParticipantID: p.ID,
		Name:          p.Name,
		ActionType:    actionType,
		Data:          data,
		Confidence:    confidence,
		Reasoning:     reasoning,
	}
}

// incomeYieldFloor is the minimum gross yield percent an income-driven
// investor will buy at.
func (p *Profile) incomeYieldFloor() float64 {
	if p.MinYield > 0 {
		return p.MinYield
	}
	return 4.5
}

// grossYield computes annual rent over valuation as a fraction.
func grossYield(prop *domain.PropertyState) float64 {
	if prop.CurrentValuation.IsZero() {
		return 0
	}
	annualRent := prop.WeeklyRent.Mul(decimal.NewFromInt(52))
	y, _ := annualRent.Div(prop.CurrentValuation).Float64()
	return y
}

// tokensForBudget converts a dollar budget into whole tokens of the
// given property at its current price, capped at the available pool.
func tokensForBudget(properties []*domain.PropertyState, id string, budget decimal.Decimal) decimal.Decimal {
	for _, prop := range properties {
		if prop.ID != id {
			continue
		}
		if !prop.TokenPrice.IsPositive() {
			return decimal.Zero
		}
		tokens := budget.Div(prop.TokenPrice).Floor()
		return decimal.Min(tokens, prop.TokensAvailable)
	}
	return decimal.Zero
}

// bestScored returns the highest scoring property, iterating the
// property slice (not the map) so ties break deterministically.
func bestScored(properties []*domain.PropertyState, scores map[string]float64) (string, float64) {
	bestID := ""
	bestScore := -1.0
	for _, prop := range properties {
		if s, ok := scores[prop.ID]; ok && s > bestScore {
			bestID, bestScore = prop.ID, s
		}
	}
	return bestID, bestScore
}

func buyPayload(propertyID string, tokens decimal.Decimal, maxPrice string) json.RawMessage {
	data, _ := json.Marshal(map[string]interface{}{
		"property_id":  propertyID,
		"token_amount": tokens.InexactFloat64(),
		"max_price":    maxPrice,
	})
	return data
}

func sellPayload(propertyID string, tokens decimal.Decimal, minPrice string) json.RawMessage {
	data, _ := json.Marshal(map[string]interface{}{
		"property_id":  propertyID,
		"token_amount": tokens.InexactFloat64(),
		"min_price":    minPrice,
	})
	return data
}
