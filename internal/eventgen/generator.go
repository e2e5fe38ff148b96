// Package eventgen generates the monthly world events that give the
// simulation its texture. Events are drawn from weighted template
// families, biased by the economic cycle phase and the market
// calibration, and their impacts feed back into the market state.
package eventgen

import (
	"fmt"
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/nedlands/propnet/internal/domain"
	"github.com/nedlands/propnet/internal/market"
)

// phaseNarratives describe each cycle transition for the event log.
var phaseNarratives = map[[2]market.CyclePhase]string{
	{market.PhaseExpansion, market.PhasePeak}:        "After months of sustained growth, economists warn that the property market may be reaching its peak. Investors are advised to review their portfolios.",
	{market.PhasePeak, market.PhaseContraction}:      "The RBA's rate hiking cycle appears to be cooling the overheated market. Property prices have begun to stabilize as buyers become more cautious.",
	{market.PhaseContraction, market.PhaseTrough}:    "Market conditions have softened significantly. While challenging for sellers, this presents opportunities for long-term investors to enter at attractive prices.",
	{market.PhaseTrough, market.PhaseRecovery}:       "Early signs of recovery are emerging in the property market. First home buyers are returning, and investor confidence is slowly rebuilding.",
	{market.PhaseRecovery, market.PhaseExpansion}:    "The property market has entered a new growth phase. Strong fundamentals and improved affordability are driving renewed buyer interest.",
}

// Generator draws monthly events from the template families.
type Generator struct {
	model       *market.Model
	calibration market.Calibration
	log         zerolog.Logger
}

// New creates an event generator.
func New(model *market.Model, cal market.Calibration, log zerolog.Logger) *Generator {
	return &Generator{
		model:       model,
		calibration: cal,
		log:         log.With().Str("component", "eventgen").Logger(),
	}
}

// GenerateMonth produces this month's events and applies their impacts
// to the market state. The caller owns the rng so runs with the same
// seed replay identically. Constraints per month: at most one iron ore
// event, population events behind a 30 percent gate, one market event,
// two property events, one economic event, and governance only on
// quarter months.
func (g *Generator) GenerateMonth(
	s *market.State,
	month int,
	properties []*domain.PropertyState,
	rng *rand.Rand,
) []*domain.NetworkEvent {
	var events []*domain.NetworkEvent

	if e := g.advanceCycle(s, month, rng); e != nil {
		events = append(events, e)
	}

	// Iron ore first: it pins the indicator the rest of the month
	// reads through the derived condition.
	for i := range ironOreTemplates {
		t := &ironOreTemplates[i]
		if !g.shouldFire(t, s.CyclePhase, rng) {
			continue
		}
		events = append(events, g.build(t, month, t.Title, t.Description, nil, nil))
		if pin, ok := t.Impact["iron_ore_price"]; ok {
			g.model.SetIndicator(s, "iron_ore_index", pin)
		}
		g.applyCommonImpacts(s, t.Impact)
		break
	}

	if rng.Float64() < 0.3 {
		for i := range populationTemplates {
			t := &populationTemplates[i]
			if !g.shouldFire(t, s.CyclePhase, rng) {
				continue
			}
			events = append(events, g.build(t, month, t.Title, t.Description, nil, nil))
			if pin, ok := t.Impact["population_growth"]; ok {
				g.model.SetIndicator(s, "pop_growth_pct", pin)
			}
			g.applyCommonImpacts(s, t.Impact)
			break
		}
	}

	for i := range marketTemplates {
		t := &marketTemplates[i]
		if !g.shouldFire(t, s.CyclePhase, rng) {
			continue
		}
		title := t.Title
		desc := t.Description
		if t.CalibrationKey == "rate_hold" {
			title = fmt.Sprintf(t.Title, s.InterestRatePct)
		}
		events = append(events, g.build(t, month, title, desc, nil, nil))
		if delta, ok := t.Impact["interest_rate_change"]; ok && delta != 0 {
			g.model.ApplyImpact(s, "interest_rate_pct", delta)
		}
		g.applyCommonImpacts(s, t.Impact)
		break
	}

	if len(properties) > 0 {
		propertyCount := 0
		for i := range propertyTemplates {
			t := &propertyTemplates[i]
			if !g.shouldFire(t, s.CyclePhase, rng) {
				continue
			}
			prop := properties[rng.Intn(len(properties))]
			events = append(events, g.buildPropertyEvent(t, prop, month, rng))
			propertyCount++
			if propertyCount >= 2 {
				break
			}
		}
	}

	for i := range economicTemplates {
		t := &economicTemplates[i]
		if !g.shouldFire(t, s.CyclePhase, rng) {
			continue
		}
		events = append(events, g.buildEconomicEvent(t, s, month, rng))
		g.applyCommonImpacts(s, t.Impact)
		break
	}

	if month%3 == 0 {
		for i := range governanceTemplates {
			t := &governanceTemplates[i]
			if !g.shouldFire(t, s.CyclePhase, rng) {
				continue
			}
			events = append(events, g.buildGovernanceEvent(t, month, rng))
			break
		}
	}

	g.log.Info().
		Int("month", month).
		Int("count", len(events)).
		Str("phase", string(s.CyclePhase)).
		Str("condition", string(s.Condition())).
		Msg("Events generated")
	return events
}

// shouldFire rolls a template's effective probability: base chance,
// times 1.5 when the cycle phase is preferred (0.5 when the template
// prefers other phases), times the calibration modifier.
func (g *Generator) shouldFire(t *Template, phase market.CyclePhase, rng *rand.Rand) bool {
	prob := t.Probability
	if len(t.PhasePref) > 0 {
		preferred := false
		for _, p := range t.PhasePref {
			if p == phase {
				preferred = true
				break
			}
		}
		if preferred {
			prob *= 1.5
		} else {
			prob *= 0.5
		}
	}
	if t.CalibrationKey != "" {
		prob *= g.calibration.EventModifier(t.CalibrationKey)
	}
	return rng.Float64() < prob
}

// advanceCycle advances the economic cycle and returns a transition
// event when the phase changed.
func (g *Generator) advanceCycle(s *market.State, month int, rng *rand.Rand) *domain.NetworkEvent {
	before := s.CyclePhase
	g.model.AdvanceCycle(s, rng)
	if s.CyclePhase == before {
		return nil
	}

	narrative := phaseNarratives[[2]market.CyclePhase{before, s.CyclePhase}]
	if narrative == "" {
		narrative = "The economic cycle continues to evolve."
	}

	return &domain.NetworkEvent{
		NetworkMonth: month,
		EventType:    "economic",
		Severity:     domain.SeverityInfo,
		Title:        fmt.Sprintf("Economic Cycle Shift: %s Phase", titleCase(string(s.CyclePhase))),
		Description:  narrative,
		Data: map[string]interface{}{
			"phase_change": true,
			"old_phase":    string(before),
			"new_phase":    string(s.CyclePhase),
		},
	}
}

func (g *Generator) build(t *Template, month int, title, desc string, participantID, propertyID *string) *domain.NetworkEvent {
	data := make(map[string]interface{}, len(t.Impact))
	for k, v := range t.Impact {
		data[k] = v
	}
	return &domain.NetworkEvent{
		NetworkMonth:  month,
		EventType:     t.EventType,
		Severity:      t.Severity,
		Title:         title,
		Description:   desc,
		ParticipantID: participantID,
		PropertyID:    propertyID,
		Data:          data,
	}
}

func (g *Generator) buildPropertyEvent(t *Template, prop *domain.PropertyState, month int, rng *rand.Rand) *domain.NetworkEvent {
	address := prop.Address
	if len(address) > 30 {
		address = address[:30]
	}

	var title, desc string
	switch {
	case len(t.Issues) > 0:
		issue := t.Issues[rng.Intn(len(t.Issues))]
		title = fmt.Sprintf(t.Title, address)
		desc = fmt.Sprintf(t.Description, issue, prop.Address)
	case t.Impact["new_property"] == 1:
		title = fmt.Sprintf(t.Title, prop.Suburb)
		desc = fmt.Sprintf(t.Description, prop.PropertyType, prop.Suburb)
	case t.Impact["tenancy_secured"] == 1:
		title = fmt.Sprintf(t.Title, address)
		desc = fmt.Sprintf(t.Description, prop.WeeklyRent.StringFixed(0))
	case t.Impact["valuation_change"] == 1:
		changes := []int{-2, -1, 1, 2, 3, 4, 5}
		change := changes[rng.Intn(len(changes))]
		title = fmt.Sprintf(t.Title, address)
		desc = fmt.Sprintf(t.Description, change)
		e := g.build(t, month, title, desc, nil, &prop.ID)
		e.Data["valuation_percent"] = change
		return e
	default:
		title = fmt.Sprintf(t.Title, address)
		desc = fmt.Sprintf(t.Description, prop.Address)
	}
	return g.build(t, month, title, desc, nil, &prop.ID)
}

func (g *Generator) buildEconomicEvent(t *Template, s *market.State, month int, rng *rand.Rand) *domain.NetworkEvent {
	title := t.Title
	desc := t.Description
	switch {
	case t.CalibrationKey == "economic_positive":
		desc = fmt.Sprintf(t.Description, 0.3+rng.Float64()*0.5)
	case t.Title == "Employment Market Remains Tight":
		desc = fmt.Sprintf(t.Description, s.UnemploymentPct)
	case t.Title == "Inflation Eases to %.1f%%":
		title = fmt.Sprintf(t.Title, s.InflationPct)
	}
	return g.build(t, month, title, desc, nil, nil)
}

func (g *Generator) buildGovernanceEvent(t *Template, month int, rng *rand.Rand) *domain.NetworkEvent {
	var title, desc string
	switch {
	case len(t.Topics) > 0:
		topic := t.Topics[rng.Intn(len(t.Topics))]
		title = fmt.Sprintf(t.Title, topic.Name)
		desc = fmt.Sprintf(t.Description, topic.Description)
	case t.Impact["proposal_passed"] == 1:
		votes := 60 + rng.Intn(26)
		title = fmt.Sprintf(t.Title, "Network Policy")
		desc = fmt.Sprintf(t.Description, "the proposed changes", votes)
	default:
		amount := 50000 + rng.Intn(100001)
		title = t.Title
		desc = fmt.Sprintf(t.Description, amount)
	}
	return g.build(t, month, title, desc, nil, nil)
}

// applyCommonImpacts pushes the indicator deltas shared by all
// template families into the market state. Absolute pins are handled
// at the call site before this runs.
func (g *Generator) applyCommonImpacts(s *market.State, impact map[string]float64) {
	if delta, ok := impact["confidence_impact"]; ok {
		g.model.ApplyImpact(s, "confidence", delta)
	}
	if delta, ok := impact["vacancy_impact"]; ok {
		g.model.ApplyImpact(s, "vacancy_pct", delta)
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
