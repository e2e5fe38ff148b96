// Package market implements the simulated macro environment: the
// economic cycle, derived market conditions, and the per-month
// appreciation applied to token prices. The model is deliberately
// coarse; it exists to give agents and event generation a shared,
// evolving backdrop, not to forecast anything.
package market

import (
	"math/rand"

	"github.com/rs/zerolog"
)

// CyclePhase is a stage of the economic cycle. Phases advance in a
// fixed loop: expansion, peak, contraction, trough, recovery, and back
// to expansion.
type CyclePhase string

const (
	PhaseExpansion   CyclePhase = "expansion"
	PhasePeak        CyclePhase = "peak"
	PhaseContraction CyclePhase = "contraction"
	PhaseTrough      CyclePhase = "trough"
	PhaseRecovery    CyclePhase = "recovery"
)

// Condition is the market condition derived from the indicator set.
type Condition string

const (
	ConditionBoom      Condition = "boom"
	ConditionStable    Condition = "stable"
	ConditionStagnant  Condition = "stagnant"
	ConditionDeclining Condition = "declining"
	ConditionBust      Condition = "bust"
)

// State is the full market state carried between ticks.
type State struct {
	CyclePhase      CyclePhase `json:"cycle_phase"`
	MonthsInPhase   int        `json:"months_in_phase"`
	HousingIndex    float64    `json:"housing_index"`
	UnemploymentPct float64    `json:"unemployment_pct"`
	IronOreIndex    float64    `json:"iron_ore_index"`
	PopGrowthPct    float64    `json:"pop_growth_pct"`
	VacancyPct      float64    `json:"vacancy_pct"`
	Confidence      float64    `json:"confidence"`
	InterestRatePct float64    `json:"interest_rate_pct"`
	InflationPct    float64    `json:"inflation_pct"`
}

// NewState returns the initial market state. The starting values track
// the calibration reference data for the Perth market.
func NewState() *State {
	return &State{
		CyclePhase:      PhaseExpansion,
		MonthsInPhase:   0,
		HousingIndex:    105,
		UnemploymentPct: 3.8,
		IronOreIndex:    110,
		PopGrowthPct:    2.0,
		VacancyPct:      1.0,
		Confidence:      65,
		InterestRatePct: 4.35,
		InflationPct:    3.2,
	}
}

// Condition derives the market condition from the indicator set. The
// thresholds are checked strongest-first so overlapping bands resolve
// to the better condition.
func (s *State) Condition() Condition {
	switch {
	case s.IronOreIndex >= 150 && s.PopGrowthPct >= 2.0 && s.Confidence >= 60:
		return ConditionBoom
	case s.IronOreIndex >= 100 && s.PopGrowthPct >= 1.5 && s.Confidence >= 50:
		return ConditionStable
	case s.IronOreIndex >= 80 && s.Confidence >= 40:
		return ConditionStagnant
	case s.IronOreIndex >= 60 || s.Confidence >= 30:
		return ConditionDeclining
	default:
		return ConditionBust
	}
}

// nextPhase maps each phase to its successor in the fixed loop.
var nextPhase = map[CyclePhase]CyclePhase{
	PhaseExpansion:   PhasePeak,
	PhasePeak:        PhaseContraction,
	PhaseContraction: PhaseTrough,
	PhaseTrough:      PhaseRecovery,
	PhaseRecovery:    PhaseExpansion,
}

// Model advances the market state one month at a time.
type Model struct {
	log zerolog.Logger
}

// NewModel creates a market model.
func NewModel(log zerolog.Logger) *Model {
	return &Model{log: log.With().Str("component", "market").Logger()}
}

// AdvanceCycle advances the cycle one month. The chance of moving to
// the next phase grows 2 percent per month in phase, capped at 30
// percent, so phases last a plausible but unpredictable span. Phase
// transitions apply their indicator deltas.
func (m *Model) AdvanceCycle(s *State, rng *rand.Rand) {
	s.MonthsInPhase++

	transitionProb := float64(s.MonthsInPhase) * 0.02
	if transitionProb > 0.3 {
		transitionProb = 0.3
	}

	if rng.Float64() >= transitionProb {
		return
	}

	prev := s.CyclePhase
	s.CyclePhase = nextPhase[s.CyclePhase]
	s.MonthsInPhase = 0

	switch s.CyclePhase {
	case PhaseContraction:
		s.Confidence -= 15
		s.HousingIndex -= 3
	case PhaseRecovery:
		s.Confidence += 10
	case PhaseExpansion:
		s.HousingIndex += 2
		s.Confidence += 5
	}
	s.clamp()

	m.log.Info().
		Str("from", string(prev)).
		Str("to", string(s.CyclePhase)).
		Float64("confidence", s.Confidence).
		Msg("Cycle phase transition")
}

// AppreciationRate draws this month's token price appreciation from
// the band for the current condition. Rates are monthly fractions; a
// boom month appreciates 0.8 to 2 percent, a bust month loses 1 to
// 2.5 percent.
func (m *Model) AppreciationRate(s *State, rng *rand.Rand) float64 {
	var lo, hi float64
	switch s.Condition() {
	case ConditionBoom:
		lo, hi = 0.008, 0.020
	case ConditionStable:
		lo, hi = 0.002, 0.005
	case ConditionStagnant:
		lo, hi = -0.002, 0.002
	case ConditionDeclining:
		lo, hi = -0.010, -0.003
	default: // bust
		lo, hi = -0.025, -0.010
	}
	return lo + rng.Float64()*(hi-lo)
}

// ApplyImpact mutates an indicator by name. Event generation uses this
// to push its impacts into the shared state.
func (m *Model) ApplyImpact(s *State, indicator string, delta float64) {
	switch indicator {
	case "iron_ore_index":
		s.IronOreIndex += delta
	case "pop_growth_pct":
		s.PopGrowthPct += delta
	case "housing_index":
		s.HousingIndex += delta
	case "unemployment_pct":
		s.UnemploymentPct += delta
	case "vacancy_pct":
		s.VacancyPct += delta
	case "confidence":
		s.Confidence += delta
	case "interest_rate_pct":
		s.InterestRatePct += delta
	case "inflation_pct":
		s.InflationPct += delta
	default:
		m.log.Warn().Str("indicator", indicator).Msg("Unknown indicator impact ignored")
	}
	s.clamp()
}

// SetIndicator overwrites an indicator with an absolute value, used by
// events that pin a level (an iron ore price print, a rate decision).
func (m *Model) SetIndicator(s *State, indicator string, value float64) {
	switch indicator {
	case "iron_ore_index":
		s.IronOreIndex = value
	case "interest_rate_pct":
		s.InterestRatePct = value
	case "pop_growth_pct":
		s.PopGrowthPct = value
	default:
		m.log.Warn().Str("indicator", indicator).Msg("Unknown indicator set ignored")
	}
	s.clamp()
}

// clamp keeps indicators inside plausible bounds. Vacancy in
// particular drives rent event probabilities and must stay in a
// narrow band.
func (s *State) clamp() {
	if s.VacancyPct < 0.5 {
		s.VacancyPct = 0.5
	}
	if s.VacancyPct > 8.0 {
		s.VacancyPct = 8.0
	}
	if s.Confidence < 0 {
		s.Confidence = 0
	}
	if s.Confidence > 100 {
		s.Confidence = 100
	}
	if s.IronOreIndex < 0 {
		s.IronOreIndex = 0
	}
	if s.UnemploymentPct < 0 {
		s.UnemploymentPct = 0
	}
	if s.InterestRatePct < 0 {
		s.InterestRatePct = 0
	}
	if s.PopGrowthPct < -2.0 {
		s.PopGrowthPct = -2.0
	}
}
