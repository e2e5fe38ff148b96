package market

import (
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestConditionThresholds(t *testing.T) {
	cases := []struct {
		name      string
		state     State
		condition Condition
	}{
		{
			"boom needs strong ore, growth, and confidence",
			State{IronOreIndex: 160, PopGrowthPct: 2.5, Confidence: 70},
			ConditionBoom,
		},
		{
			"stable at reference levels",
			State{IronOreIndex: 110, PopGrowthPct: 2.0, Confidence: 65},
			ConditionStable,
		},
		{
			"stagnant with weak ore",
			State{IronOreIndex: 85, PopGrowthPct: 1.0, Confidence: 45},
			ConditionStagnant,
		},
		{
			"declining on either floor",
			State{IronOreIndex: 65, PopGrowthPct: 0, Confidence: 10},
			ConditionDeclining,
		},
		{
			"confidence alone can hold declining",
			State{IronOreIndex: 20, Confidence: 35},
			ConditionDeclining,
		},
		{
			"bust when both collapse",
			State{IronOreIndex: 40, Confidence: 20},
			ConditionBust,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.condition, tc.state.Condition())
		})
	}
}

func TestNewStateIsStable(t *testing.T) {
	s := NewState()
	assert.Equal(t, PhaseExpansion, s.CyclePhase)
	assert.Equal(t, ConditionStable, s.Condition())
}

func TestAdvanceCycleFollowsFixedLoop(t *testing.T) {
	m := NewModel(zerolog.Nop())
	s := NewState()
	rng := rand.New(rand.NewSource(1))

	want := []CyclePhase{
		PhasePeak, PhaseContraction, PhaseTrough, PhaseRecovery, PhaseExpansion,
	}

	for _, next := range want {
		// Force a transition by advancing until the phase flips; the
		// probability caps at 30 percent, so this terminates quickly.
		current := s.CyclePhase
		for i := 0; i < 1000 && s.CyclePhase == current; i++ {
			m.AdvanceCycle(s, rng)
		}
		assert.Equal(t, next, s.CyclePhase)
		assert.Equal(t, 0, s.MonthsInPhase)
	}
}

func TestAdvanceCycleNoTransitionKeepsPhase(t *testing.T) {
	m := NewModel(zerolog.Nop())
	s := NewState()
	rng := rand.New(rand.NewSource(1))

	// First month in phase has a 2 percent transition chance at most;
	// months-in-phase must still advance when the phase holds.
	before := s.CyclePhase
	m.AdvanceCycle(s, rng)
	if s.CyclePhase == before {
		assert.Equal(t, 1, s.MonthsInPhase)
	}
}

func TestAppreciationRateStaysInConditionBand(t *testing.T) {
	m := NewModel(zerolog.Nop())
	rng := rand.New(rand.NewSource(42))

	cases := []struct {
		state  State
		lo, hi float64
	}{
		{State{IronOreIndex: 160, PopGrowthPct: 2.5, Confidence: 70}, 0.008, 0.020},
		{State{IronOreIndex: 110, PopGrowthPct: 2.0, Confidence: 65}, 0.002, 0.005},
		{State{IronOreIndex: 85, Confidence: 45}, -0.002, 0.002},
		{State{IronOreIndex: 65, Confidence: 10}, -0.010, -0.003},
		{State{IronOreIndex: 40, Confidence: 20}, -0.025, -0.010},
	}

	for _, tc := range cases {
		for i := 0; i < 100; i++ {
			rate := m.AppreciationRate(&tc.state, rng)
			assert.GreaterOrEqual(t, rate, tc.lo)
			assert.Less(t, rate, tc.hi)
		}
	}
}

func TestApplyImpactClampsIndicators(t *testing.T) {
	m := NewModel(zerolog.Nop())
	s := NewState()

	m.ApplyImpact(s, "vacancy_pct", -5)
	assert.Equal(t, 0.5, s.VacancyPct)

	m.ApplyImpact(s, "vacancy_pct", 100)
	assert.Equal(t, 8.0, s.VacancyPct)

	m.ApplyImpact(s, "confidence", -200)
	assert.Equal(t, 0.0, s.Confidence)

	m.ApplyImpact(s, "confidence", 500)
	assert.Equal(t, 100.0, s.Confidence)

	// Unknown indicators are ignored, not fatal.
	before := *s
	m.ApplyImpact(s, "lunar_phase", 3)
	assert.Equal(t, before, *s)
}

func TestSetIndicatorPinsLevel(t *testing.T) {
	m := NewModel(zerolog.Nop())
	s := NewState()

	m.SetIndicator(s, "iron_ore_index", 155)
	assert.Equal(t, 155.0, s.IronOreIndex)

	m.SetIndicator(s, "interest_rate_pct", 3.85)
	assert.Equal(t, 3.85, s.InterestRatePct)
}

func TestDeterministicDrawsWithFixedSeed(t *testing.T) {
	m := NewModel(zerolog.Nop())

	run := func() []float64 {
		s := NewState()
		rng := rand.New(rand.NewSource(42))
		rates := make([]float64, 0, 12)
		for i := 0; i < 12; i++ {
			m.AdvanceCycle(s, rng)
			rates = append(rates, m.AppreciationRate(s, rng))
		}
		return rates
	}

	assert.Equal(t, run(), run())
}
