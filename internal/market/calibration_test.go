package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTargetYieldByPropertyType(t *testing.T) {
	cal := DefaultCalibration()

	assert.Equal(t, 0.045, cal.TargetYield("house"))
	assert.Equal(t, 0.060, cal.TargetYield("apartment"))
	assert.Equal(t, 0.060, cal.TargetYield("unit"))
	assert.Equal(t, 0.045, cal.TargetYield("townhouse"))
}

func TestEventModifierTracksVacancy(t *testing.T) {
	cal := DefaultCalibration()

	// Reference vacancy is 0.8 percent, the tightest band.
	assert.Equal(t, 1.8, cal.EventModifier("rent_increase"))
	assert.Equal(t, 2.0, cal.EventModifier("tenant_competition"))

	cal.VacancyRate = 0.015
	assert.Equal(t, 1.3, cal.EventModifier("rent_increase"))
	assert.Equal(t, 1.5, cal.EventModifier("tenant_competition"))

	cal.VacancyRate = 0.05
	assert.Equal(t, 1.0, cal.EventModifier("rent_increase"))
	assert.Equal(t, 1.0, cal.EventModifier("tenant_competition"))
}

func TestEventModifierRatesAndMomentum(t *testing.T) {
	cal := DefaultCalibration()

	assert.InDelta(t, 1.187, cal.EventModifier("investor_competition"), 1e-9)
	assert.InDelta(t, 1.0935, cal.EventModifier("quick_sale"), 1e-9)
	assert.Equal(t, 1.5, cal.EventModifier("rate_hold"))
	assert.Equal(t, 0.5, cal.EventModifier("rate_cut"))

	// Cash rate above 4 percent dampens further hikes.
	assert.Equal(t, 0.8, cal.EventModifier("rate_hike"))
	cal.CashRatePct = 3.5
	assert.Equal(t, 1.0, cal.EventModifier("rate_hike"))

	assert.Equal(t, 2.0, cal.EventModifier("wa_outperformance"))
	cal.MiningEmploymentGrowth = 0.01
	assert.Equal(t, 1.0, cal.EventModifier("wa_outperformance"))

	assert.Equal(t, 1.0, cal.EventModifier("unknown_template"))
}
