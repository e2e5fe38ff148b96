package market

// Calibration anchors the simulation to reference figures for the
// Perth residential market. These are fixed inputs, not simulated
// state: NPC thresholds and event probability modifiers read them to
// stay recognisably grounded in the real market they imitate.
type Calibration struct {
	TargetYieldHouse        float64
	TargetYieldUnit         float64
	MinimumAcceptableYield  float64
	WADiscountToNational    float64
	InvestorLendingMomentum float64
	VacancyRate             float64
	AnnualRentGrowth        float64
	MedianHousePrice        float64
	MedianWeeklyRent        float64
	CashRatePct             float64
	DebtToIncome            float64
	MortgageCreditGrowth    float64
	MeanDwellingValue       float64
	MiningEmploymentGrowth  float64
}

// DefaultCalibration returns the reference data set.
func DefaultCalibration() Calibration {
	return Calibration{
		TargetYieldHouse:        0.045,
		TargetYieldUnit:         0.060,
		MinimumAcceptableYield:  0.035,
		WADiscountToNational:    0.74,
		InvestorLendingMomentum: 0.187,
		VacancyRate:             0.008,
		AnnualRentGrowth:        0.08,
		MedianHousePrice:        750000,
		MedianWeeklyRent:        650,
		CashRatePct:             4.35,
		DebtToIncome:            1.82,
		MortgageCreditGrowth:    0.047,
		MeanDwellingValue:       1016700,
		MiningEmploymentGrowth:  0.03,
	}
}

// TargetYield returns the target gross yield for a property type.
func (c Calibration) TargetYield(propertyType string) float64 {
	if propertyType == "apartment" || propertyType == "unit" {
		return c.TargetYieldUnit
	}
	return c.TargetYieldHouse
}

// EventModifier scales an event template's base probability by the
// calibration figures. A near-zero vacancy rate makes rent pressure
// events far likelier; strong investor lending momentum lifts
// competition events.
func (c Calibration) EventModifier(template string) float64 {
	switch template {
	case "rent_increase":
		if c.VacancyRate < 0.01 {
			return 1.8
		}
		if c.VacancyRate < 0.02 {
			return 1.3
		}
		return 1.0
	case "tenant_competition":
		if c.VacancyRate < 0.01 {
			return 2.0
		}
		if c.VacancyRate < 0.02 {
			return 1.5
		}
		return 1.0
	case "investor_competition":
		return 1.0 + c.InvestorLendingMomentum
	case "quick_sale":
		return 1.0 + c.InvestorLendingMomentum*0.5
	case "rate_hold":
		return 1.5
	case "rate_cut":
		return 0.5
	case "rate_hike":
		if c.CashRatePct > 4.0 {
			return 0.8
		}
		return 1.0
	case "economic_positive":
		return 1.5
	case "wa_outperformance":
		if c.MiningEmploymentGrowth > 0.02 {
			return 2.0
		}
		return 1.0
	default:
		return 1.0
	}
}
