package eventgen

import (
	"github.com/nedlands/propnet/internal/domain"
	"github.com/nedlands/propnet/internal/market"
)

// Template describes a candidate event. Probability is the base chance
// per month before the phase bias and calibration modifiers apply.
// Impact keys are indicator deltas or directives the generator knows
// how to apply.
type Template struct {
	Title          string
	Description    string
	EventType      string
	Severity       domain.EventSeverity
	Probability    float64
	Impact         map[string]float64
	PhasePref      []market.CyclePhase
	Issues         []string
	Topics         []governanceTopic
	CalibrationKey string
}

type governanceTopic struct {
	Name        string
	Description string
}

// ironOreTemplates covers the commodity that drives the simulated
// regional economy. At most one fires per month; its iron_ore_price
// impact pins the indicator to an absolute level.
var ironOreTemplates = []Template{
	{
		Title:       "Iron Ore Surges Past $150/tonne",
		Description: "Strong Chinese steel demand pushes iron ore to multi-year highs. WA mining sector booming.",
		EventType:   "market",
		Severity:    domain.SeverityInfo,
		Probability: 0.15,
		Impact:      map[string]float64{"iron_ore_price": 155, "property_value_impact": 1.5, "confidence_impact": 10, "population_growth": 0.3},
		PhasePref:   []market.CyclePhase{market.PhaseExpansion},
	},
	{
		Title:       "Iron Ore Hits $180/tonne on Supply Constraints",
		Description: "Brazilian supply disruptions and Chinese stimulus drive WA's key export to record levels.",
		EventType:   "market",
		Severity:    domain.SeverityInfo,
		Probability: 0.08,
		Impact:      map[string]float64{"iron_ore_price": 180, "property_value_impact": 2.0, "confidence_impact": 15, "population_growth": 0.5},
		PhasePref:   []market.CyclePhase{market.PhaseExpansion, market.PhasePeak},
	},
	{
		Title:       "Iron Ore Steady at $110/tonne",
		Description: "Iron ore prices remain stable as Chinese demand balances global supply increases.",
		EventType:   "market",
		Severity:    domain.SeverityInfo,
		Probability: 0.25,
		Impact:      map[string]float64{"iron_ore_price": 110, "property_value_impact": 0.3},
	},
	{
		Title:       "Iron Ore Falls Below $100/tonne",
		Description: "Weakening Chinese construction sector reduces steel demand. WA miners face margin pressure.",
		EventType:   "market",
		Severity:    domain.SeverityWarning,
		Probability: 0.12,
		Impact:      map[string]float64{"iron_ore_price": 95, "property_value_impact": -0.5, "confidence_impact": -8},
		PhasePref:   []market.CyclePhase{market.PhasePeak, market.PhaseContraction},
	},
	{
		Title:       "Iron Ore Crashes to $80/tonne",
		Description: "Chinese property crisis and steel overcapacity send iron ore plunging. Mining job losses expected.",
		EventType:   "market",
		Severity:    domain.SeverityCritical,
		Probability: 0.06,
		Impact:      map[string]float64{"iron_ore_price": 80, "property_value_impact": -1.5, "confidence_impact": -15, "population_growth": -0.3},
		PhasePref:   []market.CyclePhase{market.PhaseContraction, market.PhaseTrough},
	},
	{
		Title:       "Iron Ore Collapses to $60/tonne - Mining Layoffs Begin",
		Description: "Multi-year low in iron ore triggers cost-cutting across Pilbara operations. FIFO workers returning to eastern states.",
		EventType:   "market",
		Severity:    domain.SeverityCritical,
		Probability: 0.03,
		Impact:      map[string]float64{"iron_ore_price": 60, "property_value_impact": -2.5, "confidence_impact": -25, "population_growth": -0.5, "vacancy_impact": 2},
		PhasePref:   []market.CyclePhase{market.PhaseTrough},
	},
}

// populationTemplates drive housing demand. The whole family is gated
// behind a 30 percent monthly roll before individual probabilities.
var populationTemplates = []Template{
	{
		Title:       "WA Population Growth Hits 2.5% - Highest in Nation",
		Description: "Strong mining employment and lifestyle appeal drive interstate and overseas migration to WA.",
		EventType:   "economic",
		Severity:    domain.SeverityInfo,
		Probability: 0.12,
		Impact:      map[string]float64{"population_growth": 2.5, "property_value_impact": 1.0, "vacancy_impact": -1, "rent_impact": 5},
		PhasePref:   []market.CyclePhase{market.PhaseExpansion},
	},
	{
		Title:       "Perth Sees Record Net Migration",
		Description: "Eastern state residents relocating to Perth for affordability and mining sector opportunities.",
		EventType:   "economic",
		Severity:    domain.SeverityInfo,
		Probability: 0.1,
		Impact:      map[string]float64{"population_growth": 0.5, "property_value_impact": 0.8, "vacancy_impact": -0.5},
		PhasePref:   []market.CyclePhase{market.PhaseExpansion, market.PhaseRecovery},
	},
	{
		Title:       "WA Population Growth Moderates to 1.5%",
		Description: "Population growth returns to sustainable levels as mining boom cools.",
		EventType:   "economic",
		Severity:    domain.SeverityInfo,
		Probability: 0.2,
		Impact:      map[string]float64{"population_growth": 1.5, "property_value_impact": 0.2},
	},
	{
		Title:       "Interstate Migration Turns Negative",
		Description: "More Australians leaving WA than arriving as mining construction winds down.",
		EventType:   "economic",
		Severity:    domain.SeverityWarning,
		Probability: 0.08,
		Impact:      map[string]float64{"population_growth": -0.3, "property_value_impact": -0.8, "vacancy_impact": 1, "rent_impact": -3},
		PhasePref:   []market.CyclePhase{market.PhaseContraction},
	},
	{
		Title:       "WA Population Growth Falls to 0.8% - Lowest Since 2016",
		Description: "Economic uncertainty and eastern state opportunities draw workers away from Perth.",
		EventType:   "economic",
		Severity:    domain.SeverityWarning,
		Probability: 0.06,
		Impact:      map[string]float64{"population_growth": 0.8, "property_value_impact": -0.5, "vacancy_impact": 1.5, "confidence_impact": -5},
		PhasePref:   []market.CyclePhase{market.PhaseContraction, market.PhaseTrough},
	},
	{
		Title:       "Mining Workers Exodus from Pilbara",
		Description: "Project completions and automation reduce FIFO workforce. Regional towns see sharp population decline.",
		EventType:   "economic",
		Severity:    domain.SeverityCritical,
		Probability: 0.04,
		Impact:      map[string]float64{"population_growth": -0.5, "property_value_impact": -2.0, "vacancy_impact": 3, "rent_impact": -8},
		PhasePref:   []market.CyclePhase{market.PhaseTrough},
	},
}

// marketTemplates cover rate decisions and housing market swings.
// At most one fires per month.
var marketTemplates = []Template{
	{
		Title:          "RBA Holds Interest Rate at %.2f%%",
		Description:    "The Reserve Bank of Australia maintained the cash rate, citing stable inflation.",
		EventType:      "market",
		Severity:       domain.SeverityInfo,
		Probability:    0.4,
		Impact:         map[string]float64{"interest_rate_change": 0},
		CalibrationKey: "rate_hold",
	},
	{
		Title:          "RBA Raises Interest Rate by 0.25%",
		Description:    "The Reserve Bank increased rates to combat rising inflation pressures.",
		EventType:      "market",
		Severity:       domain.SeverityWarning,
		Probability:    0.15,
		Impact:         map[string]float64{"interest_rate_change": 0.25, "yield_impact": 0.1, "property_value_impact": -0.3},
		PhasePref:      []market.CyclePhase{market.PhaseExpansion, market.PhasePeak},
		CalibrationKey: "rate_hike",
	},
	{
		Title:          "RBA Cuts Interest Rate by 0.25%",
		Description:    "The Reserve Bank lowered rates to stimulate economic growth.",
		EventType:      "market",
		Severity:       domain.SeverityInfo,
		Probability:    0.1,
		Impact:         map[string]float64{"interest_rate_change": -0.25, "property_value_impact": 1.0},
		PhasePref:      []market.CyclePhase{market.PhaseContraction, market.PhaseTrough},
		CalibrationKey: "rate_cut",
	},
	{
		Title:       "Perth Housing Market Shows Strong Growth",
		Description: "Western Australian property values increased 1.5% this month, outperforming eastern states.",
		EventType:   "market",
		Severity:    domain.SeverityInfo,
		Probability: 0.15,
		Impact:      map[string]float64{"property_value_impact": 1.5, "confidence_impact": 5},
		PhasePref:   []market.CyclePhase{market.PhaseExpansion, market.PhaseRecovery},
	},
	{
		Title:       "Perth Median House Price Hits New Record",
		Description: "Strong demand and limited supply push Perth's median house price above $1 million.",
		EventType:   "market",
		Severity:    domain.SeverityInfo,
		Probability: 0.05,
		Impact:      map[string]float64{"property_value_impact": 2.0, "confidence_impact": 8},
		PhasePref:   []market.CyclePhase{market.PhaseExpansion},
	},
	{
		Title:          "Rental Vacancy Rates Hit Record Low",
		Description:    "Perth rental market tightens with vacancy rates falling below 1%.",
		EventType:      "market",
		Severity:       domain.SeverityInfo,
		Probability:    0.12,
		Impact:         map[string]float64{"rent_impact": 5, "yield_impact": 0.3, "vacancy_impact": -1},
		PhasePref:      []market.CyclePhase{market.PhaseExpansion},
		CalibrationKey: "rent_increase",
	},
	{
		Title:       "Perth Property Market Flat for Third Month",
		Description: "Buyer hesitation amid rate uncertainty keeps Perth property values stable but stagnant.",
		EventType:   "market",
		Severity:    domain.SeverityInfo,
		Probability: 0.15,
		Impact:      map[string]float64{"property_value_impact": 0, "confidence_impact": -2},
		PhasePref:   []market.CyclePhase{market.PhasePeak},
	},
	{
		Title:       "Perth Housing Market Enters Consolidation Phase",
		Description: "After years of growth, Perth property values plateau as affordability constraints bite.",
		EventType:   "market",
		Severity:    domain.SeverityInfo,
		Probability: 0.1,
		Impact:      map[string]float64{"property_value_impact": -0.1, "confidence_impact": -3},
		PhasePref:   []market.CyclePhase{market.PhasePeak},
	},
	{
		Title:       "Perth Property Values Decline for First Time in 3 Years",
		Description: "Weakening demand and rising stock levels push Perth house prices down 0.5%.",
		EventType:   "market",
		Severity:    domain.SeverityWarning,
		Probability: 0.08,
		Impact:      map[string]float64{"property_value_impact": -0.5, "confidence_impact": -8},
		PhasePref:   []market.CyclePhase{market.PhaseContraction},
	},
	{
		Title:       "Perth Housing Market Correction Deepens",
		Description: "Perth property values fall 1.2% as mining slowdown reduces buyer demand.",
		EventType:   "market",
		Severity:    domain.SeverityWarning,
		Probability: 0.06,
		Impact:      map[string]float64{"property_value_impact": -1.2, "confidence_impact": -12},
		PhasePref:   []market.CyclePhase{market.PhaseContraction, market.PhaseTrough},
	},
	{
		Title:       "Vacancy Rates Rise to 4% - Landlords Compete for Tenants",
		Description: "Oversupply from construction boom meets falling demand. Rents under pressure.",
		EventType:   "market",
		Severity:    domain.SeverityWarning,
		Probability: 0.05,
		Impact:      map[string]float64{"vacancy_impact": 2, "rent_impact": -5, "yield_impact": -0.3},
		PhasePref:   []market.CyclePhase{market.PhaseContraction, market.PhaseTrough},
	},
	{
		Title:       "Perth Outer Suburbs See 15% Price Falls",
		Description: "New housing estates face steep discounts as demand evaporates in fringe suburbs.",
		EventType:   "market",
		Severity:    domain.SeverityCritical,
		Probability: 0.03,
		Impact:      map[string]float64{"property_value_impact": -2.0, "confidence_impact": -15},
		PhasePref:   []market.CyclePhase{market.PhaseTrough},
	},
	{
		Title:       "Housing Affordability Concerns Rise",
		Description: "First home buyers face increasing challenges as prices outpace wage growth.",
		EventType:   "market",
		Severity:    domain.SeverityWarning,
		Probability: 0.1,
		Impact:      map[string]float64{"confidence_impact": -5},
		PhasePref:   []market.CyclePhase{market.PhaseExpansion, market.PhasePeak},
	},
	{
		Title:       "First Home Buyers Return as Prices Moderate",
		Description: "Price corrections create entry opportunities for new buyers.",
		EventType:   "market",
		Severity:    domain.SeverityInfo,
		Probability: 0.08,
		Impact:      map[string]float64{"confidence_impact": 5, "property_value_impact": 0.3},
		PhasePref:   []market.CyclePhase{market.PhaseTrough, market.PhaseRecovery},
	},
}

// propertyTemplates are scoped to a single randomly chosen property.
// Up to two fire per month.
var propertyTemplates = []Template{
	{
		Title:       "New Property Listed: %s",
		Description: "A %s in %s has been added to the network.",
		EventType:   "property",
		Severity:    domain.SeverityInfo,
		Probability: 0.3,
		Impact:      map[string]float64{"new_property": 1},
	},
	{
		Title:       "Property Fully Subscribed: %s",
		Description: "All tokens for %s have been purchased by network participants.",
		EventType:   "property",
		Severity:    domain.SeverityInfo,
		Probability: 0.1,
		Impact:      map[string]float64{},
	},
	{
		Title:       "Maintenance Required: %s",
		Description: "Scheduled maintenance needed for %s at %s.",
		EventType:   "property",
		Severity:    domain.SeverityWarning,
		Probability: 0.15,
		Impact:      map[string]float64{"maintenance_cost": 2500},
		Issues:      []string{"HVAC system", "roof repairs", "plumbing", "electrical work", "landscaping"},
	},
	{
		Title:       "Emergency Repair: %s",
		Description: "Urgent repairs required for %s. Tenant impact minimal.",
		EventType:   "property",
		Severity:    domain.SeverityCritical,
		Probability: 0.05,
		Impact:      map[string]float64{"maintenance_cost": 8000, "rent_pause_weeks": 1},
		Issues:      []string{"burst pipe", "electrical fault", "storm damage", "hot water system failure"},
	},
	{
		Title:       "New Tenant Secured: %s",
		Description: "Long-term lease signed at $%s/week, above market average.",
		EventType:   "property",
		Severity:    domain.SeverityInfo,
		Probability: 0.2,
		Impact:      map[string]float64{"tenancy_secured": 1},
	},
	{
		Title:       "Property Valuation Updated: %s",
		Description: "Independent valuation shows %d%% change in property value.",
		EventType:   "property",
		Severity:    domain.SeverityInfo,
		Probability: 0.1,
		Impact:      map[string]float64{"valuation_change": 1},
	},
}

// economicTemplates describe the broader economy. At most one fires
// per month.
var economicTemplates = []Template{
	{
		Title:          "Australian Economy Shows Strong Growth",
		Description:    "GDP growth of %.1f%% signals robust economic conditions.",
		EventType:      "economic",
		Severity:       domain.SeverityInfo,
		Probability:    0.15,
		Impact:         map[string]float64{"confidence_impact": 8},
		PhasePref:      []market.CyclePhase{market.PhaseRecovery, market.PhaseExpansion},
		CalibrationKey: "economic_positive",
	},
	{
		Title:       "Employment Market Remains Tight",
		Description: "Unemployment holds at %.1f%%, supporting housing demand.",
		EventType:   "economic",
		Severity:    domain.SeverityInfo,
		Probability: 0.2,
		Impact:      map[string]float64{"confidence_impact": 3},
	},
	{
		Title:          "Mining Sector Boom Boosts WA Economy",
		Description:    "Iron ore prices surge, benefiting Western Australian employment and property.",
		EventType:      "economic",
		Severity:       domain.SeverityInfo,
		Probability:    0.1,
		Impact:         map[string]float64{"property_value_impact": 1.5, "rent_impact": 2},
		CalibrationKey: "wa_outperformance",
	},
	{
		Title:       "Consumer Confidence Drops",
		Description: "Economic uncertainty weighs on household spending intentions.",
		EventType:   "economic",
		Severity:    domain.SeverityWarning,
		Probability: 0.1,
		Impact:      map[string]float64{"confidence_impact": -10},
		PhasePref:   []market.CyclePhase{market.PhasePeak, market.PhaseContraction},
	},
	{
		Title:       "Inflation Eases to %.1f%%",
		Description: "CPI data shows moderating price pressures, reducing rate hike pressure.",
		EventType:   "economic",
		Severity:    domain.SeverityInfo,
		Probability: 0.15,
		Impact:      map[string]float64{"confidence_impact": 5},
		PhasePref:   []market.CyclePhase{market.PhaseContraction, market.PhaseTrough},
	},
}

// governanceTemplates fire only on quarter months. At most one.
var governanceTemplates = []Template{
	{
		Title:       "New Governance Proposal: %s",
		Description: "Token holders can now vote on %s.",
		EventType:   "governance",
		Severity:    domain.SeverityInfo,
		Probability: 0.2,
		Impact:      map[string]float64{"new_proposal": 1},
		Topics: []governanceTopic{
			{"Fee Reduction", "reducing management fees from 0.5% to 0.4%"},
			{"New Market Expansion", "expanding to Melbourne property market"},
			{"Dividend Policy", "increasing quarterly dividend payout ratio"},
			{"Emergency Fund", "building a larger maintenance reserve"},
		},
	},
	{
		Title:       "Proposal Passed: %s",
		Description: "Token holders voted to approve %s with %d%% support.",
		EventType:   "governance",
		Severity:    domain.SeverityInfo,
		Probability: 0.1,
		Impact:      map[string]float64{"proposal_passed": 1},
	},
	{
		Title:       "Quarterly Dividends Distributed",
		Description: "The network has distributed $%d in dividends to token holders.",
		EventType:   "governance",
		Severity:    domain.SeverityInfo,
		Probability: 0.25,
		Impact:      map[string]float64{"dividends_distributed": 1},
	},
}
