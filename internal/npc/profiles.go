package npc

import (
	"github.com/shopspring/decimal"

	"github.com/nedlands/propnet/internal/domain"
)

// Archetype labels the broad behavior class of a profile.
type Archetype string

const (
	ArchetypeConservative Archetype = "conservative"
	ArchetypeAggressive   Archetype = "aggressive"
	ArchetypeBalanced     Archetype = "balanced"
	ArchetypeOpportunist  Archetype = "opportunist"
	ArchetypePassive      Archetype = "passive"
)

// Profile is the static definition of an autonomous participant.
type Profile struct {
	Name        string
	Archetype   Archetype
	Role        domain.Role
	Personality domain.Personality
	Goals       []domain.Goal
	Backstory   string
	MinYield    float64 // investor floor for income-style buying
}

// startingBalance is credited to every NPC on first creation.
var startingBalance = decimal.NewFromInt(100000)

func goal(t domain.GoalType, target int64, priority int) domain.Goal {
	return domain.Goal{
		Type:        t,
		TargetValue: decimal.NewFromInt(target),
		Priority:    priority,
	}
}

// Profiles is the fixed cast of autonomous participants. Creation is
// idempotent on name, so restarts never duplicate the cast.
var Profiles = []Profile{
	{
		Name:      "Sarah Chen",
		Archetype: ArchetypeConservative,
		Role:      domain.RoleInvestor,
		Personality: domain.Personality{
			RiskTolerance: 0.2, ActivityLevel: 0.3, Patience: 0.5, Loyalty: 0.5,
		},
		Goals:     []domain.Goal{goal(domain.GoalIncome, 5000, 9)},
		Backstory: "Retired teacher focused on steady dividend income for retirement.",
		MinYield:  4.0,
	},
	{
		Name:      "Marcus Thompson",
		Archetype: ArchetypeAggressive,
		Role:      domain.RoleInvestor,
		Personality: domain.Personality{
			RiskTolerance: 0.8, ActivityLevel: 0.7, Patience: 0.5, Loyalty: 0.5,
		},
		Goals:     []domain.Goal{goal(domain.GoalAccumulate, 500000, 8)},
		Backstory: "Tech entrepreneur reinvesting startup profits into property.",
	},
	{
		Name:      "Emily Rodriguez",
		Archetype: ArchetypeBalanced,
		Role:      domain.RoleInvestor,
		Personality: domain.Personality{
			RiskTolerance: 0.5, ActivityLevel: 0.5, Patience: 0.5, Loyalty: 0.5,
		},
		Goals: []domain.Goal{
			goal(domain.GoalAccumulate, 200000, 7),
			goal(domain.GoalIncome, 2000, 6),
		},
		Backstory: "Financial advisor building a demonstration portfolio.",
	},
	{
		Name:      "David Park",
		Archetype: ArchetypeOpportunist,
		Role:      domain.RoleInvestor,
		Personality: domain.Personality{
			RiskTolerance: 0.6, ActivityLevel: 0.8, Patience: 0.5, Contrarian: 0.3, Loyalty: 0.5,
		},
		Goals:     []domain.Goal{goal(domain.GoalAccumulate, 100000, 5)},
		Backstory: "Day trader exploring fractional property markets.",
	},
	{
		Name:      "Janet Williams",
		Archetype: ArchetypePassive,
		Role:      domain.RoleInvestor,
		Personality: domain.Personality{
			RiskTolerance: 0.3, ActivityLevel: 0.1, Patience: 0.9, Loyalty: 0.9,
		},
		Goals:     []domain.Goal{goal(domain.GoalAccumulate, 150000, 4)},
		Backstory: "Long-term investor who rarely checks her portfolio.",
	},
	{
		Name:      "Alex Kim",
		Archetype: ArchetypeBalanced,
		Role:      domain.RoleRenter,
		Personality: domain.Personality{
			RiskTolerance: 0.4, ActivityLevel: 0.3, Patience: 0.5, Loyalty: 0.5,
		},
		Goals:     []domain.Goal{goal(domain.GoalAccumulate, 50000, 8)},
		Backstory: "Young professional renting while saving for a deposit.",
	},
	{
		Name:      "The Morrison Family",
		Archetype: ArchetypeConservative,
		Role:      domain.RoleRenter,
		Personality: domain.Personality{
			RiskTolerance: 0.2, ActivityLevel: 0.2, Patience: 0.5, Loyalty: 0.5,
		},
		Backstory: "Family of four renting a house in the suburbs.",
	},
	{
		Name:      "BuildRight Maintenance",
		Archetype: ArchetypeBalanced,
		Role:      domain.RoleService,
		Personality: domain.Personality{
			RiskTolerance: 0.3, ActivityLevel: 0.6, Patience: 0.5, Loyalty: 0.5,
		},
		Goals:     []domain.Goal{goal(domain.GoalIncome, 10000, 9)},
		Backstory: "Local maintenance company servicing network properties.",
	},
	{
		Name:      "CleanHome Services",
		Archetype: ArchetypeConservative,
		Role:      domain.RoleService,
		Personality: domain.Personality{
			RiskTolerance: 0.2, ActivityLevel: 0.7, Patience: 0.5, Loyalty: 0.5,
		},
		Goals:     []domain.Goal{goal(domain.GoalIncome, 5000, 8)},
		Backstory: "Professional cleaning company for rental turnovers.",
	},
	{
		Name:      "Network Market Maker",
		Archetype: ArchetypeBalanced,
		Role:      domain.RoleMarketMaker,
		Personality: domain.Personality{
			RiskTolerance: 0.5, ActivityLevel: 0.9, Patience: 0.5, Loyalty: 0.5,
		},
		Goals:     []domain.Goal{goal(domain.GoalStabilize, 0, 10)},
		Backstory: "Automated market maker providing liquidity for all properties.",
	},
	{
		Name:      "Sunset Developments",
		Archetype: ArchetypeAggressive,
		Role:      domain.RoleDeveloper,
		Personality: domain.Personality{
			RiskTolerance: 0.7, ActivityLevel: 0.4, Patience: 0.5, Loyalty: 0.5,
		},
		Goals:     []domain.Goal{goal(domain.GoalAccumulate, 1000000, 7)},
		Backstory: "Property developer bringing new listings to the network.",
	},
}
