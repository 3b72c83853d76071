// Package domain contains core business types and interfaces.
//
// This file defines the plan registry: the closed set of purchase tiers,
// the credit quotas each tier grants, and the feature gates each tier
// unlocks. Pure data and pure lookups, no side effects.
package domain

// Plan represents the purchase tier a user is on.
type Plan string

const (
	PlanBase     Plan = "base"     // free tier
	PlanExplorer Plan = "explorer" // one-time purchase
	PlanBuilder  Plan = "builder"  // recurring subscription
)

// Valid reports whether p is a known plan.
func (p Plan) Valid() bool {
	switch p {
	case PlanBase, PlanExplorer, PlanBuilder:
		return true
	default:
		return false
	}
}

// CreditAction identifies a metered action that consumes one credit.
type CreditAction string

const (
	ActionGeneration CreditAction = "generation" // idea generation
	ActionAnalysis   CreditAction = "analysis"   // market analysis
	ActionBlueprint  CreditAction = "blueprint"  // MVP blueprint
)

// Valid reports whether a is a known metered action.
func (a CreditAction) Valid() bool {
	switch a {
	case ActionGeneration, ActionAnalysis, ActionBlueprint:
		return true
	default:
		return false
	}
}

// Feature identifies a plan-gated feature area, independent of credits.
type Feature string

const (
	FeatureKanban    Feature = "kanban"    // execution board
	FeatureBlueprint Feature = "blueprint" // MVP blueprint builder
)

// PlanLimits defines the credit quotas and feature access for one plan.
// A true Unlimited flag means the corresponding counter never decrements.
type PlanLimits struct {
	Generation          int
	Analysis            int
	Blueprint           int
	ExportCap           int
	UnlimitedGeneration bool
	UnlimitedAnalysis   bool
	UnlimitedBlueprint  bool
	UnlimitedExports    bool
	Features            map[Feature]bool
}

// planRegistry maps each plan to its limits. The builder plan is unlimited
// on all metered actions and unlocks every feature.
var planRegistry = map[Plan]PlanLimits{
	PlanBase: {
		Generation: 3,
		Analysis:   1,
		Blueprint:  0,
		ExportCap:  1,
		Features:   map[Feature]bool{},
	},
	PlanExplorer: {
		Generation: 20,
		Analysis:   1,
		Blueprint:  1,
		ExportCap:  10,
		Features: map[Feature]bool{
			FeatureBlueprint: true,
		},
	},
	PlanBuilder: {
		UnlimitedGeneration: true,
		UnlimitedAnalysis:   true,
		UnlimitedBlueprint:  true,
		UnlimitedExports:    true,
		Features: map[Feature]bool{
			FeatureKanban:    true,
			FeatureBlueprint: true,
		},
	},
}

// Limits returns the limits for a plan. Unknown plans resolve to the base
// (most restrictive) tier, never to unlimited.
func Limits(plan Plan) PlanLimits {
	if limits, ok := planRegistry[plan]; ok {
		return limits
	}
	return planRegistry[PlanBase]
}

// Quota returns the quota for a metered action on a plan. The boolean is
// true when the action is unlimited on that plan.
func (l PlanLimits) Quota(action CreditAction) (int, bool) {
	switch action {
	case ActionGeneration:
		return l.Generation, l.UnlimitedGeneration
	case ActionAnalysis:
		return l.Analysis, l.UnlimitedAnalysis
	case ActionBlueprint:
		return l.Blueprint, l.UnlimitedBlueprint
	default:
		return 0, false
	}
}

// Unlocked reports whether a feature is reachable on a plan. Unknown
// features and unknown plans fail closed.
func Unlocked(plan Plan, feature Feature) bool {
	return Limits(plan).Features[feature]
}

// UnlockedBy returns the cheapest plan that unlocks a feature. Used to name
// the upgrade target in locked-feature messages.
func UnlockedBy(feature Feature) Plan {
	for _, plan := range []Plan{PlanBase, PlanExplorer, PlanBuilder} {
		if Unlocked(plan, feature) {
			return plan
		}
	}
	return PlanBuilder
}
