// Package domain contains core business types and interfaces.
//
// This file defines the entitlement record: the per-user counters that are
// the single source of truth for how many metered actions remain.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Entitlement is the per-user entitlement record. Exactly one exists per
// user; it is created at signup, overwritten on plan change, and deleted
// only with the account.
//
// Remaining counters are meaningless for actions the plan marks unlimited;
// unlimited actions never read or write them.
type Entitlement struct {
	UserID              uuid.UUID
	Plan                Plan
	GenerationRemaining int
	AnalysisRemaining   int
	BlueprintRemaining  int
	PDFExportsUsed      int
	UpdatedAt           time.Time
}

// Remaining returns the stored remaining count for a metered action.
func (e *Entitlement) Remaining(action CreditAction) int {
	switch action {
	case ActionGeneration:
		return e.GenerationRemaining
	case ActionAnalysis:
		return e.AnalysisRemaining
	case ActionBlueprint:
		return e.BlueprintRemaining
	default:
		return 0
	}
}

// NewEntitlement builds a fresh entitlement record for a plan, with all
// counters initialized from the plan registry and the export meter reset.
func NewEntitlement(userID uuid.UUID, plan Plan) *Entitlement {
	limits := Limits(plan)
	return &Entitlement{
		UserID:              userID,
		Plan:                plan,
		GenerationRemaining: limits.Generation,
		AnalysisRemaining:   limits.Analysis,
		BlueprintRemaining:  limits.Blueprint,
		PDFExportsUsed:      0,
	}
}

// ConsumeOutcome is the result of one pass through the credit consumption
// protocol. Allowed and Exhausted are values, not errors; callers must
// handle both branches.
type ConsumeOutcome struct {
	Allowed   bool
	Unlimited bool
	Remaining int // meaningful only when Allowed and not Unlimited
}

// EntitlementUsage is the read model served to the credit display: the
// current plan, what remains for each action, and which features the plan
// unlocks. Gate outcomes are computed per read so a just-applied upgrade is
// visible immediately.
type EntitlementUsage struct {
	Plan                Plan             `json:"plan"`
	GenerationRemaining *int             `json:"generation_remaining"` // nil = unlimited
	AnalysisRemaining   *int             `json:"analysis_remaining"`
	BlueprintRemaining  *int             `json:"blueprint_remaining"`
	PDFExportsUsed      int              `json:"pdf_exports_used"`
	PDFExportCap        *int             `json:"pdf_export_cap"`
	Features            map[Feature]bool `json:"features"`
}

// UsageFor projects an entitlement record into its read model.
func UsageFor(e *Entitlement) *EntitlementUsage {
	limits := Limits(e.Plan)
	usage := &EntitlementUsage{
		Plan:           e.Plan,
		PDFExportsUsed: e.PDFExportsUsed,
		Features: map[Feature]bool{
			FeatureKanban:    Unlocked(e.Plan, FeatureKanban),
			FeatureBlueprint: Unlocked(e.Plan, FeatureBlueprint),
		},
	}
	if !limits.UnlimitedGeneration {
		n := e.GenerationRemaining
		usage.GenerationRemaining = &n
	}
	if !limits.UnlimitedAnalysis {
		n := e.AnalysisRemaining
		usage.AnalysisRemaining = &n
	}
	if !limits.UnlimitedBlueprint {
		n := e.BlueprintRemaining
		usage.BlueprintRemaining = &n
	}
	if !limits.UnlimitedExports {
		cap := limits.ExportCap
		usage.PDFExportCap = &cap
	}
	return usage
}
