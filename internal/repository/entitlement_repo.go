package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sommetlabs/sommet/internal/domain"
)

// EntitlementRepo provides data access for the entitlements table: one row
// per user holding the plan and the remaining-credit counters.
//
// Key invariant: a counter is only ever decremented by a single conditional
// UPDATE whose WHERE clause checks the counter is still positive. Two
// concurrent requests for the same user cannot both observe "1 remaining"
// and both succeed; Postgres row locking serializes them and the loser's
// UPDATE matches zero rows.
type EntitlementRepo struct {
	db DBTX
}

// NewEntitlementRepo creates an EntitlementRepo backed by the given
// database connection (pool or transaction).
func NewEntitlementRepo(db DBTX) *EntitlementRepo {
	return &EntitlementRepo{db: db}
}

// counterColumn maps a metered action to its column. Actions are a closed
// enum validated before use; the column name is never caller-supplied.
func counterColumn(action domain.CreditAction) (string, error) {
	switch action {
	case domain.ActionGeneration:
		return "generation_remaining", nil
	case domain.ActionAnalysis:
		return "analysis_remaining", nil
	case domain.ActionBlueprint:
		return "blueprint_remaining", nil
	default:
		return "", fmt.Errorf("unknown credit action %q", action)
	}
}

// Get returns the entitlement record for a user, or pgx.ErrNoRows if the
// user has no record (treated upstream as a technical error, not quota
// exhaustion).
func (r *EntitlementRepo) Get(ctx context.Context, userID uuid.UUID) (*domain.Entitlement, error) {
	var e domain.Entitlement
	err := r.db.QueryRow(ctx,
		`SELECT user_id, plan, generation_remaining, analysis_remaining,
		        blueprint_remaining, pdf_exports_used, updated_at
		 FROM entitlements
		 WHERE user_id = $1`,
		userID,
	).Scan(&e.UserID, &e.Plan, &e.GenerationRemaining, &e.AnalysisRemaining,
		&e.BlueprintRemaining, &e.PDFExportsUsed, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Initialize idempotently creates or overwrites a user's entitlement record
// with the counters the plan registry dictates. Used at signup and on every
// plan change; the export meter resets with the plan.
func (r *EntitlementRepo) Initialize(ctx context.Context, userID uuid.UUID, plan domain.Plan) (*domain.Entitlement, error) {
	fresh := domain.NewEntitlement(userID, plan)

	var e domain.Entitlement
	err := r.db.QueryRow(ctx,
		`INSERT INTO entitlements
		     (user_id, plan, generation_remaining, analysis_remaining,
		      blueprint_remaining, pdf_exports_used, updated_at)
		 VALUES ($1, $2, $3, $4, $5, 0, NOW())
		 ON CONFLICT (user_id) DO UPDATE SET
		     plan = EXCLUDED.plan,
		     generation_remaining = EXCLUDED.generation_remaining,
		     analysis_remaining = EXCLUDED.analysis_remaining,
		     blueprint_remaining = EXCLUDED.blueprint_remaining,
		     pdf_exports_used = 0,
		     updated_at = NOW()
		 RETURNING user_id, plan, generation_remaining, analysis_remaining,
		           blueprint_remaining, pdf_exports_used, updated_at`,
		userID, fresh.Plan, fresh.GenerationRemaining, fresh.AnalysisRemaining,
		fresh.BlueprintRemaining,
	).Scan(&e.UserID, &e.Plan, &e.GenerationRemaining, &e.AnalysisRemaining,
		&e.BlueprintRemaining, &e.PDFExportsUsed, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// DecrementIfAvailable atomically decrements a counter and returns the new
// remaining count. Returns ErrQuotaExhausted if the counter was already
// zero, or pgx.ErrNoRows if the user has no entitlement record. The
// check-and-decrement is a single UPDATE; there is no read-then-write
// window for concurrent requests to race through.
func (r *EntitlementRepo) DecrementIfAvailable(ctx context.Context, userID uuid.UUID, action domain.CreditAction) (int, error) {
	col, err := counterColumn(action)
	if err != nil {
		return 0, err
	}

	var remaining int
	query := fmt.Sprintf(
		`UPDATE entitlements
		 SET %[1]s = %[1]s - 1, updated_at = NOW()
		 WHERE user_id = $1 AND %[1]s > 0
		 RETURNING %[1]s`, col)
	err = r.db.QueryRow(ctx, query, userID).Scan(&remaining)
	if err == nil {
		return remaining, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	// Zero rows matched: either the counter is exhausted or the record is
	// missing. Probe existence to tell the two apart.
	var exists bool
	if probeErr := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM entitlements WHERE user_id = $1)`,
		userID,
	).Scan(&exists); probeErr != nil {
		return 0, probeErr
	}
	if exists {
		return 0, ErrQuotaExhausted
	}
	return 0, pgx.ErrNoRows
}

// IncrementExportsIfBelow atomically increments the export meter while it
// is below cap, returning the new used count. Same contract as
// DecrementIfAvailable: ErrQuotaExhausted at the cap, pgx.ErrNoRows for a
// missing record.
func (r *EntitlementRepo) IncrementExportsIfBelow(ctx context.Context, userID uuid.UUID, cap int) (int, error) {
	var used int
	err := r.db.QueryRow(ctx,
		`UPDATE entitlements
		 SET pdf_exports_used = pdf_exports_used + 1, updated_at = NOW()
		 WHERE user_id = $1 AND pdf_exports_used < $2
		 RETURNING pdf_exports_used`,
		userID, cap,
	).Scan(&used)
	if err == nil {
		return used, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	var exists bool
	if probeErr := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM entitlements WHERE user_id = $1)`,
		userID,
	).Scan(&exists); probeErr != nil {
		return 0, probeErr
	}
	if exists {
		return 0, ErrQuotaExhausted
	}
	return 0, pgx.ErrNoRows
}

// IncrementExports bumps the export meter without a cap check, for plans
// with unlimited exports where the meter is kept for display only.
func (r *EntitlementRepo) IncrementExports(ctx context.Context, userID uuid.UUID) (int, error) {
	var used int
	err := r.db.QueryRow(ctx,
		`UPDATE entitlements
		 SET pdf_exports_used = pdf_exports_used + 1, updated_at = NOW()
		 WHERE user_id = $1
		 RETURNING pdf_exports_used`,
		userID,
	).Scan(&used)
	if err != nil {
		return 0, err
	}
	return used, nil
}
