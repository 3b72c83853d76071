package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/sommetlabs/sommet/internal/domain"
)

// BillingEventRepo records which payment-provider events have already been
// applied. Stripe delivers webhooks at-least-once; the unique event ID is
// the idempotency key that keeps a replayed delivery from re-initializing
// a user's counters.
type BillingEventRepo struct {
	db DBTX
}

// NewBillingEventRepo creates a BillingEventRepo backed by the given
// database connection (pool or transaction).
func NewBillingEventRepo(db DBTX) *BillingEventRepo {
	return &BillingEventRepo{db: db}
}

// MarkProcessed records an event as applied. Returns false if the event was
// already recorded (replay), in which case nothing was written.
func (r *BillingEventRepo) MarkProcessed(ctx context.Context, eventID, eventType string, userID uuid.UUID, plan domain.Plan) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO billing_events (event_id, event_type, user_id, plan, processed_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (event_id) DO NOTHING`,
		eventID, eventType, userID, plan,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// IsProcessed reports whether an event ID has already been applied.
func (r *BillingEventRepo) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM billing_events WHERE event_id = $1)`,
		eventID,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
