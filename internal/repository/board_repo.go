package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/sommetlabs/sommet/internal/domain"
)

// BoardRepo provides data access for the execution boards table. Each user
// has at most one board, stored as an opaque JSONB document; list ordering
// is entirely client-side.
type BoardRepo struct {
	db DBTX
}

// NewBoardRepo creates a BoardRepo backed by the given database connection
// (pool or transaction).
func NewBoardRepo(db DBTX) *BoardRepo {
	return &BoardRepo{db: db}
}

// Get returns a user's board, or pgx.ErrNoRows if none has been saved yet.
func (r *BoardRepo) Get(ctx context.Context, userID uuid.UUID) (*domain.Board, error) {
	var b domain.Board
	err := r.db.QueryRow(ctx,
		`SELECT user_id, payload, updated_at FROM boards WHERE user_id = $1`,
		userID,
	).Scan(&b.UserID, &b.Payload, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Upsert creates or replaces a user's board document.
func (r *BoardRepo) Upsert(ctx context.Context, userID uuid.UUID, payload json.RawMessage) (*domain.Board, error) {
	var b domain.Board
	err := r.db.QueryRow(ctx,
		`INSERT INTO boards (user_id, payload, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (user_id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()
		 RETURNING user_id, payload, updated_at`,
		userID, payload,
	).Scan(&b.UserID, &b.Payload, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
