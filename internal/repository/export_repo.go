package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/sommetlabs/sommet/internal/domain"
)

// ExportRepo provides data access for the exports table, an audit trail of
// metered PDF exports. The enforcement counter lives on the entitlements
// row; rows here record where each stored artifact went.
type ExportRepo struct {
	db DBTX
}

// NewExportRepo creates an ExportRepo backed by the given database
// connection (pool or transaction).
func NewExportRepo(db DBTX) *ExportRepo {
	return &ExportRepo{db: db}
}

// Create records a completed export.
func (r *ExportRepo) Create(ctx context.Context, userID, documentID uuid.UUID, key, url string) (*domain.Export, error) {
	var e domain.Export
	err := r.db.QueryRow(ctx,
		`INSERT INTO exports (id, user_id, document_id, storage_key, url)
		 VALUES (gen_random_uuid(), $1, $2, $3, $4)
		 RETURNING id, user_id, document_id, storage_key, url, created_at`,
		userID, documentID, key, url,
	).Scan(&e.ID, &e.UserID, &e.DocumentID, &e.Key, &e.URL, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListByUser returns a user's exports, newest first.
func (r *ExportRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Export, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, document_id, storage_key, url, created_at
		 FROM exports WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exports []domain.Export
	for rows.Next() {
		var e domain.Export
		if err := rows.Scan(&e.ID, &e.UserID, &e.DocumentID, &e.Key, &e.URL, &e.CreatedAt); err != nil {
			return nil, err
		}
		exports = append(exports, e)
	}
	return exports, rows.Err()
}
