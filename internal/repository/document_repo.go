package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/sommetlabs/sommet/internal/domain"
)

// DocumentRepo provides data access for saved AI-generated documents
// (ideas, market analyses, MVP blueprints). Payloads are stored as JSONB
// and treated as opaque.
type DocumentRepo struct {
	db DBTX
}

// NewDocumentRepo creates a DocumentRepo backed by the given database
// connection (pool or transaction).
func NewDocumentRepo(db DBTX) *DocumentRepo {
	return &DocumentRepo{db: db}
}

// Create inserts a document for a user.
func (r *DocumentRepo) Create(ctx context.Context, userID uuid.UUID, kind domain.ContentKind, title string, payload json.RawMessage) (*domain.Document, error) {
	var d domain.Document
	err := r.db.QueryRow(ctx,
		`INSERT INTO documents (id, user_id, kind, title, payload)
		 VALUES (gen_random_uuid(), $1, $2, $3, $4)
		 RETURNING id, user_id, kind, title, payload, created_at`,
		userID, kind, title, payload,
	).Scan(&d.ID, &d.UserID, &d.Kind, &d.Title, &d.Payload, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// GetByID returns a document scoped to its owner. A document belonging to
// another user reads as pgx.ErrNoRows, never as someone else's data.
func (r *DocumentRepo) GetByID(ctx context.Context, userID, docID uuid.UUID) (*domain.Document, error) {
	var d domain.Document
	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, kind, title, payload, created_at
		 FROM documents WHERE id = $1 AND user_id = $2`,
		docID, userID,
	).Scan(&d.ID, &d.UserID, &d.Kind, &d.Title, &d.Payload, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ListByKind returns a user's documents of one kind, newest first.
func (r *DocumentRepo) ListByKind(ctx context.Context, userID uuid.UUID, kind domain.ContentKind) ([]domain.Document, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, kind, title, payload, created_at
		 FROM documents
		 WHERE user_id = $1 AND kind = $2
		 ORDER BY created_at DESC`,
		userID, kind,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var d domain.Document
		if err := rows.Scan(&d.ID, &d.UserID, &d.Kind, &d.Title, &d.Payload, &d.CreatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Delete removes a document, scoped to its owner. Returns the number of
// rows deleted (0 when the document does not exist or is not theirs).
func (r *DocumentRepo) Delete(ctx context.Context, userID, docID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM documents WHERE id = $1 AND user_id = $2`, docID, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
