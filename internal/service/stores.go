// Package service contains the business logic layer.
//
// Services orchestrate interactions between repositories, external APIs,
// and domain logic. They are responsible for:
// - Input validation
// - Business rule enforcement
// - Transaction coordination
// - Error translation (database errors -> domain errors)
package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/sommetlabs/sommet/internal/domain"
	"github.com/sommetlabs/sommet/internal/repository"
)

// The store interfaces below are the persistence contracts services depend
// on. Each is satisfied by the corresponding repository type; tests supply
// in-memory fakes.

// UserStore persists user accounts.
type UserStore interface {
	Create(ctx context.Context, email, passwordHash, name string) (*domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByStripeCustomerID(ctx context.Context, customerID string) (*domain.User, error)
	SetStripeCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error
	SetSubscriptionID(ctx context.Context, userID uuid.UUID, subscriptionID string) error
}

// AccountStore provisions a new user row together with its entitlement
// record in one atomic operation; a failure on either side leaves neither
// behind. Satisfied by repository.AccountRepo.
type AccountStore interface {
	CreateAccount(ctx context.Context, email, passwordHash, name string, plan domain.Plan) (*domain.User, error)
}

// SessionStore persists authentication sessions.
type SessionStore interface {
	Create(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) (*domain.Session, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error)
	DeleteByTokenHash(ctx context.Context, tokenHash string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// EntitlementStore persists the per-user entitlement record.
type EntitlementStore interface {
	Get(ctx context.Context, userID uuid.UUID) (*domain.Entitlement, error)
	Initialize(ctx context.Context, userID uuid.UUID, plan domain.Plan) (*domain.Entitlement, error)
	DecrementIfAvailable(ctx context.Context, userID uuid.UUID, action domain.CreditAction) (int, error)
	IncrementExportsIfBelow(ctx context.Context, userID uuid.UUID, cap int) (int, error)
	IncrementExports(ctx context.Context, userID uuid.UUID) (int, error)
}

// DocumentStore persists AI-generated documents.
type DocumentStore interface {
	Create(ctx context.Context, userID uuid.UUID, kind domain.ContentKind, title string, payload json.RawMessage) (*domain.Document, error)
	GetByID(ctx context.Context, userID, docID uuid.UUID) (*domain.Document, error)
	ListByKind(ctx context.Context, userID uuid.UUID, kind domain.ContentKind) ([]domain.Document, error)
	Delete(ctx context.Context, userID, docID uuid.UUID) (int64, error)
}

// BoardStore persists execution boards.
type BoardStore interface {
	Get(ctx context.Context, userID uuid.UUID) (*domain.Board, error)
	Upsert(ctx context.Context, userID uuid.UUID, payload json.RawMessage) (*domain.Board, error)
}

// ExportStore persists export records.
type ExportStore interface {
	Create(ctx context.Context, userID, documentID uuid.UUID, key, url string) (*domain.Export, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Export, error)
}

// Compile-time checks that the repository types satisfy the contracts.
var (
	_ UserStore        = (*repository.UserRepo)(nil)
	_ SessionStore     = (*repository.SessionRepo)(nil)
	_ EntitlementStore = (*repository.EntitlementRepo)(nil)
	_ DocumentStore    = (*repository.DocumentRepo)(nil)
	_ BoardStore       = (*repository.BoardRepo)(nil)
	_ ExportStore      = (*repository.ExportRepo)(nil)
)
