package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sommetlabs/sommet/internal/domain"
	"github.com/sommetlabs/sommet/internal/repository"
)

// In-memory store fakes shared by the service tests. They implement the
// same contracts as the pgx repositories, including the conditional
// decrement semantics and sentinel errors.

type fakeUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[uuid.UUID]*domain.User)}
}

func (f *fakeUserStore) Create(ctx context.Context, email, passwordHash, name string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return nil, &duplicateErr{}
		}
	}
	u := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: passwordHash,
		Name:         name,
		CreatedAt:    time.Now(),
	}
	f.users[u.ID] = u
	return cloneUser(u), nil
}

func (f *fakeUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneUser(u), nil
}

func (f *fakeUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUserStore) GetByStripeCustomerID(ctx context.Context, customerID string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.StripeCustomerID == customerID {
			return cloneUser(u), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUserStore) SetStripeCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[userID]; ok {
		u.StripeCustomerID = customerID
	}
	return nil
}

func (f *fakeUserStore) SetSubscriptionID(ctx context.Context, userID uuid.UUID, subscriptionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[userID]; ok {
		u.SubscriptionID = subscriptionID
	}
	return nil
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	return &c
}

// duplicateErr mimics a Postgres unique violation without a live database.
type duplicateErr struct{}

func (e *duplicateErr) Error() string { return "duplicate key value violates unique constraint" }

// fakeAccountStore mirrors repository.AccountRepo: the user row and its
// entitlement record are provisioned together, and a failure on either side
// leaves neither behind. initErr injects an entitlement-insert failure.
type fakeAccountStore struct {
	users        *fakeUserStore
	entitlements *fakeEntitlementStore
	initErr      error
}

func (f *fakeAccountStore) CreateAccount(ctx context.Context, email, passwordHash, name string, plan domain.Plan) (*domain.User, error) {
	u, err := f.users.Create(ctx, email, passwordHash, name)
	if err != nil {
		return nil, err
	}
	if f.initErr != nil {
		// Roll the user row back, as the transaction would.
		f.users.mu.Lock()
		delete(f.users.users, u.ID)
		f.users.mu.Unlock()
		return nil, f.initErr
	}
	if _, err := f.entitlements.Initialize(ctx, u.ID, plan); err != nil {
		return nil, err
	}
	return u, nil
}

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session // key: token hash
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]*domain.Session)}
}

func (f *fakeSessionStore) Create(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &domain.Session{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	f.sessions[tokenHash] = s
	return s, nil
}

func (f *fakeSessionStore) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[tokenHash]
	if !ok || s.IsExpired() {
		return nil, pgx.ErrNoRows
	}
	return s, nil
}

func (f *fakeSessionStore) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, tokenHash)
	return nil
}

func (f *fakeSessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for hash, s := range f.sessions {
		if s.IsExpired() {
			delete(f.sessions, hash)
			n++
		}
	}
	return n, nil
}

type fakeEntitlementStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*domain.Entitlement
}

func newFakeEntitlementStore() *fakeEntitlementStore {
	return &fakeEntitlementStore{records: make(map[uuid.UUID]*domain.Entitlement)}
}

func (f *fakeEntitlementStore) Get(ctx context.Context, userID uuid.UUID) (*domain.Entitlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.records[userID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	c := *e
	return &c, nil
}

func (f *fakeEntitlementStore) Initialize(ctx context.Context, userID uuid.UUID, plan domain.Plan) (*domain.Entitlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := domain.NewEntitlement(userID, plan)
	e.UpdatedAt = time.Now()
	f.records[userID] = e
	c := *e
	return &c, nil
}

func (f *fakeEntitlementStore) DecrementIfAvailable(ctx context.Context, userID uuid.UUID, action domain.CreditAction) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.records[userID]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	switch action {
	case domain.ActionGeneration:
		if e.GenerationRemaining <= 0 {
			return 0, repository.ErrQuotaExhausted
		}
		e.GenerationRemaining--
		return e.GenerationRemaining, nil
	case domain.ActionAnalysis:
		if e.AnalysisRemaining <= 0 {
			return 0, repository.ErrQuotaExhausted
		}
		e.AnalysisRemaining--
		return e.AnalysisRemaining, nil
	case domain.ActionBlueprint:
		if e.BlueprintRemaining <= 0 {
			return 0, repository.ErrQuotaExhausted
		}
		e.BlueprintRemaining--
		return e.BlueprintRemaining, nil
	default:
		return 0, pgx.ErrNoRows
	}
}

func (f *fakeEntitlementStore) IncrementExportsIfBelow(ctx context.Context, userID uuid.UUID, cap int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.records[userID]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	if e.PDFExportsUsed >= cap {
		return 0, repository.ErrQuotaExhausted
	}
	e.PDFExportsUsed++
	return e.PDFExportsUsed, nil
}

func (f *fakeEntitlementStore) IncrementExports(ctx context.Context, userID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.records[userID]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	e.PDFExportsUsed++
	return e.PDFExportsUsed, nil
}

type fakeDocumentStore struct {
	mu   sync.Mutex
	docs map[uuid.UUID]*domain.Document
}

func newFakeDocumentStore() *fakeDocumentStore {
	return &fakeDocumentStore{docs: make(map[uuid.UUID]*domain.Document)}
}

func (f *fakeDocumentStore) Create(ctx context.Context, userID uuid.UUID, kind domain.ContentKind, title string, payload json.RawMessage) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := &domain.Document{
		ID:        uuid.New(),
		UserID:    userID,
		Kind:      kind,
		Title:     title,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
	f.docs[d.ID] = d
	return d, nil
}

func (f *fakeDocumentStore) GetByID(ctx context.Context, userID, docID uuid.UUID) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[docID]
	if !ok || d.UserID != userID {
		return nil, pgx.ErrNoRows
	}
	return d, nil
}

func (f *fakeDocumentStore) ListByKind(ctx context.Context, userID uuid.UUID, kind domain.ContentKind) ([]domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Document
	for _, d := range f.docs {
		if d.UserID == userID && d.Kind == kind {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeDocumentStore) Delete(ctx context.Context, userID, docID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[docID]
	if !ok || d.UserID != userID {
		return 0, nil
	}
	delete(f.docs, docID)
	return 1, nil
}

type fakeBoardStore struct {
	mu     sync.Mutex
	boards map[uuid.UUID]*domain.Board
}

func newFakeBoardStore() *fakeBoardStore {
	return &fakeBoardStore{boards: make(map[uuid.UUID]*domain.Board)}
}

func (f *fakeBoardStore) Get(ctx context.Context, userID uuid.UUID) (*domain.Board, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.boards[userID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return b, nil
}

func (f *fakeBoardStore) Upsert(ctx context.Context, userID uuid.UUID, payload json.RawMessage) (*domain.Board, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := &domain.Board{UserID: userID, Payload: payload, UpdatedAt: time.Now()}
	f.boards[userID] = b
	return b, nil
}

type fakeExportStore struct {
	mu      sync.Mutex
	exports []domain.Export
}

func newFakeExportStore() *fakeExportStore {
	return &fakeExportStore{}
}

func (f *fakeExportStore) Create(ctx context.Context, userID, documentID uuid.UUID, key, url string) (*domain.Export, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := domain.Export{
		ID:         uuid.New(),
		UserID:     userID,
		DocumentID: documentID,
		Key:        key,
		URL:        url,
		CreatedAt:  time.Now(),
	}
	f.exports = append(f.exports, e)
	return &e, nil
}

func (f *fakeExportStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Export, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Export
	for _, e := range f.exports {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}
