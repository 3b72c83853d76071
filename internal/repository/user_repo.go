package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/sommetlabs/sommet/internal/domain"
)

// UserRepo provides data access for the users table.
type UserRepo struct {
	db DBTX
}

// NewUserRepo creates a UserRepo backed by the given database connection
// (pool or transaction).
func NewUserRepo(db DBTX) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `id, email, password_hash, name, stripe_customer_id,
	subscription_id, created_at, updated_at`

func scanUser(row interface{ Scan(dest ...any) error }) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name,
		&u.StripeCustomerID, &u.SubscriptionID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user and returns the stored record.
func (r *UserRepo) Create(ctx context.Context, email, passwordHash, name string) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx,
		`INSERT INTO users (id, email, password_hash, name)
		 VALUES (gen_random_uuid(), $1, $2, $3)
		 RETURNING `+userColumns,
		email, passwordHash, name,
	))
}

// GetByID returns a user by primary key.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByEmail returns a user by email (stored lowercased).
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// GetByStripeCustomerID returns the user owning a Stripe customer.
func (r *UserRepo) GetByStripeCustomerID(ctx context.Context, customerID string) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE stripe_customer_id = $1`, customerID))
}

// SetStripeCustomerID stores the Stripe customer created for a user.
func (r *UserRepo) SetStripeCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE users SET stripe_customer_id = $1, updated_at = NOW() WHERE id = $2`,
		customerID, userID)
	return err
}

// SetSubscriptionID stores (or clears) the Stripe subscription attached to
// a user. Empty string clears it (plan downgrade).
func (r *UserRepo) SetSubscriptionID(ctx context.Context, userID uuid.UUID, subscriptionID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE users SET subscription_id = $1, updated_at = NOW() WHERE id = $2`,
		subscriptionID, userID)
	return err
}
