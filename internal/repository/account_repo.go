package repository

import (
	"context"

	"github.com/sommetlabs/sommet/internal/domain"
)

// AccountRepo provisions new accounts. The user row and its entitlement
// record are written in one transaction so a failure on either side leaves
// neither behind; a half-created account (user without entitlements) would
// reject every retry as a duplicate email while failing every credit check.
type AccountRepo struct {
	tx TxRunner
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(tx TxRunner) *AccountRepo {
	return &AccountRepo{tx: tx}
}

// CreateAccount inserts the user row and initializes its entitlement record
// for the given plan atomically. Unique violations on the email column pass
// through unwrapped so callers can detect registration races.
func (r *AccountRepo) CreateAccount(ctx context.Context, email, passwordHash, name string, plan domain.Plan) (*domain.User, error) {
	var user *domain.User

	err := r.tx.WithTx(ctx, func(tx DBTX) error {
		u, err := NewUserRepo(tx).Create(ctx, email, passwordHash, name)
		if err != nil {
			return err
		}

		if _, err := NewEntitlementRepo(tx).Initialize(ctx, u.ID, plan); err != nil {
			return err
		}

		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}
