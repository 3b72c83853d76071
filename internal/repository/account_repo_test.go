package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sommetlabs/sommet/internal/domain"
)

// stubTxRunner hands fn the scripted DBTX; any error from fn aborts the
// whole account creation, as a real transaction rollback would.
type stubTxRunner struct {
	db DBTX
}

func (s *stubTxRunner) WithTx(ctx context.Context, fn func(tx DBTX) error) error {
	return fn(s.db)
}

func userScan(id uuid.UUID, email string) func(dest ...any) error {
	return func(dest ...any) error {
		*dest[0].(*uuid.UUID) = id
		*dest[1].(*string) = email
		*dest[2].(*string) = "hash"
		*dest[3].(*string) = "Marie"
		*dest[4].(*string) = ""
		*dest[5].(*string) = ""
		*dest[6].(*time.Time) = time.Now()
		*dest[7].(*time.Time) = time.Now()
		return nil
	}
}

func TestAccountRepo_CreateAccount(t *testing.T) {
	userID := uuid.New()

	db := new(mockDBTX)
	repo := NewAccountRepo(&stubTxRunner{db: db})

	// First query inserts the user, second initializes entitlements.
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFn: userScan(userID, "marie@example.com")}).Once()
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFn: func(dest ...any) error {
			*dest[0].(*uuid.UUID) = userID
			*dest[1].(*domain.Plan) = domain.PlanBase
			*dest[2].(*int) = 3
			*dest[3].(*int) = 1
			*dest[4].(*int) = 0
			*dest[5].(*int) = 0
			*dest[6].(*time.Time) = time.Now()
			return nil
		}}).Once()

	user, err := repo.CreateAccount(context.Background(), "marie@example.com", "hash", "Marie", domain.PlanBase)
	require.NoError(t, err)
	assert.Equal(t, userID, user.ID)
	assert.Equal(t, "marie@example.com", user.Email)
	db.AssertExpectations(t)
}

func TestAccountRepo_CreateAccount_EntitlementFailureAborts(t *testing.T) {
	insertErr := errors.New("entitlements insert failed")

	db := new(mockDBTX)
	repo := NewAccountRepo(&stubTxRunner{db: db})

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFn: userScan(uuid.New(), "marie@example.com")}).Once()
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: insertErr}).Once()

	user, err := repo.CreateAccount(context.Background(), "marie@example.com", "hash", "Marie", domain.PlanBase)
	require.ErrorIs(t, err, insertErr)
	assert.Nil(t, user)
	db.AssertExpectations(t)
}

func TestAccountRepo_CreateAccount_UniqueViolationPassesThrough(t *testing.T) {
	db := new(mockDBTX)
	repo := NewAccountRepo(&stubTxRunner{db: db})

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: &pgconn.PgError{Code: "23505"}}).Once()

	user, err := repo.CreateAccount(context.Background(), "marie@example.com", "hash", "Marie", domain.PlanBase)
	require.Error(t, err)
	assert.Nil(t, user)
	assert.True(t, IsUniqueViolation(err))
	db.AssertExpectations(t)
}
