package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sommetlabs/sommet/internal/domain"
)

func TestBillingEventRepo_MarkProcessed_FirstDelivery(t *testing.T) {
	db := new(mockDBTX)
	repo := NewBillingEventRepo(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	applied, err := repo.MarkProcessed(context.Background(), "evt_123", "checkout.session.completed", uuid.New(), domain.PlanExplorer)
	require.NoError(t, err)
	assert.True(t, applied)
	db.AssertExpectations(t)
}

func TestBillingEventRepo_MarkProcessed_Replay(t *testing.T) {
	db := new(mockDBTX)
	repo := NewBillingEventRepo(db)

	// ON CONFLICT DO NOTHING: a replayed event ID affects zero rows.
	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 0"), nil)

	applied, err := repo.MarkProcessed(context.Background(), "evt_123", "checkout.session.completed", uuid.New(), domain.PlanExplorer)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestBillingEventRepo_MarkProcessed_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewBillingEventRepo(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("connection refused"))

	_, err := repo.MarkProcessed(context.Background(), "evt_500", "customer.subscription.updated", uuid.New(), domain.PlanBuilder)
	require.Error(t, err)
}

func TestBillingEventRepo_IsProcessed(t *testing.T) {
	db := new(mockDBTX)
	repo := NewBillingEventRepo(db)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{
			scanFn: func(dest ...any) error {
				*dest[0].(*bool) = true
				return nil
			},
		})

	processed, err := repo.IsProcessed(context.Background(), "evt_123")
	require.NoError(t, err)
	assert.True(t, processed)
}
