package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sommetlabs/sommet/internal/domain"
)

func newBoardFixture(t *testing.T, plan domain.Plan) (BoardService, uuid.UUID) {
	t.Helper()
	entStore := newFakeEntitlementStore()
	userID := uuid.New()
	_, err := entStore.Initialize(context.Background(), userID, plan)
	require.NoError(t, err)

	entSvc := NewEntitlementService(entStore, nil, testLogger())
	return NewBoardService(newFakeBoardStore(), entSvc, testLogger()), userID
}

func TestBoardService_GetBoard(t *testing.T) {
	ctx := context.Background()

	t.Run("unsaved board comes back empty, not missing", func(t *testing.T) {
		svc, userID := newBoardFixture(t, domain.PlanBuilder)

		board, err := svc.GetBoard(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, userID, board.UserID)
		assert.JSONEq(t, `{"columns":[]}`, string(board.Payload))
	})

	t.Run("kanban is gated", func(t *testing.T) {
		for _, plan := range []domain.Plan{domain.PlanBase, domain.PlanExplorer} {
			svc, userID := newBoardFixture(t, plan)

			_, err := svc.GetBoard(ctx, userID)
			require.Error(t, err, "plan %s", plan)
			assert.Equal(t, domain.EFORBIDDEN, domain.ErrorCode(err))
		}
	})
}

func TestBoardService_SaveBoard(t *testing.T) {
	ctx := context.Background()
	payload := json.RawMessage(`{"columns":[{"name":"Doing","cards":[{"title":"Ship MVP"}]}]}`)

	t.Run("round trips the document", func(t *testing.T) {
		svc, userID := newBoardFixture(t, domain.PlanBuilder)

		saved, err := svc.SaveBoard(ctx, userID, payload)
		require.NoError(t, err)
		assert.JSONEq(t, string(payload), string(saved.Payload))

		got, err := svc.GetBoard(ctx, userID)
		require.NoError(t, err)
		assert.JSONEq(t, string(payload), string(got.Payload))
	})

	t.Run("save is gated too", func(t *testing.T) {
		svc, userID := newBoardFixture(t, domain.PlanExplorer)

		_, err := svc.SaveBoard(ctx, userID, payload)
		require.Error(t, err)
		assert.Equal(t, domain.EFORBIDDEN, domain.ErrorCode(err))
	})

	t.Run("rejects invalid payloads", func(t *testing.T) {
		svc, userID := newBoardFixture(t, domain.PlanBuilder)

		tests := []struct {
			name    string
			payload json.RawMessage
		}{
			{"empty", nil},
			{"not json", json.RawMessage(`{"columns":`)},
			{"too large", json.RawMessage(`"` + strings.Repeat("x", MaxBoardBytes) + `"`)},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := svc.SaveBoard(ctx, userID, tt.payload)
				require.Error(t, err)
				assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
			})
		}
	})
}
