package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sommetlabs/sommet/internal/auth"
	"github.com/sommetlabs/sommet/internal/domain"
)

// stubEntitlementService serves a fixed usage read model.
type stubEntitlementService struct {
	usage *domain.EntitlementUsage
	err   error
}

func (s *stubEntitlementService) Consume(ctx context.Context, userID uuid.UUID, action domain.CreditAction) (domain.ConsumeOutcome, error) {
	return domain.ConsumeOutcome{}, nil
}

func (s *stubEntitlementService) ConsumeExport(ctx context.Context, userID uuid.UUID) (domain.ConsumeOutcome, error) {
	return domain.ConsumeOutcome{}, nil
}

func (s *stubEntitlementService) GetUsage(ctx context.Context, userID uuid.UUID) (*domain.EntitlementUsage, error) {
	return s.usage, s.err
}

func (s *stubEntitlementService) Plan(ctx context.Context, userID uuid.UUID) (domain.Plan, error) {
	return s.usage.Plan, nil
}

func (s *stubEntitlementService) RequireFeature(ctx context.Context, userID uuid.UUID, feature domain.Feature) error {
	return nil
}

func TestEntitlementHandler_GetUsage(t *testing.T) {
	t.Run("requires authentication", func(t *testing.T) {
		h := NewEntitlementHandler(&stubEntitlementService{}, testLogger())

		req := httptest.NewRequest("GET", "/api/entitlements", nil)
		rec := httptest.NewRecorder()
		h.GetUsage(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("returns the usage read model", func(t *testing.T) {
		remaining := 12
		svc := &stubEntitlementService{
			usage: &domain.EntitlementUsage{
				Plan:                domain.PlanExplorer,
				GenerationRemaining: &remaining,
				Features: map[domain.Feature]bool{
					domain.FeatureBlueprint: true,
					domain.FeatureKanban:    false,
				},
			},
		}
		h := NewEntitlementHandler(svc, testLogger())

		user := &domain.User{ID: uuid.New()}
		req := httptest.NewRequest("GET", "/api/entitlements", nil)
		req = req.WithContext(auth.SetUser(req.Context(), user))
		rec := httptest.NewRecorder()
		h.GetUsage(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Plan                string          `json:"plan"`
			GenerationRemaining *int            `json:"generation_remaining"`
			Features            map[string]bool `json:"features"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "explorer", body.Plan)
		require.NotNil(t, body.GenerationRemaining)
		assert.Equal(t, 12, *body.GenerationRemaining)
		assert.True(t, body.Features["blueprint"])
		assert.False(t, body.Features["kanban"])
	})
}
