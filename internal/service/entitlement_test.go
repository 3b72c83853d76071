package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sommetlabs/sommet/internal/domain"
	"github.com/sommetlabs/sommet/internal/eventbus"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEntitlementService_Consume(t *testing.T) {
	ctx := context.Background()

	t.Run("decrements and returns remaining", func(t *testing.T) {
		store := newFakeEntitlementStore()
		userID := uuid.New()
		_, err := store.Initialize(ctx, userID, domain.PlanExplorer)
		require.NoError(t, err)

		svc := NewEntitlementService(store, nil, testLogger())

		outcome, err := svc.Consume(ctx, userID, domain.ActionGeneration)
		require.NoError(t, err)
		assert.True(t, outcome.Allowed)
		assert.False(t, outcome.Unlimited)
		assert.Equal(t, 19, outcome.Remaining)
	})

	t.Run("unlimited plan never decrements", func(t *testing.T) {
		store := newFakeEntitlementStore()
		userID := uuid.New()
		_, err := store.Initialize(ctx, userID, domain.PlanBuilder)
		require.NoError(t, err)

		svc := NewEntitlementService(store, nil, testLogger())

		for i := 0; i < 5; i++ {
			outcome, err := svc.Consume(ctx, userID, domain.ActionBlueprint)
			require.NoError(t, err)
			assert.True(t, outcome.Allowed)
			assert.True(t, outcome.Unlimited)
		}
	})

	t.Run("exhausted quota returns payment error", func(t *testing.T) {
		store := newFakeEntitlementStore()
		userID := uuid.New()
		_, err := store.Initialize(ctx, userID, domain.PlanBase)
		require.NoError(t, err)

		svc := NewEntitlementService(store, nil, testLogger())

		// Base plan has 1 analysis credit
		outcome, err := svc.Consume(ctx, userID, domain.ActionAnalysis)
		require.NoError(t, err)
		assert.Equal(t, 0, outcome.Remaining)

		_, err = svc.Consume(ctx, userID, domain.ActionAnalysis)
		require.Error(t, err)
		assert.Equal(t, domain.EPAYMENT, domain.ErrorCode(err))
		assert.True(t, domain.IsQuotaExhausted(err))
	})

	t.Run("base plan counts three generations down to exhaustion", func(t *testing.T) {
		store := newFakeEntitlementStore()
		userID := uuid.New()
		_, err := store.Initialize(ctx, userID, domain.PlanBase)
		require.NoError(t, err)

		svc := NewEntitlementService(store, nil, testLogger())

		for _, want := range []int{2, 1, 0} {
			outcome, err := svc.Consume(ctx, userID, domain.ActionGeneration)
			require.NoError(t, err)
			assert.True(t, outcome.Allowed)
			assert.Equal(t, want, outcome.Remaining)
		}

		_, err = svc.Consume(ctx, userID, domain.ActionGeneration)
		require.Error(t, err)
		assert.True(t, domain.IsQuotaExhausted(err))
	})

	t.Run("concurrent consumers race for the last credit", func(t *testing.T) {
		store := newFakeEntitlementStore()
		userID := uuid.New()
		_, err := store.Initialize(ctx, userID, domain.PlanBase)
		require.NoError(t, err)

		svc := NewEntitlementService(store, nil, testLogger())

		// Base plan has exactly 1 analysis credit. The store's conditional
		// decrement admits only one of the two simultaneous consumers.
		errs := make(chan error, 2)
		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.Consume(ctx, userID, domain.ActionAnalysis)
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		var allowed, exhausted int
		for err := range errs {
			if err == nil {
				allowed++
				continue
			}
			require.True(t, domain.IsQuotaExhausted(err))
			exhausted++
		}
		assert.Equal(t, 1, allowed)
		assert.Equal(t, 1, exhausted)

		ent, err := store.Get(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, 0, ent.AnalysisRemaining)
	})

	t.Run("zero-quota action is exhausted from the start", func(t *testing.T) {
		store := newFakeEntitlementStore()
		userID := uuid.New()
		_, err := store.Initialize(ctx, userID, domain.PlanBase)
		require.NoError(t, err)

		svc := NewEntitlementService(store, nil, testLogger())

		// Base plan has 0 blueprint credits
		_, err = svc.Consume(ctx, userID, domain.ActionBlueprint)
		require.Error(t, err)
		assert.Equal(t, domain.EPAYMENT, domain.ErrorCode(err))
	})

	t.Run("missing entitlement record is not found", func(t *testing.T) {
		svc := NewEntitlementService(newFakeEntitlementStore(), nil, testLogger())

		_, err := svc.Consume(ctx, uuid.New(), domain.ActionGeneration)
		require.Error(t, err)
		assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
	})

	t.Run("unknown action is invalid", func(t *testing.T) {
		svc := NewEntitlementService(newFakeEntitlementStore(), nil, testLogger())

		_, err := svc.Consume(ctx, uuid.New(), domain.CreditAction("teleportation"))
		require.Error(t, err)
		assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	})

	t.Run("publishes entitlements changed event", func(t *testing.T) {
		store := newFakeEntitlementStore()
		userID := uuid.New()
		_, err := store.Initialize(ctx, userID, domain.PlanExplorer)
		require.NoError(t, err)

		bus := eventbus.New()
		ch := bus.Subscribe(eventbus.EntitlementsChanged)
		defer bus.Unsubscribe(ch)

		svc := NewEntitlementService(store, bus, testLogger())

		_, err = svc.Consume(ctx, userID, domain.ActionGeneration)
		require.NoError(t, err)

		event := <-ch
		assert.Equal(t, eventbus.EntitlementsChanged, event.Type)
		assert.Equal(t, userID, event.UserID)
		assert.Equal(t, domain.ActionGeneration, event.Action)
	})
}

func TestEntitlementService_ConsumeExport(t *testing.T) {
	ctx := context.Background()

	t.Run("counts up to the cap then blocks", func(t *testing.T) {
		store := newFakeEntitlementStore()
		userID := uuid.New()
		_, err := store.Initialize(ctx, userID, domain.PlanBase)
		require.NoError(t, err)

		svc := NewEntitlementService(store, nil, testLogger())

		// Base plan caps exports at 1
		outcome, err := svc.ConsumeExport(ctx, userID)
		require.NoError(t, err)
		assert.True(t, outcome.Allowed)
		assert.Equal(t, 0, outcome.Remaining)

		_, err = svc.ConsumeExport(ctx, userID)
		require.Error(t, err)
		assert.Equal(t, domain.EPAYMENT, domain.ErrorCode(err))
	})

	t.Run("unlimited exports never block", func(t *testing.T) {
		store := newFakeEntitlementStore()
		userID := uuid.New()
		_, err := store.Initialize(ctx, userID, domain.PlanBuilder)
		require.NoError(t, err)

		svc := NewEntitlementService(store, nil, testLogger())

		for i := 0; i < 20; i++ {
			outcome, err := svc.ConsumeExport(ctx, userID)
			require.NoError(t, err)
			assert.True(t, outcome.Unlimited)
		}

		// The meter still counts for display
		ent, err := store.Get(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, 20, ent.PDFExportsUsed)
	})
}

func TestEntitlementService_GetUsage(t *testing.T) {
	ctx := context.Background()

	t.Run("reflects consumption immediately", func(t *testing.T) {
		store := newFakeEntitlementStore()
		userID := uuid.New()
		_, err := store.Initialize(ctx, userID, domain.PlanExplorer)
		require.NoError(t, err)

		svc := NewEntitlementService(store, nil, testLogger())

		_, err = svc.Consume(ctx, userID, domain.ActionGeneration)
		require.NoError(t, err)

		usage, err := svc.GetUsage(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, domain.PlanExplorer, usage.Plan)
		require.NotNil(t, usage.GenerationRemaining)
		assert.Equal(t, 19, *usage.GenerationRemaining)
		assert.True(t, usage.Features[domain.FeatureBlueprint])
		assert.False(t, usage.Features[domain.FeatureKanban])
	})

	t.Run("builder plan reports unlimited as nil", func(t *testing.T) {
		store := newFakeEntitlementStore()
		userID := uuid.New()
		_, err := store.Initialize(ctx, userID, domain.PlanBuilder)
		require.NoError(t, err)

		svc := NewEntitlementService(store, nil, testLogger())

		usage, err := svc.GetUsage(ctx, userID)
		require.NoError(t, err)
		assert.Nil(t, usage.GenerationRemaining)
		assert.Nil(t, usage.AnalysisRemaining)
		assert.Nil(t, usage.BlueprintRemaining)
		assert.Nil(t, usage.PDFExportCap)
	})
}

func TestEntitlementService_RequireFeature(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		plan     domain.Plan
		feature  domain.Feature
		wantCode string
	}{
		{"base cannot use kanban", domain.PlanBase, domain.FeatureKanban, domain.EFORBIDDEN},
		{"base cannot use blueprint", domain.PlanBase, domain.FeatureBlueprint, domain.EFORBIDDEN},
		{"explorer can use blueprint", domain.PlanExplorer, domain.FeatureBlueprint, ""},
		{"explorer cannot use kanban", domain.PlanExplorer, domain.FeatureKanban, domain.EFORBIDDEN},
		{"builder can use kanban", domain.PlanBuilder, domain.FeatureKanban, ""},
		{"unknown feature fails closed", domain.PlanBuilder, domain.Feature("time_travel"), domain.EFORBIDDEN},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeEntitlementStore()
			userID := uuid.New()
			_, err := store.Initialize(ctx, userID, tt.plan)
			require.NoError(t, err)

			svc := NewEntitlementService(store, nil, testLogger())

			err = svc.RequireFeature(ctx, userID, tt.feature)
			if tt.wantCode == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, domain.ErrorCode(err))
			}
		})
	}
}
