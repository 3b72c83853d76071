package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sommetlabs/sommet/internal/domain"
	"github.com/sommetlabs/sommet/internal/eventbus"
	"github.com/sommetlabs/sommet/internal/metrics"
	"github.com/sommetlabs/sommet/internal/repository"
)

// EntitlementService owns the credit consumption protocol and the feature
// gate. Every metered action flows through Consume before any expensive
// work starts; there is no other path to a decrement.
//
// Credits are never refunded. If downstream work fails after Consume
// allowed it, the credit stays spent. Keeping the policy in one place
// means a refund policy change is one edit, not a hunt through callers.
type EntitlementService interface {
	// Consume runs the check-and-decrement protocol for a metered action.
	//
	// Outcomes:
	// - Allowed (with remaining count): the credit was atomically consumed
	// - Allowed + Unlimited: the plan never decrements this action
	// - error with domain.EPAYMENT: the quota is exhausted
	//
	// Exhaustion is an expected condition, not an application failure.
	Consume(ctx context.Context, userID uuid.UUID, action domain.CreditAction) (domain.ConsumeOutcome, error)

	// ConsumeExport runs the same protocol for the PDF export meter, which
	// counts up toward a cap instead of down toward zero.
	ConsumeExport(ctx context.Context, userID uuid.UUID) (domain.ConsumeOutcome, error)

	// GetUsage returns the user's current plan, remaining credits, and
	// feature access for the credit display. Computed fresh per call so a
	// just-applied plan change is visible immediately.
	GetUsage(ctx context.Context, userID uuid.UUID) (*domain.EntitlementUsage, error)

	// Plan returns the user's current plan.
	Plan(ctx context.Context, userID uuid.UUID) (domain.Plan, error)

	// RequireFeature checks the feature gate for the user's plan.
	// Returns nil if unlocked, or a domain.EFORBIDDEN error naming the
	// plan that unlocks the feature. Unknown features fail closed.
	RequireFeature(ctx context.Context, userID uuid.UUID, feature domain.Feature) error
}

type entitlementService struct {
	entitlements EntitlementStore
	bus          *eventbus.Bus
	logger       *slog.Logger
}

// NewEntitlementService creates a new EntitlementService.
func NewEntitlementService(entitlements EntitlementStore, bus *eventbus.Bus, logger *slog.Logger) EntitlementService {
	return &entitlementService{
		entitlements: entitlements,
		bus:          bus,
		logger:       logger,
	}
}

// Consume runs the credit consumption protocol.
//
// Protocol:
// 1. Resolve the user's plan from the entitlement record
// 2. If the plan marks the action unlimited, allow without touching counters
// 3. Otherwise issue a single conditional decrement; the check and the
//    decrement are one statement, so concurrent requests cannot both pass
//    on the last credit
func (s *entitlementService) Consume(ctx context.Context, userID uuid.UUID, action domain.CreditAction) (domain.ConsumeOutcome, error) {
	const op = "entitlement.consume"

	if !action.Valid() {
		return domain.ConsumeOutcome{}, domain.Invalid(op, "Unknown action")
	}

	ent, err := s.entitlements.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ConsumeOutcome{}, domain.NotFound(op, "entitlement", userID.String())
		}
		return domain.ConsumeOutcome{}, domain.Internal(err, op, "Failed to load entitlements")
	}

	limits := domain.Limits(ent.Plan)
	if _, unlimited := limits.Quota(action); unlimited {
		s.publishConsumed(userID, ent.Plan, action)
		metrics.CreditsConsumed.WithLabelValues(string(action), string(ent.Plan)).Inc()
		return domain.ConsumeOutcome{Allowed: true, Unlimited: true}, nil
	}

	remaining, err := s.entitlements.DecrementIfAvailable(ctx, userID, action)
	if err != nil {
		if errors.Is(err, repository.ErrQuotaExhausted) {
			metrics.QuotaExhaustions.WithLabelValues(string(action), string(ent.Plan)).Inc()
			s.logger.Info("quota exhausted",
				"user_id", userID,
				"plan", ent.Plan,
				"action", action,
			)
			return domain.ConsumeOutcome{}, domain.QuotaExhausted(op, action, ent.Plan)
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ConsumeOutcome{}, domain.NotFound(op, "entitlement", userID.String())
		}
		return domain.ConsumeOutcome{}, domain.Internal(err, op, "Failed to consume credit")
	}

	metrics.CreditsConsumed.WithLabelValues(string(action), string(ent.Plan)).Inc()
	s.logger.Info("credit consumed",
		"user_id", userID,
		"plan", ent.Plan,
		"action", action,
		"remaining", remaining,
	)
	s.publishConsumed(userID, ent.Plan, action)

	return domain.ConsumeOutcome{Allowed: true, Remaining: remaining}, nil
}

// ConsumeExport meters one PDF export against the plan's export cap.
func (s *entitlementService) ConsumeExport(ctx context.Context, userID uuid.UUID) (domain.ConsumeOutcome, error) {
	const op = "entitlement.consume_export"

	ent, err := s.entitlements.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ConsumeOutcome{}, domain.NotFound(op, "entitlement", userID.String())
		}
		return domain.ConsumeOutcome{}, domain.Internal(err, op, "Failed to load entitlements")
	}

	limits := domain.Limits(ent.Plan)
	if limits.UnlimitedExports {
		// The meter still counts for display, but never blocks.
		if _, err := s.entitlements.IncrementExports(ctx, userID); err != nil {
			return domain.ConsumeOutcome{}, domain.Internal(err, op, "Failed to record export")
		}
		metrics.PDFExports.Inc()
		s.publishConsumed(userID, ent.Plan, "")
		return domain.ConsumeOutcome{Allowed: true, Unlimited: true}, nil
	}

	used, err := s.entitlements.IncrementExportsIfBelow(ctx, userID, limits.ExportCap)
	if err != nil {
		if errors.Is(err, repository.ErrQuotaExhausted) {
			metrics.QuotaExhaustions.WithLabelValues("export", string(ent.Plan)).Inc()
			s.logger.Info("export cap reached",
				"user_id", userID,
				"plan", ent.Plan,
				"cap", limits.ExportCap,
			)
			return domain.ConsumeOutcome{}, domain.Errorf(domain.EPAYMENT, op,
				"You have used all %d PDF exports on the %s plan. Upgrade to continue.", limits.ExportCap, ent.Plan)
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ConsumeOutcome{}, domain.NotFound(op, "entitlement", userID.String())
		}
		return domain.ConsumeOutcome{}, domain.Internal(err, op, "Failed to record export")
	}

	metrics.PDFExports.Inc()
	s.logger.Info("export recorded",
		"user_id", userID,
		"plan", ent.Plan,
		"used", used,
		"cap", limits.ExportCap,
	)
	s.publishConsumed(userID, ent.Plan, "")

	return domain.ConsumeOutcome{Allowed: true, Remaining: limits.ExportCap - used}, nil
}

// GetUsage returns the usage read model for the credit display.
func (s *entitlementService) GetUsage(ctx context.Context, userID uuid.UUID) (*domain.EntitlementUsage, error) {
	const op = "entitlement.get_usage"

	ent, err := s.entitlements.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound(op, "entitlement", userID.String())
		}
		return nil, domain.Internal(err, op, "Failed to load entitlements")
	}

	return domain.UsageFor(ent), nil
}

// Plan returns the user's current plan.
func (s *entitlementService) Plan(ctx context.Context, userID uuid.UUID) (domain.Plan, error) {
	const op = "entitlement.plan"

	ent, err := s.entitlements.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.NotFound(op, "entitlement", userID.String())
		}
		return "", domain.Internal(err, op, "Failed to load entitlements")
	}

	return ent.Plan, nil
}

// RequireFeature checks the feature gate.
func (s *entitlementService) RequireFeature(ctx context.Context, userID uuid.UUID, feature domain.Feature) error {
	const op = "entitlement.require_feature"

	plan, err := s.Plan(ctx, userID)
	if err != nil {
		return err
	}

	if !domain.Unlocked(plan, feature) {
		return domain.FeatureLocked(op, feature, domain.UnlockedBy(feature))
	}

	return nil
}

// publishConsumed notifies subscribers that the user's entitlements
// changed. Fire-and-forget: the bus never blocks the mutation.
func (s *entitlementService) publishConsumed(userID uuid.UUID, plan domain.Plan, action domain.CreditAction) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{
		Type:      eventbus.EntitlementsChanged,
		UserID:    userID,
		Plan:      plan,
		Action:    action,
		Timestamp: time.Now(),
	})
}
