package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/sommetlabs/sommet/internal/domain"
	"github.com/sommetlabs/sommet/internal/email"
	"github.com/sommetlabs/sommet/internal/eventbus"
	"github.com/sommetlabs/sommet/internal/metrics"
	"github.com/sommetlabs/sommet/internal/repository"
)

// TransitionResult reports what a plan transition attempt did.
type TransitionResult string

const (
	// TransitionApplied means the event was recorded and the entitlement
	// record was overwritten with the new plan's counters.
	TransitionApplied TransitionResult = "applied"

	// TransitionReplayed means the event ID was already recorded; the
	// entitlement record was left untouched.
	TransitionReplayed TransitionResult = "replayed"
)

// PlanTransitionService applies plan changes delivered by billing webhooks.
//
// Replay safety comes from recording the processed event ID and overwriting
// the entitlement record in ONE transaction: a redelivered event either
// finds its ID recorded and does nothing, or the whole transition happens
// again atomically. Counters are reset to the new plan's full quota, never
// merged with remaining balances.
type PlanTransitionService interface {
	// ApplyPlanChange transitions a user to a new plan, keyed by the
	// billing provider's unique event ID.
	ApplyPlanChange(ctx context.Context, eventID, eventType string, user *domain.User, plan domain.Plan) (TransitionResult, error)
}

type planTransitionService struct {
	tx     repository.TxRunner
	bus    *eventbus.Bus
	email  email.EmailService // nil disables confirmation email
	logger *slog.Logger
}

// NewPlanTransitionService creates a new PlanTransitionService.
func NewPlanTransitionService(tx repository.TxRunner, bus *eventbus.Bus, emailSvc email.EmailService, logger *slog.Logger) PlanTransitionService {
	return &planTransitionService{
		tx:     tx,
		bus:    bus,
		email:  emailSvc,
		logger: logger,
	}
}

// ApplyPlanChange applies one plan transition.
//
// Flow (single transaction):
// 1. Record the event ID; a conflict means this delivery is a replay
// 2. Overwrite the entitlement record with the new plan's full counters
//
// After commit: publish a plan-changed event and send a confirmation
// email, both best effort.
func (s *planTransitionService) ApplyPlanChange(ctx context.Context, eventID, eventType string, user *domain.User, plan domain.Plan) (TransitionResult, error) {
	const op = "plan_transition.apply"

	if eventID == "" {
		return "", domain.Invalid(op, "Event ID is required")
	}
	if !plan.Valid() {
		return "", domain.Invalid(op, "Unknown plan")
	}

	result := TransitionReplayed

	err := s.tx.WithTx(ctx, func(tx repository.DBTX) error {
		events := repository.NewBillingEventRepo(tx)
		entitlements := repository.NewEntitlementRepo(tx)

		firstDelivery, err := events.MarkProcessed(ctx, eventID, eventType, user.ID, plan)
		if err != nil {
			return err
		}
		if !firstDelivery {
			return nil
		}

		if _, err := entitlements.Initialize(ctx, user.ID, plan); err != nil {
			return err
		}

		result = TransitionApplied
		return nil
	})
	if err != nil {
		return "", domain.Internal(err, op, "Failed to apply plan change")
	}

	if result == TransitionReplayed {
		s.logger.Info("plan change replayed",
			"event_id", eventID,
			"user_id", user.ID,
		)
		return result, nil
	}

	metrics.PlanChanges.WithLabelValues(string(plan)).Inc()
	s.logger.Info("plan change applied",
		"event_id", eventID,
		"event_type", eventType,
		"user_id", user.ID,
		"plan", plan,
	)

	if s.bus != nil {
		s.bus.Publish(eventbus.Event{
			Type:      eventbus.PlanChanged,
			UserID:    user.ID,
			Plan:      plan,
			Timestamp: time.Now(),
		})
	}

	if s.email != nil {
		go func(to, name string) {
			emailCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := s.email.SendPlanChangedEmail(emailCtx, to, name, string(plan)); err != nil {
				s.logger.Warn("failed to send plan change email", "email", to, "error", err)
			}
		}(user.Email, user.DisplayName())
	}

	return result, nil
}
