// Package handler contains HTTP handlers for the Sommet application.
//
// This file implements the Stripe webhook handler that applies plan
// transitions.
//
// Route:
//   - POST /webhooks/stripe -> HandleStripeWebhook
//
// This route is PUBLIC (no auth middleware) because Stripe calls it
// directly. Authentication is via the Stripe webhook signature. Replayed
// deliveries are absorbed by the plan transition service, which records
// every applied event ID.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/stripe/stripe-go/v79"

	"github.com/sommetlabs/sommet/internal/billing"
	"github.com/sommetlabs/sommet/internal/domain"
	"github.com/sommetlabs/sommet/internal/metrics"
	"github.com/sommetlabs/sommet/internal/service"
)

// errWebhookIgnored marks events that carry no applicable plan transition.
// Stripe still gets a 200 for these; retrying would not change anything.
var errWebhookIgnored = errors.New("webhook event ignored")

// WebhookHandler handles incoming webhook events from Stripe.
type WebhookHandler struct {
	billing     billing.Service
	userService service.UserService
	transitions service.PlanTransitionService
	logger      *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
// billingService may be nil when Stripe is not configured.
func NewWebhookHandler(billingService billing.Service, userService service.UserService, transitions service.PlanTransitionService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		billing:     billingService,
		userService: userService,
		transitions: transitions,
		logger:      logger,
	}
}

// HandleStripeWebhook processes incoming Stripe webhook events.
//
// Response codes drive Stripe's redelivery:
//   - 200: applied, replayed, or not applicable; do not redeliver
//   - 400: bad signature or malformed payload; redelivery cannot help
//   - 500: persistence failed after a valid signature; redeliver later
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.billing == nil {
		h.logger.Warn("stripe webhook received but billing is not configured")
		w.WriteHeader(http.StatusOK)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 65536))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	event, err := h.billing.VerifyWebhookSignature(body, signature)
	if err != nil {
		metrics.WebhookSignatureFailures.Inc()
		h.logger.Warn("webhook signature verification failed", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.logger.Info("stripe webhook received", "type", event.Type, "id", event.ID)

	var result service.TransitionResult
	switch event.Type {
	case "checkout.session.completed":
		result, err = h.handleCheckoutCompleted(r, event)
	case "customer.subscription.updated":
		result, err = h.handleSubscriptionUpdated(r, event)
	case "customer.subscription.deleted":
		result, err = h.handleSubscriptionDeleted(r, event)
	default:
		h.logger.Debug("unhandled webhook event type", "type", event.Type)
		metrics.WebhookEvents.WithLabelValues(string(event.Type), "ignored").Inc()
		w.WriteHeader(http.StatusOK)
		return
	}

	if err != nil {
		if errors.Is(err, errWebhookIgnored) {
			metrics.WebhookEvents.WithLabelValues(string(event.Type), "ignored").Inc()
			w.WriteHeader(http.StatusOK)
			return
		}
		metrics.WebhookEvents.WithLabelValues(string(event.Type), "error").Inc()
		h.logger.Error("webhook processing failed", "type", event.Type, "id", event.ID, "error", err)
		// Signature was valid; a 5xx makes Stripe redeliver.
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	metrics.WebhookEvents.WithLabelValues(string(event.Type), string(result)).Inc()
	w.WriteHeader(http.StatusOK)
}

// handleCheckoutCompleted applies the purchased plan once payment is
// confirmed. The plan was stamped into the session metadata at checkout.
func (h *WebhookHandler) handleCheckoutCompleted(r *http.Request, event stripe.Event) (service.TransitionResult, error) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return "", err
	}

	if sess.Customer == nil {
		h.logger.Warn("checkout session missing customer", "session_id", sess.ID)
		return "", errWebhookIgnored
	}

	plan := domain.Plan(sess.Metadata["plan"])
	if !plan.Valid() || plan == domain.PlanBase {
		h.logger.Warn("checkout session without a purchasable plan",
			"session_id", sess.ID, "plan", sess.Metadata["plan"])
		return "", errWebhookIgnored
	}

	user, err := h.userService.GetByStripeCustomerID(r.Context(), sess.Customer.ID)
	if err != nil {
		h.logger.Warn("no user for checkout customer", "customer_id", sess.Customer.ID)
		return "", errWebhookIgnored
	}

	if sess.Subscription != nil {
		if err := h.userService.SetSubscriptionID(r.Context(), user.ID, sess.Subscription.ID); err != nil {
			h.logger.Error("failed to save subscription ID", "error", err, "user_id", user.ID)
		}
	}

	return h.transitions.ApplyPlanChange(r.Context(), event.ID, string(event.Type), user, plan)
}

// handleSubscriptionUpdated re-applies the plan the active subscription's
// price maps to. Covers upgrades made through the customer portal.
func (h *WebhookHandler) handleSubscriptionUpdated(r *http.Request, event stripe.Event) (service.TransitionResult, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return "", err
	}

	if sub.Customer == nil {
		h.logger.Warn("subscription event missing customer", "subscription_id", sub.ID)
		return "", errWebhookIgnored
	}
	if sub.Status != stripe.SubscriptionStatusActive {
		// Downgrades happen on deletion, not on status churn.
		return "", errWebhookIgnored
	}

	plan, ok := h.subscriptionPlan(&sub)
	if !ok {
		h.logger.Warn("subscription price maps to no plan", "subscription_id", sub.ID)
		return "", errWebhookIgnored
	}

	user, err := h.userService.GetByStripeCustomerID(r.Context(), sub.Customer.ID)
	if err != nil {
		h.logger.Warn("no user for subscription customer", "customer_id", sub.Customer.ID)
		return "", errWebhookIgnored
	}

	if err := h.userService.SetSubscriptionID(r.Context(), user.ID, sub.ID); err != nil {
		h.logger.Error("failed to save subscription ID", "error", err, "user_id", user.ID)
	}

	return h.transitions.ApplyPlanChange(r.Context(), event.ID, string(event.Type), user, plan)
}

// handleSubscriptionDeleted downgrades the user to the base plan.
func (h *WebhookHandler) handleSubscriptionDeleted(r *http.Request, event stripe.Event) (service.TransitionResult, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return "", err
	}

	if sub.Customer == nil {
		h.logger.Warn("subscription deleted event missing customer", "subscription_id", sub.ID)
		return "", errWebhookIgnored
	}

	user, err := h.userService.GetByStripeCustomerID(r.Context(), sub.Customer.ID)
	if err != nil {
		h.logger.Warn("no user for deleted subscription", "customer_id", sub.Customer.ID)
		return "", errWebhookIgnored
	}

	if err := h.userService.SetSubscriptionID(r.Context(), user.ID, ""); err != nil {
		h.logger.Error("failed to clear subscription ID", "error", err, "user_id", user.ID)
	}

	return h.transitions.ApplyPlanChange(r.Context(), event.ID, string(event.Type), user, domain.PlanBase)
}

// subscriptionPlan resolves the plan from the subscription's first price.
func (h *WebhookHandler) subscriptionPlan(sub *stripe.Subscription) (domain.Plan, bool) {
	if sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0].Price == nil {
		return "", false
	}
	return h.billing.PlanForPriceID(sub.Items.Data[0].Price.ID)
}
