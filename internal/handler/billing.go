// Package handler contains HTTP handlers for the Sommet application.
//
// This file implements billing handlers backed by Stripe. Plan changes are
// never applied here: checkout only starts the payment flow, and the
// webhook handler applies the entitlement transition once Stripe confirms.
package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sommetlabs/sommet/internal/auth"
	"github.com/sommetlabs/sommet/internal/billing"
	"github.com/sommetlabs/sommet/internal/domain"
	"github.com/sommetlabs/sommet/internal/service"
)

// BillingHandler handles billing and plan purchase HTTP requests.
//
// Routes handled:
// - POST /api/billing/checkout -> CreateCheckout
// - POST /api/billing/portal   -> OpenPortal
// - POST /api/billing/cancel   -> CancelSubscription
type BillingHandler struct {
	billing     billing.Service
	userService service.UserService
	baseURL     string
	logger      *slog.Logger
}

// NewBillingHandler creates a new BillingHandler.
// billingService may be nil when Stripe is not configured (development mode).
func NewBillingHandler(billingService billing.Service, userService service.UserService, baseURL string, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{
		billing:     billingService,
		userService: userService,
		baseURL:     baseURL,
		logger:      logger,
	}
}

func (h *BillingHandler) notConfigured(w http.ResponseWriter, r *http.Request) bool {
	if h.billing != nil {
		return false
	}
	h.logger.Warn("billing request but Stripe is not configured", "path", r.URL.Path)
	ErrorResponse(w, r, h.logger, domain.Errorf(domain.EINVALID, "billing", "Billing is not available"))
	return true
}

// CreateCheckout handles POST /api/billing/checkout. It creates a Stripe
// Checkout session for the requested plan and returns its URL.
func (h *BillingHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	if h.notConfigured(w, r) {
		return
	}

	var req struct {
		Plan string `json:"plan"`
	}
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	plan := domain.Plan(req.Plan)
	if !plan.Valid() || plan == domain.PlanBase {
		ErrorResponse(w, r, h.logger, domain.Invalid("billing.checkout", "Unknown or non-purchasable plan"))
		return
	}

	// Ensure the user has a Stripe customer before checkout.
	customerID := user.StripeCustomerID
	if customerID == "" {
		var err error
		customerID, err = h.billing.CreateCustomer(user.Email, user.Name)
		if err != nil {
			h.logger.Error("failed to create stripe customer", "error", err, "user_id", user.ID)
			InternalErrorResponse(w, r, h.logger, err)
			return
		}
		if err := h.userService.SetStripeCustomerID(r.Context(), user.ID, customerID); err != nil {
			h.logger.Error("failed to save stripe customer ID", "error", err, "user_id", user.ID)
		}
	}

	successURL := fmt.Sprintf("%s/billing/success?session_id={CHECKOUT_SESSION_ID}", h.baseURL)
	cancelURL := fmt.Sprintf("%s/billing", h.baseURL)

	checkoutURL, err := h.billing.CreateCheckoutSession(customerID, plan, successURL, cancelURL)
	if err != nil {
		h.logger.Error("failed to create checkout session", "error", err, "user_id", user.ID, "plan", plan)
		InternalErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"checkout_url": checkoutURL})
}

// OpenPortal handles POST /api/billing/portal. It returns a Stripe customer
// portal URL for managing payment methods and the subscription.
func (h *BillingHandler) OpenPortal(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	if h.notConfigured(w, r) {
		return
	}

	if user.StripeCustomerID == "" {
		ErrorResponse(w, r, h.logger, domain.Invalid("billing.portal", "No billing account yet"))
		return
	}

	portalURL, err := h.billing.CreatePortalSession(user.StripeCustomerID, h.baseURL+"/billing")
	if err != nil {
		h.logger.Error("failed to create portal session", "error", err, "user_id", user.ID)
		InternalErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"portal_url": portalURL})
}

// CancelSubscription handles POST /api/billing/cancel. The subscription
// cancels at period end; the downgrade to the base plan happens when Stripe
// delivers the deletion webhook.
func (h *BillingHandler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	if h.notConfigured(w, r) {
		return
	}

	if user.SubscriptionID == "" {
		ErrorResponse(w, r, h.logger, domain.Invalid("billing.cancel", "No active subscription"))
		return
	}

	if err := h.billing.CancelSubscription(user.SubscriptionID); err != nil {
		h.logger.Error("failed to cancel subscription", "error", err, "user_id", user.ID)
		InternalErrorResponse(w, r, h.logger, err)
		return
	}

	h.logger.Info("subscription cancellation scheduled", "user_id", user.ID)

	respondJSON(w, http.StatusOK, map[string]string{"status": "cancel_at_period_end"})
}
