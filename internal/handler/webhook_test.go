package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"

	"github.com/sommetlabs/sommet/internal/domain"
	"github.com/sommetlabs/sommet/internal/service"
)

// fakeBillingService verifies nothing; it returns the scripted event when
// the signature header matches "valid".
type fakeBillingService struct {
	event stripe.Event
}

func (f *fakeBillingService) CreateCustomer(email, name string) (string, error) {
	return "cus_test", nil
}

func (f *fakeBillingService) CreateCheckoutSession(customerID string, plan domain.Plan, successURL, cancelURL string) (string, error) {
	return "https://checkout.stripe.test/session", nil
}

func (f *fakeBillingService) CreatePortalSession(customerID, returnURL string) (string, error) {
	return "https://billing.stripe.test/portal", nil
}

func (f *fakeBillingService) CancelSubscription(subscriptionID string) error {
	return nil
}

func (f *fakeBillingService) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	if signature != "valid" {
		return stripe.Event{}, errors.New("signature mismatch")
	}
	return f.event, nil
}

func (f *fakeBillingService) PlanForPriceID(priceID string) (domain.Plan, bool) {
	if priceID == "price_builder" {
		return domain.PlanBuilder, true
	}
	return "", false
}

// stubUserService resolves one known Stripe customer.
type stubUserService struct {
	user            *domain.User
	subscriptionIDs []string
}

func (s *stubUserService) Register(ctx context.Context, params domain.RegisterParams) (*domain.User, error) {
	return nil, errors.New("not implemented")
}

func (s *stubUserService) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	return nil, errors.New("not implemented")
}

func (s *stubUserService) Logout(ctx context.Context, token string) error { return nil }

func (s *stubUserService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return nil, errors.New("not implemented")
}

func (s *stubUserService) GetBySessionToken(ctx context.Context, token string) (*domain.User, error) {
	return nil, errors.New("not implemented")
}

func (s *stubUserService) GetByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*domain.User, error) {
	if s.user != nil && s.user.StripeCustomerID == stripeCustomerID {
		return s.user, nil
	}
	return nil, domain.NotFound("", "user", stripeCustomerID)
}

func (s *stubUserService) SetStripeCustomerID(ctx context.Context, userID uuid.UUID, stripeCustomerID string) error {
	return nil
}

func (s *stubUserService) SetSubscriptionID(ctx context.Context, userID uuid.UUID, subscriptionID string) error {
	s.subscriptionIDs = append(s.subscriptionIDs, subscriptionID)
	return nil
}

func (s *stubUserService) DeleteExpiredSessions(ctx context.Context) error { return nil }

// recordingTransitions records every ApplyPlanChange call.
type recordingTransitions struct {
	result service.TransitionResult
	err    error

	eventIDs []string
	plans    []domain.Plan
}

func (r *recordingTransitions) ApplyPlanChange(ctx context.Context, eventID, eventType string, user *domain.User, plan domain.Plan) (service.TransitionResult, error) {
	r.eventIDs = append(r.eventIDs, eventID)
	r.plans = append(r.plans, plan)
	return r.result, r.err
}

func checkoutEvent(t *testing.T, eventID, customerID string, metadata map[string]string) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"id":       "cs_test",
		"customer": map[string]string{"id": customerID},
		"metadata": metadata,
	})
	require.NoError(t, err)
	return stripe.Event{
		ID:   eventID,
		Type: "checkout.session.completed",
		Data: &stripe.EventData{Raw: raw},
	}
}

func subscriptionEvent(t *testing.T, eventID, eventType, customerID, status, priceID string) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"id":       "sub_test",
		"customer": map[string]string{"id": customerID},
		"status":   status,
		"items": map[string]any{
			"data": []map[string]any{
				{"price": map[string]string{"id": priceID}},
			},
		},
	})
	require.NoError(t, err)
	return stripe.Event{
		ID:   eventID,
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: raw},
	}
}

func postWebhook(h *WebhookHandler, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/webhooks/stripe", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Stripe-Signature", signature)
	rec := httptest.NewRecorder()
	h.HandleStripeWebhook(rec, req)
	return rec
}

func TestWebhookHandler_SignatureFailure(t *testing.T) {
	h := NewWebhookHandler(&fakeBillingService{}, &stubUserService{}, &recordingTransitions{}, testLogger())

	rec := postWebhook(h, "tampered")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookHandler_CheckoutCompleted(t *testing.T) {
	user := &domain.User{ID: uuid.New(), Email: "marie@example.com", StripeCustomerID: "cus_1"}

	t.Run("applies the purchased plan", func(t *testing.T) {
		transitions := &recordingTransitions{result: service.TransitionApplied}
		h := NewWebhookHandler(
			&fakeBillingService{event: checkoutEvent(t, "evt_1", "cus_1", map[string]string{"plan": "explorer"})},
			&stubUserService{user: user},
			transitions,
			testLogger(),
		)

		rec := postWebhook(h, "valid")

		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, transitions.eventIDs, 1)
		assert.Equal(t, "evt_1", transitions.eventIDs[0])
		assert.Equal(t, domain.PlanExplorer, transitions.plans[0])
	})

	t.Run("replayed delivery still returns 200", func(t *testing.T) {
		transitions := &recordingTransitions{result: service.TransitionReplayed}
		h := NewWebhookHandler(
			&fakeBillingService{event: checkoutEvent(t, "evt_1", "cus_1", map[string]string{"plan": "explorer"})},
			&stubUserService{user: user},
			transitions,
			testLogger(),
		)

		rec := postWebhook(h, "valid")

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unknown customer is absorbed", func(t *testing.T) {
		transitions := &recordingTransitions{}
		h := NewWebhookHandler(
			&fakeBillingService{event: checkoutEvent(t, "evt_1", "cus_unknown", map[string]string{"plan": "explorer"})},
			&stubUserService{user: user},
			transitions,
			testLogger(),
		)

		rec := postWebhook(h, "valid")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, transitions.eventIDs)
	})

	t.Run("missing plan metadata is absorbed", func(t *testing.T) {
		transitions := &recordingTransitions{}
		h := NewWebhookHandler(
			&fakeBillingService{event: checkoutEvent(t, "evt_1", "cus_1", nil)},
			&stubUserService{user: user},
			transitions,
			testLogger(),
		)

		rec := postWebhook(h, "valid")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, transitions.eventIDs)
	})

	t.Run("persistence failure after valid signature returns 500", func(t *testing.T) {
		transitions := &recordingTransitions{err: errors.New("database down")}
		h := NewWebhookHandler(
			&fakeBillingService{event: checkoutEvent(t, "evt_1", "cus_1", map[string]string{"plan": "explorer"})},
			&stubUserService{user: user},
			transitions,
			testLogger(),
		)

		rec := postWebhook(h, "valid")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestWebhookHandler_SubscriptionEvents(t *testing.T) {
	user := &domain.User{ID: uuid.New(), Email: "marie@example.com", StripeCustomerID: "cus_1"}

	t.Run("active subscription applies its plan", func(t *testing.T) {
		transitions := &recordingTransitions{result: service.TransitionApplied}
		users := &stubUserService{user: user}
		h := NewWebhookHandler(
			&fakeBillingService{event: subscriptionEvent(t, "evt_2", "customer.subscription.updated", "cus_1", "active", "price_builder")},
			users,
			transitions,
			testLogger(),
		)

		rec := postWebhook(h, "valid")

		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, transitions.plans, 1)
		assert.Equal(t, domain.PlanBuilder, transitions.plans[0])
		assert.Equal(t, []string{"sub_test"}, users.subscriptionIDs)
	})

	t.Run("non-active status is absorbed", func(t *testing.T) {
		transitions := &recordingTransitions{}
		h := NewWebhookHandler(
			&fakeBillingService{event: subscriptionEvent(t, "evt_2", "customer.subscription.updated", "cus_1", "past_due", "price_builder")},
			&stubUserService{user: user},
			transitions,
			testLogger(),
		)

		rec := postWebhook(h, "valid")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, transitions.plans)
	})

	t.Run("deletion downgrades to the base plan", func(t *testing.T) {
		transitions := &recordingTransitions{result: service.TransitionApplied}
		users := &stubUserService{user: user}
		h := NewWebhookHandler(
			&fakeBillingService{event: subscriptionEvent(t, "evt_3", "customer.subscription.deleted", "cus_1", "canceled", "price_builder")},
			users,
			transitions,
			testLogger(),
		)

		rec := postWebhook(h, "valid")

		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, transitions.plans, 1)
		assert.Equal(t, domain.PlanBase, transitions.plans[0])
		assert.Equal(t, []string{""}, users.subscriptionIDs)
	})
}

func TestWebhookHandler_UnhandledEventType(t *testing.T) {
	transitions := &recordingTransitions{}
	h := NewWebhookHandler(
		&fakeBillingService{event: stripe.Event{ID: "evt_4", Type: "invoice.created", Data: &stripe.EventData{Raw: []byte(`{}`)}}},
		&stubUserService{},
		transitions,
		testLogger(),
	)

	rec := postWebhook(h, "valid")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, transitions.eventIDs)
}
