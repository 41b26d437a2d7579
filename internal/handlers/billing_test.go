package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stripe/stripe-go/v79"
)

func stripeEvent(id, eventType, raw string) stripe.Event {
	return stripe.Event{
		ID:   id,
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: json.RawMessage(raw)},
	}
}

// A replayed webhook event must be skipped before any state is touched.
func TestProcessStripeEvent_DuplicateSkipped(t *testing.T) {
	h, mock, _ := newTestHandler(t)

	mock.ExpectQuery(`INSERT INTO public\.billing_events`).
		WillReturnError(sql.ErrNoRows)

	h.processStripeEvent(stripeEvent("evt_1", "invoice.payment_succeeded",
		`{"id":"in_1","customer":{"id":"cus_1"}}`))

	// No user update, no processed flag: the guard short-circuits everything.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestProcessStripeEvent_PaymentSucceededResetsCredits(t *testing.T) {
	h, mock, _ := newTestHandler(t)

	mock.ExpectQuery(`INSERT INTO public\.billing_events`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("evt_row_1"))
	mock.ExpectExec(`UPDATE public\.users`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE public\.billing_events SET processed`).
		WithArgs("evt_1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	h.processStripeEvent(stripeEvent("evt_1", "invoice.payment_succeeded",
		`{"id":"in_1","customer":{"id":"cus_1"}}`))

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestProcessStripeEvent_SubscriptionDeletedDowngrades(t *testing.T) {
	h, mock, _ := newTestHandler(t)

	mock.ExpectQuery(`INSERT INTO public\.billing_events`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("evt_row_2"))
	mock.ExpectExec(`UPDATE public\.users`).
		WithArgs("sub_1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE public\.billing_events SET processed`).
		WithArgs("evt_2").
		WillReturnResult(sqlmock.NewResult(0, 1))

	h.processStripeEvent(stripeEvent("evt_2", "customer.subscription.deleted",
		`{"id":"sub_1","status":"canceled"}`))

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestStripeWebhook_MissingSignatureWithSecret(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_test")

	h, _, _ := newTestHandler(t)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook/stripe",
		strings.NewReader(`{"id":"evt_1","type":"invoice.payment_succeeded"}`))

	h.StripeWebhook(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%q", rr.Code, rr.Body.String())
	}
}

func TestGetBillingPlans_Success(t *testing.T) {
	h, mock, _ := newTestHandler(t)

	mock.ExpectQuery(`SELECT id, name, description, price_cents`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "price_cents", "currency", "interval", "stories_quota", "stripe_price_id", "is_active"}).
			AddRow("free", "Free", nil, 0, "usd", "month", 2, nil, true).
			AddRow("starter", "Starter", "Ten stories a month", 4900, "usd", "month", 10, "price_123", true))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/billing/plans", nil)

	h.GetBillingPlans(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%q", rr.Code, rr.Body.String())
	}
	var out []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode json: %v body=%q", err, rr.Body.String())
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 plans got %d", len(out))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}
