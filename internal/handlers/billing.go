package handlers

import (
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/clientecho/backend/internal/models"
)

// Stripe client instance
var stripeClient *client.API

func initStripe() {
	if stripeClient != nil {
		return
	}
	secretKey := os.Getenv("STRIPE_SECRET_KEY")
	if secretKey == "" {
		log.Printf("[Billing] STRIPE_SECRET_KEY not set, Stripe features disabled")
		return
	}
	stripeClient = &client.API{}
	stripeClient.Init(secretKey, nil)
}

// GetBillingPlans returns the active plans with their story quotas.
func (h *Handler) GetBillingPlans(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.Query(`
		SELECT id, name, description, price_cents, currency, interval, stories_quota, stripe_price_id, is_active
		  FROM public.billing_plans
		 WHERE is_active = true
		 ORDER BY price_cents ASC
	`)
	if err != nil {
		log.Printf("[Billing][Plans] query error: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer rows.Close()

	var plans []models.BillingPlan
	for rows.Next() {
		var p models.BillingPlan
		var desc, priceID sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &desc, &p.PriceCents, &p.Currency, &p.Interval, &p.StoriesQuota, &priceID, &p.IsActive); err != nil {
			log.Printf("[Billing][Plans] scan error: %v", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		p.Description = nullStrPtr(desc)
		p.StripePriceID = nullStrPtr(priceID)
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

// CreateCheckoutSession starts a Stripe Checkout flow for a paid plan.
func (h *Handler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	initStripe()
	if stripeClient == nil {
		writeError(w, http.StatusServiceUnavailable, "Stripe not configured")
		return
	}

	var req struct {
		PlanID string `json:"planId"`
	}
	if err := decodeJSON(r, &req); err != nil || req.PlanID == "" {
		writeError(w, http.StatusBadRequest, "planId is required")
		return
	}

	var priceID sql.NullString
	err := h.db.QueryRow(`
		SELECT stripe_price_id FROM public.billing_plans WHERE id = $1 AND is_active = true
	`, req.PlanID).Scan(&priceID)
	if err == sql.ErrNoRows || !priceID.Valid || priceID.String == "" {
		writeError(w, http.StatusBadRequest, "Plan not configured for payment")
		return
	}
	if err != nil {
		log.Printf("[Billing][Checkout] plan lookup error planId=%s: %v", req.PlanID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(priceID.String), Quantity: stripe.Int64(1)},
		},
		SuccessURL:        stripe.String(h.publicOrigin + "/billing/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(h.publicOrigin + "/billing/cancel"),
		ClientReferenceID: stripe.String(actor.ID),
	}
	if actor.StripeCustomerID != nil {
		params.Customer = stripe.String(*actor.StripeCustomerID)
	} else {
		params.CustomerEmail = stripe.String(actor.Email)
	}
	params.Metadata = map[string]string{"user_id": actor.ID, "plan_id": req.PlanID}

	session, err := stripeClient.CheckoutSessions.New(params)
	if err != nil {
		log.Printf("[Billing][Checkout] session creation error userId=%s: %v", actor.ID, err)
		writeError(w, http.StatusInternalServerError, "Failed to create checkout session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"sessionId": session.ID, "url": session.URL})
}

// CreatePortalSession opens the Stripe billing portal for the user.
func (h *Handler) CreatePortalSession(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	initStripe()
	if stripeClient == nil {
		writeError(w, http.StatusServiceUnavailable, "Stripe not configured")
		return
	}
	if actor.StripeCustomerID == nil {
		writeError(w, http.StatusBadRequest, "No billing account on file")
		return
	}

	session, err := stripeClient.BillingPortalSessions.New(&stripe.BillingPortalSessionParams{
		Customer:  stripe.String(*actor.StripeCustomerID),
		ReturnURL: stripe.String(h.publicOrigin + "/account/billing"),
	})
	if err != nil {
		log.Printf("[Billing][Portal] session error userId=%s: %v", actor.ID, err)
		writeError(w, http.StatusInternalServerError, "Failed to create portal session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": session.URL})
}

// StripeWebhook verifies and processes Stripe webhook events.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	const maxBodyBytes = int64(65536)
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("[Billing][Webhook] read error: %v", err)
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	webhookSecret := os.Getenv("STRIPE_WEBHOOK_SECRET")
	var event stripe.Event
	if webhookSecret != "" {
		sig := r.Header.Get("Stripe-Signature")
		if sig == "" {
			writeError(w, http.StatusBadRequest, "Missing signature")
			return
		}
		event, err = webhook.ConstructEvent(payload, sig, webhookSecret)
		if err != nil {
			log.Printf("[Billing][Webhook] signature verification error: %v", err)
			writeError(w, http.StatusBadRequest, "Invalid signature")
			return
		}
	} else {
		log.Printf("[Billing][Webhook] STRIPE_WEBHOOK_SECRET not set, skipping signature verification")
		if err := json.Unmarshal(payload, &event); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
	}

	h.processStripeEvent(event)
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// processStripeEvent applies one event at most once. The idempotency guard
// is the unique stripe_event_id insert: a replayed event fails the insert
// and is skipped before any state is touched.
func (h *Handler) processStripeEvent(event stripe.Event) {
	var inserted string
	err := h.db.QueryRow(`
		INSERT INTO public.billing_events (id, stripe_event_id, stripe_event_type, data, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (stripe_event_id) DO NOTHING
		RETURNING id
	`, "evt_"+randHex(12), event.ID, string(event.Type), string(event.Data.Raw)).Scan(&inserted)
	if err == sql.ErrNoRows {
		log.Printf("[Billing][Webhook] duplicate event skipped id=%s type=%s", event.ID, event.Type)
		return
	}
	if err != nil {
		log.Printf("[Billing][Webhook] event save error id=%s: %v", event.ID, err)
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		h.handleCheckoutCompleted(event)
	case "customer.subscription.created", "customer.subscription.updated":
		h.handleSubscriptionEvent(event)
	case "customer.subscription.deleted":
		h.handleSubscriptionCancellation(event)
	case "invoice.payment_succeeded":
		h.handlePaymentSuccess(event)
	case "invoice.payment_failed":
		h.handlePaymentFailure(event)
	default:
		log.Printf("[Billing][Webhook] unhandled event type: %s", event.Type)
	}

	if _, err := h.db.Exec(`UPDATE public.billing_events SET processed = TRUE WHERE stripe_event_id = $1`, event.ID); err != nil {
		log.Printf("[Billing][Webhook] mark processed error id=%s: %v", event.ID, err)
	}
}

// handleCheckoutCompleted binds the Stripe customer/subscription to the user
// and activates the purchased plan.
func (h *Handler) handleCheckoutCompleted(event stripe.Event) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		log.Printf("[Billing][CheckoutCompleted] unmarshal error: %v", err)
		return
	}

	userID := session.ClientReferenceID
	planID := session.Metadata["plan_id"]
	if userID == "" {
		log.Printf("[Billing][CheckoutCompleted] missing client reference session=%s", session.ID)
		return
	}

	var customerID, subscriptionID string
	if session.Customer != nil {
		customerID = session.Customer.ID
	}
	if session.Subscription != nil {
		subscriptionID = session.Subscription.ID
	}

	_, err := h.db.Exec(`
		UPDATE public.users
		   SET stripe_customer_id = COALESCE(NULLIF($2, ''), stripe_customer_id),
		       stripe_subscription_id = COALESCE(NULLIF($3, ''), stripe_subscription_id),
		       subscription_active = TRUE,
		       plan_id = COALESCE(NULLIF($4, ''), plan_id),
		       stories_quota = COALESCE((SELECT stories_quota FROM public.billing_plans WHERE id = $4), stories_quota),
		       stories_used_this_month = 0,
		       usage_reset_at = date_trunc('month', NOW()) + interval '1 month'
		 WHERE id = $1
	`, userID, customerID, subscriptionID, planID)
	if err != nil {
		log.Printf("[Billing][CheckoutCompleted] user update error userId=%s: %v", userID, err)
	}
}

func (h *Handler) handleSubscriptionEvent(event stripe.Event) {
	var subscription stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &subscription); err != nil {
		log.Printf("[Billing][SubscriptionEvent] unmarshal error: %v", err)
		return
	}

	active := subscription.Status == stripe.SubscriptionStatusActive ||
		subscription.Status == stripe.SubscriptionStatusTrialing
	_, err := h.db.Exec(`
		UPDATE public.users
		   SET subscription_active = $2
		 WHERE stripe_subscription_id = $1
	`, subscription.ID, active)
	if err != nil {
		log.Printf("[Billing][SubscriptionEvent] update error: %v", err)
	}
}

func (h *Handler) handleSubscriptionCancellation(event stripe.Event) {
	var subscription stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &subscription); err != nil {
		log.Printf("[Billing][CancellationEvent] unmarshal error: %v", err)
		return
	}

	// Back to the free tier; remaining usage this month is kept as-is.
	_, err := h.db.Exec(`
		UPDATE public.users
		   SET subscription_active = FALSE,
		       plan_id = 'free',
		       stories_quota = COALESCE((SELECT stories_quota FROM public.billing_plans WHERE id = 'free'), 2)
		 WHERE stripe_subscription_id = $1
	`, subscription.ID)
	if err != nil {
		log.Printf("[Billing][CancellationEvent] update error: %v", err)
	}
}

// handlePaymentSuccess resets the monthly story counter at the start of each
// billing period. Replays of the same event are already filtered out by the
// billing_events guard, so the reset cannot be applied twice.
func (h *Handler) handlePaymentSuccess(event stripe.Event) {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		log.Printf("[Billing][PaymentSuccess] unmarshal error: %v", err)
		return
	}
	if invoice.Customer == nil {
		return
	}

	_, err := h.db.Exec(`
		UPDATE public.users
		   SET stories_used_this_month = 0,
		       usage_reset_at = $2,
		       subscription_active = TRUE
		 WHERE stripe_customer_id = $1
	`, invoice.Customer.ID, time.Now().UTC().AddDate(0, 1, 0))
	if err != nil {
		log.Printf("[Billing][PaymentSuccess] credit reset error customer=%s: %v", invoice.Customer.ID, err)
	}
}

func (h *Handler) handlePaymentFailure(event stripe.Event) {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		log.Printf("[Billing][PaymentFailure] unmarshal error: %v", err)
		return
	}
	if invoice.Customer == nil {
		return
	}
	log.Printf("[Billing][PaymentFailure] payment failed invoice=%s customer=%s", invoice.ID, invoice.Customer.ID)

	_, err := h.db.Exec(`
		UPDATE public.users SET subscription_active = FALSE WHERE stripe_customer_id = $1
	`, invoice.Customer.ID)
	if err != nil {
		log.Printf("[Billing][PaymentFailure] update error: %v", err)
	}
}
