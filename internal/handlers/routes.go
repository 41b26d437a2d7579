package handlers

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes wires the full API surface onto the router.
func RegisterRoutes(h *Handler, r *mux.Router) {
	// Health check
	r.HandleFunc("/health", h.Health).Methods("GET")

	// Auth
	r.HandleFunc("/api/auth/signup", h.Signup).Methods("POST")
	r.HandleFunc("/api/auth/login", h.Login).Methods("POST")
	r.HandleFunc("/api/auth/me", h.Me).Methods("GET")

	// Users
	r.HandleFunc("/api/users/{id}", h.GetUser).Methods("GET")
	r.HandleFunc("/api/users/{id}", h.UpdateUser).Methods("PUT")

	// Companies and membership invites
	r.HandleFunc("/api/companies", h.CreateCompany).Methods("POST")
	r.HandleFunc("/api/companies/invites/accept", h.AcceptCompanyInvite).Methods("POST")
	r.HandleFunc("/api/companies/{id}", h.GetCompany).Methods("GET")
	r.HandleFunc("/api/companies/{id}/invites", h.CreateCompanyInvite).Methods("POST")

	// Case studies
	r.HandleFunc("/api/case-studies", h.CreateCaseStudy).Methods("POST")
	r.HandleFunc("/api/case-studies", h.ListCaseStudies).Methods("GET")
	r.HandleFunc("/api/case-studies/{id}", h.GetCaseStudy).Methods("GET")
	r.HandleFunc("/api/case-studies/{id}", h.UpdateCaseStudy).Methods("PUT")
	r.HandleFunc("/api/case-studies/{id}", h.DeleteCaseStudy).Methods("DELETE")
	r.HandleFunc("/api/case-studies/{id}/labels", h.SetCaseStudyLabels).Methods("PUT")
	r.HandleFunc("/api/case-studies/{id}/generate", h.GenerateFullCaseStudy).Methods("POST")

	// Interviews
	r.HandleFunc("/api/case-studies/{id}/provider-interview", h.SubmitProviderInterview).Methods("POST")
	r.HandleFunc("/api/case-studies/{id}/invite-token", h.CreateInviteToken).Methods("POST")
	r.HandleFunc("/api/client-interview/{token}", h.GetClientInterview).Methods("GET")
	r.HandleFunc("/api/client-interview/{token}", h.SubmitClientInterview).Methods("POST")

	// Labels
	r.HandleFunc("/api/labels", h.ListLabels).Methods("GET")
	r.HandleFunc("/api/labels", h.CreateLabel).Methods("POST")
	r.HandleFunc("/api/labels/{id}", h.RenameLabel).Methods("PUT")
	r.HandleFunc("/api/labels/{id}", h.DeleteLabel).Methods("DELETE")

	// Feedback
	r.HandleFunc("/api/feedback", h.SubmitFeedback).Methods("POST")
	r.HandleFunc("/api/case-studies/{id}/feedback", h.SubmitStoryFeedback).Methods("POST")
	r.HandleFunc("/api/case-studies/{id}/feedback", h.ListStoryFeedback).Methods("GET")

	// Exports
	r.HandleFunc("/api/case-studies/{id}/export/pdf", h.DownloadPDF).Methods("GET")
	r.HandleFunc("/api/case-studies/{id}/export/word", h.DownloadWord).Methods("GET")
	r.HandleFunc("/api/case-studies/{id}/export/sentiment-chart", h.DownloadSentimentChart).Methods("GET")
	r.HandleFunc("/api/case-studies/{id}/export/quote-card", h.DownloadQuoteCard).Methods("GET")

	// Realtime events
	r.HandleFunc("/api/events/ws", h.EventsWebSocket)

	RegisterBillingRoutes(h, r)
	RegisterOAuthRoutes(h, r)
}

// RegisterBillingRoutes registers all billing-related routes.
func RegisterBillingRoutes(h *Handler, r *mux.Router) {
	r.HandleFunc("/api/billing/plans", h.GetBillingPlans).Methods("GET")
	r.HandleFunc("/api/billing/checkout", h.CreateCheckoutSession).Methods("POST")
	r.HandleFunc("/api/billing/portal", h.CreatePortalSession).Methods("POST")

	// Stripe webhook endpoint
	r.HandleFunc("/webhook/stripe", h.StripeWebhook).Methods("POST")
}

// RegisterOAuthRoutes registers the publish-integration routes.
func RegisterOAuthRoutes(h *Handler, r *mux.Router) {
	r.HandleFunc("/api/oauth/linkedin/authorize", h.LinkedInAuthorize).Methods("GET")
	r.HandleFunc("/api/oauth/linkedin/callback", h.LinkedInCallback).Methods("GET")
	r.HandleFunc("/api/social/linkedin/post", h.LinkedInPost).Methods("POST")

	r.HandleFunc("/api/oauth/slack/authorize", h.SlackAuthorize).Methods("GET")
	r.HandleFunc("/api/oauth/slack/callback", h.SlackCallback).Methods("GET")
	r.HandleFunc("/api/social/slack/post", h.SlackPost).Methods("POST")

	r.HandleFunc("/api/oauth/teams/authorize", h.TeamsAuthorize).Methods("GET")
	r.HandleFunc("/api/oauth/teams/callback", h.TeamsCallback).Methods("GET")
	r.HandleFunc("/api/social/teams/post", h.TeamsPost).Methods("POST")
}
