package middleware

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// PlanLimits defines the limits for each plan.
type PlanLimits struct {
	StoriesPerMonth int    `json:"stories_per_month"` // -1 = unlimited
	Seats           int    `json:"seats"`
	Exports         string `json:"exports"` // "pdf", "all"
}

// CreditEnforcer rejects story generation early when the caller's monthly
// credit is already spent. The handler still performs the authoritative
// atomic debit; this keeps obviously over-quota requests away from the LLM.
type CreditEnforcer struct {
	DB        *sql.DB
	JWTSecret []byte
	Limits    map[string]PlanLimits
}

// NewCreditEnforcer creates a credit enforcer middleware.
func NewCreditEnforcer(db *sql.DB, jwtSecret []byte) *CreditEnforcer {
	limits := map[string]PlanLimits{
		"free": {
			StoriesPerMonth: 2,
			Seats:           1,
			Exports:         "pdf",
		},
		"starter": {
			StoriesPerMonth: 10,
			Seats:           3,
			Exports:         "all",
		},
		"agency": {
			StoriesPerMonth: -1, // unlimited
			Seats:           15,
			Exports:         "all",
		},
	}

	return &CreditEnforcer{
		DB:        db,
		JWTSecret: jwtSecret,
		Limits:    limits,
	}
}

// Middleware returns an HTTP middleware that enforces story credits on
// generation endpoints.
func (ce *CreditEnforcer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !ce.applies(r) {
			next.ServeHTTP(w, r)
			return
		}

		userID := ce.extractUserID(r)
		if userID == "" {
			// Unauthenticated requests fail auth in the handler anyway.
			next.ServeHTTP(w, r)
			return
		}

		planID, used, quota, err := ce.usage(userID)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		if quota >= 0 && used >= quota {
			ce.respondLimitExceeded(w, planID)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// applies returns true for routes that spend a story credit.
func (ce *CreditEnforcer) applies(r *http.Request) bool {
	return r.Method == http.MethodPost &&
		strings.HasPrefix(r.URL.Path, "/api/case-studies/") &&
		strings.HasSuffix(r.URL.Path, "/generate")
}

// extractUserID pulls the user ID from the bearer token without enforcing
// auth; invalid tokens are left for the handler to reject.
func (ce *CreditEnforcer) extractUserID(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(strings.TrimPrefix(auth, "Bearer "), claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return ce.JWTSecret, nil
	})
	if err != nil || !token.Valid {
		return ""
	}
	uid, _ := claims["uid"].(string)
	return uid
}

// usage returns the user's plan and current credit counters.
func (ce *CreditEnforcer) usage(userID string) (planID string, used, quota int, err error) {
	err = ce.DB.QueryRow(`
		SELECT COALESCE(plan_id, 'free'), stories_used_this_month, stories_quota
		  FROM public.users
		 WHERE id = $1
	`, userID).Scan(&planID, &used, &quota)
	if err != nil {
		return "", 0, 0, err
	}
	if limits, ok := ce.Limits[planID]; ok && limits.StoriesPerMonth < 0 {
		quota = -1 // unlimited
	}
	return planID, used, quota, nil
}

// respondLimitExceeded sends a 402 with upgrade guidance.
func (ce *CreditEnforcer) respondLimitExceeded(w http.ResponseWriter, planID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusPaymentRequired)

	response := map[string]interface{}{
		"error":       "no_story_credits",
		"message":     "Your monthly story credits are used up",
		"plan":        planID,
		"limits":      ce.Limits[planID],
		"upgrade_url": "/account/billing",
	}

	json.NewEncoder(w).Encode(response)
}
