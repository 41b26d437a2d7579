package handlers

import (
	"database/sql"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newTestHandler(t *testing.T) (*Handler, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	h := New(db, Options{
		JWTSecret:    []byte("test-secret"),
		PublicOrigin: "http://localhost:3000",
	})
	return h, mock, db
}

func testToken(t *testing.T, h *Handler, userID, role string) string {
	t.Helper()
	tok, err := h.issueToken(userID, role)
	if err != nil {
		t.Fatalf("issueToken: %v", err)
	}
	return tok
}

// userRowsColumns mirrors the userColumns SELECT list.
var userRowsColumns = []string{
	"id", "email", "name", "role", "company_id", "plan_id", "stories_quota",
	"stories_used_this_month", "usage_reset_at", "stripe_customer_id",
	"stripe_subscription_id", "subscription_active", "linkedin_connected", "created_at",
}

func userRow(id, email, role string, companyID any) *sqlmock.Rows {
	return sqlmock.NewRows(userRowsColumns).
		AddRow(id, email, "Test User", role, companyID, "free", 2, 0, nil, nil, nil, false, false, time.Now().UTC())
}

// expectActorLoad queues the user lookup that requireUser performs.
func expectActorLoad(mock sqlmock.Sqlmock, id, email, role string, companyID any) {
	mock.ExpectQuery(`SELECT id, email, name, role, company_id`).
		WithArgs(id).
		WillReturnRows(userRow(id, email, role, companyID))
}

func authed(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}
