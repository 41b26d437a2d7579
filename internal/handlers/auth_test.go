package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"golang.org/x/crypto/bcrypt"
)

func TestHealth_OK(t *testing.T) {
	h := New(nil, Options{JWTSecret: []byte("s")})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	h.Health(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	var out map[string]bool
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode json: %v body=%q", err, rr.Body.String())
	}
	if out["ok"] != true {
		t.Fatalf("expected ok=true got %#v", out)
	}
}

func TestIssueAndValidateToken_RoundTrip(t *testing.T) {
	h := New(nil, Options{JWTSecret: []byte("test-secret")})

	tok, err := h.issueToken("user_1", "owner")
	if err != nil {
		t.Fatalf("issueToken: %v", err)
	}
	claims, err := h.validateToken(tok)
	if err != nil {
		t.Fatalf("validateToken: %v", err)
	}
	if claims.UserID != "user_1" || claims.Role != "owner" {
		t.Fatalf("unexpected claims %#v", claims)
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	h := New(nil, Options{JWTSecret: []byte("secret-a")})
	tok, err := h.issueToken("user_1", "owner")
	if err != nil {
		t.Fatalf("issueToken: %v", err)
	}

	other := New(nil, Options{JWTSecret: []byte("secret-b")})
	if _, err := other.validateToken(tok); err == nil {
		t.Fatalf("expected validation failure with wrong secret")
	}
}

func TestSignup_RejectsShortPassword(t *testing.T) {
	h := New(nil, Options{JWTSecret: []byte("s")})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup",
		bytes.NewBufferString(`{"email":"a@b.com","name":"A","password":"short"}`))

	h.Signup(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%q", rr.Code, rr.Body.String())
	}
}

func TestSignup_RejectsBadEmail(t *testing.T) {
	h := New(nil, Options{JWTSecret: []byte("s")})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup",
		bytes.NewBufferString(`{"email":"not-an-email","name":"A","password":"longenough"}`))

	h.Signup(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%q", rr.Code, rr.Body.String())
	}
}

func TestSignup_DuplicateEmail(t *testing.T) {
	h, mock, _ := newTestHandler(t)

	mock.ExpectQuery(`INSERT INTO public\.users`).
		WillReturnError(errDuplicateKey{})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup",
		bytes.NewBufferString(`{"email":"a@b.com","name":"A","password":"longenough"}`))

	h.Signup(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d body=%q", rr.Code, rr.Body.String())
	}
}

type errDuplicateKey struct{}

func (errDuplicateKey) Error() string {
	return `pq: duplicate key value violates unique constraint "users_email_key"`
}

func TestLogin_WrongPassword(t *testing.T) {
	h, mock, _ := newTestHandler(t)

	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.MinCost)
	mock.ExpectQuery(`SELECT id, password_hash FROM public\.users`).
		WithArgs("a@b.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "password_hash"}).AddRow("user_1", string(hash)))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		bytes.NewBufferString(`{"email":"a@b.com","password":"wrong-password"}`))

	h.Login(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d body=%q", rr.Code, rr.Body.String())
	}
}

func TestMe_MissingToken(t *testing.T) {
	h := New(nil, Options{JWTSecret: []byte("s")})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)

	h.Me(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rr.Code)
	}
}

func TestMe_Success(t *testing.T) {
	h, mock, _ := newTestHandler(t)
	tok := testToken(t, h, "user_1", "owner")
	expectActorLoad(mock, "user_1", "a@b.com", "owner", nil)

	rr := httptest.NewRecorder()
	req := authed(httptest.NewRequest(http.MethodGet, "/api/auth/me", nil), tok)

	h.Me(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%q", rr.Code, rr.Body.String())
	}
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if out["id"] != "user_1" {
		t.Fatalf("expected id=user_1 got %#v", out["id"])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}
