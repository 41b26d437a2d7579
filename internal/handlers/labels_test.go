package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
)

func TestAutoColor_Deterministic(t *testing.T) {
	a := autoColor("Migration")
	b := autoColor("  migration ")
	if a != b {
		t.Fatalf("expected same color for same normalized name, got %q and %q", a, b)
	}
	if !strings.HasPrefix(a, "#") {
		t.Fatalf("expected hex color got %q", a)
	}
}

func TestCreateLabel_AutoColorsWhenMissing(t *testing.T) {
	h, mock, _ := newTestHandler(t)
	tok := testToken(t, h, "user_1", "owner")
	expectActorLoad(mock, "user_1", "a@b.com", "owner", nil)

	mock.ExpectQuery(`INSERT INTO public\.labels`).
		WithArgs(sqlmock.AnyArg(), "user_1", "Fintech", autoColor("Fintech")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("lbl_1", time.Now().UTC()))

	rr := httptest.NewRecorder()
	req := authed(httptest.NewRequest(http.MethodPost, "/api/labels",
		bytes.NewBufferString(`{"name":"Fintech"}`)), tok)

	h.CreateLabel(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%q", rr.Code, rr.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestCreateLabel_RequiresName(t *testing.T) {
	h, mock, _ := newTestHandler(t)
	tok := testToken(t, h, "user_1", "owner")
	expectActorLoad(mock, "user_1", "a@b.com", "owner", nil)

	rr := httptest.NewRecorder()
	req := authed(httptest.NewRequest(http.MethodPost, "/api/labels",
		bytes.NewBufferString(`{"name":"   "}`)), tok)

	h.CreateLabel(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestDeleteLabel_NotFound(t *testing.T) {
	h, mock, _ := newTestHandler(t)
	tok := testToken(t, h, "user_1", "owner")
	expectActorLoad(mock, "user_1", "a@b.com", "owner", nil)

	mock.ExpectExec(`DELETE FROM public\.labels`).
		WithArgs("lbl_missing", "user_1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	rr := httptest.NewRecorder()
	req := authed(httptest.NewRequest(http.MethodDelete, "/api/labels/lbl_missing", nil), tok)
	req = mux.SetURLVars(req, map[string]string{"id": "lbl_missing"})

	h.DeleteLabel(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d body=%q", rr.Code, rr.Body.String())
	}
}
