package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
)

func TestSubmitFeedback_RatingOutOfRange(t *testing.T) {
	h, mock, _ := newTestHandler(t)
	tok := testToken(t, h, "user_1", "owner")

	for _, body := range []string{`{"rating":0}`, `{"rating":6}`} {
		expectActorLoad(mock, "user_1", "a@b.com", "owner", nil)
		rr := httptest.NewRecorder()
		req := authed(httptest.NewRequest(http.MethodPost, "/api/feedback", bytes.NewBufferString(body)), tok)

		h.SubmitFeedback(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Fatalf("body=%s: expected 400 got %d", body, rr.Code)
		}
	}
}

func TestSubmitFeedback_Success(t *testing.T) {
	h, mock, _ := newTestHandler(t)
	tok := testToken(t, h, "user_1", "owner")
	expectActorLoad(mock, "user_1", "a@b.com", "owner", nil)

	mock.ExpectQuery(`INSERT INTO public\.feedback`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now().UTC()))

	rr := httptest.NewRecorder()
	req := authed(httptest.NewRequest(http.MethodPost, "/api/feedback",
		bytes.NewBufferString(`{"rating":5,"comment":"Great tool"}`)), tok)

	h.SubmitFeedback(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%q", rr.Code, rr.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

// Submitting story feedback twice updates the one row instead of creating a
// second one; the handler always issues the same upsert statement.
func TestSubmitStoryFeedback_UpsertsSingleRow(t *testing.T) {
	h, mock, _ := newTestHandler(t)
	tok := testToken(t, h, "user_1", "owner")

	now := time.Now().UTC()
	for i, body := range []string{`{"liked":true}`, `{"liked":false,"comment":"changed my mind"}`} {
		expectActorLoad(mock, "user_1", "a@b.com", "owner", nil)
		mock.ExpectQuery(`SELECT id, user_id, title`).
			WithArgs("cs_1").
			WillReturnRows(caseStudyRow("cs_1", "user_1", "p", "c", true))
		mock.ExpectQuery(`INSERT INTO public\.story_feedback`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow("sfb_fixed", now, now))

		rr := httptest.NewRecorder()
		req := authed(httptest.NewRequest(http.MethodPost, "/api/case-studies/cs_1/feedback",
			bytes.NewBufferString(body)), tok)
		req = mux.SetURLVars(req, map[string]string{"id": "cs_1"})

		h.SubmitStoryFeedback(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("submit %d: expected 200 got %d body=%q", i, rr.Code, rr.Body.String())
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestListStoryFeedback_Success(t *testing.T) {
	h, mock, _ := newTestHandler(t)
	tok := testToken(t, h, "user_1", "owner")
	expectActorLoad(mock, "user_1", "a@b.com", "owner", nil)

	mock.ExpectQuery(`SELECT id, user_id, title`).
		WithArgs("cs_1").
		WillReturnRows(caseStudyRow("cs_1", "user_1", "p", "c", true))
	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, case_study_id, user_id, liked`).
		WithArgs("cs_1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "case_study_id", "user_id", "liked", "comment", "created_at", "updated_at"}).
			AddRow("sfb_1", "cs_1", "user_1", true, nil, now, now))

	rr := httptest.NewRecorder()
	req := authed(httptest.NewRequest(http.MethodGet, "/api/case-studies/cs_1/feedback", nil), tok)
	req = mux.SetURLVars(req, map[string]string{"id": "cs_1"})

	h.ListStoryFeedback(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%q", rr.Code, rr.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}
