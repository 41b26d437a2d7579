package handlers

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestConsumeOAuthState_SingleUse(t *testing.T) {
	h, mock, _ := newTestHandler(t)

	mock.ExpectQuery(`UPDATE public\.oauth_states`).
		WithArgs("state1", "linkedin").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("user_1"))

	userID, ok := h.consumeOAuthState("state1", "linkedin")
	if !ok || userID != "user_1" {
		t.Fatalf("expected first consume to succeed, got ok=%v userID=%q", ok, userID)
	}

	// Second consume: used_at is already set, the UPDATE matches nothing.
	mock.ExpectQuery(`UPDATE public\.oauth_states`).
		WithArgs("state1", "linkedin").
		WillReturnError(sql.ErrNoRows)

	if _, ok := h.consumeOAuthState("state1", "linkedin"); ok {
		t.Fatalf("expected second consume to fail")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestConsumeOAuthState_WrongProvider(t *testing.T) {
	h, mock, _ := newTestHandler(t)

	mock.ExpectQuery(`UPDATE public\.oauth_states`).
		WithArgs("state1", "slack").
		WillReturnError(sql.ErrNoRows)

	if _, ok := h.consumeOAuthState("state1", "slack"); ok {
		t.Fatalf("expected consume with wrong provider to fail")
	}
}

func TestMintOAuthState_InsertsRow(t *testing.T) {
	h, mock, _ := newTestHandler(t)

	mock.ExpectExec(`INSERT INTO public\.oauth_states`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	state, err := h.mintOAuthState("user_1", "teams")
	if err != nil {
		t.Fatalf("mintOAuthState: %v", err)
	}
	if len(state) != 48 {
		t.Fatalf("expected 48-char hex state got %d chars", len(state))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}
