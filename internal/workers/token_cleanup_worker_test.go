package workers

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestCleanup_DeletesFromAllTokenTables(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectExec(`DELETE FROM public\.invite_tokens`).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`DELETE FROM public\.oauth_states`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM public\.company_invites`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	w := &TokenCleanupWorker{DB: db, RetentionHours: 24}
	w.cleanup(context.Background())

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestCleanup_ContinuesPastTableError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectExec(`DELETE FROM public\.invite_tokens`).
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectExec(`DELETE FROM public\.oauth_states`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM public\.company_invites`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	w := &TokenCleanupWorker{DB: db, RetentionHours: 24}
	w.cleanup(context.Background())

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("error on one table must not stop the others: %v", err)
	}
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	w := &TokenCleanupWorker{DB: db}
	go func() {
		w.Start(ctx)
		close(done)
	}()

	<-done
}
