package workers

import (
	"context"
	"database/sql"
	"log"
	"time"
)

// TokenCleanupWorker purges expired single-use tokens (client interview
// invites, OAuth states, company invites) and sweeps stale in-memory
// interview sessions.
type TokenCleanupWorker struct {
	DB              *sql.DB
	RetentionHours  int    // How long to keep expired tokens (default: 24)
	CheckIntervalMs int    // How often to run cleanup (default: 3600000 = 1 hour)
	SweepSessions   func() // Optional in-memory session sweep hook
}

// Start begins the token cleanup worker loop.
func (w *TokenCleanupWorker) Start(ctx context.Context) {
	if w.RetentionHours <= 0 {
		w.RetentionHours = 24
	}
	if w.CheckIntervalMs <= 0 {
		w.CheckIntervalMs = 3600000 // 1 hour
	}

	ticker := time.NewTicker(time.Duration(w.CheckIntervalMs) * time.Millisecond)
	defer ticker.Stop()

	log.Printf("[TokenCleanupWorker] started (retention=%dh, interval=%dms)", w.RetentionHours, w.CheckIntervalMs)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[TokenCleanupWorker] stopped")
			return
		case <-ticker.C:
			w.cleanup(ctx)
			if w.SweepSessions != nil {
				w.SweepSessions()
			}
		}
	}
}

// cleanup removes tokens that expired more than the retention period ago.
// Used rows are kept inside the window so a late duplicate submit still
// gets a clean "already used" answer instead of "not found".
func (w *TokenCleanupWorker) cleanup(ctx context.Context) {
	cutoff := time.Now().Add(-time.Duration(w.RetentionHours) * time.Hour)

	tables := []string{
		"public.invite_tokens",
		"public.oauth_states",
		"public.company_invites",
	}
	for _, table := range tables {
		result, err := w.DB.ExecContext(ctx, `
			DELETE FROM `+table+`
			WHERE expires_at < $1
		`, cutoff)
		if err != nil {
			log.Printf("[TokenCleanupWorker] %s error: %v", table, err)
			continue
		}
		deleted, err := result.RowsAffected()
		if err != nil {
			log.Printf("[TokenCleanupWorker] %s rows affected error: %v", table, err)
			continue
		}
		if deleted > 0 {
			log.Printf("[TokenCleanupWorker] deleted %d expired rows from %s", deleted, table)
		}
	}
}
