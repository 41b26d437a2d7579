package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clientecho/backend/internal/models"
	"github.com/clientecho/backend/internal/textutil"
)

// sessionStore keeps in-flight interview Q&A sessions in memory. Entries
// expire after the TTL; sweep() is driven by the cleanup worker cadence.
type sessionStore struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[string]*interviewSession
}

type interviewSession struct {
	CaseStudyID string
	Side        string // "provider" or "client"
	Turns       []string
	UpdatedAt   time.Time
}

func newSessionStore(ttl time.Duration) *sessionStore {
	return &sessionStore{ttl: ttl, m: make(map[string]*interviewSession)}
}

func (s *sessionStore) get(id string) (*interviewSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.m[id]
	if !ok || time.Since(sess.UpdatedAt) > s.ttl {
		delete(s.m, id)
		return nil, false
	}
	return sess, true
}

func (s *sessionStore) put(id string, sess *interviewSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.UpdatedAt = time.Now()
	s.m[id] = sess
}

// sweep drops expired sessions and returns how many were evicted.
func (s *sessionStore) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, sess := range s.m {
		if time.Since(sess.UpdatedAt) > s.ttl {
			delete(s.m, id)
			evicted++
		}
	}
	return evicted
}

// SweepSessions is called by the cleanup worker.
func (h *Handler) SweepSessions() int { return h.sessions.sweep() }

// SubmitProviderInterview stores the provider transcript, summarizes it and
// backfills title/entities from the extraction prompt when the case study
// still has placeholders.
func (h *Handler) SubmitProviderInterview(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	cs, ok := h.loadOwnedCaseStudy(w, actor, pathVar(r, "id"))
	if !ok {
		return
	}

	var req struct {
		Transcript string `json:"transcript"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Transcript == "" {
		writeError(w, http.StatusBadRequest, "transcript is required")
		return
	}

	cleaned := textutil.CleanTranscript(req.Transcript)
	lang := cs.Language
	if lang == "" || lang == "en" {
		lang = textutil.DetectLanguage(cleaned)
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	summary, err := h.ai.SummarizeInterview(ctx, cleaned, "solution provider", lang)
	if err != nil {
		log.Printf("[Interviews][Provider] summarize failed caseStudyId=%s: %v", cs.ID, err)
		writeError(w, http.StatusBadGateway, "Summarization failed")
		return
	}

	interview := models.ProviderInterview{
		ID:          "pi_" + uuid.NewString(),
		CaseStudyID: cs.ID,
		Transcript:  cleaned,
		Summary:     &summary,
	}
	// One provider interview per case study: re-submission overwrites.
	err = h.db.QueryRow(`
		INSERT INTO public.provider_interviews (id, case_study_id, transcript, summary, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (case_study_id) DO UPDATE SET
			transcript = EXCLUDED.transcript,
			summary = EXCLUDED.summary,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`, interview.ID, cs.ID, cleaned, summary).Scan(&interview.ID, &interview.CreatedAt, &interview.UpdatedAt)
	if err != nil {
		log.Printf("[Interviews][Provider] upsert error caseStudyId=%s: %v", cs.ID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	info := h.ai.ExtractProjectInfo(ctx, summary)
	_, err = h.db.Exec(`
		UPDATE public.case_studies
		   SET provider_summary = $2,
		       language = $3,
		       title = CASE WHEN title IN ('', 'Untitled Case Study') THEN $4 ELSE title END,
		       lead_entity = CASE WHEN lead_entity IN ('', 'Unknown') THEN $5 ELSE lead_entity END,
		       partner_entity = CASE WHEN partner_entity IN ('', 'Unknown') THEN $6 ELSE partner_entity END,
		       updated_at = NOW()
		 WHERE id = $1
	`, cs.ID, summary, lang, info.ProjectTitle, info.LeadEntity, info.PartnerEntity)
	if err != nil {
		log.Printf("[Interviews][Provider] case study update error id=%s: %v", cs.ID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"interview": interview, "summary": summary, "projectInfo": info})
}

// CreateInviteToken mints the single-use client interview link and mails it
// when an email is supplied.
func (h *Handler) CreateInviteToken(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	cs, ok := h.loadOwnedCaseStudy(w, actor, pathVar(r, "id"))
	if !ok {
		return
	}

	var req struct {
		ClientEmail string `json:"clientEmail"`
	}
	_ = decodeJSON(r, &req)

	token := models.InviteToken{
		ID:          "inv_" + uuid.NewString(),
		Token:       randHex(24),
		CaseStudyID: cs.ID,
		ExpiresAt:   time.Now().UTC().Add(7 * 24 * time.Hour),
	}
	err := h.db.QueryRow(`
		INSERT INTO public.invite_tokens (id, token, case_study_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING created_at
	`, token.ID, token.Token, token.CaseStudyID, token.ExpiresAt).Scan(&token.CreatedAt)
	if err != nil {
		log.Printf("[Interviews][Invite] insert error caseStudyId=%s: %v", cs.ID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	link := fmt.Sprintf("%s/client-interview/%s", h.publicOrigin, token.Token)
	if req.ClientEmail != "" {
		if err := h.mail.SendClientInvite(req.ClientEmail, cs.LeadEntity, link); err != nil {
			log.Printf("[Interviews][Invite] mail error caseStudyId=%s email=%s: %v", cs.ID, req.ClientEmail, err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"token": token, "link": link})
}

// GetClientInterview validates an invite token (without consuming it) and
// returns what the client needs to run the interview.
func (h *Handler) GetClientInterview(w http.ResponseWriter, r *http.Request) {
	tokenStr := pathVar(r, "token")

	var cs models.CaseStudy
	var usedAt sql.NullTime
	err := h.db.QueryRow(`
		SELECT c.id, c.title, c.lead_entity, c.partner_entity, c.language, t.used_at
		  FROM public.invite_tokens t
		  JOIN public.case_studies c ON c.id = t.case_study_id
		 WHERE t.token = $1 AND t.expires_at > NOW()
	`, tokenStr).Scan(&cs.ID, &cs.Title, &cs.LeadEntity, &cs.PartnerEntity, &cs.Language, &usedAt)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "Invite link is invalid or has expired")
		return
	}
	if err != nil {
		log.Printf("[Interviews][ClientGet] query error: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if usedAt.Valid {
		writeError(w, http.StatusGone, "This interview has already been submitted")
		return
	}

	// Open (or refresh) the in-memory Q&A session for this link.
	h.sessions.put(tokenStr, &interviewSession{CaseStudyID: cs.ID, Side: "client"})

	writeJSON(w, http.StatusOK, map[string]any{
		"caseStudyId":   cs.ID,
		"title":         cs.Title,
		"leadEntity":    cs.LeadEntity,
		"partnerEntity": cs.PartnerEntity,
		"language":      cs.Language,
	})
}

// SubmitClientInterview consumes the invite token (exactly once, enforced by
// the conditional UPDATE) and stores + summarizes the client transcript.
func (h *Handler) SubmitClientInterview(w http.ResponseWriter, r *http.Request) {
	tokenStr := pathVar(r, "token")

	var req struct {
		Transcript string `json:"transcript"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Transcript == "" {
		writeError(w, http.StatusBadRequest, "transcript is required")
		return
	}

	var caseStudyID string
	err := h.db.QueryRow(`
		UPDATE public.invite_tokens
		   SET used_at = NOW()
		 WHERE token = $1
		   AND used_at IS NULL
		   AND expires_at > NOW()
		 RETURNING case_study_id
	`, tokenStr).Scan(&caseStudyID)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusGone, "Invite link is invalid, expired or already used")
		return
	}
	if err != nil {
		log.Printf("[Interviews][ClientSubmit] consume error: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var lang, ownerID string
	if err := h.db.QueryRow(`SELECT language, user_id FROM public.case_studies WHERE id = $1`, caseStudyID).
		Scan(&lang, &ownerID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	cleaned := textutil.CleanTranscript(req.Transcript)

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()
	summary, err := h.ai.SummarizeInterview(ctx, cleaned, "client", lang)
	if err != nil {
		// Token already consumed; store the raw transcript so nothing is
		// lost and let summarization be retried by support tooling.
		log.Printf("[Interviews][ClientSubmit] summarize failed caseStudyId=%s: %v", caseStudyID, err)
		summary = ""
	}

	_, err = h.db.Exec(`
		INSERT INTO public.client_interviews (id, case_study_id, transcript, summary, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NOW(), NOW())
		ON CONFLICT (case_study_id) DO UPDATE SET
			transcript = EXCLUDED.transcript,
			summary = COALESCE(EXCLUDED.summary, public.client_interviews.summary),
			updated_at = NOW()
	`, "ci_"+uuid.NewString(), caseStudyID, cleaned, summary)
	if err != nil {
		log.Printf("[Interviews][ClientSubmit] upsert error caseStudyId=%s: %v", caseStudyID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	_, err = h.db.Exec(`
		UPDATE public.case_studies
		   SET client_summary = COALESCE(NULLIF($2, ''), client_summary),
		       client_submitted = TRUE,
		       updated_at = NOW()
		 WHERE id = $1
	`, caseStudyID, summary)
	if err != nil {
		log.Printf("[Interviews][ClientSubmit] case study update error id=%s: %v", caseStudyID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.sessions.mu.Lock()
	delete(h.sessions.m, tokenStr)
	h.sessions.mu.Unlock()

	h.emitEvent(ownerID, realtimeEvent{
		Type:        "client.submitted",
		CaseStudyID: caseStudyID,
		At:          time.Now().UTC().Format(time.RFC3339),
	})

	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
