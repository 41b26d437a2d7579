package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/clientecho/backend/internal/models"
)

// SubmitFeedback stores general product feedback (rating 1-5 + comment).
func (h *Handler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		writeError(w, http.StatusBadRequest, "rating must be between 1 and 5")
		return
	}

	fb := models.Feedback{
		ID:     "fb_" + uuid.NewString(),
		UserID: actor.ID,
		Rating: req.Rating,
	}
	if c := strings.TrimSpace(req.Comment); c != "" {
		fb.Comment = &c
	}
	err := h.db.QueryRow(`
		INSERT INTO public.feedback (id, user_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING created_at
	`, fb.ID, fb.UserID, fb.Rating, fb.Comment).Scan(&fb.CreatedAt)
	if err != nil {
		log.Printf("[Feedback][Submit] error userId=%s: %v", actor.ID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, fb)
}

// SubmitStoryFeedback upserts the actor's reaction to one case study. The
// (case_study_id, user_id) uniqueness means submitting twice toggles or
// updates the existing row instead of duplicating it.
func (h *Handler) SubmitStoryFeedback(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	cs, ok := h.loadOwnedCaseStudy(w, actor, pathVar(r, "id"))
	if !ok {
		return
	}

	var req struct {
		Liked   bool   `json:"liked"`
		Comment string `json:"comment"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	fb := models.StoryFeedback{
		ID:          "sfb_" + uuid.NewString(),
		CaseStudyID: cs.ID,
		UserID:      actor.ID,
		Liked:       req.Liked,
	}
	if c := strings.TrimSpace(req.Comment); c != "" {
		fb.Comment = &c
	}
	err := h.db.QueryRow(`
		INSERT INTO public.story_feedback (id, case_study_id, user_id, liked, comment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (case_study_id, user_id) DO UPDATE SET
			liked = EXCLUDED.liked,
			comment = COALESCE(EXCLUDED.comment, public.story_feedback.comment),
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`, fb.ID, fb.CaseStudyID, fb.UserID, fb.Liked, fb.Comment).Scan(&fb.ID, &fb.CreatedAt, &fb.UpdatedAt)
	if err != nil {
		log.Printf("[Feedback][Story] upsert error caseStudyId=%s userId=%s: %v", cs.ID, actor.ID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, fb)
}

// ListStoryFeedback returns the reactions on one case study.
func (h *Handler) ListStoryFeedback(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	cs, ok := h.loadOwnedCaseStudy(w, actor, pathVar(r, "id"))
	if !ok {
		return
	}

	rows, err := h.db.Query(`
		SELECT id, case_study_id, user_id, liked, comment, created_at, updated_at
		  FROM public.story_feedback
		 WHERE case_study_id = $1
		 ORDER BY updated_at DESC
	`, cs.ID)
	if err != nil {
		log.Printf("[Feedback][StoryList] query error caseStudyId=%s: %v", cs.ID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer rows.Close()

	out := make([]models.StoryFeedback, 0)
	for rows.Next() {
		var fb models.StoryFeedback
		if err := rows.Scan(&fb.ID, &fb.CaseStudyID, &fb.UserID, &fb.Liked, &fb.Comment, &fb.CreatedAt, &fb.UpdatedAt); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out = append(out, fb)
	}
	writeJSON(w, http.StatusOK, out)
}
