package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/clientecho/backend/internal/metadata"
	"github.com/clientecho/backend/internal/models"
)

var errNoCredits = errors.New("no story credits remaining")

const caseStudyColumns = `id, user_id, title, lead_entity, partner_entity, language,
       provider_summary, client_summary, final_summary, sentiment_score, sentiment_category,
       linkedin_post, video_id, podcast_id, story_counted, client_submitted, generated_at,
       created_at, updated_at`

func scanCaseStudy(row interface{ Scan(...any) error }) (models.CaseStudy, error) {
	var cs models.CaseStudy
	var providerSummary, clientSummary, finalSummary, sentimentCategory sql.NullString
	var linkedinPost, videoID, podcastID sql.NullString
	var sentimentScore sql.NullFloat64
	var generatedAt sql.NullTime
	err := row.Scan(&cs.ID, &cs.UserID, &cs.Title, &cs.LeadEntity, &cs.PartnerEntity, &cs.Language,
		&providerSummary, &clientSummary, &finalSummary, &sentimentScore, &sentimentCategory,
		&linkedinPost, &videoID, &podcastID, &cs.StoryCounted, &cs.ClientSubmitted, &generatedAt,
		&cs.CreatedAt, &cs.UpdatedAt)
	if err != nil {
		return cs, err
	}
	cs.ProviderSummary = nullStrPtr(providerSummary)
	cs.ClientSummary = nullStrPtr(clientSummary)
	cs.FinalSummary = nullStrPtr(finalSummary)
	cs.SentimentScore = nullFloatPtr(sentimentScore)
	cs.SentimentCategory = nullStrPtr(sentimentCategory)
	cs.LinkedInPost = nullStrPtr(linkedinPost)
	cs.VideoID = nullStrPtr(videoID)
	cs.PodcastID = nullStrPtr(podcastID)
	cs.GeneratedAt = nullTimePtr(generatedAt)
	return cs, nil
}

// loadOwnedCaseStudy fetches the case study and enforces that the actor owns
// it (or owns the company of the user who does).
func (h *Handler) loadOwnedCaseStudy(w http.ResponseWriter, actor models.User, id string) (models.CaseStudy, bool) {
	row := h.db.QueryRow(`SELECT `+caseStudyColumns+` FROM public.case_studies WHERE id = $1`, id)
	cs, err := scanCaseStudy(row)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "Case study not found")
		return cs, false
	}
	if err != nil {
		log.Printf("[CaseStudies][Load] query error id=%s: %v", id, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return cs, false
	}
	if cs.UserID != actor.ID && !h.ownsCompanyOf(actor, cs.UserID) {
		writeError(w, http.StatusForbidden, "Not allowed")
		return cs, false
	}
	return cs, true
}

// ownsCompanyOf reports whether actor is the owner of targetUserID's company.
func (h *Handler) ownsCompanyOf(actor models.User, targetUserID string) bool {
	if actor.Role != "owner" || actor.CompanyID == nil {
		return false
	}
	var n int
	err := h.db.QueryRow(`SELECT COUNT(*) FROM public.users WHERE id = $1 AND company_id = $2`,
		targetUserID, *actor.CompanyID).Scan(&n)
	return err == nil && n > 0
}

// CreateCaseStudy opens a new work item; the provider interview is attached
// by a later transcript submission.
func (h *Handler) CreateCaseStudy(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Title         string `json:"title"`
		LeadEntity    string `json:"leadEntity"`
		PartnerEntity string `json:"partnerEntity"`
		Language      string `json:"language"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Language == "" {
		req.Language = "en"
	}
	if req.Title == "" {
		req.Title = "Untitled Case Study"
	}

	cs := models.CaseStudy{
		ID:            "cs_" + uuid.NewString(),
		UserID:        actor.ID,
		Title:         req.Title,
		LeadEntity:    orUnknown(req.LeadEntity),
		PartnerEntity: orUnknown(req.PartnerEntity),
		Language:      req.Language,
	}
	err := h.db.QueryRow(`
		INSERT INTO public.case_studies (id, user_id, title, lead_entity, partner_entity, language, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING created_at, updated_at
	`, cs.ID, cs.UserID, cs.Title, cs.LeadEntity, cs.PartnerEntity, cs.Language).Scan(&cs.CreatedAt, &cs.UpdatedAt)
	if err != nil {
		log.Printf("[CaseStudies][Create] insert error userId=%s: %v", actor.ID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, cs)
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// ListCaseStudies returns the actor's case studies (company owners see the
// whole company) with labels and creator info attached per row.
func (h *Handler) ListCaseStudies(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	limit := parseLimit(r, 50, 1, 200)

	var rows *sql.Rows
	var err error
	if actor.Role == "owner" && actor.CompanyID != nil {
		rows, err = h.db.Query(`
			SELECT `+caseStudyColumns+`
			  FROM public.case_studies
			 WHERE user_id IN (SELECT id FROM public.users WHERE company_id = $1)
			 ORDER BY created_at DESC
			 LIMIT $2
		`, *actor.CompanyID, limit)
	} else {
		rows, err = h.db.Query(`
			SELECT `+caseStudyColumns+`
			  FROM public.case_studies
			 WHERE user_id = $1
			 ORDER BY created_at DESC
			 LIMIT $2
		`, actor.ID, limit)
	}
	if err != nil {
		log.Printf("[CaseStudies][List] query error userId=%s: %v", actor.ID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer rows.Close()

	studies := make([]models.CaseStudy, 0)
	for rows.Next() {
		cs, err := scanCaseStudy(rows)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		studies = append(studies, cs)
	}
	if err := rows.Err(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	for i := range studies {
		studies[i].Labels = h.labelsForCaseStudy(studies[i].ID)
		if creator, err := h.getUser(studies[i].UserID); err == nil {
			creator.StripeCustomerID, creator.StripeSubscriptionID = nil, nil
			studies[i].Creator = &creator
		}
	}

	writeJSON(w, http.StatusOK, studies)
}

func (h *Handler) GetCaseStudy(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	cs, ok := h.loadOwnedCaseStudy(w, actor, pathVar(r, "id"))
	if !ok {
		return
	}
	cs.Labels = h.labelsForCaseStudy(cs.ID)
	writeJSON(w, http.StatusOK, cs)
}

func (h *Handler) UpdateCaseStudy(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	cs, ok := h.loadOwnedCaseStudy(w, actor, pathVar(r, "id"))
	if !ok {
		return
	}

	var req struct {
		Title         *string `json:"title"`
		LeadEntity    *string `json:"leadEntity"`
		PartnerEntity *string `json:"partnerEntity"`
		FinalSummary  *string `json:"finalSummary"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	row := h.db.QueryRow(`
		UPDATE public.case_studies
		   SET title          = COALESCE(NULLIF($2, ''), title),
		       lead_entity    = COALESCE(NULLIF($3, ''), lead_entity),
		       partner_entity = COALESCE(NULLIF($4, ''), partner_entity),
		       final_summary  = COALESCE(NULLIF($5, ''), final_summary),
		       updated_at     = NOW()
		 WHERE id = $1
		 RETURNING `+caseStudyColumns,
		cs.ID, strVal(req.Title), strVal(req.LeadEntity), strVal(req.PartnerEntity), strVal(req.FinalSummary))

	updated, err := scanCaseStudy(row)
	if err != nil {
		log.Printf("[CaseStudies][Update] error id=%s: %v", cs.ID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteCaseStudy(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	cs, ok := h.loadOwnedCaseStudy(w, actor, pathVar(r, "id"))
	if !ok {
		return
	}

	// Child rows (interviews, tokens, labels links, feedback) go via ON
	// DELETE CASCADE in the schema.
	if _, err := h.db.Exec(`DELETE FROM public.case_studies WHERE id = $1`, cs.ID); err != nil {
		log.Printf("[CaseStudies][Delete] error id=%s: %v", cs.ID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// SetCaseStudyLabels replaces the label set on a case study. Only labels
// owned by the actor can be attached.
func (h *Handler) SetCaseStudyLabels(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	cs, ok := h.loadOwnedCaseStudy(w, actor, pathVar(r, "id"))
	if !ok {
		return
	}

	var req struct {
		LabelIDs []string `json:"labelIds"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tx, err := h.db.Begin()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM public.case_study_labels WHERE case_study_id = $1`, cs.ID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(req.LabelIDs) > 0 {
		res, err := tx.Exec(`
			INSERT INTO public.case_study_labels (case_study_id, label_id)
			SELECT $1, id FROM public.labels WHERE id = ANY($2) AND user_id = $3
		`, cs.ID, pq.Array(req.LabelIDs), actor.ID)
		if err != nil {
			log.Printf("[CaseStudies][Labels] attach error id=%s: %v", cs.ID, err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if n, _ := res.RowsAffected(); int(n) != len(req.LabelIDs) {
			writeError(w, http.StatusBadRequest, "One or more labels do not exist or are not yours")
			return
		}
	}
	if err := tx.Commit(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "labels": h.labelsForCaseStudy(cs.ID)})
}

func (h *Handler) labelsForCaseStudy(caseStudyID string) []models.Label {
	rows, err := h.db.Query(`
		SELECT l.id, l.user_id, l.name, l.color, l.created_at
		  FROM public.labels l
		  JOIN public.case_study_labels csl ON csl.label_id = l.id
		 WHERE csl.case_study_id = $1
		 ORDER BY l.name ASC
	`, caseStudyID)
	if err != nil {
		log.Printf("[CaseStudies][Labels] list error id=%s: %v", caseStudyID, err)
		return nil
	}
	defer rows.Close()

	var labels []models.Label
	for rows.Next() {
		var l models.Label
		if err := rows.Scan(&l.ID, &l.UserID, &l.Name, &l.Color, &l.CreatedAt); err != nil {
			return labels
		}
		labels = append(labels, l)
	}
	return labels
}

// recordStoryCreation debits one story credit inside tx. The conditional
// UPDATE is the whole guarantee: the counter can never pass the quota and
// never goes negative, and a user out of credits gets errNoCredits.
func recordStoryCreation(tx *sql.Tx, userID string) error {
	// Lazy monthly rollover before the debit.
	_, _ = tx.Exec(`
		UPDATE public.users
		   SET stories_used_this_month = 0,
		       usage_reset_at = date_trunc('month', NOW()) + interval '1 month'
		 WHERE id = $1 AND usage_reset_at IS NOT NULL AND usage_reset_at <= NOW()
	`, userID)

	res, err := tx.Exec(`
		UPDATE public.users
		   SET stories_used_this_month = stories_used_this_month + 1
		 WHERE id = $1
		   AND stories_used_this_month < stories_quota
	`, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errNoCredits
	}
	return nil
}

// GenerateFullCaseStudy merges both interview summaries into the final
// narrative, extracts metadata, scores sentiment and renders the chart
// BLOBs. The story_counted claim is a conditional UPDATE so two concurrent
// generate calls cannot both debit a credit.
func (h *Handler) GenerateFullCaseStudy(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	cs, ok := h.loadOwnedCaseStudy(w, actor, pathVar(r, "id"))
	if !ok {
		return
	}
	if cs.ProviderSummary == nil || *cs.ProviderSummary == "" {
		writeError(w, http.StatusBadRequest, "Provider interview has not been summarized yet")
		return
	}
	if cs.ClientSummary == nil || *cs.ClientSummary == "" {
		writeError(w, http.StatusBadRequest, "Client interview has not been submitted yet")
		return
	}

	claimed := false
	if !cs.StoryCounted {
		tx, err := h.db.Begin()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		res, err := tx.Exec(`
			UPDATE public.case_studies
			   SET story_counted = TRUE, updated_at = NOW()
			 WHERE id = $1 AND story_counted = FALSE
		`, cs.ID)
		if err != nil {
			tx.Rollback()
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if n, _ := res.RowsAffected(); n == 1 {
			if err := recordStoryCreation(tx, cs.UserID); err != nil {
				tx.Rollback()
				if errors.Is(err, errNoCredits) {
					writeError(w, http.StatusPaymentRequired, "No story credits remaining this month")
					return
				}
				log.Printf("[CaseStudies][Generate] debit error id=%s: %v", cs.ID, err)
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			claimed = true
		}
		if err := tx.Commit(); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Minute)
	defer cancel()

	merged, err := h.ai.MergeCaseStudy(ctx, *cs.ProviderSummary, *cs.ClientSummary, cs.Language)
	if err != nil {
		if claimed {
			h.undoStoryClaim(cs.ID, cs.UserID)
		}
		log.Printf("[CaseStudies][Generate] merge failed id=%s: %v", cs.ID, err)
		writeError(w, http.StatusBadGateway, "Story generation failed, credit was not used")
		return
	}

	sentiment := metadata.Analyze(*cs.ClientSummary)
	sentimentChart, err := metadata.SentimentBarChart(sentiment)
	if err != nil {
		log.Printf("[CaseStudies][Generate] sentiment chart failed id=%s: %v", cs.ID, err)
	}
	satisfactionChart, err := metadata.SatisfactionDonut(sentiment.Category)
	if err != nil {
		log.Printf("[CaseStudies][Generate] satisfaction chart failed id=%s: %v", cs.ID, err)
	}

	linkedinPost, err := h.ai.DraftLinkedInPost(ctx, merged.MainStory, cs.Language)
	if err != nil {
		log.Printf("[CaseStudies][Generate] linkedin draft failed id=%s: %v", cs.ID, err)
		linkedinPost = ""
	}

	quotesJSON, _ := json.Marshal(merged.Quotes)
	correctedJSON, _ := json.Marshal(merged.CorrectedReplies)
	takeawaysJSON, _ := json.Marshal(merged.Takeaways)

	_, err = h.db.Exec(`
		UPDATE public.case_studies
		   SET final_summary = $2,
		       meta_quotes = $3::jsonb,
		       meta_corrected = $4::jsonb,
		       meta_takeaways = $5::jsonb,
		       sentiment_score = $6,
		       sentiment_category = $7,
		       sentiment_chart = $8,
		       satisfaction_chart = $9,
		       linkedin_post = NULLIF($10, ''),
		       generated_at = NOW(),
		       updated_at = NOW()
		 WHERE id = $1
	`, cs.ID, merged.MainStory, string(quotesJSON), string(correctedJSON), string(takeawaysJSON),
		sentiment.Compound, sentiment.Category, sentimentChart, satisfactionChart, linkedinPost)
	if err != nil {
		if claimed {
			h.undoStoryClaim(cs.ID, cs.UserID)
		}
		log.Printf("[CaseStudies][Generate] persist error id=%s: %v", cs.ID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.emitEvent(cs.UserID, realtimeEvent{
		Type:        "story.generated",
		CaseStudyID: cs.ID,
		At:          time.Now().UTC().Format(time.RFC3339),
	})

	log.Printf("[CaseStudies][Generate] done id=%s userId=%s quotes=%d corrected=%d sentiment=%s",
		cs.ID, cs.UserID, len(merged.Quotes), len(merged.CorrectedReplies), sentiment.Category)

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "success",
		"finalSummary": merged.MainStory,
		"metadata": models.StoryMetadata{
			Quotes:            merged.Quotes,
			CorrectedReplies:  merged.CorrectedReplies,
			Takeaways:         merged.Takeaways,
			SentimentScore:    sentiment.Compound,
			SentimentCategory: sentiment.Category,
		},
		"linkedinPost": linkedinPost,
	})
}

// undoStoryClaim reverses the story_counted claim and refunds the credit
// after a failed generation. GREATEST keeps the counter from going negative
// even if a webhook reset landed in between.
func (h *Handler) undoStoryClaim(caseStudyID, userID string) {
	_, err := h.db.Exec(`
		UPDATE public.case_studies SET story_counted = FALSE, updated_at = NOW() WHERE id = $1
	`, caseStudyID)
	if err != nil {
		log.Printf("[CaseStudies][Generate] unclaim error id=%s: %v", caseStudyID, err)
	}
	_, err = h.db.Exec(`
		UPDATE public.users SET stories_used_this_month = GREATEST(stories_used_this_month - 1, 0) WHERE id = $1
	`, userID)
	if err != nil {
		log.Printf("[CaseStudies][Generate] refund error userId=%s: %v", userID, err)
	}
}
