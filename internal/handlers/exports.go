package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/clientecho/backend/internal/docgen"
	"github.com/clientecho/backend/internal/models"
)

// loadStoryDocument assembles the export payload for a generated case study.
func (h *Handler) loadStoryDocument(cs models.CaseStudy) (docgen.StoryDocument, error) {
	doc := docgen.StoryDocument{
		Title:         cs.Title,
		LeadEntity:    cs.LeadEntity,
		PartnerEntity: cs.PartnerEntity,
	}
	if cs.FinalSummary == nil || *cs.FinalSummary == "" {
		return doc, fmt.Errorf("case study has not been generated yet")
	}
	doc.FinalSummary = *cs.FinalSummary
	if cs.GeneratedAt != nil {
		doc.GeneratedAt = *cs.GeneratedAt
	} else {
		doc.GeneratedAt = time.Now().UTC()
	}

	var quotesRaw, correctedRaw, takeawaysRaw sql.NullString
	err := h.db.QueryRow(`
		SELECT meta_quotes::text, meta_corrected::text, meta_takeaways::text
		  FROM public.case_studies WHERE id = $1
	`, cs.ID).Scan(&quotesRaw, &correctedRaw, &takeawaysRaw)
	if err != nil {
		return doc, err
	}
	if quotesRaw.Valid {
		_ = json.Unmarshal([]byte(quotesRaw.String), &doc.Quotes)
	}
	if correctedRaw.Valid {
		_ = json.Unmarshal([]byte(correctedRaw.String), &doc.CorrectedReplies)
	}
	if takeawaysRaw.Valid {
		_ = json.Unmarshal([]byte(takeawaysRaw.String), &doc.Takeaways)
	}
	return doc, nil
}

// DownloadPDF streams the case study as application/pdf.
func (h *Handler) DownloadPDF(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	cs, ok := h.loadOwnedCaseStudy(w, actor, pathVar(r, "id"))
	if !ok {
		return
	}

	doc, err := h.loadStoryDocument(cs)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	data, err := docgen.RenderPDF(doc)
	if err != nil {
		log.Printf("[Exports][PDF] render error id=%s: %v", cs.ID, err)
		writeError(w, http.StatusInternalServerError, "PDF generation failed")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="case-study-%s.pdf"`, cs.ID))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// DownloadWord streams the case study as a .docx document.
func (h *Handler) DownloadWord(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	cs, ok := h.loadOwnedCaseStudy(w, actor, pathVar(r, "id"))
	if !ok {
		return
	}

	doc, err := h.loadStoryDocument(cs)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	data, err := docgen.RenderWord(doc)
	if err != nil {
		log.Printf("[Exports][Word] render error id=%s: %v", cs.ID, err)
		writeError(w, http.StatusInternalServerError, "Word generation failed")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="case-study-%s.docx"`, cs.ID))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// DownloadSentimentChart streams the stored sentiment chart PNG.
func (h *Handler) DownloadSentimentChart(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	cs, ok := h.loadOwnedCaseStudy(w, actor, pathVar(r, "id"))
	if !ok {
		return
	}

	var data []byte
	err := h.db.QueryRow(`SELECT sentiment_chart FROM public.case_studies WHERE id = $1`, cs.ID).Scan(&data)
	if err != nil || len(data) == 0 {
		writeError(w, http.StatusNotFound, "No sentiment chart for this case study")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// DownloadQuoteCard renders (and caches) the share-card PNG for the first
// extracted quote, or a caller-chosen index via ?quote=N.
func (h *Handler) DownloadQuoteCard(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	cs, ok := h.loadOwnedCaseStudy(w, actor, pathVar(r, "id"))
	if !ok {
		return
	}
	if h.cards == nil {
		writeError(w, http.StatusServiceUnavailable, "Quote cards not configured")
		return
	}

	doc, err := h.loadStoryDocument(cs)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(doc.Quotes) == 0 {
		writeError(w, http.StatusNotFound, "No quotes extracted for this case study")
		return
	}
	idx := 1
	if v := r.URL.Query().Get("quote"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > len(doc.Quotes) {
			writeError(w, http.StatusBadRequest, "quote index out of range")
			return
		}
		idx = n
	}

	attribution := cs.PartnerEntity
	data, err := h.cards.Render(doc.Quotes[idx-1], attribution)
	if err != nil {
		log.Printf("[Exports][QuoteCard] render error id=%s: %v", cs.ID, err)
		writeError(w, http.StatusInternalServerError, "Quote card rendering failed")
		return
	}

	if _, err := h.db.Exec(`UPDATE public.case_studies SET quote_card = $2 WHERE id = $1`, cs.ID, data); err != nil {
		log.Printf("[Exports][QuoteCard] cache error id=%s: %v", cs.ID, err)
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
