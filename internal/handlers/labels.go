package handlers

import (
	"database/sql"
	"hash/fnv"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/clientecho/backend/internal/models"
)

// labelPalette is cycled deterministically by label name so the same name
// always gets the same color for a user.
var labelPalette = []string{
	"#e74c3c", "#e67e22", "#f1c40f", "#2ecc71", "#1abc9c",
	"#3498db", "#9b59b6", "#34495e", "#fd79a8", "#00b894",
}

func autoColor(name string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(name))))
	return labelPalette[h.Sum32()%uint32(len(labelPalette))]
}

func (h *Handler) ListLabels(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	rows, err := h.db.Query(`
		SELECT id, user_id, name, color, created_at
		  FROM public.labels
		 WHERE user_id = $1
		 ORDER BY name ASC
	`, actor.ID)
	if err != nil {
		log.Printf("[Labels][List] query error userId=%s: %v", actor.ID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer rows.Close()

	labels := make([]models.Label, 0)
	for rows.Next() {
		var l models.Label
		if err := rows.Scan(&l.ID, &l.UserID, &l.Name, &l.Color, &l.CreatedAt); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		labels = append(labels, l)
	}
	if err := rows.Err(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, labels)
}

func (h *Handler) CreateLabel(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Color == "" {
		req.Color = autoColor(req.Name)
	}

	label := models.Label{
		ID:     "lbl_" + uuid.NewString(),
		UserID: actor.ID,
		Name:   req.Name,
		Color:  req.Color,
	}
	err := h.db.QueryRow(`
		INSERT INTO public.labels (id, user_id, name, color, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id, name) DO UPDATE SET color = EXCLUDED.color
		RETURNING id, created_at
	`, label.ID, label.UserID, label.Name, label.Color).Scan(&label.ID, &label.CreatedAt)
	if err != nil {
		log.Printf("[Labels][Create] error userId=%s: %v", actor.ID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, label)
}

func (h *Handler) DeleteLabel(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	id := pathVar(r, "id")

	res, err := h.db.Exec(`DELETE FROM public.labels WHERE id = $1 AND user_id = $2`, id, actor.ID)
	if err != nil {
		log.Printf("[Labels][Delete] error id=%s: %v", id, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		writeError(w, http.StatusNotFound, "Label not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *Handler) RenameLabel(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	id := pathVar(r, "id")

	var req struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var label models.Label
	err := h.db.QueryRow(`
		UPDATE public.labels
		   SET name  = COALESCE(NULLIF($3, ''), name),
		       color = COALESCE(NULLIF($4, ''), color)
		 WHERE id = $1 AND user_id = $2
		 RETURNING id, user_id, name, color, created_at
	`, id, actor.ID, strings.TrimSpace(req.Name), req.Color).
		Scan(&label.ID, &label.UserID, &label.Name, &label.Color, &label.CreatedAt)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "Label not found")
		return
	}
	if err != nil {
		log.Printf("[Labels][Rename] error id=%s: %v", id, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, label)
}
