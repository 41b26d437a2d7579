package handlers

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/clientecho/backend/internal/ai"
	"github.com/clientecho/backend/internal/mailer"
	"github.com/clientecho/backend/internal/models"
	"github.com/clientecho/backend/internal/quotecard"
	"github.com/clientecho/backend/internal/social"
)

type Handler struct {
	db       *sql.DB
	ai       *ai.Client
	cipher   *social.TokenCipher
	mail     *mailer.Mailer
	cards    *quotecard.Renderer
	rt       *realtimeHub
	sessions *sessionStore

	jwtSecret    []byte
	publicOrigin string
}

// Options carries the optional collaborators; anything nil degrades to a
// logged 503 on the endpoints that need it.
type Options struct {
	AI           *ai.Client
	Cipher       *social.TokenCipher
	Mailer       *mailer.Mailer
	QuoteCards   *quotecard.Renderer
	JWTSecret    []byte
	PublicOrigin string
}

func New(db *sql.DB, opts Options) *Handler {
	origin := opts.PublicOrigin
	if origin == "" {
		origin = os.Getenv("PUBLIC_ORIGIN")
	}
	if origin == "" {
		origin = "http://localhost:3000"
	}
	return &Handler{
		db:           db,
		ai:           opts.AI,
		cipher:       opts.Cipher,
		mail:         opts.Mailer,
		cards:        opts.QuoteCards,
		rt:           newRealtimeHub(),
		sessions:     newSessionStore(30 * time.Minute),
		jwtSecret:    opts.JWTSecret,
		publicOrigin: origin,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

const userColumns = `id, email, name, role, company_id, plan_id, stories_quota, stories_used_this_month,
       usage_reset_at, stripe_customer_id, stripe_subscription_id, subscription_active,
       linkedin_token_enc IS NOT NULL, created_at`

func scanUser(row interface{ Scan(...any) error }) (models.User, error) {
	var u models.User
	var companyID, stripeCust, stripeSub sql.NullString
	var usageReset sql.NullTime
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &companyID, &u.PlanID, &u.StoriesQuota,
		&u.StoriesUsedThisMonth, &usageReset, &stripeCust, &stripeSub, &u.SubscriptionActive,
		&u.LinkedInConnected, &u.CreatedAt)
	if err != nil {
		return u, err
	}
	u.CompanyID = nullStrPtr(companyID)
	u.StripeCustomerID = nullStrPtr(stripeCust)
	u.StripeSubscriptionID = nullStrPtr(stripeSub)
	u.UsageResetAt = nullTimePtr(usageReset)
	return u, nil
}

func (h *Handler) getUser(id string) (models.User, error) {
	row := h.db.QueryRow(`SELECT `+userColumns+` FROM public.users WHERE id = $1`, id)
	return scanUser(row)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	id := pathVar(r, "id")
	if actor.ID != id && actor.Role != "owner" {
		writeError(w, http.StatusForbidden, "Not allowed")
		return
	}

	user, err := h.getUser(id)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		log.Printf("[Users][Get] query error id=%s: %v", id, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	id := pathVar(r, "id")
	if actor.ID != id {
		writeError(w, http.StatusForbidden, "Not allowed")
		return
	}

	var req struct {
		Name  *string `json:"name"`
		Email *string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	row := h.db.QueryRow(`
		UPDATE public.users
		   SET name  = COALESCE(NULLIF($2, ''), name),
		       email = COALESCE(NULLIF($3, ''), email)
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, strVal(req.Name), strVal(req.Email))

	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		log.Printf("[Users][Update] error id=%s: %v", id, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func strVal(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// CreateCompany groups the creating user (as owner) with future teammates.
func (h *Handler) CreateCompany(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if actor.CompanyID != nil {
		writeError(w, http.StatusConflict, "User already belongs to a company")
		return
	}

	company := models.Company{
		ID:      "co_" + uuid.NewString(),
		Name:    req.Name,
		OwnerID: actor.ID,
	}
	tx, err := h.db.Begin()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer tx.Rollback()

	err = tx.QueryRow(`
		INSERT INTO public.companies (id, name, owner_id, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING created_at
	`, company.ID, company.Name, company.OwnerID).Scan(&company.CreatedAt)
	if err != nil {
		log.Printf("[Companies][Create] insert error userId=%s: %v", actor.ID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if _, err := tx.Exec(`UPDATE public.users SET company_id = $2, role = 'owner' WHERE id = $1`, actor.ID, company.ID); err != nil {
		log.Printf("[Companies][Create] owner update error userId=%s: %v", actor.ID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := tx.Commit(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, company)
}

func (h *Handler) GetCompany(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	id := pathVar(r, "id")
	if actor.CompanyID == nil || *actor.CompanyID != id {
		writeError(w, http.StatusForbidden, "Not a member of this company")
		return
	}

	var company models.Company
	err := h.db.QueryRow(`SELECT id, name, owner_id, created_at FROM public.companies WHERE id = $1`, id).
		Scan(&company.ID, &company.Name, &company.OwnerID, &company.CreatedAt)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "Company not found")
		return
	}
	if err != nil {
		log.Printf("[Companies][Get] query error id=%s: %v", id, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	rows, err := h.db.Query(`SELECT `+userColumns+` FROM public.users WHERE company_id = $1 ORDER BY created_at ASC`, id)
	if err != nil {
		log.Printf("[Companies][Get] members error id=%s: %v", id, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer rows.Close()

	var members []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		members = append(members, u)
	}
	if err := rows.Err(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"company": company, "members": members})
}

// CreateCompanyInvite mints a single-use, expiring invite for a teammate.
func (h *Handler) CreateCompanyInvite(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	companyID := pathVar(r, "id")
	if actor.Role != "owner" || actor.CompanyID == nil || *actor.CompanyID != companyID {
		writeError(w, http.StatusForbidden, "Only the company owner can invite")
		return
	}

	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	invite := models.CompanyInvite{
		ID:        "cinv_" + uuid.NewString(),
		CompanyID: companyID,
		Email:     req.Email,
		Token:     randHex(24),
		ExpiresAt: time.Now().UTC().Add(7 * 24 * time.Hour),
	}
	err := h.db.QueryRow(`
		INSERT INTO public.company_invites (id, company_id, email, token, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at
	`, invite.ID, invite.CompanyID, invite.Email, invite.Token, invite.ExpiresAt).Scan(&invite.CreatedAt)
	if err != nil {
		log.Printf("[Companies][Invite] insert error companyId=%s: %v", companyID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	link := fmt.Sprintf("%s/join?token=%s", h.publicOrigin, invite.Token)
	var companyName string
	_ = h.db.QueryRow(`SELECT name FROM public.companies WHERE id = $1`, companyID).Scan(&companyName)
	if err := h.mail.SendCompanyInvite(invite.Email, companyName, link); err != nil {
		log.Printf("[Companies][Invite] mail error companyId=%s email=%s: %v", companyID, invite.Email, err)
	}

	writeJSON(w, http.StatusOK, map[string]any{"invite": invite, "link": link})
}

// AcceptCompanyInvite consumes the invite token and attaches the calling
// user to the company as an employee. The conditional UPDATE guarantees the
// token is consumed at most once.
func (h *Handler) AcceptCompanyInvite(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}
	if actor.CompanyID != nil {
		writeError(w, http.StatusConflict, "User already belongs to a company")
		return
	}

	var companyID string
	err := h.db.QueryRow(`
		UPDATE public.company_invites
		   SET used_at = NOW()
		 WHERE token = $1
		   AND used_at IS NULL
		   AND expires_at > NOW()
		 RETURNING company_id
	`, req.Token).Scan(&companyID)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusBadRequest, "Invite is invalid, expired or already used")
		return
	}
	if err != nil {
		log.Printf("[Companies][Accept] consume error userId=%s: %v", actor.ID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if _, err := h.db.Exec(`UPDATE public.users SET company_id = $2, role = 'employee' WHERE id = $1`, actor.ID, companyID); err != nil {
		log.Printf("[Companies][Accept] attach error userId=%s companyId=%s: %v", actor.ID, companyID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "companyId": companyID})
}
