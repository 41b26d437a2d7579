package handlers

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/clientecho/backend/internal/models"
)

const sessionTTL = 24 * time.Hour

type sessionClaims struct {
	UserID string `json:"uid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func (h *Handler) issueToken(userID, role string) (string, error) {
	claims := sessionClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(sessionTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "clientecho",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.jwtSecret)
}

func (h *Handler) validateToken(tokenString string) (*sessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &sessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return h.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// requireUser authenticates the request's bearer token and loads the user
// row. Writes 401 and returns ok=false when either step fails.
func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "Missing bearer token")
		return models.User{}, false
	}
	claims, err := h.validateToken(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid or expired token")
		return models.User{}, false
	}
	user, err := h.getUser(claims.UserID)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusUnauthorized, "Unknown user")
		return models.User{}, false
	}
	if err != nil {
		log.Printf("[Auth][Require] user load error id=%s: %v", claims.UserID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return models.User{}, false
	}
	return user, true
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "A valid email is required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	user := models.User{
		ID:           "user_" + uuid.NewString(),
		Email:        req.Email,
		Name:         req.Name,
		Role:         "owner",
		PlanID:       "free",
		StoriesQuota: 2,
	}
	err = h.db.QueryRow(`
		INSERT INTO public.users (id, email, name, password_hash, role, plan_id, stories_quota, created_at)
		VALUES ($1, $2, $3, $4, 'owner', 'free', $5, NOW())
		RETURNING created_at
	`, user.ID, user.Email, user.Name, string(hash), user.StoriesQuota).Scan(&user.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			writeError(w, http.StatusConflict, "Email already registered")
			return
		}
		log.Printf("[Auth][Signup] insert error email=%s: %v", req.Email, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	token, err := h.issueToken(user.ID, user.Role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": user})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	var id, hash string
	err := h.db.QueryRow(`SELECT id, password_hash FROM public.users WHERE email = $1`, req.Email).Scan(&id, &hash)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if err != nil {
		log.Printf("[Auth][Login] query error email=%s: %v", req.Email, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	user, err := h.getUser(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	token, err := h.issueToken(user.ID, user.Role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": user})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, user)
}
