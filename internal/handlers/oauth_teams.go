package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/clientecho/backend/internal/textutil"
)

const (
	teamsAuthURLFmt  = "https://login.microsoftonline.com/%s/oauth2/v2.0/authorize"
	teamsTokenURLFmt = "https://login.microsoftonline.com/%s/oauth2/v2.0/token"
	teamsGraphBase   = "https://graph.microsoft.com/v1.0"
)

func teamsTenant() string {
	if t := os.Getenv("TEAMS_TENANT_ID"); t != "" {
		return t
	}
	return "common"
}

// TeamsAuthorize returns the Microsoft identity platform authorization URL
// with a fresh CSRF state.
func (h *Handler) TeamsAuthorize(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	clientID := os.Getenv("TEAMS_CLIENT_ID")
	if clientID == "" {
		writeError(w, http.StatusServiceUnavailable, "Teams integration not configured")
		return
	}

	state, err := h.mintOAuthState(actor.ID, "teams")
	if err != nil {
		log.Printf("[Teams][Authorize] state error userId=%s: %v", actor.ID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", clientID)
	q.Set("redirect_uri", h.publicOrigin+"/api/oauth/teams/callback")
	q.Set("state", state)
	q.Set("scope", "offline_access ChannelMessage.Send Team.ReadBasic.All")

	authURL := fmt.Sprintf(teamsAuthURLFmt, teamsTenant())
	writeJSON(w, http.StatusOK, map[string]string{"url": authURL + "?" + q.Encode()})
}

// TeamsCallback exchanges the code against the Microsoft token endpoint and
// stores the encrypted access token as an installation row.
func (h *Handler) TeamsCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		writeError(w, http.StatusBadRequest, "code and state are required")
		return
	}
	userID, ok := h.consumeOAuthState(state, "teams")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid or expired state")
		return
	}
	if h.cipher == nil {
		writeError(w, http.StatusServiceUnavailable, "Token encryption not configured")
		return
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", h.publicOrigin+"/api/oauth/teams/callback")
	form.Set("client_id", os.Getenv("TEAMS_CLIENT_ID"))
	form.Set("client_secret", os.Getenv("TEAMS_CLIENT_SECRET"))

	res, err := oauthHTTPClient.PostForm(fmt.Sprintf(teamsTokenURLFmt, teamsTenant()), form)
	if err != nil {
		log.Printf("[Teams][Callback] token exchange error userId=%s: %v", userID, err)
		writeError(w, http.StatusBadGateway, "Token exchange failed")
		return
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		log.Printf("[Teams][Callback] token exchange non-2xx status=%d body=%s", res.StatusCode, textutil.Truncate(string(body), 400))
		writeError(w, http.StatusBadGateway, "Token exchange failed")
		return
	}

	var tok struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &tok); err != nil || tok.AccessToken == "" {
		writeError(w, http.StatusBadGateway, "Token exchange returned no token")
		return
	}

	if err := h.saveInstallation(userID, "teams", tok.AccessToken, teamsTenant(), "", ""); err != nil {
		log.Printf("[Teams][Callback] save error userId=%s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Printf("[Teams][Callback] connected userId=%s tenant=%s", userID, teamsTenant())
	http.Redirect(w, r, h.publicOrigin+"/account/integrations?connected=teams", http.StatusFound)
}

// TeamsPost sends the case study summary (or custom text) to a Teams channel
// through the Graph chatMessage endpoint.
func (h *Handler) TeamsPost(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		CaseStudyID string `json:"caseStudyId"`
		TeamID      string `json:"teamId"`
		ChannelID   string `json:"channelId"`
		Text        string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.TeamID == "" || req.ChannelID == "" {
		writeError(w, http.StatusBadRequest, "teamId and channelId are required")
		return
	}

	text := strings.TrimSpace(req.Text)
	if text == "" && req.CaseStudyID != "" {
		var title string
		var summary sql.NullString
		if err := h.db.QueryRow(`SELECT title, final_summary FROM public.case_studies WHERE id = $1 AND user_id = $2`,
			req.CaseStudyID, actor.ID).Scan(&title, &summary); err == nil && summary.Valid {
			text = title + "\n\n" + summary.String
		}
	}
	if text == "" {
		writeError(w, http.StatusBadRequest, "Nothing to post")
		return
	}

	token, _, _, ok := h.loadInstallation(actor.ID, "teams")
	if !ok {
		writeError(w, http.StatusBadRequest, "Teams is not connected")
		return
	}

	payload, _ := json.Marshal(map[string]any{
		"body": map[string]string{"contentType": "text", "content": text},
	})
	endpoint := fmt.Sprintf("%s/teams/%s/channels/%s/messages",
		teamsGraphBase, url.PathEscape(req.TeamID), url.PathEscape(req.ChannelID))
	postReq, _ := http.NewRequestWithContext(r.Context(), "POST", endpoint, bytes.NewReader(payload))
	postReq.Header.Set("Authorization", "Bearer "+token)
	postReq.Header.Set("Content-Type", "application/json")

	res, err := oauthHTTPClient.Do(postReq)
	if err != nil {
		log.Printf("[Teams][Post] request error userId=%s: %v", actor.ID, err)
		writeError(w, http.StatusBadGateway, "Teams post failed")
		return
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		log.Printf("[Teams][Post] non-2xx userId=%s status=%d body=%s", actor.ID, res.StatusCode, textutil.Truncate(string(body), 400))
		writeError(w, http.StatusBadGateway, "Teams post failed")
		return
	}

	var msg struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(body, &msg)
	log.Printf("[Teams][Post] published userId=%s channel=%s messageId=%s", actor.ID, req.ChannelID, msg.ID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "messageId": msg.ID})
}
