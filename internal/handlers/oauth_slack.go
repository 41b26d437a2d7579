package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/clientecho/backend/internal/textutil"
)

const (
	slackAuthURL    = "https://slack.com/oauth/v2/authorize"
	slackTokenURL   = "https://slack.com/api/oauth.v2.access"
	slackPostMsgURL = "https://slack.com/api/chat.postMessage"
)

// SlackAuthorize returns the workspace install URL with a fresh CSRF state.
func (h *Handler) SlackAuthorize(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	clientID := os.Getenv("SLACK_CLIENT_ID")
	if clientID == "" {
		writeError(w, http.StatusServiceUnavailable, "Slack integration not configured")
		return
	}

	state, err := h.mintOAuthState(actor.ID, "slack")
	if err != nil {
		log.Printf("[Slack][Authorize] state error userId=%s: %v", actor.ID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	q := url.Values{}
	q.Set("client_id", clientID)
	q.Set("scope", "chat:write,channels:read")
	q.Set("redirect_uri", h.publicOrigin+"/api/oauth/slack/callback")
	q.Set("state", state)

	writeJSON(w, http.StatusOK, map[string]string{"url": slackAuthURL + "?" + q.Encode()})
}

type slackAccessResponse struct {
	OK          bool   `json:"ok"`
	Error       string `json:"error"`
	AccessToken string `json:"access_token"`
	Team        struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"team"`
	IncomingWebhook struct {
		ChannelID string `json:"channel_id"`
	} `json:"incoming_webhook"`
}

// SlackCallback finishes the workspace install and stores the encrypted bot
// token as an installation row.
func (h *Handler) SlackCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		writeError(w, http.StatusBadRequest, "code and state are required")
		return
	}
	userID, ok := h.consumeOAuthState(state, "slack")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid or expired state")
		return
	}
	if h.cipher == nil {
		writeError(w, http.StatusServiceUnavailable, "Token encryption not configured")
		return
	}

	form := url.Values{}
	form.Set("code", code)
	form.Set("client_id", os.Getenv("SLACK_CLIENT_ID"))
	form.Set("client_secret", os.Getenv("SLACK_CLIENT_SECRET"))
	form.Set("redirect_uri", h.publicOrigin+"/api/oauth/slack/callback")

	res, err := oauthHTTPClient.PostForm(slackTokenURL, form)
	if err != nil {
		log.Printf("[Slack][Callback] token exchange error userId=%s: %v", userID, err)
		writeError(w, http.StatusBadGateway, "Token exchange failed")
		return
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))

	var access slackAccessResponse
	if err := json.Unmarshal(body, &access); err != nil || !access.OK || access.AccessToken == "" {
		log.Printf("[Slack][Callback] exchange rejected userId=%s error=%s body=%s", userID, access.Error, textutil.Truncate(string(body), 400))
		writeError(w, http.StatusBadGateway, "Slack rejected the exchange")
		return
	}

	if err := h.saveInstallation(userID, "slack", access.AccessToken, access.Team.ID, access.Team.Name, access.IncomingWebhook.ChannelID); err != nil {
		log.Printf("[Slack][Callback] save error userId=%s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Printf("[Slack][Callback] installed userId=%s teamId=%s", userID, access.Team.ID)
	http.Redirect(w, r, h.publicOrigin+"/account/integrations?connected=slack", http.StatusFound)
}

// SlackPost sends the case study summary (or custom text) to a workspace
// channel via chat.postMessage.
func (h *Handler) SlackPost(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		CaseStudyID string `json:"caseStudyId"`
		ChannelID   string `json:"channelId"`
		Text        string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	text := strings.TrimSpace(req.Text)
	if text == "" && req.CaseStudyID != "" {
		var title string
		var summary sql.NullString
		if err := h.db.QueryRow(`SELECT title, final_summary FROM public.case_studies WHERE id = $1 AND user_id = $2`,
			req.CaseStudyID, actor.ID).Scan(&title, &summary); err == nil && summary.Valid {
			text = "*" + title + "*\n\n" + summary.String
		}
	}
	if text == "" {
		writeError(w, http.StatusBadRequest, "Nothing to post")
		return
	}

	token, _, defaultChannel, ok := h.loadInstallation(actor.ID, "slack")
	if !ok {
		writeError(w, http.StatusBadRequest, "Slack is not connected")
		return
	}
	channel := strings.TrimSpace(req.ChannelID)
	if channel == "" {
		channel = defaultChannel
	}
	if channel == "" {
		writeError(w, http.StatusBadRequest, "channelId is required")
		return
	}

	payload, _ := json.Marshal(map[string]string{
		"channel": channel,
		"text":    text,
	})
	postReq, _ := http.NewRequestWithContext(r.Context(), "POST", slackPostMsgURL, bytes.NewReader(payload))
	postReq.Header.Set("Authorization", "Bearer "+token)
	postReq.Header.Set("Content-Type", "application/json; charset=utf-8")

	res, err := oauthHTTPClient.Do(postReq)
	if err != nil {
		log.Printf("[Slack][Post] request error userId=%s: %v", actor.ID, err)
		writeError(w, http.StatusBadGateway, "Slack post failed")
		return
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))

	var apiRes struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
		TS    string `json:"ts"`
	}
	if err := json.Unmarshal(body, &apiRes); err != nil || !apiRes.OK {
		log.Printf("[Slack][Post] rejected userId=%s error=%s", actor.ID, apiRes.Error)
		writeError(w, http.StatusBadGateway, "Slack post failed")
		return
	}

	log.Printf("[Slack][Post] published userId=%s channel=%s ts=%s", actor.ID, channel, apiRes.TS)
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "ts": apiRes.TS})
}
