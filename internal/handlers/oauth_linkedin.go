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
	linkedinAuthURL     = "https://www.linkedin.com/oauth/v2/authorization"
	linkedinTokenURL    = "https://www.linkedin.com/oauth/v2/accessToken"
	linkedinUserInfoURL = "https://api.linkedin.com/v2/userinfo"
	linkedinPostURL     = "https://api.linkedin.com/v2/ugcPosts"
)

// LinkedInAuthorize returns the provider authorization URL with a fresh
// CSRF state bound to the calling user.
func (h *Handler) LinkedInAuthorize(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	clientID := os.Getenv("LINKEDIN_CLIENT_ID")
	if clientID == "" {
		writeError(w, http.StatusServiceUnavailable, "LinkedIn integration not configured")
		return
	}

	state, err := h.mintOAuthState(actor.ID, "linkedin")
	if err != nil {
		log.Printf("[LinkedIn][Authorize] state error userId=%s: %v", actor.ID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", clientID)
	q.Set("redirect_uri", h.publicOrigin+"/api/oauth/linkedin/callback")
	q.Set("state", state)
	q.Set("scope", "openid profile w_member_social")

	writeJSON(w, http.StatusOK, map[string]string{"url": linkedinAuthURL + "?" + q.Encode()})
}

type linkedinTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// LinkedInCallback exchanges the code, encrypts the token and stores it on
// the user row.
func (h *Handler) LinkedInCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		writeError(w, http.StatusBadRequest, "code and state are required")
		return
	}
	userID, ok := h.consumeOAuthState(state, "linkedin")
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
	form.Set("redirect_uri", h.publicOrigin+"/api/oauth/linkedin/callback")
	form.Set("client_id", os.Getenv("LINKEDIN_CLIENT_ID"))
	form.Set("client_secret", os.Getenv("LINKEDIN_CLIENT_SECRET"))

	res, err := oauthHTTPClient.PostForm(linkedinTokenURL, form)
	if err != nil {
		log.Printf("[LinkedIn][Callback] token exchange error userId=%s: %v", userID, err)
		writeError(w, http.StatusBadGateway, "Token exchange failed")
		return
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		log.Printf("[LinkedIn][Callback] token exchange non-2xx status=%d body=%s", res.StatusCode, textutil.Truncate(string(body), 400))
		writeError(w, http.StatusBadGateway, "Token exchange failed")
		return
	}

	var tok linkedinTokenResponse
	if err := json.Unmarshal(body, &tok); err != nil || tok.AccessToken == "" {
		writeError(w, http.StatusBadGateway, "Token exchange returned no token")
		return
	}

	tokenEnc, err := h.cipher.Encrypt(tok.AccessToken)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if _, err := h.db.Exec(`UPDATE public.users SET linkedin_token_enc = $2 WHERE id = $1`, userID, tokenEnc); err != nil {
		log.Printf("[LinkedIn][Callback] token save error userId=%s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Printf("[LinkedIn][Callback] connected userId=%s", userID)
	http.Redirect(w, r, h.publicOrigin+"/account/integrations?connected=linkedin", http.StatusFound)
}

// linkedinPersonURN resolves the member URN the post is authored as.
func linkedinPersonURN(token string) (string, error) {
	req, _ := http.NewRequest("GET", linkedinUserInfoURL, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res, err := oauthHTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", fmt.Errorf("linkedin_userinfo_non_2xx status=%d", res.StatusCode)
	}
	var info struct {
		Sub string `json:"sub"`
	}
	if err := json.Unmarshal(body, &info); err != nil || info.Sub == "" {
		return "", fmt.Errorf("linkedin_userinfo_no_sub")
	}
	return "urn:li:person:" + info.Sub, nil
}

// LinkedInPost publishes the case study's LinkedIn post text (or a custom
// override) as the connected member.
func (h *Handler) LinkedInPost(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		CaseStudyID string `json:"caseStudyId"`
		Text        string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	text := strings.TrimSpace(req.Text)
	if text == "" && req.CaseStudyID != "" {
		var post sql.NullString
		if err := h.db.QueryRow(`SELECT linkedin_post FROM public.case_studies WHERE id = $1 AND user_id = $2`,
			req.CaseStudyID, actor.ID).Scan(&post); err == nil && post.Valid {
			text = post.String
		}
	}
	if text == "" {
		writeError(w, http.StatusBadRequest, "Nothing to post")
		return
	}

	var tokenEnc sql.NullString
	if err := h.db.QueryRow(`SELECT linkedin_token_enc FROM public.users WHERE id = $1`, actor.ID).Scan(&tokenEnc); err != nil || !tokenEnc.Valid {
		writeError(w, http.StatusBadRequest, "LinkedIn is not connected")
		return
	}
	if h.cipher == nil {
		writeError(w, http.StatusServiceUnavailable, "Token encryption not configured")
		return
	}
	token, err := h.cipher.Decrypt(tokenEnc.String)
	if err != nil {
		log.Printf("[LinkedIn][Post] decrypt error userId=%s: %v", actor.ID, err)
		writeError(w, http.StatusBadRequest, "Stored LinkedIn credential is invalid, reconnect the integration")
		return
	}

	urn, err := linkedinPersonURN(token)
	if err != nil {
		log.Printf("[LinkedIn][Post] urn lookup error userId=%s: %v", actor.ID, err)
		writeError(w, http.StatusBadGateway, "LinkedIn profile lookup failed")
		return
	}

	payload := map[string]any{
		"author":         urn,
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]any{
			"com.linkedin.ugc.ShareContent": map[string]any{
				"shareCommentary":    map[string]string{"text": text},
				"shareMediaCategory": "NONE",
			},
		},
		"visibility": map[string]string{"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC"},
	}
	raw, _ := json.Marshal(payload)

	postReq, _ := http.NewRequestWithContext(r.Context(), "POST", linkedinPostURL, bytes.NewReader(raw))
	postReq.Header.Set("Authorization", "Bearer "+token)
	postReq.Header.Set("Content-Type", "application/json")
	postReq.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	res, err := oauthHTTPClient.Do(postReq)
	if err != nil {
		log.Printf("[LinkedIn][Post] request error userId=%s: %v", actor.ID, err)
		writeError(w, http.StatusBadGateway, "LinkedIn post failed")
		return
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		log.Printf("[LinkedIn][Post] non-2xx userId=%s status=%d body=%s", actor.ID, res.StatusCode, textutil.Truncate(string(body), 400))
		writeError(w, http.StatusBadGateway, "LinkedIn post failed")
		return
	}

	postID := res.Header.Get("X-RestLi-Id")
	log.Printf("[LinkedIn][Post] published userId=%s postId=%s", actor.ID, postID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "postId": postID})
}
