package handlers

import (
	"database/sql"
	"log"
	"net/http"
	"time"
)

// oauthHTTPClient is shared by the provider integrations; every outbound
// call gets a timeout.
var oauthHTTPClient = &http.Client{Timeout: 20 * time.Second}

const oauthStateTTL = 10 * time.Minute

// mintOAuthState stores a fresh CSRF state row for the provider handshake.
func (h *Handler) mintOAuthState(userID, provider string) (string, error) {
	state := randHex(24)
	_, err := h.db.Exec(`
		INSERT INTO public.oauth_states (id, state, provider, user_id, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`, "st_"+randHex(12), state, provider, userID, time.Now().UTC().Add(oauthStateTTL))
	if err != nil {
		return "", err
	}
	return state, nil
}

// consumeOAuthState validates and single-uses a state value, returning the
// user it was minted for. A second consume attempt finds used_at set and
// fails.
func (h *Handler) consumeOAuthState(state, provider string) (string, bool) {
	var userID string
	err := h.db.QueryRow(`
		UPDATE public.oauth_states
		   SET used_at = NOW()
		 WHERE state = $1
		   AND provider = $2
		   AND used_at IS NULL
		   AND expires_at > NOW()
		 RETURNING user_id
	`, state, provider).Scan(&userID)
	if err == sql.ErrNoRows {
		return "", false
	}
	if err != nil {
		log.Printf("[OAuth][State] consume error provider=%s: %v", provider, err)
		return "", false
	}
	return userID, true
}

// loadInstallation decrypts the stored workspace credential for a provider.
func (h *Handler) loadInstallation(userID, provider string) (token, externalID, channelID string, ok bool) {
	var tokenEnc string
	var channel sql.NullString
	err := h.db.QueryRow(`
		SELECT token_enc, external_id, channel_id
		  FROM public.installations
		 WHERE user_id = $1 AND provider = $2
	`, userID, provider).Scan(&tokenEnc, &externalID, &channel)
	if err != nil {
		return "", "", "", false
	}
	if h.cipher == nil {
		log.Printf("[OAuth][Installation] cipher not configured provider=%s", provider)
		return "", "", "", false
	}
	token, err = h.cipher.Decrypt(tokenEnc)
	if err != nil {
		log.Printf("[OAuth][Installation] decrypt error provider=%s userId=%s: %v", provider, userID, err)
		return "", "", "", false
	}
	if channel.Valid {
		channelID = channel.String
	}
	return token, externalID, channelID, true
}

// saveInstallation encrypts and upserts a workspace credential.
func (h *Handler) saveInstallation(userID, provider, token, externalID, teamName, channelID string) error {
	tokenEnc, err := h.cipher.Encrypt(token)
	if err != nil {
		return err
	}
	_, err = h.db.Exec(`
		INSERT INTO public.installations (id, user_id, provider, external_id, team_name, token_enc, channel_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, NULLIF($7, ''), NOW(), NOW())
		ON CONFLICT (user_id, provider) DO UPDATE SET
			external_id = EXCLUDED.external_id,
			team_name = EXCLUDED.team_name,
			token_enc = EXCLUDED.token_enc,
			channel_id = COALESCE(EXCLUDED.channel_id, public.installations.channel_id),
			updated_at = NOW()
	`, "inst_"+randHex(12), userID, provider, externalID, teamName, tokenEnc, channelID)
	return err
}
