// Package social holds the shared pieces of the LinkedIn/Slack/Teams
// integrations: token encryption and provider HTTP plumbing.
package social

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"

	"golang.org/x/crypto/nacl/secretbox"
)

// TokenCipher seals provider OAuth tokens before they touch the database.
type TokenCipher struct {
	key [32]byte
}

// NewTokenCipherFromEnv reads TOKEN_ENCRYPTION_KEY (64 hex chars).
func NewTokenCipherFromEnv() (*TokenCipher, error) {
	raw := os.Getenv("TOKEN_ENCRYPTION_KEY")
	if raw == "" {
		return nil, fmt.Errorf("TOKEN_ENCRYPTION_KEY not set")
	}
	decoded, err := hex.DecodeString(raw)
	if err != nil || len(decoded) != 32 {
		return nil, fmt.Errorf("TOKEN_ENCRYPTION_KEY must be 64 hex characters")
	}
	tc := &TokenCipher{}
	copy(tc.key[:], decoded)
	return tc, nil
}

// Encrypt seals the plaintext and returns base64(nonce || box).
func (tc *TokenCipher) Encrypt(plaintext string) (string, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", err
	}
	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &tc.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. A wrong key or truncated value is an error, not
// a panic; callers treat it as "not connected".
func (tc *TokenCipher) Decrypt(encoded string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	if len(sealed) < 24 {
		return "", fmt.Errorf("ciphertext too short")
	}
	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	opened, ok := secretbox.Open(nil, sealed[24:], &nonce, &tc.key)
	if !ok {
		return "", fmt.Errorf("token decryption failed")
	}
	return string(opened), nil
}
