// Package pkce generates the code_verifier and code_challenge pair for the
// OAuth 2.0 Authorization Code flow with PKCE (RFC 7636).
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/markb/authlite/internal/b64url"
)

// NewVerifier draws 32 bytes from the system CSPRNG and returns them as a
// 43-character base64url string. The verifier is used once per login attempt
// and is never sent to the identity provider.
func NewVerifier() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate code verifier: %w", err)
	}
	return b64url.Encode(b), nil
}

// Challenge computes the S256 code challenge for a verifier: SHA-256 over the
// verifier's string form, base64url-encoded. Pure and deterministic.
func Challenge(verifier string) string {
	h := sha256.Sum256([]byte(verifier))
	return b64url.Encode(h[:])
}
