// Package state seals the PKCE code verifier into the OAuth state parameter
// and opens it again on the callback leg.
//
// The state travels through the provider redirect, landing in browser
// history, provider logs, and referrer headers, so the verifier cannot ride
// in it unprotected. A sealed token is base64url(IV || ciphertext+tag) where
// the ciphertext is the AES-256-GCM encryption of the JSON payload
// {verifier, timestamp, nonce} under the durable key from the key manager.
package state

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/markb/authlite/internal/b64url"
	"github.com/markb/authlite/internal/keystore"
)

// MaxAge is the freshness window checked when opening a token.
const MaxAge = 10 * time.Minute

const (
	ivSize    = 12
	nonceSize = 16
)

var (
	// ErrTampered covers every decode and authentication failure: wrong key,
	// modified bytes, malformed token. Which sub-check failed is deliberately
	// not revealed.
	ErrTampered = errors.New("invalid or tampered state parameter")

	// ErrExpired means the token decrypted cleanly but its payload is older
	// than MaxAge. Distinct from ErrTampered so the user gets an actionable
	// retry message instead of a security warning.
	ErrExpired = errors.New("state expired (>10 minutes old)")
)

type payload struct {
	Verifier  string `json:"verifier"`
	Timestamp int64  `json:"timestamp"` // milliseconds since epoch
	Nonce     string `json:"nonce"`
}

// Sealer seals and opens state tokens under the key manager's durable key.
type Sealer struct {
	keys *keystore.Manager
	now  func() time.Time
}

func NewSealer(keys *keystore.Manager) *Sealer {
	return &Sealer{keys: keys, now: time.Now}
}

// NewSealerAt is NewSealer with an injected clock, for expiry tests.
func NewSealerAt(keys *keystore.Manager, now func() time.Time) *Sealer {
	return &Sealer{keys: keys, now: now}
}

// Seal packages the verifier with the current timestamp and a random nonce
// into an opaque token fit for the state query parameter.
func (s *Sealer) Seal(ctx context.Context, verifier string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate state nonce: %w", err)
	}

	plain, err := json.Marshal(payload{
		Verifier:  verifier,
		Timestamp: s.now().UnixMilli(),
		Nonce:     b64url.Encode(nonce),
	})
	if err != nil {
		return "", fmt.Errorf("encode state payload: %w", err)
	}

	key, err := s.keys.GetOrCreate(ctx)
	if err != nil {
		return "", err
	}

	// Fresh random IV per seal; reuse under the same key breaks GCM.
	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	return b64url.Encode(append(iv, key.Seal(iv, plain)...)), nil
}

// Open reverses Seal. Every decode, authentication, or shape failure is
// ErrTampered; expiry is checked only after authentication succeeds, so an
// over-age token reports ErrExpired rather than a tamper classification.
func (s *Sealer) Open(ctx context.Context, token string) (string, error) {
	raw, err := b64url.Decode(token)
	if err != nil || len(raw) <= ivSize {
		return "", ErrTampered
	}

	key, err := s.keys.GetOrCreate(ctx)
	if err != nil {
		return "", err
	}

	plain, err := key.Open(raw[:ivSize], raw[ivSize:])
	if err != nil {
		return "", ErrTampered
	}

	var p payload
	if err := json.Unmarshal(plain, &p); err != nil {
		return "", ErrTampered
	}
	if p.Verifier == "" {
		return "", ErrTampered
	}

	// The nonce is plumbing for a future replay store: required well-formed,
	// not yet checked against anything.
	if n, err := b64url.Decode(p.Nonce); err != nil || len(n) != nonceSize {
		return "", ErrTampered
	}

	if s.now().Sub(time.UnixMilli(p.Timestamp)) > MaxAge {
		return "", ErrExpired
	}

	return p.Verifier, nil
}
