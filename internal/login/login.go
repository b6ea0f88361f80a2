// Package login initiates the Authorization Code + PKCE flow: it generates
// the PKCE pair, seals the verifier into the state parameter, and hands the
// user's browser to the provider's authorization page.
package login

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/markb/authlite/internal/log"
	"github.com/markb/authlite/internal/pkce"
	"github.com/markb/authlite/internal/state"
)

// DefaultScopes matches the portal's GitHub OAuth app registration.
var DefaultScopes = []string{"read:user", "user:email"}

// Navigator performs the navigation to the provider. The production
// implementation opens the system browser; tests substitute a spy.
type Navigator interface {
	Navigate(url string) error
}

// Config holds the provider-facing parameters of the flow.
type Config struct {
	ClientID    string
	RedirectURL string

	// Scopes defaults to DefaultScopes when empty.
	Scopes []string

	// Endpoint defaults to GitHub when zero.
	Endpoint oauth2.Endpoint
}

// Attempt records one initiated login for correlation in logs and tests.
type Attempt struct {
	ID      string
	AuthURL string
}

// Initiator assembles authorization URLs and triggers navigation.
type Initiator struct {
	cfg    *oauth2.Config
	sealer *state.Sealer
	nav    Navigator
}

func NewInitiator(cfg Config, sealer *state.Sealer, nav Navigator) *Initiator {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = github.Endpoint
	}

	return &Initiator{
		cfg: &oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: cfg.RedirectURL,
			Scopes:      scopes,
			Endpoint:    endpoint,
		},
		sealer: sealer,
		nav:    nav,
	}
}

// Start runs one login initiation: verifier, challenge, sealed state,
// authorization URL, navigation. Nothing navigates unless sealing succeeded;
// reaching the provider without an openable state would make the callback
// unrecoverable, so failures abort here while retry is still cheap.
func (i *Initiator) Start(ctx context.Context) (*Attempt, error) {
	verifier, err := pkce.NewVerifier()
	if err != nil {
		return nil, fmt.Errorf("start login: %w", err)
	}
	challenge := pkce.Challenge(verifier)

	sealed, err := i.sealer.Seal(ctx, verifier)
	if err != nil {
		return nil, fmt.Errorf("start login: %w", err)
	}

	attempt := &Attempt{
		ID: uuid.NewString(),
		AuthURL: i.cfg.AuthCodeURL(sealed,
			oauth2.SetAuthURLParam("code_challenge", challenge),
			oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		),
	}

	log.Debug("navigating to provider", "attempt", attempt.ID)
	if err := i.nav.Navigate(attempt.AuthURL); err != nil {
		return nil, fmt.Errorf("open provider authorization page: %w", err)
	}
	return attempt, nil
}
