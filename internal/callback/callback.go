// Package callback drives the redirect leg of the login flow as a small
// state machine: parse the provider redirect, open the sealed state,
// exchange the code with the portal backend, persist the credential.
package callback

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/markb/authlite/internal/keystore"
	"github.com/markb/authlite/internal/log"
	"github.com/markb/authlite/internal/state"
)

// Phase is a node in the callback state machine. PhaseSucceeded and
// PhaseFailed are terminal.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseValidating
	PhaseExchanging
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseValidating:
		return "validating"
	case PhaseExchanging:
		return "exchanging"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// FailureKind classifies terminal failures. Exactly one user-facing message
// is derived per kind; the kind is what gets logged.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureProvider
	FailureMissingCode
	FailureMissingState
	FailureTampered
	FailureExpired
	FailureStorage
	FailureExchange
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureProvider:
		return "provider"
	case FailureMissingCode:
		return "missing_code"
	case FailureMissingState:
		return "missing_state"
	case FailureTampered:
		return "tampered"
	case FailureExpired:
		return "expired"
	case FailureStorage:
		return "storage"
	case FailureExchange:
		return "exchange"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Opener opens a sealed state token back into the code verifier.
type Opener interface {
	Open(ctx context.Context, token string) (string, error)
}

// Exchanger trades {code, state, verifier} for a session credential.
type Exchanger interface {
	Exchange(ctx context.Context, code, state, verifier string) (string, error)
}

// CredentialStore persists the session credential on success.
type CredentialStore interface {
	Save(ctx context.Context, token string) error
}

// Result is the terminal outcome of one callback. Message is safe to show;
// it never carries the verifier, the sealed state, or token bytes.
type Result struct {
	Phase   Phase
	Kind    FailureKind
	Message string
	Token   string
}

func (r Result) Failed() bool {
	return r.Phase == PhaseFailed
}

// Handler runs the callback state machine. All collaborators are injected;
// construct one per flow at the composition root.
type Handler struct {
	opener    Opener
	exchanger Exchanger
	creds     CredentialStore
}

func NewHandler(opener Opener, exchanger Exchanger, creds CredentialStore) *Handler {
	return &Handler{opener: opener, exchanger: exchanger, creds: creds}
}

// Handle walks Idle -> Validating -> Exchanging -> {Succeeded, Failed} over
// the redirect query parameters. The sealed state is opened at most once,
// and the exchange endpoint is never called unless validation succeeded.
func (h *Handler) Handle(ctx context.Context, query url.Values) Result {
	// Idle -> Validating: classify the redirect itself first.
	if providerErr := query.Get("error"); providerErr != "" {
		log.Warn("provider returned an error on callback", "error", providerErr)
		return fail(FailureProvider, "The identity provider denied or cancelled the sign-in.")
	}
	code := query.Get("code")
	if code == "" {
		log.Warn("callback carried no authorization code")
		return fail(FailureMissingCode, "No authorization code was returned. Please retry the sign-in.")
	}
	sealed := query.Get("state")
	if sealed == "" {
		log.Warn("callback carried no security state")
		return fail(FailureMissingState, "The security state is missing from the redirect. Please retry the sign-in.")
	}

	// Validating -> Exchanging: open the sealed state.
	verifier, err := h.opener.Open(ctx, sealed)
	switch {
	case errors.Is(err, state.ErrExpired):
		log.Warn("sealed state expired", "kind", FailureExpired.String())
		return fail(FailureExpired, "Your sign-in session expired. Please retry the sign-in.")
	case errors.Is(err, keystore.ErrStorageUnavailable):
		log.Error("key storage unavailable while opening state", "kind", FailureStorage.String())
		return fail(FailureStorage, "Secure storage is unavailable on this machine. Please retry the sign-in.")
	case err != nil:
		log.Warn("sealed state failed validation", "kind", FailureTampered.String())
		return fail(FailureTampered, "Security validation failed. Please retry the sign-in.")
	}

	// Exchanging -> Succeeded | Failed. The verifier is handed to the
	// backend once and goes out of scope with this call.
	token, err := h.exchanger.Exchange(ctx, code, sealed, verifier)
	if err != nil {
		log.Error("token exchange failed", "kind", FailureExchange.String(), "err", err)
		return fail(FailureExchange, fmt.Sprintf("Sign-in could not be completed: %v.", err))
	}

	if err := h.creds.Save(ctx, token); err != nil {
		log.Error("persisting session credential failed", "kind", FailureStorage.String(), "err", err)
		return fail(FailureStorage, "Signed in, but the session could not be saved. Please retry the sign-in.")
	}

	log.Info("sign-in completed")
	return Result{Phase: PhaseSucceeded, Token: token}
}

func fail(kind FailureKind, message string) Result {
	return Result{Phase: PhaseFailed, Kind: kind, Message: message}
}
