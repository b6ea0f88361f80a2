// integration_test.go
package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markb/authlite/internal/callback"
	"github.com/markb/authlite/internal/creds"
	"github.com/markb/authlite/internal/db"
	"github.com/markb/authlite/internal/keystore"
	"github.com/markb/authlite/internal/login"
	"github.com/markb/authlite/internal/pkce"
	"github.com/markb/authlite/internal/portal"
	"github.com/markb/authlite/internal/server"
	"github.com/markb/authlite/internal/state"
)

type captureNavigator struct {
	authURL string
}

func (c *captureNavigator) Navigate(u string) error {
	c.authURL = u
	return nil
}

// fakeBackend mimics the portal's token endpoint: it checks that the
// submitted code_verifier hashes to the challenge the client registered, the
// way the provider would during the real exchange.
func fakeBackend(t *testing.T, expectedChallenge *string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/portal/auth/token", r.URL.Path)

		var req struct {
			Code         string `json:"code"`
			State        string `json:"state"`
			CodeVerifier string `json:"code_verifier"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if req.Code != "provider-code" || pkce.Challenge(req.CodeVerifier) != *expectedChallenge {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "Failed to authenticate"})
			return
		}

		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"username": "octocat",
			"email":    "octo@example.com",
		}).SignedString([]byte("portal-secret"))
		require.NoError(t, err)
		json.NewEncoder(w).Encode(map[string]string{"token": token})
	}))
}

func TestFullLoginFlow(t *testing.T) {
	ctx := context.Background()

	database, err := db.Open(filepath.Join(t.TempDir(), "authlite.db"))
	require.NoError(t, err)
	defer database.Close()
	require.NoError(t, database.Migrate())

	keys := keystore.NewManager(keystore.NewSQLiteStore(database))
	sealer := state.NewSealer(keys)
	credStore := creds.NewStore(database)

	var expectedChallenge string
	backend := fakeBackend(t, &expectedChallenge)
	defer backend.Close()

	handler := callback.NewHandler(sealer, portal.NewClient(backend.URL), credStore)
	srv := server.New(handler)
	loopback := httptest.NewServer(srv.Handler())
	defer loopback.Close()

	// Initiate: the navigator captures the URL the browser would visit.
	nav := &captureNavigator{}
	initiator := login.NewInitiator(login.Config{
		ClientID:    "portal-client",
		RedirectURL: loopback.URL + server.CallbackPath,
	}, sealer, nav)

	_, err = initiator.Start(ctx)
	require.NoError(t, err)

	authURL, err := url.Parse(nav.authURL)
	require.NoError(t, err)
	q := authURL.Query()
	expectedChallenge = q.Get("code_challenge")
	require.NotEmpty(t, expectedChallenge)
	require.NotEmpty(t, q.Get("state"))

	// Provider redirect: the state comes back verbatim with a code.
	redirect := url.Values{"code": {"provider-code"}, "state": {q.Get("state")}}
	resp, err := http.Get(loopback.URL + server.CallbackPath + "?" + redirect.Encode())
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Signed in")

	res := <-srv.Results()
	require.Equal(t, callback.PhaseSucceeded, res.Phase)

	// The session credential is durably stored and carries the claims.
	stored, ok, err := credStore.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, res.Token, stored)

	claims, err := creds.ParseClaims(stored)
	require.NoError(t, err)
	assert.Equal(t, "octocat", claims.Username)
}

func TestLoginFlowRejectsReplayedStateAcrossKeyReset(t *testing.T) {
	ctx := context.Background()

	database, err := db.Open(filepath.Join(t.TempDir(), "authlite.db"))
	require.NoError(t, err)
	defer database.Close()
	require.NoError(t, database.Migrate())

	keys := keystore.NewManager(keystore.NewSQLiteStore(database))
	sealer := state.NewSealer(keys)

	token, err := sealer.Seal(ctx, "verifier-before-reset")
	require.NoError(t, err)

	// The user clears local data between initiation and callback.
	require.NoError(t, keys.Reset(ctx))
	fresh := state.NewSealer(keystore.NewManager(keystore.NewSQLiteStore(database)))

	var exchanged bool
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exchanged = true
	}))
	defer backend.Close()

	credStore := creds.NewStore(database)
	handler := callback.NewHandler(fresh, portal.NewClient(backend.URL), credStore)

	res := handler.Handle(ctx, url.Values{"code": {"provider-code"}, "state": {token}})

	assert.Equal(t, callback.PhaseFailed, res.Phase)
	assert.Equal(t, callback.FailureTampered, res.Kind)
	assert.False(t, exchanged, "exchange endpoint must not be called for an unopenable state")

	_, ok, err := credStore.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
