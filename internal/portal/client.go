// Package portal is the HTTP client for the portal backend's auth API. The
// backend owns the actual provider token exchange; this client only speaks
// the portal's own endpoints.
package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client calls the portal backend. BaseURL is the backend origin, e.g.
// https://portal.example.com.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type exchangeRequest struct {
	Code         string `json:"code"`
	State        string `json:"state"`
	CodeVerifier string `json:"code_verifier"`
}

type exchangeResponse struct {
	Token string `json:"token"`
	Error string `json:"error"`
}

// Exchange posts the authorization code, the sealed state (echoed for audit),
// and the opened code verifier to the backend and returns the session token.
func (c *Client) Exchange(ctx context.Context, code, sealedState, verifier string) (string, error) {
	body, err := json.Marshal(exchangeRequest{
		Code:         code,
		State:        sealedState,
		CodeVerifier: verifier,
	})
	if err != nil {
		return "", fmt.Errorf("encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/api/portal/auth/token", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange request failed: %w", err)
	}
	defer resp.Body.Close()

	var out exchangeResponse
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if err := json.NewDecoder(resp.Body).Decode(&out); err == nil && out.Error != "" {
			return "", fmt.Errorf("token exchange failed: %s", out.Error)
		}
		return "", fmt.Errorf("token exchange returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if out.Token == "" {
		return "", fmt.Errorf("token exchange returned an empty token")
	}
	return out.Token, nil
}

// User holds the portal's view of the signed-in account.
type User struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
	GithubID  string `json:"github_id"`
}

// Me fetches the current user for a session token.
func (c *Client) Me(ctx context.Context, token string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.BaseURL+"/api/portal/auth/me", nil)
	if err != nil {
		return nil, fmt.Errorf("build me request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("me request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("me returned status %d", resp.StatusCode)
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decode me response: %w", err)
	}
	return &user, nil
}
