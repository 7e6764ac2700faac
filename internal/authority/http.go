package authority

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"otodo-go/internal/otodo"
)

// HTTPAuthority talks to the remote authority over its JSON API. The sync
// exchange carries no client-side timeout: it runs to completion or fails
// outright, and a failure leaves the caller's state untouched. Only the
// connectivity probe is bounded, via the caller's context.
type HTTPAuthority struct {
	baseURL string
	client  *http.Client
}

// NewHTTPAuthority creates a client for the authority at baseURL
// (e.g. "https://otodo.example.com").
func NewHTTPAuthority(baseURL string) *HTTPAuthority {
	return &HTTPAuthority{
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

type syncRequest struct {
	ClientID string              `json:"client_id"`
	Ops      []otodo.OutboxEntry `json:"ops"`
}

type syncResponse struct {
	Tasks []otodo.Task `json:"tasks"`
}

// Sync transmits the full pending outbox in one request and decodes the
// complete task collection from the response.
func (a *HTTPAuthority) Sync(ctx context.Context, clientID string, ops []otodo.OutboxEntry) ([]otodo.Task, error) {
	if ops == nil {
		ops = []otodo.OutboxEntry{}
	}
	body, err := json.Marshal(syncRequest{ClientID: clientID, Ops: ops})
	if err != nil {
		return nil, fmt.Errorf("encoding sync request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/sync", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building sync request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Client-ID", clientID)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sync request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("sync request: authority returned %s", resp.Status)
	}

	var decoded syncResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding sync response: %w", err)
	}
	if decoded.Tasks == nil {
		decoded.Tasks = []otodo.Task{}
	}
	return decoded.Tasks, nil
}

// Ping performs the lightweight connectivity check. The caller bounds it
// with a context timeout.
func (a *HTTPAuthority) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/api/ping", nil)
	if err != nil {
		return fmt.Errorf("building ping request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-store")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("ping: authority returned %s", resp.Status)
	}
	return nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login verifies credentials online.
func (a *HTTPAuthority) Login(ctx context.Context, email, password string) (*otodo.LoginResult, error) {
	body, err := json.Marshal(loginRequest{Email: email, Password: password})
	if err != nil {
		return nil, fmt.Errorf("encoding login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/login", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("login: invalid email or password")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("login: authority returned %s", resp.Status)
	}

	var result otodo.LoginResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding login response: %w", err)
	}
	return &result, nil
}

// Compile-time check that HTTPAuthority implements otodo.Authority.
var _ otodo.Authority = (*HTTPAuthority)(nil)
