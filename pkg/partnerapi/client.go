// Package partnerapi is a minimal client for the session-authenticated
// partner market-data feed. Login follows the partner's 2FA flow: the TOTP
// code is generated client-side from the shared secret at request time, and
// the returned bearer token authenticates subsequent data calls.
package partnerapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pquerna/otp/totp"
)

const defaultTimeout = 7 * time.Second

var routes = map[string]string{
	"auth.login":   "/rest/auth/v1/loginByPassword",
	"auth.logout":  "/rest/secure/v1/logout",
	"data.history": "/rest/secure/marketdata/v1/history",
}

// ErrNotAuthenticated is returned by data calls before a successful Login.
var ErrNotAuthenticated = errors.New("partnerapi: no active session, call Login first")

// Config holds client construction parameters.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Debug   bool
}

// Client is a session-holding partner API client. Safe for concurrent use.
type Client struct {
	apiKey  string
	baseURL string
	debug   bool

	httpClient *http.Client

	mu          sync.RWMutex
	accessToken string
}

// New initializes a Client. BaseURL is required.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		debug:      cfg.Debug,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type loginResponse struct {
	Status bool   `json:"status"`
	Msg    string `json:"message"`
	Data   struct {
		AccessToken string `json:"accessToken"`
	} `json:"data"`
}

// Login establishes a session. The TOTP code is derived from totpSecret at
// call time, mirroring the partner's authenticator-app flow.
func (c *Client) Login(ctx context.Context, clientCode, password, totpSecret string) error {
	code, err := totp.GenerateCode(totpSecret, time.Now())
	if err != nil {
		return fmt.Errorf("partnerapi: generate totp: %w", err)
	}

	payload := map[string]string{
		"clientcode": clientCode,
		"password":   password,
		"totp":       code,
	}
	var resp loginResponse
	if err := c.post(ctx, routes["auth.login"], payload, &resp); err != nil {
		return fmt.Errorf("partnerapi: login: %w", err)
	}
	if !resp.Status || resp.Data.AccessToken == "" {
		return fmt.Errorf("partnerapi: login rejected: %s", resp.Msg)
	}

	c.mu.Lock()
	c.accessToken = resp.Data.AccessToken
	c.mu.Unlock()
	return nil
}

// Logout invalidates the session server-side and drops the local token.
func (c *Client) Logout(ctx context.Context) error {
	var resp struct {
		Status bool `json:"status"`
	}
	err := c.post(ctx, routes["auth.logout"], map[string]string{}, &resp)
	c.mu.Lock()
	c.accessToken = ""
	c.mu.Unlock()
	return err
}

// Sample is one raw observation from the history endpoint.
type Sample struct {
	TimestampMs int64    `json:"ts"`
	Price       float64  `json:"price"`
	Volume      *float64 `json:"volume,omitempty"`
}

type historyResponse struct {
	Status bool     `json:"status"`
	Msg    string   `json:"message"`
	Data   []Sample `json:"data"`
}

// History returns raw price/volume samples for a subject over [fromMs, toMs].
func (c *Client) History(ctx context.Context, subject string, fromMs, toMs int64) ([]Sample, error) {
	c.mu.RLock()
	authenticated := c.accessToken != ""
	c.mu.RUnlock()
	if !authenticated {
		return nil, ErrNotAuthenticated
	}

	payload := map[string]any{
		"subject": subject,
		"from":    fromMs,
		"to":      toMs,
	}
	var resp historyResponse
	if err := c.post(ctx, routes["data.history"], payload, &resp); err != nil {
		return nil, fmt.Errorf("partnerapi: history: %w", err)
	}
	if !resp.Status {
		return nil, fmt.Errorf("partnerapi: history rejected: %s", resp.Msg)
	}
	return resp.Data, nil
}

// post sends a JSON request with the standard partner headers and decodes the
// JSON response into out.
func (c *Client) post(ctx context.Context, route string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+route, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-PrivateKey", c.apiKey)

	c.mu.RLock()
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}
	c.mu.RUnlock()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if c.debug {
		fmt.Printf("[partnerapi] %s -> %d %s\n", route, resp.StatusCode, raw)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, raw)
	}
	return json.Unmarshal(raw, out)
}
