package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/civicvoice/civicvoice/client-go/internal/store"
	"github.com/civicvoice/civicvoice/client-go/internal/tokens"
	"github.com/civicvoice/civicvoice/client-go/pkg/logger"
	"github.com/civicvoice/civicvoice/client-go/pkg/metrics"
)

var (
	// ErrAuthRequired means no usable stored credentials exist for a call
	// that needs them.
	ErrAuthRequired = errors.New("authentication required")
	// ErrSessionExpired means the request could not be authenticated even
	// after a refresh attempt. Callers must treat it as "session is gone",
	// never as an empty success.
	ErrSessionExpired = errors.New("session expired")
)

// RefreshFunc exchanges the stored refresh token for a new pair and reports
// success. The new pair is expected to be persisted before it returns.
type RefreshFunc func(ctx context.Context) bool

// Client wraps HTTP calls to the portal with bearer-token attachment and a
// one-shot refresh-and-retry cycle on 401. It only reads the token store;
// writes happen through RefreshFn (and the store clear in AuthHeaders).
type Client struct {
	BaseURL      string
	HTTPClient   *http.Client
	Store        store.Store
	ExpiryLeeway time.Duration
	RefreshFn    RefreshFunc
	// ForcedLogout is invoked when a request stays unauthorized after the
	// single refresh attempt. The reason is log-only.
	ForcedLogout func(reason string)
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

// AuthHeaders builds the header map for an authenticated call. The stored
// access token's expiry claim is checked first; an expired-looking token is
// never handed out without an attempted refresh.
func (c *Client) AuthHeaders(ctx context.Context) (http.Header, error) {
	pair, ok, err := c.Store.LoadTokens(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tokens: %w", err)
	}
	if !ok {
		return nil, ErrAuthRequired
	}
	if tokens.Expired(pair.AccessToken, c.ExpiryLeeway) {
		if c.RefreshFn == nil || !c.RefreshFn(ctx) {
			// fail closed: a stored pair that cannot be refreshed is unsafe to keep
			if err := c.Store.Clear(ctx); err != nil {
				logger.Warnf("clearing session store after failed refresh: %v", err)
			}
			return nil, ErrAuthRequired
		}
		pair, ok, err = c.Store.LoadTokens(ctx)
		if err != nil || !ok {
			return nil, ErrAuthRequired
		}
	}
	h := http.Header{}
	h.Set("Authorization", "Bearer "+pair.AccessToken)
	h.Set("Content-Type", "application/json")
	return h, nil
}

// Do issues method path against the portal, attaching the stored bearer token
// best-effort (public endpoints still work with an empty store). A 401
// response triggers exactly one refresh and one retry; a second 401, or an
// unavailable/failed refresh, fires ForcedLogout and returns ErrSessionExpired.
// Every other status passes through to the caller unmodified.
func (c *Client) Do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
	}

	resp, err := c.send(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	resp.Body.Close()

	if c.RefreshFn == nil || !c.RefreshFn(ctx) {
		c.forceLogout("request unauthorized and refresh unavailable")
		return nil, ErrSessionExpired
	}

	metrics.AuthRetries.Inc()
	resp, err = c.send(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		c.forceLogout("request unauthorized after refresh")
		return nil, ErrSessionExpired
	}
	return resp, nil
}

// DoJSON runs Do and decodes a 2xx response body into out (which may be nil).
// Non-2xx responses become a *StatusError so callers can branch on the code.
func (c *Client) DoJSON(ctx context.Context, method, path string, body, out interface{}) error {
	resp, err := c.Do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte) (*http.Response, error) {
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	// best-effort: a missing or unreadable store just means no auth header
	if pair, ok, err := c.Store.LoadTokens(ctx); err == nil && ok && pair.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	}
	return c.httpClient().Do(req)
}

func (c *Client) forceLogout(reason string) {
	if c.ForcedLogout != nil {
		c.ForcedLogout(reason)
	}
}

// StatusError carries a non-2xx portal response through to domain callers.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("portal returned %d: %s", e.Code, e.Body)
}
