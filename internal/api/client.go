// Package api is the client for the dashboard's REST endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/lotas/tradersecho/internal/types"
)

// maxBody caps how much of a response is read.
const maxBody = 8 << 20

// Client talks to one backend. It is safe for concurrent use.
type Client struct {
	base string
	http *http.Client
}

// New returns a Client for base, e.g. "http://127.0.0.1:8000". A nil hc
// uses http.DefaultClient.
func New(base string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{base: strings.TrimRight(base, "/"), http: hc}
}

// Base returns the API base URL.
func (c *Client) Base() string { return c.base }

// Me is the identity reported by /api/me.
type Me struct {
	Username string `json:"username"`
	Pro      bool   `json:"pro"`
}

// Health is the /api/health response.
type Health struct {
	OK   bool   `json:"ok"`
	Time string `json:"time"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type checkoutResponse struct {
	URL *string `json:"url"`
}

// Login exchanges username and password (form-encoded) for a token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	req, err := c.newRequest(ctx, http.MethodPost, "/api/auth/login", "", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.authenticate(req, "login")
}

// Signup creates an account and returns its token.
func (c *Client) Signup(ctx context.Context, username, password string) (string, error) {
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/auth/signup", "", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.authenticate(req, "signup")
}

func (c *Client) authenticate(req *http.Request, op string) (string, error) {
	status, body, err := c.do(req, op)
	if err != nil {
		return "", err
	}
	if status >= 400 && status < 500 {
		return "", &AuthError{Status: status, Detail: detail(body)}
	}
	if status/100 != 2 {
		return "", statusError(op, status, body)
	}
	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", &TransportError{Op: op, Status: status, Err: fmt.Errorf("decode token: %w", err)}
	}
	if tok.AccessToken == "" {
		return "", &AuthError{Status: status, Detail: detail(body)}
	}
	return tok.AccessToken, nil
}

// Me resolves the identity behind token. A rejected token is an AuthError.
func (c *Client) Me(ctx context.Context, token string) (Me, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/me", token, nil)
	if err != nil {
		return Me{}, err
	}
	status, body, err := c.do(req, "me")
	if err != nil {
		return Me{}, err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return Me{}, &AuthError{Status: status, Detail: detail(body)}
	}
	if status/100 != 2 {
		return Me{}, statusError("me", status, body)
	}
	var me Me
	if err := json.Unmarshal(body, &me); err != nil {
		return Me{}, &TransportError{Op: "me", Status: status, Err: fmt.Errorf("decode: %w", err)}
	}
	return me, nil
}

// DailyQuery builds the /api/free/daily query string for f.
func DailyQuery(f types.Filter) url.Values {
	f = f.Normalize()
	q := url.Values{}
	if len(f.Tickers) > 0 {
		q.Set("tickers", strings.Join(f.Tickers, ","))
	}
	q.Set("limit", strconv.Itoa(f.Limit))
	q.Set("sort", string(f.Sort))
	if f.DateFrom != "" {
		q.Set("date_from", f.DateFrom)
	}
	if f.DateTo != "" {
		q.Set("date_to", f.DateTo)
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	return q
}

// FreeDaily fetches the delayed daily rollup. token may be empty.
func (c *Client) FreeDaily(ctx context.Context, token string, f types.Filter) ([]types.Row, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/free/daily?"+DailyQuery(f).Encode(), token, nil)
	if err != nil {
		return nil, err
	}
	return c.rows(req, "free daily", false)
}

// ProSnapshot fetches the realtime baseline for window. A caller without
// pro access gets an EntitlementError.
func (c *Client) ProSnapshot(ctx context.Context, token, window string) ([]types.Row, error) {
	q := url.Values{}
	q.Set("window", window)
	req, err := c.newRequest(ctx, http.MethodGet, "/api/pro/snapshot?"+q.Encode(), token, nil)
	if err != nil {
		return nil, err
	}
	return c.rows(req, "pro snapshot", true)
}

func (c *Client) rows(req *http.Request, op string, entitled bool) ([]types.Row, error) {
	status, body, err := c.do(req, op)
	if err != nil {
		return nil, err
	}
	if entitled && (status == http.StatusUnauthorized || status == http.StatusForbidden) {
		return nil, &EntitlementError{Status: status, Detail: detail(body)}
	}
	if status/100 != 2 {
		return nil, statusError(op, status, body)
	}
	rows, err := DecodeRows(body)
	if err != nil {
		return nil, &TransportError{Op: op, Status: status, Err: err}
	}
	return rows, nil
}

// Checkout starts a billing checkout and returns the URL to open. A response
// without a URL yields ErrCheckoutUnavailable, or the server's detail.
func (c *Client) Checkout(ctx context.Context, token string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/billing/create-checkout-session", token, nil)
	if err != nil {
		return "", err
	}
	status, body, err := c.do(req, "checkout")
	if err != nil {
		return "", err
	}
	if status/100 != 2 {
		if d := detail(body); d != "" {
			return "", fmt.Errorf("checkout: %s", d)
		}
		return "", statusError("checkout", status, body)
	}
	var res checkoutResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return "", &TransportError{Op: "checkout", Status: status, Err: fmt.Errorf("decode: %w", err)}
	}
	if res.URL == nil || *res.URL == "" {
		if d := detail(body); d != "" {
			return "", fmt.Errorf("checkout: %s", d)
		}
		return "", ErrCheckoutUnavailable
	}
	return *res.URL, nil
}

// Health checks that the backend is up.
func (c *Client) Health(ctx context.Context) (Health, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/health", "", nil)
	if err != nil {
		return Health{}, err
	}
	status, body, err := c.do(req, "health")
	if err != nil {
		return Health{}, err
	}
	if status/100 != 2 {
		return Health{}, statusError("health", status, body)
	}
	var h Health
	if err := json.Unmarshal(body, &h); err != nil {
		return Health{}, &TransportError{Op: "health", Status: status, Err: fmt.Errorf("decode: %w", err)}
	}
	if !h.OK {
		return h, &TransportError{Op: "health", Status: status, Err: errors.New("backend reports not ok")}
	}
	return h, nil
}

func (c *Client) newRequest(ctx context.Context, method, path, token string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, op string) (int, []byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return resp.StatusCode, nil, &TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	return resp.StatusCode, body, nil
}

func statusError(op string, status int, body []byte) error {
	msg := detail(body)
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &TransportError{Op: op, Status: status, Err: errors.New(msg)}
}

// detail extracts the "detail" field of an error body. FastAPI-style
// validation errors carry a list of objects with a "msg" field instead of
// a string; the first message is used.
func detail(body []byte) string {
	var env struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &env); err != nil || len(env.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(env.Detail, &s); err == nil {
		return s
	}
	var list []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(env.Detail, &list); err == nil && len(list) > 0 {
		return list[0].Msg
	}
	return string(env.Detail)
}
