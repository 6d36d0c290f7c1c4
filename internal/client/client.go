// Package client is a typed Go client for the folio HTTP API, together with
// the persisted admin Session it authenticates with.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/foliodev/folio/internal/model"
)

// ErrSessionExpired is returned by writes rejected with 401. The session has
// already been cleared when it is returned.
var ErrSessionExpired = errors.New("session expired, please log in again")

// APIError is a non-2xx response decoded from the server's error envelope.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.Status)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

// StatusCode returns the HTTP status of err when it is an *APIError, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// Client talks to one folio server. A nil Session means every request is
// anonymous.
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    *Session
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSession attaches the session whose token is sent on writes.
func WithSession(s *Session) Option {
	return func(c *Client) { c.session = s }
}

// New creates a Client for the server at baseURL (e.g. "https://example.com").
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server URL %q must use http or https", baseURL)
	}
	c := &Client{
		baseURL:    u.String(),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Session returns the attached session, if any.
func (c *Client) Session() *Session {
	return c.session
}

// ---------------------------------------------------------------------------
// Auth
// ---------------------------------------------------------------------------

// CheckEmail asks which sign-in branch an email takes.
func (c *Client) CheckEmail(ctx context.Context, email string) (*model.IdentityStatus, error) {
	var out model.IdentityStatus
	if err := c.do(ctx, http.MethodPost, "/api/auth/check-email", map[string]string{"email": email}, false, &out); err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	return &out, nil
}

// Login authenticates with a password and adopts the returned session.
func (c *Client) Login(ctx context.Context, email, password string) (*model.SessionResponse, error) {
	body := map[string]string{"email": email, "password": password}
	return c.authenticate(ctx, "/api/auth/login", body, "login")
}

// Register sets the first password and adopts the returned session. mobile
// may be empty.
func (c *Client) Register(ctx context.Context, email, password, mobile string) (*model.SessionResponse, error) {
	body := map[string]string{"email": email, "password": password}
	if mobile != "" {
		body["mobile"] = mobile
	}
	return c.authenticate(ctx, "/api/auth/register", body, "register")
}

// SendOTP requests a fresh one-time code by email.
func (c *Client) SendOTP(ctx context.Context, email string) error {
	var out model.SuccessResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/send-otp", map[string]string{"email": email}, false, &out); err != nil {
		return fmt.Errorf("send otp: %w", err)
	}
	return nil
}

// VerifyOTP exchanges a one-time code for a session and adopts it.
func (c *Client) VerifyOTP(ctx context.Context, email, code string) (*model.SessionResponse, error) {
	body := map[string]string{"email": email, "otp": code}
	return c.authenticate(ctx, "/api/auth/verify-otp", body, "verify otp")
}

// CurrentSession validates the stored token against the server.
func (c *Client) CurrentSession(ctx context.Context) (*model.SessionInfo, error) {
	var out model.SessionInfo
	if err := c.do(ctx, http.MethodGet, "/api/auth/session", nil, true, &out); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	return &out, nil
}

// Logout clears the local session. The server holds no state, so the
// acknowledgement request is best effort.
func (c *Client) Logout(ctx context.Context) error {
	_ = c.do(ctx, http.MethodDelete, "/api/auth/session", nil, false, nil)
	if c.session == nil {
		return nil
	}
	return c.session.Logout()
}

func (c *Client) authenticate(ctx context.Context, path string, body any, op string) (*model.SessionResponse, error) {
	var out model.SessionResponse
	if err := c.do(ctx, http.MethodPost, path, body, false, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if c.session != nil {
		if err := c.session.Login(out.Token, out.User); err != nil {
			return nil, fmt.Errorf("%s: persist session: %w", op, err)
		}
	}
	return &out, nil
}

// ---------------------------------------------------------------------------
// Content
// ---------------------------------------------------------------------------

// GetContent reads one bucket. Unwritten buckets come back with their
// default document and IsDefault set.
func (c *Client) GetContent(ctx context.Context, key string) (*model.BucketResponse, error) {
	var out model.BucketResponse
	if err := c.do(ctx, http.MethodGet, "/api/content/"+url.PathEscape(key), nil, false, &out); err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return &out, nil
}

// ListContent returns the bucket index.
func (c *Client) ListContent(ctx context.Context) ([]model.BucketSummary, error) {
	var out model.ListResponse[model.BucketSummary]
	if err := c.do(ctx, http.MethodGet, "/api/content", nil, false, &out); err != nil {
		return nil, fmt.Errorf("list content: %w", err)
	}
	return out.Resource, nil
}

// PutContent replaces the whole document under key. A 401 clears the
// session and returns ErrSessionExpired.
func (c *Client) PutContent(ctx context.Context, key string, data json.RawMessage) error {
	if data == nil {
		data = json.RawMessage("null")
	}
	body := map[string]json.RawMessage{"data": data}
	err := c.do(ctx, http.MethodPut, "/api/content/"+url.PathEscape(key), body, true, nil)
	if StatusCode(err) == http.StatusUnauthorized {
		if c.session != nil {
			if lerr := c.session.Logout(); lerr != nil {
				return errors.Join(ErrSessionExpired, lerr)
			}
		}
		return ErrSessionExpired
	}
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

func (c *Client) do(ctx context.Context, method, path string, body any, authed bool, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed && c.session != nil {
		if tok := c.session.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var env model.ErrorResponse
	if json.Unmarshal(raw, &env) == nil && env.Error.Message != "" {
		apiErr.Message = env.Error.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}
