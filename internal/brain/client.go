// Package brain talks to the remote alpha evaluation service: sign-in,
// simulation jobs, the user's alpha inventory, production submission and
// data-field search.
package brain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
)

var (
	// ErrAuthentication marks a rejected sign-in.
	ErrAuthentication = errors.New("authentication failed")
	// ErrUnexpectedStatus marks a response whose status code the call does not accept.
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrMissingHandle marks a simulation create response without a Location header.
	ErrMissingHandle = errors.New("simulation response carries no progress handle")
)

// StatusError describes a response the client could not accept. Body holds at
// most the first 200 bytes of the response.
type StatusError struct {
	Op   string
	Code int
	Body string
	Err  error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %v | status=%d | response=%s", e.Op, e.Err, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return e.Err }

func newStatusError(op string, code int, body []byte, err error) *StatusError {
	const limit = 200
	if len(body) > limit {
		body = body[:limit]
	}
	return &StatusError{Op: op, Code: code, Body: string(body), Err: err}
}

// Config configures the client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// RateLimitWait is used when a 429 response carries no Retry-After.
	RateLimitWait time.Duration
	// DataFieldPageSize and Concurrency shape SearchDataFields.
	DataFieldPageSize int
	Concurrency       int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:           "https://api.worldquantbrain.com",
		Timeout:           60 * time.Second,
		RateLimitWait:     60 * time.Second,
		DataFieldPageSize: 50,
		Concurrency:       4,
	}
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Client is stateless apart from its configuration; the authenticated state
// lives in the Session passed to every call.
type Client struct {
	cfg    Config
	logger *zap.Logger

	// Sleep is used for rate-limit waits. Tests replace it.
	Sleep Sleeper
}

// NewClient creates a client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RateLimitWait <= 0 {
		cfg.RateLimitWait = def.RateLimitWait
	}
	if cfg.DataFieldPageSize <= 0 {
		cfg.DataFieldPageSize = def.DataFieldPageSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, logger: logger, Sleep: Sleep}
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// Session is an authenticated handle: a cookie-carrying HTTP client plus the
// credentials sent with every request. It is replaced wholesale on
// re-authentication and is not safe for concurrent sign-in.
type Session struct {
	ID          string
	Credentials Credentials
	CreatedAt   time.Time

	http *http.Client
}

func (c *Client) newSession(creds Credentials) (*Session, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return &Session{
		ID:          uuid.NewString(),
		Credentials: creds,
		CreatedAt:   time.Now(),
		http:        &http.Client{Timeout: c.cfg.Timeout, Jar: jar},
	}, nil
}

// SignIn authenticates and returns a fresh session. The service answers 201 on success.
func (c *Client) SignIn(ctx context.Context, creds Credentials) (*Session, error) {
	if !creds.Valid() {
		return nil, ErrMissingCredentials
	}
	sess, err := c.newSession(creds)
	if err != nil {
		return nil, err
	}

	resp, body, err := c.do(ctx, sess, http.MethodPost, "/authentication", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, newStatusError("sign in", resp.StatusCode, body, ErrAuthentication)
	}

	c.logger.Info("signed in", zap.String("session", sess.ID))
	return sess, nil
}

// Authenticator signs in with fixed credentials.
type Authenticator struct {
	client *Client
	creds  Credentials
}

// Authenticator binds creds to the client for later re-authentication.
func (c *Client) Authenticator(creds Credentials) *Authenticator {
	return &Authenticator{client: c, creds: creds}
}

// SignIn returns a new session for the bound credentials.
func (a *Authenticator) SignIn(ctx context.Context) (*Session, error) {
	return a.client.SignIn(ctx, a.creds)
}

func (c *Client) resolve(ref string) (string, error) {
	base, err := url.Parse(c.cfg.BaseURL + "/")
	if err != nil {
		return "", err
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(u).String(), nil
}

// do issues one request and reads the whole body. path may be relative to the
// base URL or absolute.
func (c *Client) do(ctx context.Context, sess *Session, method, path string, query url.Values, payload any) (*http.Response, []byte, error) {
	target, err := c.resolve(strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid url %q: %w", path, err)
	}
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(sess.Credentials.Username, sess.Credentials.Password)

	resp, err := sess.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp, body, nil
}

// retryAfter parses a Retry-After header given in (possibly fractional) seconds.
// An absent header is zero.
func retryAfter(h http.Header) (time.Duration, error) {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0, nil
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid Retry-After %q: %w", v, err)
	}
	if secs <= 0 {
		return 0, nil
	}
	return time.Duration(secs * float64(time.Second)), nil
}
