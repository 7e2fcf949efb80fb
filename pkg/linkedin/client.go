// Package linkedin is the outbound side of linkreach: it fetches member
// profiles and follower listings, sends invitations and messages, and
// confirms that a session cookie is still signed in.
//
// Every request carries the li_at session cookie of the active credential.
// A 401/403 answer (or a bounce to the login wall) invalidates that
// credential through its CredentialSource; other failures are returned as
// *errors.Error values of kind NotFound, RateLimited or Transport.
package linkedin

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"linkreach/pkg/config"
	errs "linkreach/pkg/errors"
	"linkreach/pkg/logger"
	"linkreach/pkg/ratelimit"
	"linkreach/pkg/retry"
)

// maxBodySize bounds how much of a response is read
const maxBodySize = 8 << 20

// CredentialSource supplies the session token for outbound calls and is told
// when LinkedIn rejects it
type CredentialSource interface {
	Current() (string, bool)
	Invalidate(token, reason string)
}

// StaticToken is a CredentialSource over a fixed token, used by one-shot
// commands and tests
type StaticToken string

func (s StaticToken) Current() (string, bool)   { return string(s), s != "" }
func (s StaticToken) Invalidate(string, string) {}

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL       string
	UserAgent     string
	Timeout       time.Duration
	Limiter       ratelimit.Limiter
	ActionLimiter ratelimit.Limiter
	Retry         *retry.Config
	HTTPClient    *http.Client
	Logger        logger.Logger
}

// Client talks to LinkedIn on behalf of the active session
type Client struct {
	httpClient    *http.Client
	creds         CredentialSource
	baseURL       string
	headers       map[string]string
	limiter       ratelimit.Limiter
	actionLimiter ratelimit.Limiter
	retry         *retry.Config
	csrfToken     string
	logger        logger.Logger
}

// NewClient creates a LinkedIn client
func NewClient(creds CredentialSource, opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	if opts.BaseURL == "" {
		opts.BaseURL = BaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = config.DefaultConfig().LinkedIn.UserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.Unlimited{}
	}
	if opts.ActionLimiter == nil {
		opts.ActionLimiter = ratelimit.Unlimited{}
	}
	if opts.Retry == nil {
		opts.Retry = retry.DefaultConfig()
		opts.Retry.Logger = opts.Logger
	}

	return &Client{
		httpClient: opts.HTTPClient,
		creds:      creds,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		headers: map[string]string{
			"User-Agent":      opts.UserAgent,
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
			"Cache-Control":   "no-cache",
		},
		limiter:       opts.Limiter,
		actionLimiter: opts.ActionLimiter,
		retry:         opts.Retry,
		csrfToken:     "ajax:" + strconv.FormatInt(rand.Int64N(1e18), 10),
		logger:        opts.Logger.WithField("component", "linkedin"),
	}
}

// NewClientFromConfig wires a Client from application configuration
func NewClientFromConfig(cfg *config.Config, creds CredentialSource) *Client {
	var actions ratelimit.Limiter
	if cfg.RateLimit.ActionsPerHour > 0 {
		actions = ratelimit.NewSlidingWindow(cfg.RateLimit.ActionsPerHour, time.Hour)
	}

	log := logger.GetLogger()
	return NewClient(creds, Options{
		BaseURL:       cfg.LinkedIn.BaseURL,
		UserAgent:     cfg.LinkedIn.UserAgent,
		Timeout:       cfg.LinkedIn.RequestTimeout,
		Limiter:       ratelimit.NewPerMinute(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.BurstSize),
		ActionLimiter: actions,
		Retry: &retry.Config{
			MaxAttempts: cfg.Retry.MaxAttempts,
			Backoff: &retry.ExponentialBackoff{
				BaseDelay:    cfg.Retry.InitialDelay,
				MaxDelay:     cfg.Retry.MaxDelay,
				Multiplier:   cfg.Retry.Multiplier,
				JitterFactor: 0.2,
			},
			Logger: log,
		},
		Logger: log,
	})
}

// SetHeader sets a custom header for every request
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// request describes one outbound call
type request struct {
	method      string
	target      string
	body        []byte
	contentType string
	write       bool
}

// send performs one HTTP exchange with token and classifies the outcome
func (c *Client) send(ctx context.Context, token string, r request) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errs.Wrap(errs.KindTransport, err, "rate limiter wait aborted")
	}
	if r.write {
		if err := c.actionLimiter.Wait(ctx); err != nil {
			return nil, errs.Wrap(errs.KindTransport, err, "action limiter wait aborted")
		}
	}

	target, err := resolve(c.baseURL, r.target)
	if err != nil {
		return nil, errs.Wrap(errs.KindNotFound, err, "invalid URL %q", r.target)
	}

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return nil, errs.Wrap(errs.KindTransport, err, "failed to create request")
	}

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	req.Header.Set("Cookie", fmt.Sprintf("li_at=%s; JSESSIONID=\"%s\"", token, c.csrfToken))
	if r.write {
		req.Header.Set("Csrf-Token", c.csrfToken)
		req.Header.Set("X-Restli-Protocol-Version", "2.0.0")
		req.Header.Set("Accept", "application/vnd.linkedin.normalized+json+2.1")
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnWithFields("LinkedIn request failed", map[string]interface{}{
			"method":   r.method,
			"path":     req.URL.Path,
			"error":    err.Error(),
			"duration": time.Since(start),
		})
		return nil, errs.Wrap(errs.KindTransport, err, "%s %s", r.method, req.URL.Path)
	}
	defer resp.Body.Close()

	data, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	logger.LogRequest(r.method, req.URL.Path, resp.StatusCode, time.Since(start))

	if isLoginWall(resp) {
		return nil, errs.New(errs.KindUnauthorized, http.StatusUnauthorized, "session redirected to %s", resp.Request.URL.Path)
	}

	if kind, failed := errs.KindFromStatus(resp.StatusCode); failed {
		if kind == errs.KindRateLimited {
			logger.LogRateLimit(req.URL.Path, retryAfter(resp))
		}
		return nil, errs.New(kind, resp.StatusCode, "%s %s returned %d", r.method, req.URL.Path, resp.StatusCode)
	}

	if readErr != nil {
		return nil, errs.Wrap(errs.KindTransport, readErr, "failed to read response body")
	}
	return data, nil
}

// do runs send with the active credential and reports rejections
func (c *Client) do(ctx context.Context, r request) ([]byte, error) {
	token, ok := c.creds.Current()
	if !ok {
		return nil, errs.New(errs.KindUnauthorized, 0, "no active LinkedIn session")
	}

	data, err := c.send(ctx, token, r)
	if errs.IsKind(err, errs.KindUnauthorized) {
		c.creds.Invalidate(token, err.Error())
	}
	return data, err
}

// get is an idempotent read and is retried on Transport failures
func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	return retry.DoWithResult(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		return c.do(ctx, request{method: http.MethodGet, target: target})
	})
}

// VerifySession asks LinkedIn whether token is signed in. It does not touch
// the active credential.
func (c *Client) VerifySession(ctx context.Context, token string) error {
	_, err := c.send(ctx, token, request{method: http.MethodGet, target: FeedPath})
	return err
}

func isLoginWall(resp *http.Response) bool {
	if resp.Request == nil || resp.Request.URL == nil {
		return false
	}
	path := resp.Request.URL.Path
	for _, prefix := range []string{"/login", "/authwall", "/uas/login", "/checkpoint/lg"} {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		return time.Until(t)
	}
	return 0
}
