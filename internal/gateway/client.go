package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"sectorwatch/internal/domain"
	"sectorwatch/internal/util"
)

// Client talks to the brokerage gateway on behalf of one terminal account.
// The connection flag belongs to the instance, so independent clients never
// share session state.
type Client struct {
	opts       Options
	creds      domain.Credentials
	httpClient *http.Client
	limiter    *util.RateLimiter
	log        *slog.Logger

	connMu    sync.Mutex
	connected bool

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Client. Credentials are fixed for the client's lifetime.
func New(opts Options, creds domain.Credentials, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.DefaultRetryAfter <= 0 {
		opts.DefaultRetryAfter = 5 * time.Second
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	return &Client{
		opts:       opts,
		creds:      creds,
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    util.NewRateLimiter(opts.MinRequestInterval),
		log:        logger.With("component", "gateway"),
		now:        time.Now,
		sleep:      util.SleepContext,
	}
}

// Connected reports whether a terminal session has been established.
func (c *Client) Connected() bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.connected
}

// Connect logs the terminal in through the gateway. It succeeds only when the
// gateway answers with a truthy "connected" flag and status "success". When
// already connected it returns nil without a network call.
func (c *Client) Connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.connected {
		return nil
	}

	c.log.Info("connecting to trading terminal", "credentials", c.creds)

	res, err := c.Request(ctx, "connect", http.MethodPost, map[string]any{
		"login":    c.creds.Login,
		"password": c.creds.Password,
		"server":   c.creds.Server,
		"path":     "",
		"timeout":  c.opts.ConnectTimeoutMS,
	})
	if err != nil {
		c.log.Error("connection request failed", "error", err)
		return fmt.Errorf("connecting to terminal: %w", err)
	}
	if res.Kind == KindError {
		c.log.Error("terminal rejected connection", "reason", res.Err.Message)
		return fmt.Errorf("connecting to terminal: %w", res.Err)
	}

	rec := res.Record
	if res.Kind != KindRecord || !truthy(rec["connected"]) || toString(rec["status"]) != "success" {
		reason := toString(rec["message"])
		if reason == "" {
			reason = "unknown error"
		}
		c.log.Error("terminal rejected connection", "reason", reason)
		return fmt.Errorf("connecting to terminal: %s", reason)
	}

	c.connected = true
	c.log.Info("connected to trading terminal",
		"login", toString(rec["login"]),
		"server", toString(rec["server"]),
	)
	return nil
}

// ensureConnected connects on demand.
func (c *Client) ensureConnected(ctx context.Context) error {
	if err := c.Connect(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	return nil
}

// Request sends one logical operation to the gateway and returns the
// normalized response. GET sends params as the query string, POST as a JSON
// body. A 429 response is retried after the server's Retry-After delay, up
// to the configured number of attempts; any other non-success status yields
// an *APIError. Request panics on methods other than GET and POST.
func (c *Client) Request(ctx context.Context, op, method string, params map[string]any) (Result, error) {
	endpoint, ok := Endpoints[op]
	if !ok {
		return Result{}, fmt.Errorf("unknown gateway operation %q", op)
	}
	if method != http.MethodGet && method != http.MethodPost {
		panic(fmt.Sprintf("gateway: unsupported HTTP method %q", method))
	}

	c.log.Debug("gateway request", "method", method, "endpoint", endpoint, "params", loggableParams(params))

	backoff := util.Backoff{
		MaxAttempts: c.opts.MaxAttempts,
		BaseDelay:   c.opts.BaseDelay,
		Sleep:       c.sleep,
	}

	var res Result
	err := backoff.Do(ctx, func() error {
		r, err := c.attempt(ctx, op, method, endpoint, params)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// attempt performs a single rate-limited round trip.
func (c *Client) attempt(ctx context.Context, op, method, endpoint string, params map[string]any) (Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Result{}, err
	}

	req, err := c.newRequest(ctx, method, endpoint, params)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("gateway request failed", "method", method, "endpoint", endpoint, "error", err)
		return Result{}, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("reading %s response: %w", endpoint, err)
	}
	elapsed := time.Since(start)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		wait := parseRetryAfter(resp.Header.Get("Retry-After"), c.opts.DefaultRetryAfter)
		c.log.Warn("rate limited by gateway", "endpoint", endpoint, "retryAfter", wait)
		return Result{}, &util.RetryableError{
			Err:   newAPIError(op, resp.StatusCode, body),
			Delay: wait,
		}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		apiErr := newAPIError(op, resp.StatusCode, body)
		c.log.Warn("gateway error response",
			"method", method,
			"endpoint", endpoint,
			"status", resp.StatusCode,
			"error", apiErr,
		)
		return Result{}, apiErr
	}

	res, err := normalize(op, resp.StatusCode, body)
	if err != nil {
		c.log.Warn("gateway response not understood", "endpoint", endpoint, "error", err)
		return Result{}, err
	}

	c.log.Debug("gateway response",
		"method", method,
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"kind", res.Kind.String(),
		"elapsedMs", elapsed.Milliseconds(),
	)
	return res, nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, params map[string]any) (*http.Request, error) {
	u := c.opts.BaseURL + endpoint

	var body io.Reader
	if method == http.MethodGet {
		if len(params) > 0 {
			q := url.Values{}
			for k, v := range params {
				q.Set(k, formatParam(v))
			}
			u += "?" + q.Encode()
		}
	} else {
		payload := params
		if payload == nil {
			payload = map[string]any{}
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding %s body: %w", endpoint, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-RapidAPI-Key", c.opts.APIKey)
	if c.opts.APIHost != "" {
		req.Header.Set("X-RapidAPI-Host", c.opts.APIHost)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func formatParam(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case time.Time:
		return t.Format(dateLayout)
	default:
		return fmt.Sprint(t)
	}
}

// sensitiveParams never appear in request traces.
var sensitiveParams = map[string]bool{
	"password": true,
	"api_key":  true,
}

// loggableParams renders params as sorted key=value pairs without secrets.
func loggableParams(params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if !sensitiveParams[strings.ToLower(k)] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+formatParam(params[k]))
	}
	return strings.Join(parts, " ")
}

// parseRetryAfter reads a Retry-After header given in seconds or as an HTTP
// date.
func parseRetryAfter(h string, fallback time.Duration) time.Duration {
	h = strings.TrimSpace(h)
	if h == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(h); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
		return 0
	}
	return fallback
}
