package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/ReedRawlings/AIJobs/internal/model"
)

// Config holds the retrieval knobs for one client. Each adapter gets its
// own Client (and connection pool), so politeness ranges can differ per
// company.
type Config struct {
	Timeout     time.Duration // per-attempt HTTP timeout
	MaxAttempts int           // total tries including the first
	DelayMin    time.Duration // politeness delay range, drawn before every attempt
	DelayMax    time.Duration
	BackoffUnit time.Duration // base unit for exponential backoff between attempts
	UserAgent   string

	// Transport overrides the underlying RoundTripper. Tests use this
	// to point real API URLs at a local server.
	Transport http.RoundTripper
}

// Client is the shared HTTP retrieval layer used by every adapter: a
// randomized politeness delay before each attempt, exponential backoff
// with Retry-After precedence between attempts, and typed
// transport/decode errors.
type Client struct {
	http        *http.Client
	maxAttempts int
	delayMin    time.Duration
	delayMax    time.Duration
	backoffUnit time.Duration
	userAgent   string
	logger      *slog.Logger
}

// New creates a Client with its own underlying http.Client.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BackoffUnit <= 0 {
		cfg.BackoffUnit = time.Second
	}
	return &Client{
		http:        &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		maxAttempts: cfg.MaxAttempts,
		delayMin:    cfg.DelayMin,
		delayMax:    cfg.DelayMax,
		backoffUnit: cfg.BackoffUnit,
		userAgent:   cfg.UserAgent,
		logger:      logger,
	}
}

// GetJSON fetches url and decodes the JSON body into v. Transport
// failures are retried per the client config; a decode failure is
// returned as *model.DecodeError and never retried.
func (c *Client) GetJSON(ctx context.Context, url string, header http.Header, v any) error {
	data, err := c.do(ctx, http.MethodGet, url, nil, header)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &model.DecodeError{URL: url, Err: err}
	}
	return nil
}

// PostJSON marshals body, POSTs it to url, and decodes the JSON
// response into v.
func (c *Client) PostJSON(ctx context.Context, url string, body any, v any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request for %s: %w", url, err)
	}
	data, err := c.do(ctx, http.MethodPost, url, payload, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &model.DecodeError{URL: url, Err: err}
	}
	return nil
}

// GetPage fetches url and returns the raw body as a string.
func (c *Client) GetPage(ctx context.Context, url string) (string, error) {
	data, err := c.do(ctx, http.MethodGet, url, nil, nil)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// do runs the attempt loop: politeness delay, request, classify,
// backoff, repeat. The last typed error is returned once attempts are
// exhausted; the caller does not retry further.
func (c *Client) do(ctx context.Context, method, url string, body []byte, header http.Header) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if err := sleepCtx(ctx, c.politenessDelay()); err != nil {
			return nil, fmt.Errorf("politeness delay for %s: %w", url, err)
		}

		data, err := c.attempt(ctx, method, url, body, header)
		if err == nil {
			return data, nil
		}
		lastErr = err

		if !isRetryable(err) {
			return nil, err
		}
		if attempt == c.maxAttempts-1 {
			break
		}

		delay := c.backoffDelay(attempt, err)
		c.logger.Warn("retrying after transient error",
			"url", url,
			"attempt", attempt+1,
			"max_attempts", c.maxAttempts,
			"delay", delay,
			"error", err,
		)
		if err := sleepCtx(ctx, delay); err != nil {
			return nil, fmt.Errorf("retry cancelled for %s: %w", url, err)
		}
	}
	return nil, lastErr
}

// attempt performs one HTTP round trip and classifies its failure.
func (c *Client) attempt(ctx context.Context, method, url string, body []byte, header http.Header) ([]byte, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &model.TransportError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &model.TransportError{StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &model.TransportError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url),
		}
	}
	return data, nil
}

// politenessDelay draws a uniform delay from [DelayMin, DelayMax).
func (c *Client) politenessDelay() time.Duration {
	if c.delayMax <= c.delayMin {
		return c.delayMin
	}
	span := c.delayMax - c.delayMin
	return c.delayMin + time.Duration(rand.Int63n(int64(span)))
}

// backoffDelay computes the sleep before the next try. Exponential in
// the 0-based attempt number; a server-provided Retry-After wins when
// it is larger.
func (c *Client) backoffDelay(attempt int, err error) time.Duration {
	delay := c.backoffUnit
	for i := 0; i < attempt; i++ {
		delay *= 2
	}

	var transportErr *model.TransportError
	if errors.As(err, &transportErr) && transportErr.RetryAfter > delay {
		delay = transportErr.RetryAfter
	}
	return delay
}

// isRetryable reports whether the failure is transient. Decode errors
// and client-side statuses other than 429 are not; network-level
// failures, 429 and 5xx are. Context cancellation is never retried.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var decodeErr *model.DecodeError
	if errors.As(err, &decodeErr) {
		return false
	}

	var transportErr *model.TransportError
	if errors.As(err, &transportErr) {
		if transportErr.StatusCode == 0 {
			return true
		}
		if transportErr.StatusCode == http.StatusTooManyRequests {
			return true
		}
		return transportErr.StatusCode >= 500
	}
	return false
}

// parseRetryAfter parses a Retry-After header value. Supports the
// seconds form ("120") and the HTTP-date form. Returns zero if absent
// or unparseable.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
