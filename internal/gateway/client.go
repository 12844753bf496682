// Package gateway implements the HTTP client for the REST-gateway backend.
// All outbound calls are routed through a single resilient client that
// enforces circuit breaking, bounded retries with backoff, auth header
// injection, and request-ID propagation, so gateway outages surface as
// errors the provider can classify instead of raw transport failures.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	"tripbase/internal/types"
)

// ExecSQLFunction is the reserved server-side function name for executing
// arbitrary SQL. It must not collide with a real stored-function name.
const ExecSQLFunction = "exec_sql"

// RetryPolicy configures the retry behavior for gateway calls.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultRetryPolicy returns sensible defaults for gateway calls.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		MinWait:    500 * time.Millisecond,
		MaxWait:    10 * time.Second,
	}
}

// StatusError is returned when the gateway answers with a non-2xx status
// after retries are exhausted. The provider wraps it into the error
// taxonomy; it never reaches business-service callers directly.
type StatusError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway returned status %d: %s", e.StatusCode, e.Body)
}

// Client is the REST-gateway HTTP client. It wraps an *http.Client and a
// circuit breaker so all gateway traffic shares one resilience policy.
type Client struct {
	baseURL string
	apiKey  types.SecretString
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	retry   RetryPolicy
	logger  *slog.Logger
	sleepFn func(time.Duration) // for testability; defaults to time.Sleep
}

// ClientOption is a functional option for configuring a Client.
type ClientOption func(*Client)

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p RetryPolicy) ClientOption {
	return func(c *Client) {
		c.retry = p
	}
}

// WithSleepFunc overrides the sleep function used between retries.
// This is intended for testing to avoid real delays.
func WithSleepFunc(fn func(time.Duration)) ClientOption {
	return func(c *Client) {
		c.sleepFn = fn
	}
}

// WithHTTPClient overrides the underlying *http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.client = hc
	}
}

// NewClient creates a gateway Client for the given base URL and API key.
// The timeout bounds any single HTTP round-trip.
func NewClient(baseURL string, apiKey types.SecretString, timeout time.Duration, logger *slog.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "db-gateway",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
		retry:   DefaultRetryPolicy(),
		logger:  logger,
		sleepFn: time.Sleep,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// RPC invokes the named server-side function with a JSON payload and returns
// the raw response body. For ExecSQLFunction the payload carries the query
// text under "query" plus any named parameters as sibling keys.
func (c *Client) RPC(ctx context.Context, fn string, payload map[string]any) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/rest/v1/rpc/%s", c.baseURL, fn)
	return c.call(ctx, http.MethodPost, endpoint, payload, nil)
}

// Rest issues a table-endpoint request. The query values carry the
// PostgREST-style filters and modifiers; extra headers (Range, Prefer) are
// merged into the request.
func (c *Client) Rest(ctx context.Context, method, table string, query url.Values, body any, extra http.Header) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, url.PathEscape(table))
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	return c.call(ctx, method, endpoint, body, extra)
}

// Close releases idle connections held by the underlying HTTP client.
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}

// call builds the request, injects auth and tracing headers, and executes it
// through the retry/breaker pipeline. On 2xx the response body is returned;
// any other outcome is an error.
func (c *Client) call(ctx context.Context, method, endpoint string, body any, extra http.Header) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build gateway request: %w", err)
	}

	req.Header.Set("apikey", c.apiKey.Unmask())
	req.Header.Set("Authorization", "Bearer "+c.apiKey.Unmask())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range extra {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.do(req, payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}
	return raw, nil
}

// do executes the request with circuit breaker wrapping and retry on
// 429/5xx, replaying the body snapshot on each attempt. On success
// (2xx) the response is returned; the caller closes the body.
func (c *Client) do(req *http.Request, body []byte) (*http.Response, error) {
	var lastResp *http.Response
	var lastErr error

	maxAttempts := 1 + c.retry.MaxRetries
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if body != nil {
			req.Body = io.NopCloser(bytes.NewReader(body))
			req.ContentLength = int64(len(body))
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) {
			r, doErr := c.client.Do(req)
			if doErr != nil {
				return nil, doErr
			}
			// Treat 5xx and 429 as errors for the circuit breaker.
			if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
				return r, fmt.Errorf("gateway returned %d", r.StatusCode)
			}
			return r, nil
		})

		if err == nil {
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return resp, nil
			}
			// Non-retryable client error: drain the body into the error.
			return nil, newStatusError(resp)
		}

		lastErr = err
		if resp != nil {
			if attempt < maxAttempts-1 {
				resp.Body.Close()
			} else {
				lastResp = resp
			}
		}

		// An open breaker will not recover within this call's retries.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.logger.Warn("gateway circuit breaker open, aborting retries", "error", err)
			break
		}

		if attempt < maxAttempts-1 {
			wait := c.computeBackoff(attempt, resp)
			c.logger.Debug("retrying gateway request",
				"attempt", attempt+1,
				"max_attempts", maxAttempts,
				"wait", wait,
				"error", err,
			)
			c.sleepFn(wait)
		}
	}

	if lastResp != nil {
		return nil, newStatusError(lastResp)
	}
	return nil, lastErr
}

// newStatusError drains up to 1KB of the response body for diagnostics.
func newStatusError(resp *http.Response) *StatusError {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	resp.Body.Close()
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
}

// computeBackoff determines the wait duration before the next retry attempt.
// It respects the Retry-After header if present, otherwise uses exponential
// backoff with jitter clamped to [MinWait, MaxWait].
func (c *Client) computeBackoff(attempt int, resp *http.Response) time.Duration {
	if resp != nil {
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
				wait := time.Duration(seconds) * time.Second
				if wait > c.retry.MaxWait {
					wait = c.retry.MaxWait
				}
				return wait
			}
		}
	}

	base := float64(c.retry.MinWait) * math.Pow(2, float64(attempt))
	if maxWait := float64(c.retry.MaxWait); base > maxWait {
		base = maxWait
	}

	minWait := float64(c.retry.MinWait)
	if base <= minWait {
		return c.retry.MinWait
	}
	return time.Duration(minWait + rand.Float64()*(base-minWait))
}
