// Package fetch provides a retrying, rate-limited HTTP client for the
// vendor's JSON APIs.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout = 45 * time.Second
	maxBodySize    = 50 * 1024 * 1024
)

// ErrDecode is returned when a response body cannot be decoded. Callers
// treat it as an empty result for that fetch, never as a fatal condition.
var ErrDecode = errors.New("undecodable response body")

// StatusError reports a non-2xx response that was not (or no longer)
// eligible for retry.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}

// Policy controls retry behavior. Transport errors and statuses accepted by
// RetryStatus are retried up to MaxAttempts with linearly growing backoff;
// everything else fails immediately.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
	RetryStatus func(code int) bool
}

// DefaultPolicy retries server errors only. Client errors (401/403/404/429)
// mean "this query has no data at these parameters" and are never retried.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Backoff:     2 * time.Second,
		RetryStatus: func(code int) bool {
			return code >= 500
		},
	}
}

// Client performs GET requests against the vendor API.
type Client struct {
	log        logrus.FieldLogger
	httpClient *http.Client
	limiter    *rate.Limiter
	policy     Policy
}

// NewClient creates a client. The limiter is shared across all vendor calls
// and paces requests globally; pass nil to disable pacing.
func NewClient(log logrus.FieldLogger, limiter *rate.Limiter, policy Policy) *Client {
	return &Client{
		log: log.WithField("component", "fetch"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		limiter: limiter,
		policy:  policy,
	}
}

// GetJSON fetches url and decodes the response body into v.
func (c *Client) GetJSON(ctx context.Context, url string, headers map[string]string, v any) error {
	body, err := c.get(ctx, url, headers)
	if err != nil {
		return err
	}

	if len(body) == 0 {
		return fmt.Errorf("%w: empty body from %s", ErrDecode, url)
	}

	if err := json.Unmarshal(body, v); err != nil {
		c.log.WithError(err).WithField("url", url).Warn("Failed to decode JSON response")

		return fmt.Errorf("%w: %s", ErrDecode, url)
	}

	return nil
}

func (c *Client) get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		body, retryable, err := c.attempt(ctx, url, headers)
		if err == nil {
			return body, nil
		}

		lastErr = err

		if !retryable || attempt == c.policy.MaxAttempts {
			break
		}

		c.log.WithError(err).WithFields(logrus.Fields{
			"url":     url,
			"attempt": attempt,
		}).Warn("Fetch failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.policy.Backoff * time.Duration(attempt)):
		}
	}

	return nil, lastErr
}

// attempt performs a single request. The second return value reports whether
// the failure is eligible for retry.
func (c *Client) attempt(ctx context.Context, url string, headers map[string]string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}

		return nil, true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)

		return nil, c.policy.RetryStatus(resp.StatusCode), &StatusError{Code: resp.StatusCode, URL: url}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response body: %w", err)
	}

	return body, false, nil
}
