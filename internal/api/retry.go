package api

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// RetryConfig bounds retries of idempotent GETs (artifact download, health).
// Job status polls never retry: one failed poll ends polling.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig retries three times, doubling from 1s up to 30s.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
	}
}

// Backoff is the wait before retry number attempt+1.
func (rc *RetryConfig) Backoff(attempt int) time.Duration {
	d := rc.InitialBackoff
	for i := 0; i < attempt && d < rc.MaxBackoff; i++ {
		d *= 2
	}
	if d > rc.MaxBackoff {
		d = rc.MaxBackoff
	}
	return d
}

var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// getWithRetry issues GET target until the server answers with a status that
// is not worth retrying. That response, success or not, is returned for the
// caller to map.
func (c *Client) getWithRetry(ctx context.Context, target string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; ; attempt++ {
		req, err := c.newRequest(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		switch {
		case err != nil:
			lastErr = err
		case retryableStatus[resp.StatusCode]:
			resp.Body.Close()
			lastErr = &StatusError{StatusCode: resp.StatusCode}
		default:
			return resp, nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt >= c.retry.MaxRetries {
			return nil, fmt.Errorf("giving up after %d attempts: %w", attempt+1, lastErr)
		}

		wait := c.retry.Backoff(attempt)
		c.logger.Warn().
			Str("url", target).
			Int("attempt", attempt+1).
			Dur("backoff", wait).
			Err(lastErr).
			Msg("Request failed, retrying")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
