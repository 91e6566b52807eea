package github

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/cenkalti/backoff/v4"
	gh "github.com/google/go-github/v79/github"
)

func (c *Client) newReadBackoff() backoff.BackOff {
	// BackOff implementations are stateful; always return a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.retryMaxElapsed
	return bo
}

// withRetry runs a read with retry for transient errors. Mutations must not use it.
func (c *Client) withRetry(ctx context.Context, op func() error) error {
	if c.retryMaxElapsed <= 0 {
		return op()
	}
	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if !isRetryableError(err) {
			return backoff.Permanent(err)
		}
		c.log.Debug("retrying transient API error", "attempt", attempt, "error", err)
		return err
	}, backoff.WithContext(c.newReadBackoff(), ctx))
}

// isRetryableError returns true for rate limits, server errors and network
// blips. Client errors (4xx) and cancellations are permanent.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		return true
	}
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return true
	}
	var respErr *gh.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		code := respErr.Response.StatusCode
		return code >= http.StatusInternalServerError || code == http.StatusTooManyRequests
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}

	// githubv4 reports HTTP failures as plain errors.
	msg := strings.ToLower(err.Error())
	for _, transient := range []string{
		"non-200 ok status code: 5",
		"non-200 ok status code: 429",
		"connection reset",
		"connection refused",
		"broken pipe",
		"i/o timeout",
	} {
		if strings.Contains(msg, transient) {
			return true
		}
	}
	return false
}
