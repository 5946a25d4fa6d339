package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

var DefaultRetry = RetryConfig{
	MaxAttempts: 3,
	BaseDelay:   1 * time.Second,
	MaxDelay:    10 * time.Second,
}

// Do executes an HTTP request, retrying transport errors, 429 and 5xx
// responses with exponential backoff. A Retry-After header stretches the
// wait up to MaxDelay. buildReq is called on each attempt since request
// bodies are consumed. Other responses are returned as they are. A nil log
// uses the standard logger.
func Do(ctx context.Context, client *http.Client, cfg RetryConfig, log logrus.FieldLogger, buildReq func() (*http.Request, error)) (*http.Response, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultRetry.MaxAttempts
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	var lastErr error
	delay := cfg.BaseDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		req, err := buildReq()
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}

		resp, err := client.Do(req)
		if err == nil && !retryable(resp.StatusCode) {
			return resp, nil
		}

		wait := delay
		if err != nil {
			lastErr = err
		} else {
			if ra := retryAfter(resp.Header.Get("Retry-After")); ra > wait {
				wait = ra
				if cfg.MaxDelay > 0 {
					wait = min(ra, cfg.MaxDelay)
				}
			}
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			lastErr = &StatusError{Code: resp.StatusCode, Body: string(body)}
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		log.WithError(lastErr).Warnf("attempt %d/%d failed, retrying in %s", attempt, cfg.MaxAttempts, wait)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}

		delay *= 2
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return nil, fmt.Errorf("all %d attempts failed, last error: %w", cfg.MaxAttempts, lastErr)
}

// StatusError is the last retryable response when every attempt failed.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

func retryable(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// retryAfter reads the delay-seconds form of Retry-After.
func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
