package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// retryPolicy doubles the delay after each failed attempt, capped at max.
// A Retry-After header from the server replaces the computed delay.
type retryPolicy struct {
	attempts int
	base     time.Duration
	max      time.Duration
	sleeper  func(time.Duration)
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{attempts: 4, base: time.Second, max: 10 * time.Second}
}

func (p retryPolicy) maxAttempts() int {
	if p.attempts <= 0 {
		return 1
	}
	return p.attempts
}

// next reports whether err after the given 1-based attempt deserves another
// try, and how long to wait first.
func (p retryPolicy) next(ctx context.Context, err error, attempt int) (time.Duration, bool) {
	if err == nil || attempt >= p.maxAttempts() || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var empty *emptyContentError
	if errors.As(err, &empty) {
		return p.backoff(attempt), true
	}

	var status *httpStatusError
	if errors.As(err, &status) {
		if status.StatusCode != http.StatusRequestTimeout &&
			status.StatusCode != http.StatusTooManyRequests &&
			status.StatusCode < http.StatusInternalServerError {
			return 0, false
		}
		if after, ok := parseRetryAfter(status.RetryAfter, time.Now()); ok {
			return p.clamp(after), true
		}
		return p.backoff(attempt), true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return p.backoff(attempt), true
	}
	return 0, false
}

func (p retryPolicy) backoff(attempt int) time.Duration {
	if p.base <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	delay := p.base
	for i := 1; i < attempt && delay < p.limit(); i++ {
		delay *= 2
	}
	return p.clamp(delay)
}

func (p retryPolicy) limit() time.Duration {
	if p.max > 0 {
		return p.max
	}
	return defaultRetryPolicy().max
}

func (p retryPolicy) clamp(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	return min(delay, p.limit())
}

func (p retryPolicy) wait(ctx context.Context, delay time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if delay <= 0 {
		return nil
	}
	if p.sleeper != nil {
		p.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	when, err := http.ParseTime(value)
	if err != nil || when.Before(now) {
		return 0, false
	}
	return when.Sub(now), true
}
