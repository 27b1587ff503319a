package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/amishk599/leadsync/internal/model"
)

// Policy describes how transient failures are retried.
// MaxRetries is the number of additional attempts after the first failure.
// BaseDelay is the delay before the first retry, doubled on each later retry.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// Do calls fn until it succeeds, returns a non-retryable error, or the policy
// runs out of attempts. The last error is returned unchanged.
func Do[T any](ctx context.Context, p Policy, logger *slog.Logger, op string, fn func(context.Context) (T, error)) (T, error) {
	v, err := fn(ctx)
	if err == nil || !isRetryable(err) {
		return v, err
	}

	lastErr := err
	for attempt := 1; attempt <= p.MaxRetries; attempt++ {
		delay := p.backoffDelay(attempt, lastErr)

		logger.Warn("retrying after transient error",
			"op", op,
			"attempt", attempt,
			"max_retries", p.MaxRetries,
			"delay", delay,
			"error", lastErr,
		)

		select {
		case <-ctx.Done():
			var zero T
			return zero, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}

		v, err = fn(ctx)
		if err == nil || !isRetryable(err) {
			return v, err
		}
		lastErr = err
	}

	var zero T
	return zero, lastErr
}

// backoffDelay computes the delay for a given attempt with ±30% jitter.
// A Retry-After duration carried by an HTTPError takes precedence.
func (p Policy) backoffDelay(attempt int, err error) time.Duration {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return httpErr.RetryAfter
	}

	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}

	jitter := float64(delay) * 0.3
	return time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)
}

// isRetryable returns true if the error represents a transient failure worth retrying.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var perm permanent
	if errors.As(err, &perm) {
		return false
	}

	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}

	// Network, DNS and similar failures.
	return true
}

// Source is a decorator that retries transient fetch failures.
type Source struct {
	inner  model.PostingSource
	policy Policy
	logger *slog.Logger
}

var _ model.PostingSource = (*Source)(nil)

// NewSource wraps a PostingSource with retry logic.
func NewSource(inner model.PostingSource, policy Policy, logger *slog.Logger) *Source {
	return &Source{inner: inner, policy: policy, logger: logger}
}

// FetchPostings delegates to the wrapped source, retrying on transient errors.
func (s *Source) FetchPostings(ctx context.Context) ([]model.RawPosting, error) {
	return Do(ctx, s.policy, s.logger, "fetch postings", s.inner.FetchPostings)
}

// Classifier is a decorator that retries transient classifier failures such
// as provider 429s and 5xx responses. Malformed replies are not retried.
type Classifier struct {
	inner  model.Classifier
	policy Policy
	logger *slog.Logger
}

var _ model.Classifier = (*Classifier)(nil)

// NewClassifier wraps a Classifier with retry logic.
func NewClassifier(inner model.Classifier, policy Policy, logger *slog.Logger) *Classifier {
	return &Classifier{inner: inner, policy: policy, logger: logger}
}

// Classify delegates to the wrapped classifier, retrying on transient errors.
func (c *Classifier) Classify(ctx context.Context, companyName, jobTitle, description string) (model.EligibilityVerdict, error) {
	v, err := Do(ctx, c.policy, c.logger, "classify", func(ctx context.Context) (model.EligibilityVerdict, error) {
		v, err := c.inner.Classify(ctx, companyName, jobTitle, description)
		if err != nil && !transientClassifierError(err) {
			return v, permanent{err}
		}
		return v, err
	})
	var perm permanent
	if errors.As(err, &perm) {
		return v, perm.err
	}
	return v, err
}

// transientClassifierError reports whether a classifier failure came from the
// transport rather than from the model's answer.
func transientClassifierError(err error) bool {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr)
}

// permanent marks an error that must not be retried.
type permanent struct{ err error }

func (p permanent) Error() string { return p.err.Error() }
func (p permanent) Unwrap() error { return p.err }
