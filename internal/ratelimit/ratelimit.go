package ratelimit

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/amishk599/leadsync/internal/model"
)

// KeyedLimiter is a set of token buckets, one per key (a source host or an
// LLM provider name). Keys never block each other.
type KeyedLimiter struct {
	mu sync.Mutex
	m  map[string]*rate.Limiter
	r  rate.Limit
	b  int
}

// NewKeyedLimiter creates a limiter allowing perSecond requests per key with
// the given burst. A burst below 1 is raised to 1.
func NewKeyedLimiter(perSecond float64, burst int) *KeyedLimiter {
	if burst < 1 {
		burst = 1
	}
	return &KeyedLimiter{
		m: make(map[string]*rate.Limiter),
		r: rate.Limit(perSecond),
		b: burst,
	}
}

func (l *KeyedLimiter) limiterFor(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lim, ok := l.m[key]; ok {
		return lim
	}
	lim := rate.NewLimiter(l.r, l.b)
	l.m[key] = lim
	return lim
}

// Wait blocks until a token for key is available.
// Returns an error if the context is cancelled while waiting.
func (l *KeyedLimiter) Wait(ctx context.Context, key string) error {
	if err := l.limiterFor(key).Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait for %s: %w", key, err)
	}
	return nil
}

// Source is a decorator that rate limits fetches per key.
// All sources hitting the same backend should share one limiter and key.
type Source struct {
	inner   model.PostingSource
	limiter *KeyedLimiter
	key     string
}

var _ model.PostingSource = (*Source)(nil)

// NewSource wraps a PostingSource with keyed rate limiting.
func NewSource(inner model.PostingSource, limiter *KeyedLimiter, key string) *Source {
	return &Source{inner: inner, limiter: limiter, key: key}
}

// FetchPostings waits for the limiter, then delegates to the wrapped source.
func (s *Source) FetchPostings(ctx context.Context) ([]model.RawPosting, error) {
	if err := s.limiter.Wait(ctx, s.key); err != nil {
		return nil, err
	}
	return s.inner.FetchPostings(ctx)
}

// Classifier is a decorator that keeps classifier calls under a provider quota.
type Classifier struct {
	inner   model.Classifier
	limiter *KeyedLimiter
	key     string
}

var _ model.Classifier = (*Classifier)(nil)

// NewClassifier wraps a Classifier with keyed rate limiting.
func NewClassifier(inner model.Classifier, limiter *KeyedLimiter, key string) *Classifier {
	return &Classifier{inner: inner, limiter: limiter, key: key}
}

// Classify waits for the limiter, then delegates to the wrapped classifier.
// A cancelled wait is reported as a classifier failure.
func (c *Classifier) Classify(ctx context.Context, companyName, jobTitle, description string) (model.EligibilityVerdict, error) {
	if err := c.limiter.Wait(ctx, c.key); err != nil {
		return model.EligibilityVerdict{}, fmt.Errorf("%w: %w", model.ErrClassifier, err)
	}
	return c.inner.Classify(ctx, companyName, jobTitle, description)
}
