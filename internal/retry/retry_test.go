package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/amishk599/leadsync/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var fastPolicy = Policy{MaxRetries: 2, BaseDelay: 10 * time.Millisecond}

// mockSource calls a function on each invocation, tracking call count.
type mockSource struct {
	calls int
	fn    func(attempt int) ([]model.RawPosting, error)
}

func (m *mockSource) FetchPostings(_ context.Context) ([]model.RawPosting, error) {
	m.calls++
	return m.fn(m.calls)
}

func TestSource_SucceedsOnFirstAttempt(t *testing.T) {
	mock := &mockSource{fn: func(_ int) ([]model.RawPosting, error) {
		return []model.RawPosting{{Link: "l1"}}, nil
	}}

	got, err := NewSource(mock, fastPolicy, discardLogger()).FetchPostings(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Link != "l1" {
		t.Fatalf("unexpected postings: %v", got)
	}
	if mock.calls != 1 {
		t.Fatalf("expected 1 call, got %d", mock.calls)
	}
}

func TestSource_RetriesOn5xx_SucceedsOnSecondAttempt(t *testing.T) {
	mock := &mockSource{fn: func(attempt int) ([]model.RawPosting, error) {
		if attempt == 1 {
			return nil, &model.HTTPError{StatusCode: 503, Err: errors.New("service unavailable")}
		}
		return []model.RawPosting{{Link: "l1"}}, nil
	}}

	got, err := NewSource(mock, fastPolicy, discardLogger()).FetchPostings(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 posting, got %d", len(got))
	}
	if mock.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", mock.calls)
	}
}

func TestSource_DoesNotRetryOn4xx(t *testing.T) {
	mock := &mockSource{fn: func(_ int) ([]model.RawPosting, error) {
		return nil, &model.HTTPError{StatusCode: 404, Err: errors.New("not found")}
	}}

	_, err := NewSource(mock, fastPolicy, discardLogger()).FetchPostings(context.Background())
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != 404 {
		t.Fatalf("expected 404 HTTPError, got %v", err)
	}
	if mock.calls != 1 {
		t.Fatalf("expected 1 call (no retry on 4xx), got %d", mock.calls)
	}
}

func TestSource_ExhaustsRetries(t *testing.T) {
	mock := &mockSource{fn: func(_ int) ([]model.RawPosting, error) {
		return nil, errors.New("connection reset")
	}}

	_, err := NewSource(mock, fastPolicy, discardLogger()).FetchPostings(context.Background())
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if mock.calls != 3 {
		t.Fatalf("expected 3 calls (1 + 2 retries), got %d", mock.calls)
	}
}

func TestSource_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mock := &mockSource{fn: func(_ int) ([]model.RawPosting, error) {
		cancel()
		return nil, &model.HTTPError{StatusCode: 502}
	}}

	_, err := NewSource(mock, Policy{MaxRetries: 3, BaseDelay: time.Second}, discardLogger()).FetchPostings(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if mock.calls != 1 {
		t.Fatalf("expected 1 call, got %d", mock.calls)
	}
}

func TestBackoffDelay_HonorsRetryAfter(t *testing.T) {
	p := Policy{BaseDelay: time.Second}
	err := &model.HTTPError{StatusCode: 429, RetryAfter: 42 * time.Second}
	if got := p.backoffDelay(1, err); got != 42*time.Second {
		t.Errorf("delay = %v, want 42s", got)
	}
}

func TestBackoffDelay_ExponentialWithJitter(t *testing.T) {
	p := Policy{BaseDelay: 100 * time.Millisecond}
	for attempt, base := range map[int]time.Duration{1: 100 * time.Millisecond, 2: 200 * time.Millisecond, 3: 400 * time.Millisecond} {
		got := p.backoffDelay(attempt, errors.New("x"))
		lo := time.Duration(float64(base) * 0.7)
		hi := time.Duration(float64(base) * 1.3)
		if got < lo || got > hi {
			t.Errorf("attempt %d: delay %v outside [%v, %v]", attempt, got, lo, hi)
		}
	}
}

// mockClassifier returns the scripted error for each attempt.
type mockClassifier struct {
	calls int
	errs  []error
}

func (m *mockClassifier) Classify(_ context.Context, _, _, _ string) (model.EligibilityVerdict, error) {
	m.calls++
	if m.calls <= len(m.errs) && m.errs[m.calls-1] != nil {
		return model.EligibilityVerdict{}, m.errs[m.calls-1]
	}
	return model.EligibilityVerdict{Eligible: true, Category: model.CategoryAnalyst}, nil
}

func TestClassifier_RetriesRateLimit(t *testing.T) {
	mock := &mockClassifier{errs: []error{
		fmt.Errorf("%w: llm complete: %w", model.ErrClassifier, &model.HTTPError{StatusCode: 429, RetryAfter: 10 * time.Millisecond}),
	}}

	v, err := NewClassifier(mock, fastPolicy, discardLogger()).Classify(context.Background(), "Acme", "Analyst", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.Eligible || mock.calls != 2 {
		t.Errorf("verdict = %+v, calls = %d", v, mock.calls)
	}
}

func TestClassifier_DoesNotRetryMalformedReply(t *testing.T) {
	parseErr := fmt.Errorf("%w: parse verdict: no JSON object in response", model.ErrClassifier)
	mock := &mockClassifier{errs: []error{parseErr, parseErr, parseErr}}

	_, err := NewClassifier(mock, fastPolicy, discardLogger()).Classify(context.Background(), "Acme", "Analyst", "")
	if err != parseErr {
		t.Fatalf("expected the original error back, got %v", err)
	}
	if mock.calls != 1 {
		t.Errorf("expected 1 call, got %d", mock.calls)
	}
}
