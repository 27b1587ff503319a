package source

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/amishk599/leadsync/internal/model"
)

// maxFeedBytes caps a decoded feed body.
const maxFeedBytes = 32 << 20

// HTTPSource fetches a JSON list of postings from a feed URL, typically a
// scraper service that already produced RawPostings.
type HTTPSource struct {
	url     string
	headers map[string]string
	client  *http.Client
	logger  *slog.Logger
}

var _ model.PostingSource = (*HTTPSource)(nil)

// NewHTTPSource creates a source for url. headers are sent with every request
// (for example an Authorization header for a private feed).
func NewHTTPSource(url string, headers map[string]string, client *http.Client, logger *slog.Logger) *HTTPSource {
	return &HTTPSource{url: url, headers: headers, client: client, logger: logger}
}

// FetchPostings downloads and decodes the feed. Non-2xx responses are
// returned as *model.HTTPError so the retry decorator can act on them.
func (s *HTTPSource) FetchPostings(ctx context.Context) ([]model.RawPosting, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: feed %s: %w", model.ErrSourceUnavailable, s.url, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "br, gzip")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: feed %s: %w", model.ErrSourceUnavailable, s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: feed %s: %w", model.ErrSourceUnavailable, s.url, &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
		})
	}

	body, err := decodeBody(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: feed %s: %w", model.ErrSourceUnavailable, s.url, err)
	}

	postings, err := decodePostings(body, ".json")
	if err != nil {
		return nil, fmt.Errorf("%w: feed %s: decode: %w", model.ErrSourceUnavailable, s.url, err)
	}

	batch := cleanBatch(postings, s.url, s.logger)
	s.logger.Debug("postings fetched from feed",
		"url", s.url,
		"count", len(batch),
		"content_encoding", resp.Header.Get("Content-Encoding"),
	)
	return batch, nil
}

// decodeBody reads the response body, undoing br or gzip content encoding.
func decodeBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "br":
		r = brotli.NewReader(resp.Body)
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer gz.Close()
		r = gz
	case "", "identity":
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", resp.Header.Get("Content-Encoding"))
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, maxFeedBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if n > maxFeedBytes {
		return nil, fmt.Errorf("feed larger than %d bytes", maxFeedBytes)
	}
	return buf.Bytes(), nil
}

// parseRetryAfter parses the Retry-After header value into a duration.
// Supports seconds format (e.g. "120"). Returns zero if absent or unparseable.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// getJSON GETs endpoint and decodes a 200 response into v. Other statuses
// come back as *model.HTTPError.
func getJSON(ctx context.Context, client *http.Client, endpoint string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
