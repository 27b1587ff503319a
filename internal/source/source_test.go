package source

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"

	"github.com/amishk599/leadsync/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const feedJSON = `[
	{"company_name": "Airbnb", "job_title": "Senior Data Scientist, Analytics", "job_link": "https://careers.airbnb.com/positions/ds-1", "location": "San Francisco, CA", "salary_range": "$180k - $240k", "description": "Deep knowledge of SQL, Python, and A/B testing."},
	{"company_name": "DoorDash", "job_title": "Data Analyst, Marketing", "job_link": " https://careers.doordash.com/jobs/da-2 ", "location": "Remote, US", "salary_range": "$120k - $160k", "description": "Support marketing teams with data insights."},
	{"company_name": "Ghost", "job_title": "No Link", "job_link": ""}
]`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// --- FileSource ---

func TestFileSource_JSONList(t *testing.T) {
	src := NewFileSource(writeFile(t, "postings.json", feedJSON), discardLogger())

	got, err := src.FetchPostings(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 postings (link-less one dropped), got %d", len(got))
	}
	if got[1].Link != "https://careers.doordash.com/jobs/da-2" {
		t.Errorf("link not trimmed: %q", got[1].Link)
	}
	if got[0].SalaryRange != "$180k - $240k" {
		t.Errorf("SalaryRange = %q", got[0].SalaryRange)
	}
}

func TestFileSource_YAMLWrapped(t *testing.T) {
	yamlDoc := `
postings:
  - company_name: Snowflake
    job_title: Data Engineer
    job_link: https://snowflake.com/jobs/de-3
    location: Bellevue, WA
    description: Design and implement scalable data pipelines.
`
	src := NewFileSource(writeFile(t, "postings.yaml", yamlDoc), discardLogger())

	got, err := src.FetchPostings(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].CompanyName != "Snowflake" || got[0].Location != "Bellevue, WA" {
		t.Errorf("postings = %+v", got)
	}
}

func TestFileSource_EmptyFileIsEmptyBatch(t *testing.T) {
	src := NewFileSource(writeFile(t, "postings.yaml", "\n"), discardLogger())

	got, err := src.FetchPostings(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty batch, got %d", len(got))
	}
}

func TestFileSource_MissingFileIsSourceUnavailable(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "nope.yaml"), discardLogger())

	_, err := src.FetchPostings(context.Background())
	if !errors.Is(err, model.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
}

func TestFileSource_MalformedJSON(t *testing.T) {
	src := NewFileSource(writeFile(t, "postings.json", "[{"), discardLogger())

	if _, err := src.FetchPostings(context.Background()); !errors.Is(err, model.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
}

// --- HTTPSource ---

func TestHTTPSource_PlainJSON(t *testing.T) {
	var gotAuth, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept-Encoding")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(feedJSON))
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, map[string]string{"Authorization": "Bearer feed-token"}, srv.Client(), discardLogger())
	got, err := src.FetchPostings(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 postings, got %d", len(got))
	}
	if gotAuth != "Bearer feed-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if !strings.Contains(gotAccept, "br") {
		t.Errorf("Accept-Encoding = %q, want br", gotAccept)
	}
}

func TestHTTPSource_BrotliBody(t *testing.T) {
	var compressed bytes.Buffer
	bw := brotli.NewWriter(&compressed)
	bw.Write([]byte(feedJSON))
	bw.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "br")
		w.Write(compressed.Bytes())
	}))
	defer srv.Close()

	got, err := NewHTTPSource(srv.URL, nil, srv.Client(), discardLogger()).FetchPostings(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].CompanyName != "Airbnb" {
		t.Errorf("postings = %+v", got)
	}
}

func TestHTTPSource_GzipBody(t *testing.T) {
	var compressed bytes.Buffer
	gw := gzip.NewWriter(&compressed)
	gw.Write([]byte(feedJSON))
	gw.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.Write(compressed.Bytes())
	}))
	defer srv.Close()

	got, err := NewHTTPSource(srv.URL, nil, srv.Client(), discardLogger()).FetchPostings(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 postings, got %d", len(got))
	}
}

func TestHTTPSource_ServerErrorIsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPSource(srv.URL, nil, srv.Client(), discardLogger()).FetchPostings(context.Background())
	if !errors.Is(err, model.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 HTTPError, got %v", err)
	}
}

// --- GreenhouseSource ---

const greenhousePayload = `{
	"jobs": [
		{
			"id": 12345,
			"title": "Data Engineer",
			"company_name": "Acme Board",
			"location": {"name": "San Francisco, CA"},
			"absolute_url": "https://boards.greenhouse.io/acme/jobs/12345",
			"content": "&lt;p&gt;Build &lt;strong&gt;pipelines&lt;/strong&gt;.&lt;/p&gt;&lt;ul&gt;&lt;li&gt;SQL&lt;/li&gt;&lt;li&gt;Spark&lt;/li&gt;&lt;/ul&gt;"
		},
		{
			"id": 67890,
			"title": "Research Analyst",
			"location": {"name": "Remote, US"},
			"absolute_url": "https://boards.greenhouse.io/acme/jobs/67890",
			"content": ""
		}
	]
}`

func TestGreenhouseSource_Success(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(greenhousePayload))
	}))
	defer srv.Close()

	src := NewGreenhouseSource(srv.URL+"/v1/boards", "acme", "Acme Corp", srv.Client(), discardLogger())
	got, err := src.FetchPostings(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/v1/boards/acme/jobs" || gotQuery != "content=true" {
		t.Errorf("request = %s?%s", gotPath, gotQuery)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 postings, got %d", len(got))
	}

	p := got[0]
	if p.CompanyName != "Acme Corp" {
		t.Errorf("CompanyName = %q, want Acme Corp", p.CompanyName)
	}
	if p.Link != "https://boards.greenhouse.io/acme/jobs/12345" {
		t.Errorf("Link = %q", p.Link)
	}
	if p.Description != "Build pipelines. SQL Spark" {
		t.Errorf("Description = %q", p.Description)
	}
	for _, g := range got {
		if g.SalaryRange != "" {
			t.Errorf("board listing has no pay data, got SalaryRange %q", g.SalaryRange)
		}
	}
}

func TestGreenhouseSource_FallsBackToBoardCompanyName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(greenhousePayload))
	}))
	defer srv.Close()

	got, err := NewGreenhouseSource(srv.URL, "acme", "", srv.Client(), discardLogger()).FetchPostings(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0].CompanyName != "Acme Board" {
		t.Errorf("CompanyName = %q, want Acme Board", got[0].CompanyName)
	}
}

func TestGreenhouseSource_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewGreenhouseSource(srv.URL, "missing", "", srv.Client(), discardLogger()).FetchPostings(context.Background())
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 HTTPError, got %v", err)
	}
}

func TestHTMLToText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"plain   text", "plain text"},
		{"<p>One</p><p>Two</p>", "One Two"},
		{"<div>keep<script>drop()</script></div>", "keep"},
		{"&lt;b&gt;bold&lt;/b&gt; &amp; more", "bold & more"},
	}
	for _, tt := range tests {
		if got := htmlToText(tt.in); got != tt.want {
			t.Errorf("htmlToText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// --- MultiSource ---

type stubSource struct {
	postings []model.RawPosting
	err      error
}

func (s stubSource) FetchPostings(_ context.Context) ([]model.RawPosting, error) {
	return s.postings, s.err
}

func TestMultiSource_ConcatenatesInOrder(t *testing.T) {
	m := NewMultiSource([]Named{
		{Name: "a", Source: stubSource{postings: []model.RawPosting{{Link: "a1"}, {Link: "a2"}}}},
		{Name: "b", Source: stubSource{}},
		{Name: "c", Source: stubSource{postings: []model.RawPosting{{Link: "c1"}}}},
	}, discardLogger())

	got, err := m.FetchPostings(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var links []string
	for _, p := range got {
		links = append(links, p.Link)
	}
	if strings.Join(links, ",") != "a1,a2,c1" {
		t.Errorf("links = %v, want [a1 a2 c1]", links)
	}
}

func TestMultiSource_AnyFailureFailsBatch(t *testing.T) {
	m := NewMultiSource([]Named{
		{Name: "ok", Source: stubSource{postings: []model.RawPosting{{Link: "x"}}}},
		{Name: "broken", Source: stubSource{err: model.ErrSourceUnavailable}},
	}, discardLogger())

	got, err := m.FetchPostings(context.Background())
	if !errors.Is(err, model.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Errorf("error should name the failing source: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil batch on failure, got %v", got)
	}
}
