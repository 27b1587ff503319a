package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/amishk599/leadsync/internal/model"
)

// GemBaseURL is the public Gem job board API.
const GemBaseURL = "https://api.gem.com/job_board/v0"

type gemPost struct {
	Title        string `json:"title"`
	AbsoluteURL  string `json:"absolute_url"`
	Content      string `json:"content"`
	ContentPlain string `json:"content_plain"`
	Location     struct {
		Name string `json:"name"`
	} `json:"location"`
}

// GemSource fetches postings from one Gem job board.
type GemSource struct {
	baseURL     string
	boardToken  string
	companyName string
	client      *http.Client
	logger      *slog.Logger
}

var _ model.PostingSource = (*GemSource)(nil)

// NewGemSource creates a source for boardToken. An empty baseURL means
// GemBaseURL; an empty companyName falls back to the board token.
func NewGemSource(baseURL, boardToken, companyName string, client *http.Client, logger *slog.Logger) *GemSource {
	if baseURL == "" {
		baseURL = GemBaseURL
	}
	if companyName == "" {
		companyName = boardToken
	}
	return &GemSource{
		baseURL:     strings.TrimRight(baseURL, "/"),
		boardToken:  boardToken,
		companyName: companyName,
		client:      client,
		logger:      logger,
	}
}

// FetchPostings retrieves every post on the board.
func (s *GemSource) FetchPostings(ctx context.Context) ([]model.RawPosting, error) {
	endpoint := fmt.Sprintf("%s/%s/job_posts/", s.baseURL, url.PathEscape(s.boardToken))

	var posts []gemPost
	if err := getJSON(ctx, s.client, endpoint, &posts); err != nil {
		return nil, fmt.Errorf("%w: gem fetch for %s: %w", model.ErrSourceUnavailable, s.boardToken, err)
	}

	postings := make([]model.RawPosting, 0, len(posts))
	for _, p := range posts {
		description := p.ContentPlain
		if description == "" {
			description = htmlToText(p.Content)
		}
		postings = append(postings, model.RawPosting{
			CompanyName: s.companyName,
			JobTitle:    p.Title,
			Link:        p.AbsoluteURL,
			Location:    p.Location.Name,
			Description: description,
		})
	}

	batch := cleanBatch(postings, "gem:"+s.boardToken, s.logger)
	s.logger.Debug("gem board fetched", "board", s.boardToken, "count", len(batch))
	return batch, nil
}
