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

// GreenhouseBaseURL is the public Greenhouse job board API.
const GreenhouseBaseURL = "https://boards-api.greenhouse.io/v1/boards"

type greenhouseJob struct {
	ID          int64              `json:"id"`
	Title       string             `json:"title"`
	Location    greenhouseLocation `json:"location"`
	AbsoluteURL string             `json:"absolute_url"`
	CompanyName string             `json:"company_name"`
	Content     string             `json:"content"`
}

type greenhouseLocation struct {
	Name string `json:"name"`
}

type greenhouseResponse struct {
	Jobs []greenhouseJob `json:"jobs"`
}

// GreenhouseSource fetches postings with descriptions from one Greenhouse board.
type GreenhouseSource struct {
	baseURL     string
	boardToken  string
	companyName string
	client      *http.Client
	logger      *slog.Logger
}

var _ model.PostingSource = (*GreenhouseSource)(nil)

// NewGreenhouseSource creates a source for boardToken. companyName overrides
// the board's own company name when set. An empty baseURL means GreenhouseBaseURL.
func NewGreenhouseSource(baseURL, boardToken, companyName string, client *http.Client, logger *slog.Logger) *GreenhouseSource {
	if baseURL == "" {
		baseURL = GreenhouseBaseURL
	}
	return &GreenhouseSource{
		baseURL:     strings.TrimRight(baseURL, "/"),
		boardToken:  boardToken,
		companyName: companyName,
		client:      client,
		logger:      logger,
	}
}

// FetchPostings retrieves every open job on the board with its content. The
// board listing carries no pay data, so SalaryRange stays empty.
func (s *GreenhouseSource) FetchPostings(ctx context.Context) ([]model.RawPosting, error) {
	endpoint := fmt.Sprintf("%s/%s/jobs?content=true", s.baseURL, url.PathEscape(s.boardToken))

	var ghResp greenhouseResponse
	if err := getJSON(ctx, s.client, endpoint, &ghResp); err != nil {
		return nil, fmt.Errorf("%w: greenhouse fetch for %s: %w", model.ErrSourceUnavailable, s.boardToken, err)
	}

	postings := make([]model.RawPosting, 0, len(ghResp.Jobs))
	for _, gj := range ghResp.Jobs {
		company := s.companyName
		if company == "" {
			company = gj.CompanyName
		}
		postings = append(postings, model.RawPosting{
			CompanyName: company,
			JobTitle:    gj.Title,
			Link:        gj.AbsoluteURL,
			Location:    gj.Location.Name,
			Description: htmlToText(gj.Content),
		})
	}

	batch := cleanBatch(postings, "greenhouse:"+s.boardToken, s.logger)
	s.logger.Debug("greenhouse board fetched", "board", s.boardToken, "count", len(batch))
	return batch, nil
}
