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

// AshbyBaseURL is the public Ashby job board API.
const AshbyBaseURL = "https://api.ashbyhq.com/posting-api/job-board"

type ashbyJob struct {
	Title            string             `json:"title"`
	Location         string             `json:"location"`
	JobURL           string             `json:"jobUrl"`
	IsListed         bool               `json:"isListed"`
	DescriptionPlain string             `json:"descriptionPlain"`
	DescriptionHTML  string             `json:"descriptionHtml"`
	Compensation     *ashbyCompensation `json:"compensation"`
}

type ashbyCompensation struct {
	Summary string `json:"compensationTierSummary"`
}

type ashbyResponse struct {
	Jobs []ashbyJob `json:"jobs"`
}

// AshbySource fetches listed postings from one Ashby job board.
type AshbySource struct {
	baseURL     string
	boardToken  string
	companyName string
	client      *http.Client
	logger      *slog.Logger
}

var _ model.PostingSource = (*AshbySource)(nil)

// NewAshbySource creates a source for boardToken. An empty baseURL means
// AshbyBaseURL; an empty companyName falls back to the board token.
func NewAshbySource(baseURL, boardToken, companyName string, client *http.Client, logger *slog.Logger) *AshbySource {
	if baseURL == "" {
		baseURL = AshbyBaseURL
	}
	if companyName == "" {
		companyName = boardToken
	}
	return &AshbySource{
		baseURL:     strings.TrimRight(baseURL, "/"),
		boardToken:  boardToken,
		companyName: companyName,
		client:      client,
		logger:      logger,
	}
}

// FetchPostings retrieves the board's listed jobs with compensation.
func (s *AshbySource) FetchPostings(ctx context.Context) ([]model.RawPosting, error) {
	endpoint := fmt.Sprintf("%s/%s?includeCompensation=true", s.baseURL, url.PathEscape(s.boardToken))

	var resp ashbyResponse
	if err := getJSON(ctx, s.client, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("%w: ashby fetch for %s: %w", model.ErrSourceUnavailable, s.boardToken, err)
	}

	postings := make([]model.RawPosting, 0, len(resp.Jobs))
	for _, aj := range resp.Jobs {
		if !aj.IsListed {
			continue
		}
		description := aj.DescriptionPlain
		if description == "" {
			description = htmlToText(aj.DescriptionHTML)
		}
		var salary string
		if aj.Compensation != nil {
			salary = aj.Compensation.Summary
		}
		postings = append(postings, model.RawPosting{
			CompanyName: s.companyName,
			JobTitle:    aj.Title,
			Link:        aj.JobURL,
			Location:    aj.Location,
			SalaryRange: salary,
			Description: description,
		})
	}

	batch := cleanBatch(postings, "ashby:"+s.boardToken, s.logger)
	s.logger.Debug("ashby board fetched", "board", s.boardToken, "count", len(batch))
	return batch, nil
}
