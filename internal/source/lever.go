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

// LeverBaseURL is the public Lever postings API.
const LeverBaseURL = "https://api.lever.co/v0/postings"

type leverCategories struct {
	Location     string   `json:"location"`
	AllLocations []string `json:"allLocations"`
}

type leverSalary struct {
	Currency string  `json:"currency"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
}

type leverJob struct {
	Text             string          `json:"text"`
	DescriptionPlain string          `json:"descriptionPlain"`
	Description      string          `json:"description"`
	Categories       leverCategories `json:"categories"`
	HostedURL        string          `json:"hostedUrl"`
	SalaryRange      *leverSalary    `json:"salaryRange"`
}

// LeverSource fetches postings from one Lever company site.
type LeverSource struct {
	baseURL     string
	companySlug string
	companyName string
	client      *http.Client
	logger      *slog.Logger
}

var _ model.PostingSource = (*LeverSource)(nil)

// NewLeverSource creates a source for companySlug. An empty baseURL means
// LeverBaseURL; an empty companyName falls back to the slug.
func NewLeverSource(baseURL, companySlug, companyName string, client *http.Client, logger *slog.Logger) *LeverSource {
	if baseURL == "" {
		baseURL = LeverBaseURL
	}
	if companyName == "" {
		companyName = companySlug
	}
	return &LeverSource{
		baseURL:     strings.TrimRight(baseURL, "/"),
		companySlug: companySlug,
		companyName: companyName,
		client:      client,
		logger:      logger,
	}
}

// FetchPostings retrieves every published posting for the company.
func (s *LeverSource) FetchPostings(ctx context.Context) ([]model.RawPosting, error) {
	endpoint := fmt.Sprintf("%s/%s?mode=json", s.baseURL, url.PathEscape(s.companySlug))

	var jobs []leverJob
	if err := getJSON(ctx, s.client, endpoint, &jobs); err != nil {
		return nil, fmt.Errorf("%w: lever fetch for %s: %w", model.ErrSourceUnavailable, s.companySlug, err)
	}

	postings := make([]model.RawPosting, 0, len(jobs))
	for _, lj := range jobs {
		location := lj.Categories.Location
		if len(lj.Categories.AllLocations) > 0 {
			location = strings.Join(lj.Categories.AllLocations, ", ")
		}
		description := lj.DescriptionPlain
		if description == "" {
			description = htmlToText(lj.Description)
		}
		postings = append(postings, model.RawPosting{
			CompanyName: s.companyName,
			JobTitle:    lj.Text,
			Link:        lj.HostedURL,
			Location:    location,
			SalaryRange: formatLeverSalary(lj.SalaryRange),
			Description: description,
		})
	}

	batch := cleanBatch(postings, "lever:"+s.companySlug, s.logger)
	s.logger.Debug("lever site fetched", "company", s.companySlug, "count", len(batch))
	return batch, nil
}

func formatLeverSalary(r *leverSalary) string {
	if r == nil || r.Max == 0 {
		return ""
	}
	symbol := "$"
	if r.Currency != "" && r.Currency != "USD" {
		symbol = r.Currency + " "
	}
	return fmt.Sprintf("%s%dk - %s%dk", symbol, int64(r.Min)/1000, symbol, int64(r.Max)/1000)
}
