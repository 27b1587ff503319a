package model

import (
	"context"
	"strings"
	"time"
)

// RawPosting is a job posting as produced by a source, before classification.
// It only lives for the duration of one sync run.
type RawPosting struct {
	CompanyName string `json:"company_name" yaml:"company_name"`
	JobTitle    string `json:"job_title" yaml:"job_title"`
	Link        string `json:"job_link" yaml:"job_link"` // canonical link, the natural key
	Location    string `json:"location" yaml:"location"`
	SalaryRange string `json:"salary_range" yaml:"salary_range"` // free text
	Description string `json:"description" yaml:"description"`
}

// Category is the role family assigned by the classifier.
type Category string

const (
	CategoryDataEngineering Category = "Data Engineering"
	CategoryDataScience     Category = "Data Science"
	CategoryAnalyst         Category = "Analyst"
	CategoryResearchAnalyst Category = "Research Analyst"
	CategoryOther           Category = "Other"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryDataEngineering,
	CategoryDataScience,
	CategoryAnalyst,
	CategoryResearchAnalyst,
	CategoryOther,
}

// ParseCategory maps a free-form category label to the enumeration.
// Unknown labels become CategoryOther.
func ParseCategory(s string) Category {
	norm := strings.ToLower(strings.TrimSpace(s))
	switch norm {
	case "data engineering", "data engineer", "de":
		return CategoryDataEngineering
	case "data science", "data scientist", "ds":
		return CategoryDataScience
	case "analyst", "data analyst", "business analyst", "analytics":
		return CategoryAnalyst
	case "research analyst", "research":
		return CategoryResearchAnalyst
	}
	return CategoryOther
}

// EligibilityVerdict is the classifier's answer for one posting.
type EligibilityVerdict struct {
	Eligible      bool
	Category      Category
	Justification string // short, human readable, persisted
	Reasoning     string // diagnostic only, never persisted
}

// StoredPosting is a persisted, eligible posting.
// Applied and the referral fields are owned by the lead-management commands;
// the sync pipeline only creates rows and counts unapplied ones.
type StoredPosting struct {
	ID              string
	CompanyName     string
	JobTitle        string
	Link            string
	Location        string
	SalaryRange     string
	Description     string
	Category        Category
	Justification   string
	Applied         bool
	ReferralSecured bool
	ReferrerName    string
	ReferrerContact string
	CreatedAt       time.Time
}

// NewStoredPosting builds the row to persist from a posting and its verdict.
// ID and CreatedAt are left for the repository to assign.
func NewStoredPosting(p RawPosting, v EligibilityVerdict) StoredPosting {
	return StoredPosting{
		CompanyName:   p.CompanyName,
		JobTitle:      p.JobTitle,
		Link:          p.Link,
		Location:      p.Location,
		SalaryRange:   p.SalaryRange,
		Description:   p.Description,
		Category:      v.Category,
		Justification: v.Justification,
	}
}

// Referral records who referred the user for a posting.
type Referral struct {
	Secured bool
	Name    string
	Contact string
}

// ListFilter narrows Repository.List results.
type ListFilter struct {
	Search        string // case-insensitive substring of company or title
	UnappliedOnly bool
	Limit         int // page size; <= 0 or above the store's cap means the cap
	Offset        int // rows to skip, for paging
}

// RunSummary reports the outcome of one sync run.
type RunSummary struct {
	NewJobsAdded int

	Fetched            int
	Duplicates         int
	Ineligible         int
	ClassifierFailures int
	InsertFailures     int
	Unapplied          int  // -1 when the backlog count could not be read
	Notified           bool // the notifier accepted the alert
	NotifyFailed       bool // an alert was due but the notifier returned an error

	StartedAt time.Time
	Duration  time.Duration
}

// PostingSource yields one batch of raw postings per call.
type PostingSource interface {
	FetchPostings(ctx context.Context) ([]RawPosting, error)
}

// Classifier decides whether a posting is eligible.
type Classifier interface {
	Classify(ctx context.Context, companyName, jobTitle, description string) (EligibilityVerdict, error)
}

// Repository is the narrow store view used by the sync pipeline.
type Repository interface {
	Exists(ctx context.Context, link string) (bool, error)
	Insert(ctx context.Context, posting StoredPosting) error
	CountUnapplied(ctx context.Context) (int, error)
}

// LeadStore adds the lead-management operations on top of Repository.
type LeadStore interface {
	Repository
	List(ctx context.Context, filter ListFilter) ([]StoredPosting, error)
	SetApplied(ctx context.Context, id string, applied bool) error
	SetReferral(ctx context.Context, id string, ref Referral) error
}

// Notifier delivers a backlog alert carrying the number of unapplied postings.
type Notifier interface {
	Notify(ctx context.Context, count int) error
}
