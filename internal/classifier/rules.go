package classifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/amishk599/leadsync/internal/model"
)

// RuleClassifier is an offline classifier. A posting is eligible when its
// title contains one of the category keywords and the company is not
// excluded. Matching is case-insensitive.
type RuleClassifier struct {
	keywords map[model.Category][]string
	excluded []string
}

var _ model.Classifier = (*RuleClassifier)(nil)

// DefaultKeywords maps each category to the title fragments that select it.
var DefaultKeywords = map[model.Category][]string{
	model.CategoryDataEngineering: {"data engineer", "analytics engineer", "etl"},
	model.CategoryDataScience:     {"data scientist", "data science", "machine learning scientist"},
	model.CategoryResearchAnalyst: {"research analyst"},
	model.CategoryAnalyst:         {"data analyst", "business analyst", "analytics", "bi analyst", "product analyst"},
}

// NewRuleClassifier returns a classifier using keywords per category and
// rejecting the excluded companies. A nil keywords map uses DefaultKeywords.
func NewRuleClassifier(keywords map[model.Category][]string, excluded []string) *RuleClassifier {
	if keywords == nil {
		keywords = DefaultKeywords
	}
	return &RuleClassifier{keywords: keywords, excluded: excluded}
}

// Classify never fails.
func (c *RuleClassifier) Classify(_ context.Context, companyName, jobTitle, _ string) (model.EligibilityVerdict, error) {
	if isExcluded(companyName, c.excluded) {
		return model.EligibilityVerdict{
			Eligible:  false,
			Category:  c.categoryFor(jobTitle),
			Reasoning: fmt.Sprintf("%s is on the excluded company list", companyName),
		}, nil
	}

	category := c.categoryFor(jobTitle)
	if category == model.CategoryOther {
		return model.EligibilityVerdict{
			Eligible:  false,
			Category:  model.CategoryOther,
			Reasoning: "title matches no priority data role",
		}, nil
	}

	return model.EligibilityVerdict{
		Eligible:      true,
		Category:      category,
		Justification: "Matched by title keyword rules; sponsorship history not verified",
		Reasoning:     fmt.Sprintf("title %q matched %s", jobTitle, category),
	}, nil
}

// categoryFor returns the first category whose keyword appears in title.
// Research Analyst is checked before Analyst so the narrower match wins.
func (c *RuleClassifier) categoryFor(title string) model.Category {
	titleLower := strings.ToLower(title)
	order := []model.Category{
		model.CategoryDataEngineering,
		model.CategoryDataScience,
		model.CategoryResearchAnalyst,
		model.CategoryAnalyst,
	}
	for _, cat := range order {
		for _, kw := range c.keywords[cat] {
			if strings.Contains(titleLower, strings.ToLower(kw)) {
				return cat
			}
		}
	}
	return model.CategoryOther
}

// isExcluded reports whether company equals one of excluded, ignoring case
// and surrounding space.
func isExcluded(company string, excluded []string) bool {
	company = strings.ToLower(strings.TrimSpace(company))
	for _, ex := range excluded {
		if company == strings.ToLower(strings.TrimSpace(ex)) {
			return true
		}
	}
	return false
}
