package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/amishk599/leadsync/internal/model"
)

// maxDescriptionRunes bounds the description passed to the model.
const maxDescriptionRunes = 12000

// DefaultExcludedCompanies are the big-tech employers the prompt rules out.
var DefaultExcludedCompanies = []string{"Amazon", "Google", "Meta", "Apple", "Netflix", "Microsoft"}

// LLMClassifier implements model.Classifier by prompting an LLM.
type LLMClassifier struct {
	provider LLMProvider
	tmpl     *template.Template
	excluded []string
	logger   *slog.Logger
}

var _ model.Classifier = (*LLMClassifier)(nil)

// NewLLMClassifier creates a classifier that asks provider for a verdict.
// Postings from an excluded company are rejected without a provider call;
// the list is also rendered into the prompt so the model can catch variants
// of the names.
func NewLLMClassifier(provider LLMProvider, tmpl *template.Template, excluded []string, logger *slog.Logger) *LLMClassifier {
	return &LLMClassifier{
		provider: provider,
		tmpl:     tmpl,
		excluded: excluded,
		logger:   logger,
	}
}

type promptData struct {
	CompanyName       string
	JobTitle          string
	Description       string
	ExcludedCompanies []string
}

// Classify renders the prompt, calls the provider and parses the verdict.
// Any failure is returned wrapped in model.ErrClassifier; the caller decides
// how to treat it.
func (c *LLMClassifier) Classify(ctx context.Context, companyName, jobTitle, description string) (model.EligibilityVerdict, error) {
	if isExcluded(companyName, c.excluded) {
		return model.EligibilityVerdict{
			Eligible:  false,
			Category:  model.CategoryOther,
			Reasoning: fmt.Sprintf("%s is on the excluded company list", companyName),
		}, nil
	}

	var promptBuf bytes.Buffer
	if err := c.tmpl.Execute(&promptBuf, promptData{
		CompanyName:       companyName,
		JobTitle:          jobTitle,
		Description:       truncateRunes(description, maxDescriptionRunes),
		ExcludedCompanies: c.excluded,
	}); err != nil {
		return model.EligibilityVerdict{}, fmt.Errorf("%w: render prompt: %w", model.ErrClassifier, err)
	}

	raw, err := c.provider.Complete(ctx, promptBuf.String())
	if err != nil {
		return model.EligibilityVerdict{}, fmt.Errorf("%w: llm complete: %w", model.ErrClassifier, err)
	}

	verdict, err := parseVerdict(raw)
	if err != nil {
		return model.EligibilityVerdict{}, fmt.Errorf("%w: parse verdict: %w", model.ErrClassifier, err)
	}

	if c.logger != nil {
		c.logger.Debug("posting classified",
			"company", companyName,
			"title", jobTitle,
			"eligible", verdict.Eligible,
			"category", verdict.Category,
		)
	}
	return verdict, nil
}

// rawVerdict is the JSON shape the prompt asks for.
type rawVerdict struct {
	IsEligible       *bool  `json:"is_eligible"`
	Category         string `json:"category"`
	SponsorshipProof string `json:"sponsorship_proof"`
	Reasoning        string `json:"reasoning"`
}

// parseVerdict extracts the outermost JSON object from raw. Models often wrap
// the object in a markdown fence or add a preamble.
func parseVerdict(raw string) (model.EligibilityVerdict, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return model.EligibilityVerdict{}, fmt.Errorf("no JSON object in response")
	}

	var rv rawVerdict
	if err := json.Unmarshal([]byte(raw[start:end+1]), &rv); err != nil {
		return model.EligibilityVerdict{}, fmt.Errorf("unmarshal verdict JSON: %w", err)
	}
	if rv.IsEligible == nil {
		return model.EligibilityVerdict{}, fmt.Errorf("verdict missing is_eligible")
	}

	return model.EligibilityVerdict{
		Eligible:      *rv.IsEligible,
		Category:      model.ParseCategory(rv.Category),
		Justification: strings.TrimSpace(rv.SponsorshipProof),
		Reasoning:     strings.TrimSpace(rv.Reasoning),
	}, nil
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
