package source

import (
	"html"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/amishk599/leadsync/internal/model"
)

// htmlToText converts an HTML or HTML-encoded fragment to plain text with
// collapsed whitespace. Greenhouse double-encodes its content, so entities are
// unescaped before parsing.
func htmlToText(content string) string {
	if content == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html.UnescapeString(content)))
	if err != nil {
		return strings.Join(strings.Fields(content), " ")
	}
	doc.Find("script, style").Remove()
	// Keep block boundaries from gluing words together.
	doc.Find("p, li, br, div, h1, h2, h3, h4").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// normalize trims every field. Postings without a link cannot be deduplicated
// and are rejected by the caller.
func normalize(p model.RawPosting) model.RawPosting {
	return model.RawPosting{
		CompanyName: strings.TrimSpace(p.CompanyName),
		JobTitle:    strings.TrimSpace(p.JobTitle),
		Link:        strings.TrimSpace(p.Link),
		Location:    strings.TrimSpace(p.Location),
		SalaryRange: strings.TrimSpace(p.SalaryRange),
		Description: strings.TrimSpace(p.Description),
	}
}

// cleanBatch normalizes postings and drops those without a link.
func cleanBatch(postings []model.RawPosting, name string, logger *slog.Logger) []model.RawPosting {
	out := make([]model.RawPosting, 0, len(postings))
	for _, p := range postings {
		p = normalize(p)
		if p.Link == "" {
			logger.Warn("dropping posting without link", "source", name, "company", p.CompanyName, "title", p.JobTitle)
			continue
		}
		out = append(out, p)
	}
	return out
}
