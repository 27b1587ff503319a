package model

import "testing"

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in   string
		want Category
	}{
		{"Data Engineering", CategoryDataEngineering},
		{"DS", CategoryDataScience},
		{"  data scientist ", CategoryDataScience},
		{"Business Analyst", CategoryAnalyst},
		{"Analyst", CategoryAnalyst},
		{"Research Analyst", CategoryResearchAnalyst},
		{"Machine Learning", CategoryOther},
		{"", CategoryOther},
	}
	for _, tt := range tests {
		if got := ParseCategory(tt.in); got != tt.want {
			t.Errorf("ParseCategory(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseCategory_AcceptsEveryCategoryLabel(t *testing.T) {
	for _, c := range Categories {
		if got := ParseCategory(string(c)); got != c {
			t.Errorf("ParseCategory(%q) = %q", c, got)
		}
	}
}

func TestNewStoredPosting_CopiesFieldsAndVerdict(t *testing.T) {
	raw := RawPosting{
		CompanyName: "Snowflake",
		JobTitle:    "Data Engineer",
		Link:        "https://snowflake.com/jobs/de-3",
		Location:    "Bellevue, WA",
		SalaryRange: "$150k - $190k",
		Description: "Design and implement scalable data pipelines.",
	}
	v := EligibilityVerdict{
		Eligible:      true,
		Category:      CategoryDataEngineering,
		Justification: "Regular LCA filings",
		Reasoning:     "internal",
	}

	got := NewStoredPosting(raw, v)
	if got.Link != raw.Link || got.CompanyName != raw.CompanyName || got.SalaryRange != raw.SalaryRange {
		t.Errorf("raw fields not copied: %+v", got)
	}
	if got.Category != CategoryDataEngineering || got.Justification != "Regular LCA filings" {
		t.Errorf("verdict fields not copied: %+v", got)
	}
	if got.Applied || got.ReferralSecured {
		t.Error("new postings must start unapplied and without referral")
	}
	if got.ID != "" || !got.CreatedAt.IsZero() {
		t.Error("ID and CreatedAt are assigned by the repository")
	}
}
