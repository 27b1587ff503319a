package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/amishk599/leadsync/internal/model"
)

func TestWriteCSV(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 0, 0, 0, time.FixedZone("PST", -8*3600))
	postings := []model.StoredPosting{
		{
			ID:              "id-1",
			CompanyName:     "Snowflake",
			JobTitle:        "Data Engineer",
			Link:            "https://snowflake.com/jobs/de-3",
			Location:        "Bellevue, WA",
			SalaryRange:     "$150k - $190k",
			Category:        model.CategoryDataEngineering,
			Justification:   "Posting says \"will sponsor\", H-1B history",
			Applied:         true,
			ReferralSecured: true,
			ReferrerName:    "Priya",
			ReferrerContact: "priya@example.com",
			CreatedAt:       created,
		},
		{
			ID:          "id-2",
			CompanyName: "Airbnb",
			JobTitle:    "Data Scientist, Analytics",
			Link:        "https://careers.airbnb.com/jobs/ds-1",
			Category:    model.CategoryDataScience,
			CreatedAt:   created,
		},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, postings); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3 (header + 2)", len(rows))
	}
	if len(rows[0]) != len(Header) || rows[0][0] != "id" {
		t.Errorf("header = %v", rows[0])
	}

	first := rows[1]
	if first[7] != "Posting says \"will sponsor\", H-1B history" {
		t.Errorf("justification = %q", first[7])
	}
	if first[8] != "true" || first[9] != "true" {
		t.Errorf("flags = %q/%q", first[8], first[9])
	}
	if first[12] != "2026-03-14T17:00:00Z" {
		t.Errorf("created_at = %q, want UTC RFC3339", first[12])
	}
	if rows[2][2] != "Data Scientist, Analytics" || rows[2][8] != "false" {
		t.Errorf("second row = %v", rows[2])
	}
}

func TestWriteCSV_EmptyHasHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Errorf("rows = %d, want 1", len(rows))
	}
}

func TestFileName(t *testing.T) {
	if got := FileName(time.Date(2026, 3, 4, 23, 0, 0, 0, time.UTC)); got != "leads-20260304.csv" {
		t.Errorf("FileName() = %q", got)
	}
}
