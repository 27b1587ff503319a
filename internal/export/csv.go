package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/amishk599/leadsync/internal/model"
)

// Header is the column order of exported CSV files.
var Header = []string{
	"id",
	"company_name",
	"job_title",
	"link",
	"location",
	"salary_range",
	"category",
	"justification",
	"is_applied",
	"referral_secured",
	"referrer_name",
	"referrer_contact",
	"created_at",
}

// WriteCSV writes postings as CSV with a header row.
func WriteCSV(w io.Writer, postings []model.StoredPosting) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, p := range postings {
		if err := cw.Write(record(p)); err != nil {
			return fmt.Errorf("write csv row %s: %w", p.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func record(p model.StoredPosting) []string {
	return []string{
		p.ID,
		p.CompanyName,
		p.JobTitle,
		p.Link,
		p.Location,
		p.SalaryRange,
		string(p.Category),
		p.Justification,
		strconv.FormatBool(p.Applied),
		strconv.FormatBool(p.ReferralSecured),
		p.ReferrerName,
		p.ReferrerContact,
		p.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// FileName returns the default export file name for t, e.g. leads-20260314.csv.
func FileName(t time.Time) string {
	return "leads-" + t.Format("20060102") + ".csv"
}
