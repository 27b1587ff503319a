package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/amishk599/leadsync/internal/model"
)

// ResendBaseURL is the Resend email API.
const ResendBaseURL = "https://api.resend.com"

// Ensure ResendNotifier implements model.Notifier.
var _ model.Notifier = (*ResendNotifier)(nil)

// ResendNotifier emails backlog alerts through the Resend HTTP API.
type ResendNotifier struct {
	baseURL      string
	apiKey       string
	from         string
	to           []string
	dashboardURL string
	httpClient   *http.Client
	logger       *slog.Logger
}

// ResendConfig holds the sender and recipients of alert emails.
type ResendConfig struct {
	BaseURL      string // empty means ResendBaseURL
	APIKey       string
	From         string // e.g. "JobMachine <onboarding@resend.dev>"
	To           []string
	DashboardURL string
}

// NewResendNotifier returns a notifier that emails each alert.
func NewResendNotifier(cfg ResendConfig, httpClient *http.Client, logger *slog.Logger) *ResendNotifier {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = ResendBaseURL
	}
	return &ResendNotifier{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       cfg.APIKey,
		from:         cfg.From,
		to:           cfg.To,
		dashboardURL: cfg.DashboardURL,
		httpClient:   httpClient,
		logger:       logger,
	}
}

type resendEmail struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text"`
}

type resendResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	Name    string `json:"name"`
}

// Notify sends one email to all recipients.
func (r *ResendNotifier) Notify(ctx context.Context, count int) error {
	email := resendEmail{
		From:    r.from,
		To:      r.to,
		Subject: alertSubject(count),
		HTML:    r.renderHTML(count),
		Text:    r.renderText(count),
	}
	body, err := json.Marshal(email)
	if err != nil {
		return fmt.Errorf("marshal resend email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create resend request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post to resend: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("read resend response: %w", err)
	}

	var rr resendResponse
	_ = json.Unmarshal(respBytes, &rr)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := rr.Message
		if msg == "" {
			msg = strings.TrimSpace(string(respBytes))
		}
		return &model.HTTPError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("resend rejected email: %s", msg),
		}
	}

	r.logger.Info("alert email sent", "unapplied", count, "recipients", len(r.to), "email_id", rr.ID)
	return nil
}

func (r *ResendNotifier) renderHTML(count int) string {
	var b strings.Builder
	b.WriteString("<strong>Action Required:</strong>\n")
	fmt.Fprintf(&b, "<p>You have <b>%d</b> sponsorship-eligible job leads you have not applied to yet.</p>\n", count)
	if r.dashboardURL != "" {
		fmt.Fprintf(&b, "<p><a href=\"%s\">Check your dashboard to apply!</a></p>\n", html.EscapeString(r.dashboardURL))
	} else {
		b.WriteString("<p>Check your dashboard to apply!</p>\n")
	}
	return b.String()
}

func (r *ResendNotifier) renderText(count int) string {
	text := fmt.Sprintf("Action required: you have %d sponsorship-eligible job leads you have not applied to yet.", count)
	if r.dashboardURL != "" {
		text += "\nDashboard: " + r.dashboardURL
	}
	return text
}
