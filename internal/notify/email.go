package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"time"

	"autodial_backend/internal/events"
	"autodial_backend/platform/config"

	gomail "github.com/wneessen/go-mail"
)

//go:embed templates/report.html
var templateFS embed.FS

// ReportSender mails the campaign completion report over SMTP. A nil
// sender drops every report.
type ReportSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
	recipient string
}

// NewReportSender builds the report sender, or nil when SMTP or the
// report recipient is not configured.
func NewReportSender(cfg config.SMTPConfig) *ReportSender {
	if !cfg.IsSMTPEnabled() || cfg.GetReportRecipient() == "" {
		return nil
	}

	return &ReportSender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetSMTPFromName(),
		fromEmail: cfg.GetSMTPFromAddress(),
		recipient: cfg.GetReportRecipient(),
	}
}

// SendCampaignReport renders and mails the completion report.
func (s *ReportSender) SendCampaignReport(ctx context.Context, e events.CampaignCompleted) error {
	if s == nil {
		return nil
	}

	content, err := renderReportEmail(e)
	if err != nil {
		return err
	}

	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(s.recipient); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(fmt.Sprintf("Campaign report: %s", e.Name))
	msg.SetBodyString(gomail.TypeTextHTML, content)

	opts := []gomail.Option{
		gomail.WithPort(s.port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15 * time.Second),
	}
	// Auth only when credentials are configured; a local relay needs none.
	if s.username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.username),
			gomail.WithPassword(s.password),
		)
	}

	client, err := gomail.NewClient(s.host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

type reportResponse struct {
	Digit string
	Count int
}

type reportEmailData struct {
	Name        string
	Total       int
	Completed   int
	Failed      int
	SuccessRate int
	Responses   []reportResponse
	Duration    string
	StartedAt   string
	FinishedAt  string
}

func renderReportEmail(e events.CampaignCompleted) (string, error) {
	data := reportEmailData{
		Name:        e.Name,
		Total:       e.Total,
		Completed:   e.Completed,
		Failed:      e.Failed,
		SuccessRate: successRate(e.Completed, e.Total),
		Duration:    formatSpan(e.FinishedAt.Sub(e.StartedAt)),
		StartedAt:   e.StartedAt.Format("2006-01-02 15:04:05"),
		FinishedAt:  e.FinishedAt.Format("2006-01-02 15:04:05"),
	}
	for _, digit := range sortedDigits(e.Responses) {
		data.Responses = append(data.Responses, reportResponse{Digit: digit, Count: e.Responses[digit]})
	}

	tmpl, err := template.New("report.html").ParseFS(templateFS, "templates/report.html")
	if err != nil {
		return "", fmt.Errorf("parse report template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute report template: %w", err)
	}
	return buf.String(), nil
}
