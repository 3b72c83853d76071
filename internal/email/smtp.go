package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"strings"
	"time"
)

// SMTPEmailService sends emails via SMTP.
//
// This implementation works with:
// - Mailhog (development): No authentication required
// - Any standard SMTP server with username/password authentication
//
// Email bodies are rendered from embedded templates so the service has
// no filesystem dependencies.
type SMTPEmailService struct {
	config    SMTPConfig
	baseURL   string
	templates *template.Template
	logger    *slog.Logger
}

// NewSMTPEmailService creates a new SMTP-based email service.
func NewSMTPEmailService(config SMTPConfig, baseURL string, logger *slog.Logger) (*SMTPEmailService, error) {
	if config.From == "" {
		config.From = DefaultFromEmail
	}
	if config.FromName == "" {
		config.FromName = DefaultFromName
	}

	templates, err := template.New("email").Parse(emailTemplates)
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}

	return &SMTPEmailService{
		config:    config,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		templates: templates,
		logger:    logger,
	}, nil
}

// SendWelcomeEmail greets a newly registered user.
func (s *SMTPEmailService) SendWelcomeEmail(ctx context.Context, to, name string) error {
	data := map[string]interface{}{
		"Name":    name,
		"BaseURL": s.baseURL,
		"Year":    time.Now().Year(),
	}

	htmlBody, err := s.renderTemplate("welcome", data)
	if err != nil {
		return fmt.Errorf("failed to render welcome email template: %w", err)
	}

	textBody := fmt.Sprintf(`Hi %s,

Welcome to Sommet! Your free plan includes 3 idea generations, 1 market
analysis, and 1 PDF export so you can try the full journey.

Start here: %s

Thanks,
The Sommet Team
`, name, s.baseURL)

	email := Email{
		To:       to,
		Subject:  "Welcome to Sommet",
		HTMLBody: htmlBody,
		TextBody: textBody,
	}

	return s.send(ctx, email)
}

// SendPlanChangedEmail confirms a plan change.
func (s *SMTPEmailService) SendPlanChangedEmail(ctx context.Context, to, name, plan string) error {
	data := map[string]interface{}{
		"Name":    name,
		"Plan":    plan,
		"BaseURL": s.baseURL,
		"Year":    time.Now().Year(),
	}

	htmlBody, err := s.renderTemplate("plan_changed", data)
	if err != nil {
		return fmt.Errorf("failed to render plan change email template: %w", err)
	}

	textBody := fmt.Sprintf(`Hi %s,

Your Sommet plan is now %s. Your credits have been refreshed and any
newly unlocked features are available right away.

See your usage: %s/api/entitlements

Thanks,
The Sommet Team
`, name, plan, s.baseURL)

	email := Email{
		To:       to,
		Subject:  fmt.Sprintf("Your Sommet plan is now %s", plan),
		HTMLBody: htmlBody,
		TextBody: textBody,
	}

	return s.send(ctx, email)
}

// send sends an email via SMTP.
func (s *SMTPEmailService) send(ctx context.Context, email Email) error {
	msg := s.buildMessage(email)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	// Auth is optional, Mailhog accepts unauthenticated mail
	var auth smtp.Auth
	if s.config.Username != "" && s.config.Password != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	err := smtp.SendMail(addr, auth, s.config.From, []string{email.To}, msg)
	if err != nil {
		s.logger.Error("failed to send email",
			"to", email.To,
			"subject", email.Subject,
			"error", err,
		)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent",
		"to", email.To,
		"subject", email.Subject,
	)

	return nil
}

// buildMessage constructs the raw email message with headers.
func (s *SMTPEmailService) buildMessage(email Email) []byte {
	var buf bytes.Buffer

	fromHeader := fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)

	buf.WriteString(fmt.Sprintf("From: %s\r\n", fromHeader))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", email.To))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", email.Subject))
	buf.WriteString("MIME-Version: 1.0\r\n")

	boundary := "===============SOMMET_BOUNDARY==============="
	buf.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary))
	buf.WriteString("\r\n")

	buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(email.TextBody)
	buf.WriteString("\r\n")

	buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	buf.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(email.HTMLBody)
	buf.WriteString("\r\n")

	buf.WriteString(fmt.Sprintf("--%s--\r\n", boundary))

	return buf.Bytes()
}

// renderTemplate renders a named email template with the given data.
func (s *SMTPEmailService) renderTemplate(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// emailTemplates holds all HTML email bodies as named templates.
const emailTemplates = `
{{define "welcome"}}
<html>
<body style="font-family: sans-serif; color: #1f2937;">
  <h2>Welcome to Sommet, {{.Name}}!</h2>
  <p>Your free plan includes 3 idea generations, 1 market analysis, and
  1 PDF export so you can try the full journey from idea to blueprint.</p>
  <p><a href="{{.BaseURL}}">Get started</a></p>
  <p style="color: #6b7280; font-size: 12px;">&copy; {{.Year}} Sommet</p>
</body>
</html>
{{end}}

{{define "plan_changed"}}
<html>
<body style="font-family: sans-serif; color: #1f2937;">
  <h2>Hi {{.Name}},</h2>
  <p>Your Sommet plan is now <strong>{{.Plan}}</strong>. Your credits have
  been refreshed and any newly unlocked features are available right away.</p>
  <p><a href="{{.BaseURL}}/api/entitlements">See your usage</a></p>
  <p style="color: #6b7280; font-size: 12px;">&copy; {{.Year}} Sommet</p>
</body>
</html>
{{end}}
`

var _ EmailService = (*SMTPEmailService)(nil)
