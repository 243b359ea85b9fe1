package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/Fi44er/community_payments/utils"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type Email struct {
	ToName    string
	ToAddress string
	Subject   string
	Title     string
	Body      string
	ActionURL string
}

var emailTemplate = template.Must(template.New("notification").Parse(`<!DOCTYPE html>
<html>
  <body style="font-family: Arial, sans-serif; color: #1f2933;">
    <h2>{{.Title}}</h2>
    <p>Hello {{if .ToName}}{{.ToName}}{{else}}there{{end}},</p>
    <p>{{.Body}}</p>
    {{if .ActionURL}}<p><a href="{{.ActionURL}}">View details</a></p>{{end}}
    <p style="font-size: 12px; color: #7b8794;">You can change which emails you receive in your notification settings.</p>
  </body>
</html>`))

func RenderEmail(email Email) (string, error) {
	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, email); err != nil {
		return "", fmt.Errorf("failed to render email: %w", err)
	}
	return buf.String(), nil
}

type SendGridSender struct {
	client    *sendgrid.Client
	fromName  string
	fromEmail string
}

func NewSendGridSender(apiKey, fromName, fromEmail string) *SendGridSender {
	return &SendGridSender{
		client:    sendgrid.NewSendClient(apiKey),
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

func (s *SendGridSender) Send(ctx context.Context, email Email) error {
	html, err := RenderEmail(email)
	if err != nil {
		return err
	}

	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(email.ToName, email.ToAddress)
	msg := mail.NewSingleEmail(from, email.Subject, to, email.Body, html)

	resp, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// LogSender is used when no email provider is configured.
type LogSender struct {
	logger *utils.Logger
}

func NewLogSender(logger *utils.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, email Email) error {
	s.logger.Infof("email to %s suppressed (no provider configured): %s", email.ToAddress, email.Subject)
	return nil
}
