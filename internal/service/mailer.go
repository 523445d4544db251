package service

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"

	"checkin-desk/common/config"

	"github.com/wneessen/go-mail"
)

const smtpTimeout = 10 * time.Second

var summaryEmail = template.Must(template.New("summary").Parse(
	`{{.OrgName}} check-in summary for {{.EventName}}
Teams checked in: {{.CheckedInCount}} of {{len .Teams}}
{{range .Teams}}
Team {{if .Number}}{{.Number}} {{end}}{{.TeamName}}: {{.Status}}
{{- range .Assignments}}
  {{.SectionName}}: {{.RoomName}}
{{- end}}
{{- range .Students}}
  - {{if .Number}}{{.Number}} {{end}}{{.Name}}: {{if .CheckedIn}}{{range $i, $a := .Assignments}}{{if $i}}, {{end}}{{$a.SectionName}} {{$a.RoomName}}{{end}}{{else}}{{.Status}}{{end}}
{{- end}}
{{end}}`))

// RenderSummaryEmail plain-text body listing every team and student
func RenderSummaryEmail(s *Summary) (string, error) {
	var buf bytes.Buffer
	if err := summaryEmail.Execute(&buf, s); err != nil {
		return "", fmt.Errorf("render summary email: %w", err)
	}
	return buf.String(), nil
}

// mailSender is the part of *mail.Client the mailer uses
type mailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPMailer sends summary emails through an SMTP relay
type SMTPMailer struct {
	cfg    config.SMTPConfig
	client mailSender
}

func NewSMTPMailer(cfg config.SMTPConfig) (*SMTPMailer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(smtpTimeout),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client for %s: %w", cfg.Addr(), err)
	}
	return &SMTPMailer{cfg: cfg, client: client}, nil
}

// SendSummary mails the rendered summary to a single recipient
func (m *SMTPMailer) SendSummary(ctx context.Context, to, subject string, s *Summary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := RenderSummaryEmail(s)
	if err != nil {
		return err
	}

	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("invalid sender %q: %w", m.cfg.From, err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send summary email to %s via %s: %w", to, m.cfg.Addr(), err)
	}
	return nil
}
