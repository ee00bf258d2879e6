package notification

import (
	"bytes"
	"context"
	"crypto/tls"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	texttemplate "text/template"

	"github.com/tendant/simple-stepup/pkg/utils"
	"github.com/wneessen/go-mail"
)

//go:embed templates/*
var templateFiles embed.FS

type SMTPConfig struct {
	Host     string
	Port     int
	TLS      bool
	Username string
	Password string
	From     string
}

// EmailMessage is a rendered email
type EmailMessage struct {
	Subject string
	Text    string
	HTML    string
}

// EmailSender delivers a rendered email to one recipient
type EmailSender interface {
	SendEmail(ctx context.Context, to string, msg EmailMessage) error
}

// NoticeTemplate holds the subject and bodies of an email, as Go templates
type NoticeTemplate struct {
	Subject string
	Text    string
	Html    string
}

// DefaultEventTemplate renders every event email
func DefaultEventTemplate() NoticeTemplate {
	html, err := templateFiles.ReadFile("templates/email/notification.html")
	if err != nil {
		slog.Error("Error reading template file!", "err", err)
	}
	return NoticeTemplate{
		Subject: "{{.Title}}",
		Text:    "{{.Title}}\n\n{{.Message}}",
		Html:    string(html),
	}
}

// Render executes the template against data
func (t NoticeTemplate) Render(data interface{}) (EmailMessage, error) {
	var msg EmailMessage
	var err error
	if msg.Subject, err = renderText("subject", t.Subject, data); err != nil {
		return EmailMessage{}, err
	}
	if msg.Text, err = renderText("text", t.Text, data); err != nil {
		return EmailMessage{}, err
	}
	if t.Html != "" {
		tmpl, err := template.New("html").Parse(t.Html)
		if err != nil {
			return EmailMessage{}, fmt.Errorf("failed to parse html template: %w", err)
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return EmailMessage{}, fmt.Errorf("failed to execute html template: %w", err)
		}
		msg.HTML = buf.String()
	}
	return msg, nil
}

func renderText(name, text string, data interface{}) (string, error) {
	if text == "" {
		return "", nil
	}
	tmpl, err := texttemplate.New(name).Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s template: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute %s template: %w", name, err)
	}
	return buf.String(), nil
}

// EmailNotifier sends email over SMTP
type EmailNotifier struct {
	SMTPConfig SMTPConfig
	client     *mail.Client
}

func NewEmailNotifier(config SMTPConfig) (*EmailNotifier, error) {
	opts := []mail.Option{
		mail.WithPort(config.Port),
		mail.WithTimeout(defaultSendTimeout),
	}

	// Only add authentication if username and password are provided
	if config.Username != "" && config.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthLogin),
			mail.WithUsername(config.Username),
			mail.WithPassword(config.Password),
		)
	}

	if config.TLS {
		opts = append(opts,
			mail.WithTLSConfig(&tls.Config{ServerName: config.Host, MinVersion: tls.VersionTLS12}),
			mail.WithTLSPolicy(mail.TLSMandatory),
		)
	} else {
		slog.Info("Using NoTLS policy for SMTP", "host", config.Host)
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	client, err := mail.NewClient(config.Host, opts...)
	if err != nil {
		slog.Error("Failed to create mail client", "err", err)
		return nil, err
	}

	return &EmailNotifier{SMTPConfig: config, client: client}, nil
}

func (e *EmailNotifier) SendEmail(ctx context.Context, to string, m EmailMessage) error {
	if to == "" {
		return fmt.Errorf("email notification requires 'To' address")
	}

	msg := mail.NewMsg()
	if err := msg.From(e.SMTPConfig.From); err != nil {
		return fmt.Errorf("failed to set from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("failed to set to address: %w", err)
	}
	msg.Subject(m.Subject)

	switch {
	case m.Text != "" && m.HTML != "":
		msg.SetBodyString(mail.TypeTextPlain, m.Text)
		msg.AddAlternativeString(mail.TypeTextHTML, m.HTML)
	case m.HTML != "":
		msg.SetBodyString(mail.TypeTextHTML, m.HTML)
	default:
		msg.SetBodyString(mail.TypeTextPlain, m.Text)
	}

	if err := e.client.DialAndSendWithContext(ctx, msg); err != nil {
		slog.Error("Failed to send email", "to", utils.MaskEmail(to), "err", err)
		return err
	}

	slog.Info("Email sent successfully", "to", utils.MaskEmail(to), "host", e.SMTPConfig.Host, "port", e.SMTPConfig.Port)
	return nil
}
