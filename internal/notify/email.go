package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// EmailNotifier sends the run summary over SMTP with STARTTLS when the server
// offers it (net/smtp upgrades automatically through SendMail).
type EmailNotifier struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	To       []string
}

func NewEmailNotifier(host string, port int, user, password, from string, to []string) *EmailNotifier {
	if port == 0 {
		port = 587
	}
	return &EmailNotifier{
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		From:     from,
		To:       to,
	}
}

func (e *EmailNotifier) Notify(ctx context.Context, summary Summary) error {
	if e.Host == "" || len(e.To) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := e.buildMessage(summary)

	addr := fmt.Sprintf("%s:%d", e.Host, e.Port)
	var auth smtp.Auth
	if e.User != "" {
		auth = smtp.PlainAuth("", e.User, e.Password, e.Host)
	}

	if err := smtp.SendMail(addr, auth, e.From, e.To, msg); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}

func (e *EmailNotifier) buildMessage(summary Summary) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", e.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(e.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", summary.Subject())
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(summary.Render(), "\n", "\r\n"))
	return []byte(b.String())
}
