package notify

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/CodeByKalvin/Logex/internal/config"
)

// Email delivers alerts over SMTP with STARTTLS plain auth.
type Email struct {
	cfg config.EmailConfig

	// sendMail is a seam for tests; production uses smtp.SendMail.
	sendMail func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmail(cfg config.EmailConfig) *Email {
	return &Email{cfg: cfg, sendMail: smtp.SendMail}
}

func (*Email) Name() string { return "email" }

func (e *Email) Send(ctx context.Context, a Alert) error {
	host := strings.TrimSpace(e.cfg.SMTPServer)
	if host == "" {
		return permanent(errors.New("smtp_server not configured"))
	}
	from := strings.TrimSpace(e.cfg.FromEmail)
	if from == "" {
		return permanent(errors.New("from_email not configured"))
	}
	to := make([]string, 0, len(e.cfg.ToEmail))
	for _, addr := range e.cfg.ToEmail {
		if addr = strings.TrimSpace(addr); addr != "" {
			to = append(to, addr)
		}
	}
	if len(to) == 0 {
		return permanent(errors.New("to_email is empty"))
	}
	port := e.cfg.SMTPPort
	if port <= 0 {
		port = 587
	}

	msg := []byte("To: " + strings.Join(to, ", ") + "\r\n" +
		"From: " + from + "\r\n" +
		"Subject: Log Monitoring Alert\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" + a.Message() + "\r\n")

	var auth smtp.Auth
	if strings.TrimSpace(e.cfg.SMTPUser) != "" {
		auth = smtp.PlainAuth("", e.cfg.SMTPUser, e.cfg.SMTPPassword, host)
	}
	addr := fmt.Sprintf("%s:%d", host, port)

	// smtp.SendMail has no deadline of its own; the send runs aside so
	// the router's per-channel timeout still bounds a hung server. An
	// abandoned goroutine exits when the dial or write fails.
	done := make(chan error, 1)
	go func() { done <- e.sendMail(addr, auth, from, to, msg) }()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: smtp: %v", ErrUnreachable, ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: smtp: %v", ErrUnreachable, err)
		}
		return nil
	}
}
