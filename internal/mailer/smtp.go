package mailer

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// SMTPConfig — параметры SMTP-сервера.
type SMTPConfig struct {
	Addr     string
	Username string
	Password string
	From     string
}

// SMTPSender отправляет письма через SMTP (STARTTLS, если сервер его предлагает).
type SMTPSender struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender создаёт SMTPSender.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg, send: smtp.SendMail}
}

func (s *SMTPSender) SendWelcome(ctx context.Context, to string) error {
	return s.deliver(ctx, welcomeMessage(to))
}

func (s *SMTPSender) SendPasswordReset(ctx context.Context, to, link string) error {
	return s.deliver(ctx, resetMessage(to, link))
}

// deliver отправляет письмо; smtp.SendMail не принимает контекст,
// поэтому отмена ctx прекращает ожидание, но не само соединение.
func (s *SMTPSender) deliver(ctx context.Context, m Message) error {
	const op = "mailer.smtp.deliver"

	var auth smtp.Auth
	if s.cfg.Username != "" {
		host, _, err := net.SplitHostPort(s.cfg.Addr)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, host)
	}

	done := make(chan error, 1)
	go func() {
		done <- s.send(s.cfg.Addr, auth, s.cfg.From, []string{m.To}, s.render(m))
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}
}

func (s *SMTPSender) render(m Message) []byte {
	var b strings.Builder

	b.WriteString("From: " + s.cfg.From + "\r\n")
	b.WriteString("To: " + m.To + "\r\n")
	b.WriteString("Subject: " + m.Subject + "\r\n")
	b.WriteString("Date: " + time.Now().UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(m.Body)
	b.WriteString("\r\n")

	return []byte(b.String())
}
