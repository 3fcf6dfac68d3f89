package mailer

import (
	"context"
	"log/slog"

	"github.com/pribylovaa/go-auth-service/internal/pkg/redact"
)

// LogSender вместо отправки пишет факт письма в лог. Используется,
// когда SMTP не сконфигурирован (local/dev). Ссылка сброса содержит
// секрет и в лог не попадает.
type LogSender struct {
	log *slog.Logger
}

// NewLogSender создаёт LogSender.
func NewLogSender(log *slog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) SendWelcome(ctx context.Context, to string) error {
	s.log.InfoContext(ctx, "mail_welcome",
		slog.String("to", redact.Email(to)),
	)

	return nil
}

func (s *LogSender) SendPasswordReset(ctx context.Context, to, link string) error {
	s.log.InfoContext(ctx, "mail_password_reset",
		slog.String("to", redact.Email(to)),
		slog.String("link_fp", redact.Fingerprint(link)),
	)

	return nil
}
