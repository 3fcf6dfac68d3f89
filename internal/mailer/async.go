package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pribylovaa/go-auth-service/internal/pkg/redact"
)

// DefaultSendTimeout — ограничение на одну отправку, если не задано.
const DefaultSendTimeout = 10 * time.Second

// Async отправляет письма в фоне: вызов возвращается сразу, ошибка
// доставки только логируется. Отправка отвязана от отмены контекста
// запроса, но ограничена собственным таймаутом. Каждое письмо
// отправляется не более одного раза.
type Async struct {
	next    Mailer
	log     *slog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewAsync оборачивает next.
func NewAsync(next Mailer, log *slog.Logger, timeout time.Duration) *Async {
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}

	return &Async{next: next, log: log, timeout: timeout}
}

func (a *Async) SendWelcome(ctx context.Context, to string) error {
	a.dispatch(ctx, "welcome", to, func(ctx context.Context) error {
		return a.next.SendWelcome(ctx, to)
	})

	return nil
}

func (a *Async) SendPasswordReset(ctx context.Context, to, link string) error {
	a.dispatch(ctx, "password_reset", to, func(ctx context.Context) error {
		return a.next.SendPasswordReset(ctx, to, link)
	})

	return nil
}

// Wait ждёт завершения всех начатых отправок или отмены ctx.
func (a *Async) Wait(ctx context.Context) error {
	const op = "mailer.Async.Wait"

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}
}

func (a *Async) dispatch(ctx context.Context, kind, to string, send func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				a.log.Error("mail_send_panic",
					slog.String("kind", kind),
					slog.Any("panic", r),
				)
			}
		}()

		if err := send(ctx); err != nil {
			a.log.Error("mail_send_failed",
				slog.String("kind", kind),
				slog.String("to", redact.Email(to)),
				slog.String("err", err.Error()),
			)
			return
		}

		a.log.Debug("mail_sent",
			slog.String("kind", kind),
			slog.String("to", redact.Email(to)),
		)
	}()
}

var (
	_ Mailer = (*Async)(nil)
	_ Mailer = (*SMTPSender)(nil)
	_ Mailer = (*LogSender)(nil)
)
