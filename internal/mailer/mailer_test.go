package mailer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/smtp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.b.String()
}

type recorder struct {
	mu      sync.Mutex
	welcome []string
	reset   []string
	err     error
	panic   bool
	block   chan struct{}
}

func (r *recorder) SendWelcome(ctx context.Context, to string) error {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.panic {
		panic("boom")
	}
	r.welcome = append(r.welcome, to)

	return r.err
}

func (r *recorder) SendPasswordReset(_ context.Context, to, link string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reset = append(r.reset, to+" "+link)

	return r.err
}

func TestResetLink(t *testing.T) {
	t.Parallel()

	link, err := ResetLink("https://app.example.com/reset", "abc_-123")
	require.NoError(t, err)
	require.Equal(t, "https://app.example.com/reset?token=abc_-123", link)

	link, err = ResetLink("https://app.example.com/reset?lang=en", "t")
	require.NoError(t, err)
	require.Equal(t, "https://app.example.com/reset?lang=en&token=t", link)

	_, err = ResetLink("://bad", "t")
	require.Error(t, err)
}

func TestAsync_DetachedFromRequestContext(t *testing.T) {
	rec := &recorder{}
	a := NewAsync(rec, discardLogger(), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, a.SendWelcome(ctx, "alice@example.com"))
	require.NoError(t, a.SendPasswordReset(ctx, "alice@example.com", "https://x/reset?token=t"))
	cancel()

	require.NoError(t, a.Wait(context.Background()))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Equal(t, []string{"alice@example.com"}, rec.welcome)
	require.Equal(t, []string{"alice@example.com https://x/reset?token=t"}, rec.reset)
}

func TestAsync_FailureIsLoggedNotReturned(t *testing.T) {
	buf := &syncBuffer{}
	rec := &recorder{err: errors.New("smtp down")}
	a := NewAsync(rec, slog.New(slog.NewTextHandler(buf, nil)), time.Second)

	require.NoError(t, a.SendWelcome(context.Background(), "alice@example.com"))
	require.NoError(t, a.Wait(context.Background()))

	out := buf.String()
	require.Contains(t, out, "mail_send_failed")
	require.Contains(t, out, "smtp down")
	require.NotContains(t, out, "alice@example.com")
}

func TestAsync_PanicRecovered(t *testing.T) {
	buf := &syncBuffer{}
	rec := &recorder{panic: true}
	a := NewAsync(rec, slog.New(slog.NewTextHandler(buf, nil)), time.Second)

	require.NoError(t, a.SendWelcome(context.Background(), "bob@example.com"))
	require.NoError(t, a.Wait(context.Background()))
	require.Contains(t, buf.String(), "mail_send_panic")
}

func TestAsync_SendTimeout(t *testing.T) {
	buf := &syncBuffer{}
	rec := &recorder{block: make(chan struct{})}
	a := NewAsync(rec, slog.New(slog.NewTextHandler(buf, nil)), 20*time.Millisecond)

	require.NoError(t, a.SendWelcome(context.Background(), "slow@example.com"))
	require.NoError(t, a.Wait(context.Background()))
	require.Contains(t, buf.String(), "deadline exceeded")
}

func TestAsync_WaitRespectsContext(t *testing.T) {
	rec := &recorder{block: make(chan struct{})}
	a := NewAsync(rec, discardLogger(), time.Minute)

	require.NoError(t, a.SendWelcome(context.Background(), "x@example.com"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, a.Wait(ctx), context.DeadlineExceeded)

	close(rec.block)
	require.NoError(t, a.Wait(context.Background()))
}

func TestSMTPSender_Render(t *testing.T) {
	var (
		gotAddr string
		gotFrom string
		gotTo   []string
		gotMsg  string
		gotAuth smtp.Auth
	)

	s := NewSMTPSender(SMTPConfig{Addr: "smtp.example.com:587", Username: "u", Password: "p", From: "noreply@example.com"})
	s.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotFrom, gotTo, gotMsg = addr, a, from, to, string(msg)
		return nil
	}

	require.NoError(t, s.SendPasswordReset(context.Background(), "alice@example.com", "https://x/reset?token=t"))

	require.Equal(t, "smtp.example.com:587", gotAddr)
	require.NotNil(t, gotAuth)
	require.Equal(t, "noreply@example.com", gotFrom)
	require.Equal(t, []string{"alice@example.com"}, gotTo)
	require.Contains(t, gotMsg, "Subject: Password reset\r\n")
	require.Contains(t, gotMsg, "https://x/reset?token=t")
	require.True(t, strings.HasPrefix(gotMsg, "From: noreply@example.com\r\n"))
}

func TestSMTPSender_Error(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Addr: "localhost:25", From: "noreply@example.com"})
	s.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}

	require.Error(t, s.SendWelcome(context.Background(), "alice@example.com"))
}

func TestLogSender_DoesNotLogSecrets(t *testing.T) {
	buf := &syncBuffer{}
	s := NewLogSender(slog.New(slog.NewTextHandler(buf, nil)))

	require.NoError(t, s.SendPasswordReset(context.Background(), "alice@example.com", "https://x/reset?token=secret-token"))
	require.NoError(t, s.SendWelcome(context.Background(), "alice@example.com"))

	out := buf.String()
	require.Contains(t, out, "mail_password_reset")
	require.NotContains(t, out, "secret-token")
	require.NotContains(t, out, "alice@example.com")
}
