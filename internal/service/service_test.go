package service

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pribylovaa/go-auth-service/internal/mocks"
	"github.com/pribylovaa/go-auth-service/internal/password"
	"github.com/pribylovaa/go-auth-service/internal/resettoken"
	"github.com/pribylovaa/go-auth-service/internal/storage/memory"
	"github.com/pribylovaa/go-auth-service/internal/token"
)

const testResetURL = "https://app.example.com/reset-password"

func testTokenConfig() token.Config {
	return token.Config{
		Secret:      "unit-test-secret",
		Issuer:      "auth-service",
		Audience:    []string{"api"},
		AccessTTL:   15 * time.Minute,
		RefreshTTL:  24 * time.Hour,
		RememberTTL: 30 * 24 * time.Hour,
	}
}

// captureMailer синхронно запоминает отправленные письма.
type captureMailer struct {
	mu      sync.Mutex
	welcome []string
	resets  map[string]string
}

func (m *captureMailer) SendWelcome(_ context.Context, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.welcome = append(m.welcome, to)

	return nil
}

func (m *captureMailer) SendPasswordReset(_ context.Context, to, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.resets == nil {
		m.resets = make(map[string]string)
	}
	m.resets[to] = link

	return nil
}

// resetToken извлекает открытый токен из последней ссылки для to.
func (m *captureMailer) resetToken(t *testing.T, to string) string {
	t.Helper()

	m.mu.Lock()
	link, ok := m.resets[to]
	m.mu.Unlock()
	require.True(t, ok, "no reset mail for %s", to)

	u, err := url.Parse(link)
	require.NoError(t, err)

	return u.Query().Get("token")
}

func newTestService(t *testing.T) (*Service, *memory.Storage, *captureMailer) {
	t.Helper()

	st := memory.New()
	cm := &captureMailer{}
	svc := New(Deps{
		Storage:  st,
		Hasher:   password.NewHasher(bcrypt.MinCost),
		Tokens:   token.NewIssuer(testTokenConfig()),
		Resets:   resettoken.NewManager(time.Hour),
		Mailer:   cm,
		ResetURL: testResetURL,
	})

	return svc, st, cm
}

func newServiceWithMock(t *testing.T) (*Service, *mocks.MockStorage, *mocks.MockMailer) {
	t.Helper()

	ctrl := gomock.NewController(t)
	st := mocks.NewMockStorage(ctrl)
	ml := mocks.NewMockMailer(ctrl)
	svc := New(Deps{
		Storage:  st,
		Hasher:   password.NewHasher(bcrypt.MinCost),
		Tokens:   token.NewIssuer(testTokenConfig()),
		Resets:   resettoken.NewManager(time.Hour),
		Mailer:   ml,
		ResetURL: testResetURL,
	})

	return svc, st, ml
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }
