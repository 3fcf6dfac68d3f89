// resettoken выпускает одноразовые токены сброса пароля.
// Открытое значение уходит пользователю по почте, в хранилище попадает
// только SHA-256 дайджест и срок действия.
package resettoken

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"
)

// tokenBytes — 256 бит энтропии.
const tokenBytes = 32

// DefaultTTL — срок действия токена, если в конфигурации не задан.
const DefaultTTL = time.Hour

// Manager выпускает и проверяет токены сброса.
type Manager struct {
	ttl time.Duration
}

// NewManager создаёт Manager; неположительный ttl заменяется на DefaultTTL.
func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Manager{ttl: ttl}
}

// TTL возвращает срок действия выпускаемых токенов.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue генерирует новый токен: открытое значение, его дайджест и срок действия.
func (m *Manager) Issue(now time.Time) (plain, hash string, expiry time.Time, err error) {
	const op = "resettoken.Issue"

	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	plain = base64.RawURLEncoding.EncodeToString(b)

	return plain, Hash(plain), now.Add(m.ttl), nil
}

// Hash возвращает hex SHA-256 открытого значения токена.
func Hash(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// Verify проверяет токен против сохранённых дайджеста и срока.
// Несовпадение и истечение срока не различаются.
func (m *Manager) Verify(plain, storedHash string, storedExpiry, now time.Time) bool {
	if plain == "" || storedHash == "" {
		return false
	}

	match := subtle.ConstantTimeCompare([]byte(Hash(plain)), []byte(storedHash)) == 1

	return match && now.Before(storedExpiry)
}
