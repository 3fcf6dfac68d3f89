// storage задаёт контракт каталога пользователей, которым пользуется
// сервисный слой, и общие для всех реализаций ошибки.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-auth-service/internal/models"
)

var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (email/id).
	ErrAlreadyExists = errors.New("already exists")
	// ErrConflict — условное обновление не применилось: сохранённое значение
	// изменилось с момента чтения (проигранная гонка ротации refresh-токена).
	ErrConflict = errors.New("conflict")
)

// UserStorage выполняет операции над пользователями.
type UserStorage interface {
	// SaveUser создаёт нового пользователя.
	SaveUser(ctx context.Context, user *models.User) error
	// UserByEmail находит пользователя по email (регистронезависимо).
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	// UserByID находит пользователя по ID.
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// UpdatePasswordHash заменяет хэш пароля.
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
}

// SessionStorage управляет единственным refresh-токеном пользователя.
type SessionStorage interface {
	// ReplaceRefreshToken безусловно записывает хэш refresh-токена;
	// пустая строка очищает его (logout). Отсутствие пользователя — ErrNotFound.
	ReplaceRefreshToken(ctx context.Context, id uuid.UUID, hash string) error
	// RotateRefreshToken заменяет oldHash на newHash только если в строке
	// пользователя всё ещё хранится oldHash; иначе ErrConflict.
	RotateRefreshToken(ctx context.Context, id uuid.UUID, oldHash, newHash string) error
}

// ResetTokenStorage управляет одноразовыми токенами сброса пароля.
type ResetTokenStorage interface {
	// UpdateResetToken сохраняет хэш и срок действия токена сброса.
	UpdateResetToken(ctx context.Context, id uuid.UUID, hash string, expiry time.Time) error
	// UserByResetTokenHash находит пользователя по хэшу токена сброса
	// (без проверки срока). Нет совпадения — ErrNotFound.
	UserByResetTokenHash(ctx context.Context, hash string) (*models.User, error)
	// ClearResetToken очищает хэш и срок действия токена сброса.
	ClearResetToken(ctx context.Context, id uuid.UUID) error
	// ConsumeResetToken одним обновлением находит пользователя по хэшу
	// непросроченного токена, устанавливает новый хэш пароля, очищает токен сброса
	// и refresh-токен. Нет подходящей строки — ErrNotFound.
	ConsumeResetToken(ctx context.Context, hash, passwordHash string, now time.Time) (uuid.UUID, error)
	// PurgeExpiredResetTokens очищает все токены сброса, истёкшие к now.
	PurgeExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}

//go:generate mockgen -destination=../mocks/storage.go -package=mocks github.com/pribylovaa/go-auth-service/internal/storage Storage

// Storage задаёт контракт работы с каталогом пользователей.
type Storage interface {
	UserStorage
	SessionStorage
	ResetTokenStorage
	Close()
}
