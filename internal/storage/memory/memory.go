// memory — in-process реализация storage.Storage для local-окружения и тестов.
// Все операции выполняются под одним мьютексом, поэтому условные обновления
// (ротация refresh-токена, использование токена сброса) атомарны так же,
// как соответствующие UPDATE ... WHERE в postgres.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-auth-service/internal/models"
	"github.com/pribylovaa/go-auth-service/internal/storage"
)

type Storage struct {
	mu      sync.Mutex
	users   map[uuid.UUID]*models.User
	byEmail map[string]uuid.UUID
	now     func() time.Time
}

// New создаёт пустое хранилище.
func New() *Storage {
	return &Storage{
		users:   make(map[uuid.UUID]*models.User),
		byEmail: make(map[string]uuid.UUID),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Storage) SaveUser(ctx context.Context, user *models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(user.Email)
	if _, ok := s.byEmail[key]; ok {
		return storage.ErrAlreadyExists
	}
	if _, ok := s.users[user.ID]; ok {
		return storage.ErrAlreadyExists
	}

	s.users[user.ID] = clone(user)
	s.byEmail[key] = user.ID

	return nil
}

func (s *Storage) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, storage.ErrNotFound
	}

	return clone(s.users[id]), nil
}

func (s *Storage) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}

	return clone(u), nil
}

func (s *Storage) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	return s.update(ctx, id, func(u *models.User) error {
		u.PasswordHash = hash
		return nil
	})
}

func (s *Storage) ReplaceRefreshToken(ctx context.Context, id uuid.UUID, hash string) error {
	return s.update(ctx, id, func(u *models.User) error {
		u.RefreshTokenHash = strPtr(hash)
		return nil
	})
}

func (s *Storage) RotateRefreshToken(ctx context.Context, id uuid.UUID, oldHash, newHash string) error {
	return s.update(ctx, id, func(u *models.User) error {
		if u.RefreshTokenHash == nil || *u.RefreshTokenHash != oldHash {
			return storage.ErrConflict
		}

		u.RefreshTokenHash = strPtr(newHash)
		return nil
	})
}

func (s *Storage) UpdateResetToken(ctx context.Context, id uuid.UUID, hash string, expiry time.Time) error {
	return s.update(ctx, id, func(u *models.User) error {
		u.ResetTokenHash = &hash
		u.ResetTokenExpiry = &expiry
		return nil
	})
}

func (s *Storage) UserByResetTokenHash(ctx context.Context, hash string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.ResetTokenHash != nil && *u.ResetTokenHash == hash {
			return clone(u), nil
		}
	}

	return nil, storage.ErrNotFound
}

func (s *Storage) ClearResetToken(ctx context.Context, id uuid.UUID) error {
	return s.update(ctx, id, func(u *models.User) error {
		u.ResetTokenHash = nil
		u.ResetTokenExpiry = nil
		return nil
	})
}

func (s *Storage) ConsumeResetToken(ctx context.Context, hash, passwordHash string, now time.Time) (uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return uuid.Nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, u := range s.users {
		if u.ResetTokenHash == nil || *u.ResetTokenHash != hash {
			continue
		}

		if !u.ResetTokenExpiry.After(now) {
			return uuid.Nil, storage.ErrNotFound
		}

		u.PasswordHash = passwordHash
		u.ResetTokenHash = nil
		u.ResetTokenExpiry = nil
		u.RefreshTokenHash = nil
		u.UpdatedAt = now

		return id, nil
	}

	return uuid.Nil, storage.ErrNotFound
}

func (s *Storage) PurgeExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, u := range s.users {
		if u.ResetTokenExpiry != nil && !u.ResetTokenExpiry.After(now) {
			u.ResetTokenHash = nil
			u.ResetTokenExpiry = nil
			n++
		}
	}

	return n, nil
}

// Close — no-op, нужен для соответствия storage.Storage.
func (s *Storage) Close() {}

// update применяет fn к пользователю под мьютексом; ошибка fn откатывает изменения.
func (s *Storage) update(ctx context.Context, id uuid.UUID, fn func(u *models.User) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}

	next := clone(u)
	if err := fn(next); err != nil {
		return err
	}

	next.UpdatedAt = s.now()
	s.users[id] = next

	return nil
}

func clone(u *models.User) *models.User {
	c := *u
	c.RefreshTokenHash = copyPtr(u.RefreshTokenHash)
	c.ResetTokenHash = copyPtr(u.ResetTokenHash)
	c.ResetTokenExpiry = copyPtr(u.ResetTokenExpiry)
	c.Profile = models.Profile{
		FullName: copyPtr(u.Profile.FullName),
		Age:      copyPtr(u.Profile.Age),
		Gender:   copyPtr(u.Profile.Gender),
	}

	return &c
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}

	v := *p
	return &v
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}

var _ storage.Storage = (*Storage)(nil)
