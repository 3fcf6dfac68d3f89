package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pribylovaa/go-auth-service/internal/models"
	"github.com/pribylovaa/go-auth-service/internal/storage"
)

const userColumns = `
	id, email, password_hash, full_name, age, gender,
	refresh_token_hash, reset_token_hash, reset_token_expiry,
	created_at, updated_at
`

// SaveUser создает нового пользователя в БД.
func (s *Storage) SaveUser(ctx context.Context, user *models.User) error {
	const op = "storage.postgres.SaveUser"

	query := `
		INSERT INTO users(id, email, password_hash, full_name, age, gender,
		                  refresh_token_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.db.Exec(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Profile.FullName,
		user.Profile.Age,
		user.Profile.Gender,
		user.RefreshTokenHash,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// UserByEmail находит пользователя по email.
func (s *Storage) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.postgres.UserByEmail"

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(s.db.QueryRow(ctx, query, email))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// UserByID находит пользователя по ID.
func (s *Storage) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const op = "storage.postgres.UserByID"

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(s.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// UpdatePasswordHash заменяет хэш пароля.
func (s *Storage) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	const op = "storage.postgres.UpdatePasswordHash"

	query := `
		UPDATE users
		SET password_hash = $2, updated_at = now()
		WHERE id = $1
	`

	return s.execOne(ctx, op, query, id, hash)
}

// ReplaceRefreshToken безусловно записывает (или очищает) хэш refresh-токена.
func (s *Storage) ReplaceRefreshToken(ctx context.Context, id uuid.UUID, hash string) error {
	const op = "storage.postgres.ReplaceRefreshToken"

	query := `
		UPDATE users
		SET refresh_token_hash = $2, updated_at = now()
		WHERE id = $1
	`

	return s.execOne(ctx, op, query, id, nullable(hash))
}

// RotateRefreshToken выполняет compare-and-set хэша refresh-токена.
// Возвращает:
//
//	nil              — значение было oldHash и заменено на newHash;
//	ErrConflict      — пользователь существует, но хранит другое значение (или NULL);
//	ErrNotFound      — пользователь не найден.
func (s *Storage) RotateRefreshToken(ctx context.Context, id uuid.UUID, oldHash, newHash string) error {
	const op = "storage.postgres.RotateRefreshToken"

	const upd = `
		UPDATE users
		SET refresh_token_hash = $3, updated_at = now()
		WHERE id = $1 AND refresh_token_hash = $2
	`

	tag, err := s.db.Exec(ctx, upd, id, oldHash, nullable(newHash))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 1 {
		return nil
	}

	const sel = `SELECT 1 FROM users WHERE id = $1`

	var one int
	if err := s.db.QueryRow(ctx, sel, id).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return fmt.Errorf("%s: %w", op, storage.ErrConflict)
}

// UpdateResetToken сохраняет хэш и срок действия токена сброса.
func (s *Storage) UpdateResetToken(ctx context.Context, id uuid.UUID, hash string, expiry time.Time) error {
	const op = "storage.postgres.UpdateResetToken"

	query := `
		UPDATE users
		SET reset_token_hash = $2, reset_token_expiry = $3, updated_at = now()
		WHERE id = $1
	`

	err := s.execOne(ctx, op, query, id, hash, expiry)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}
	}

	return err
}

// UserByResetTokenHash находит пользователя по хэшу токена сброса.
func (s *Storage) UserByResetTokenHash(ctx context.Context, hash string) (*models.User, error) {
	const op = "storage.postgres.UserByResetTokenHash"

	query := `SELECT ` + userColumns + ` FROM users WHERE reset_token_hash = $1`

	user, err := scanUser(s.db.QueryRow(ctx, query, hash))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// ClearResetToken очищает хэш и срок действия токена сброса.
func (s *Storage) ClearResetToken(ctx context.Context, id uuid.UUID) error {
	const op = "storage.postgres.ClearResetToken"

	query := `
		UPDATE users
		SET reset_token_hash = NULL, reset_token_expiry = NULL, updated_at = now()
		WHERE id = $1
	`

	return s.execOne(ctx, op, query, id)
}

// ConsumeResetToken атомарно использует токен сброса: проверка хэша и срока,
// смена пароля и очистка токенов происходят в одном UPDATE, поэтому
// из двух конкурентных вызовов с одним токеном успешен максимум один.
func (s *Storage) ConsumeResetToken(ctx context.Context, hash, passwordHash string, now time.Time) (uuid.UUID, error) {
	const op = "storage.postgres.ConsumeResetToken"

	query := `
		UPDATE users
		SET password_hash      = $2,
		    reset_token_hash   = NULL,
		    reset_token_expiry = NULL,
		    refresh_token_hash = NULL,
		    updated_at         = $3
		WHERE reset_token_hash = $1 AND reset_token_expiry > $3
		RETURNING id
	`

	var id uuid.UUID
	if err := s.db.QueryRow(ctx, query, hash, passwordHash, now).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

// PurgeExpiredResetTokens очищает токены сброса, истёкшие к now.
func (s *Storage) PurgeExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.postgres.PurgeExpiredResetTokens"

	query := `
		UPDATE users
		SET reset_token_hash = NULL, reset_token_expiry = NULL
		WHERE reset_token_expiry IS NOT NULL AND reset_token_expiry <= $1
	`

	tag, err := s.db.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected(), nil
}

// execOne выполняет UPDATE и ожидает ровно одну затронутую строку.
func (s *Storage) execOne(ctx context.Context, op, query string, args ...any) error {
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Profile.FullName,
		&u.Profile.Age,
		&u.Profile.Gender,
		&u.RefreshTokenHash,
		&u.ResetTokenHash,
		&u.ResetTokenExpiry,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, err
	}

	return &u, nil
}

// nullable превращает пустую строку в SQL NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}
