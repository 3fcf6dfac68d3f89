package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-auth-service/internal/models"
	"github.com/pribylovaa/go-auth-service/internal/pkg/log"
	"github.com/pribylovaa/go-auth-service/internal/pkg/redact"
	"github.com/pribylovaa/go-auth-service/internal/storage"
	"github.com/pribylovaa/go-auth-service/internal/token"
)

// RegisterInput — данные регистрации; поля профиля необязательны.
type RegisterInput struct {
	Email    string
	Password string
	FullName *string
	Age      *int
	Gender   *string
}

// Register регистрирует нового пользователя и открывает для него сессию.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.AuthResult, error) {
	const op = "service.auth.Register"

	lg := log.From(ctx)

	email, err := validateEmail(in.Email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := validatePassword(in.Password); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	profile, err := validateProfile(in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	_, err = s.storage.UserByEmail(ctx, email)
	if err == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Profile:      profile,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// Пользователь и его первая сессия сохраняются одной вставкой.
	pair, err := s.issuePair(user, false)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	digest := refreshDigest(pair.RefreshToken)
	user.RefreshTokenHash = &digest

	if err := s.storage.SaveUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("user_registered",
		slog.String("user_id", user.ID.String()),
		slog.String("email", redact.Email(user.Email)),
	)

	if err := s.mailer.SendWelcome(ctx, user.Email); err != nil {
		lg.Warn("welcome_mail_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
	}

	return &models.AuthResult{Tokens: *pair, User: user.Public()}, nil
}

// Login выполняет вход по email+пароль. rememberMe продлевает срок refresh-токена.
func (s *Service) Login(ctx context.Context, email, password string, rememberMe bool) (*models.AuthResult, error) {
	const op = "service.auth.Login"

	lg := log.From(ctx)

	normEmail, err := validateEmail(email)
	if err != nil || len(password) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	user, err := s.storage.UserByEmail(ctx, normEmail)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.hasher.DummyVerify(password)
			lg.Info("login_failed", slog.String("email", redact.Email(normEmail)))

			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !s.hasher.Verify(user.PasswordHash, password) {
		lg.Info("login_failed", slog.String("email", redact.Email(normEmail)))

		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	pair, err := s.openSession(ctx, user, rememberMe)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("login_succeeded", slog.String("user_id", user.ID.String()))

	return &models.AuthResult{Tokens: *pair, User: user.Public()}, nil
}

// Refresh обменивает действующий refresh-токен на новую пару.
// Старый refresh-токен инвалидируется атомарно с сохранением нового:
// из конкурентных обменов одного токена успешен ровно один.
func (s *Service) Refresh(ctx context.Context, presented string) (*models.TokenPair, error) {
	const op = "service.auth.Refresh"

	lg := log.From(ctx)

	claims, err := s.tokens.VerifyRefresh(presented)
	if err != nil {
		lg.Info("refresh_rejected", slog.String("reason", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	user, err := s.storage.UserByID(ctx, claims.UID())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	oldDigest := refreshDigest(presented)
	if user.RefreshTokenHash == nil ||
		subtle.ConstantTimeCompare([]byte(*user.RefreshTokenHash), []byte(oldDigest)) != 1 {
		lg.Warn("refresh_mismatch", slog.String("user_id", user.ID.String()))
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	pair, err := s.issuePair(user, claims.Remember)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	err = s.storage.RotateRefreshToken(ctx, user.ID, oldDigest, refreshDigest(pair.RefreshToken))
	if err != nil {
		if errors.Is(err, storage.ErrConflict) || errors.Is(err, storage.ErrNotFound) {
			lg.Warn("refresh_race_lost", slog.String("user_id", user.ID.String()))
			return nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return pair, nil
}

// Logout завершает сессию пользователя. Идемпотентен.
func (s *Service) Logout(ctx context.Context, userID uuid.UUID) error {
	const op = "service.auth.Logout"

	if err := s.storage.ReplaceRefreshToken(ctx, userID, ""); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("logout", slog.String("user_id", userID.String()))

	return nil
}

// Authenticate проверяет access-токен.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*token.AccessClaims, error) {
	const op = "service.auth.Authenticate"

	claims, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		log.From(ctx).Debug("access_rejected", slog.String("reason", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	return claims, nil
}

// Me возвращает публичный профиль пользователя.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*models.PublicUser, error) {
	const op = "service.auth.Me"

	user, err := s.storage.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	pub := user.Public()

	return &pub, nil
}

// openSession выпускает пару и безусловно заменяет сохранённый refresh-токен:
// предыдущая сессия пользователя перестаёт действовать.
func (s *Service) openSession(ctx context.Context, user *models.User, extended bool) (*models.TokenPair, error) {
	const op = "service.auth.openSession"

	pair, err := s.issuePair(user, extended)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.ReplaceRefreshToken(ctx, user.ID, refreshDigest(pair.RefreshToken)); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return pair, nil
}

func (s *Service) issuePair(user *models.User, extended bool) (*models.TokenPair, error) {
	now := s.now()

	access, accessExp, err := s.tokens.IssueAccess(user.ID, user.Email, now)
	if err != nil {
		return nil, err
	}

	refresh, refreshExp, err := s.tokens.IssueRefresh(user.ID, extended, now)
	if err != nil {
		return nil, err
	}

	return &models.TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// refreshDigest — SHA-256 (base64url) refresh-токена; в хранилище попадает только он.
func refreshDigest(tok string) string {
	sum := sha256.Sum256([]byte(tok))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
