package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pribylovaa/go-auth-service/internal/mailer"
	"github.com/pribylovaa/go-auth-service/internal/pkg/log"
	"github.com/pribylovaa/go-auth-service/internal/pkg/redact"
	"github.com/pribylovaa/go-auth-service/internal/resettoken"
	"github.com/pribylovaa/go-auth-service/internal/storage"
)

// ForgotPassword выпускает токен сброса и отправляет ссылку на почту.
// Результат не зависит от существования аккаунта: для неизвестного или
// некорректного email возвращается nil, сбои после нахождения пользователя
// только логируются.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	const op = "service.reset.ForgotPassword"

	lg := log.From(ctx)

	normEmail, err := validateEmail(email)
	if err != nil {
		return nil
	}

	user, err := s.storage.UserByEmail(ctx, normEmail)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Info("forgot_password_unknown_email", slog.String("email", redact.Email(normEmail)))
			return nil
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	plain, hash, expiry, err := s.resets.Issue(s.now())
	if err != nil {
		lg.Error("reset_token_issue_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil
	}

	if err := s.storage.UpdateResetToken(ctx, user.ID, hash, expiry); err != nil {
		lg.Error("reset_token_save_failed",
			slog.String("op", op),
			slog.String("user_id", user.ID.String()),
			slog.String("err", err.Error()),
		)
		return nil
	}

	link, err := mailer.ResetLink(s.resetURL, plain)
	if err != nil {
		lg.Error("reset_link_build_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil
	}

	if err := s.mailer.SendPasswordReset(ctx, user.Email, link); err != nil {
		lg.Warn("reset_mail_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
	}

	lg.Info("reset_token_issued",
		slog.String("user_id", user.ID.String()),
		slog.String("token_fp", redact.Fingerprint(plain)),
	)

	return nil
}

// ResetPassword устанавливает новый пароль по токену сброса. Токен одноразовый;
// успешный сброс также завершает сессию пользователя.
func (s *Service) ResetPassword(ctx context.Context, plain, newPassword string) error {
	const op = "service.reset.ResetPassword"

	lg := log.From(ctx)

	if plain == "" {
		return fmt.Errorf("%s: %w", op, ErrInvalidOrExpiredToken)
	}

	if err := validatePassword(newPassword); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	digest := resettoken.Hash(plain)
	now := s.now()

	// Предварительная проверка отсекает чужие токены до bcrypt.
	user, err := s.storage.UserByResetTokenHash(ctx, digest)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Info("reset_rejected", slog.String("token_fp", redact.Fingerprint(plain)))
			return fmt.Errorf("%s: %w", op, ErrInvalidOrExpiredToken)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if user.ResetTokenHash == nil || user.ResetTokenExpiry == nil ||
		!s.resets.Verify(plain, *user.ResetTokenHash, *user.ResetTokenExpiry, now) {
		lg.Info("reset_rejected", slog.String("token_fp", redact.Fingerprint(plain)))
		return fmt.Errorf("%s: %w", op, ErrInvalidOrExpiredToken)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	id, err := s.storage.ConsumeResetToken(ctx, digest, hash, now)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrInvalidOrExpiredToken)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("password_reset", slog.String("user_id", id.String()))

	return nil
}

// PurgeExpiredResetTokens очищает истёкшие токены сброса (фоновая очистка).
func (s *Service) PurgeExpiredResetTokens(ctx context.Context) (int64, error) {
	const op = "service.reset.PurgeExpiredResetTokens"

	n, err := s.storage.PurgeExpiredResetTokens(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}
