// service содержит бизнес-логику аутентификации: регистрацию и вход,
// выпуск и ротацию пары токенов, сброс пароля и выход.
//
// Основные аспекты:
//   - Service не хранит состояние запроса; экземпляр безопасен для
//     конкурентного использования при потокобезопасном storage.Storage.
//   - Атомарность изменений refresh-токена и токена сброса обеспечивается
//     условными обновлениями хранилища, а не блокировками сервиса.
//   - Ошибки возвращаются как sentinel-значения ниже и маппятся транспортом
//     на HTTP-статусы; ошибки хранилища и криптографии остаются внутренними.
package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/pribylovaa/go-auth-service/internal/mailer"
	"github.com/pribylovaa/go-auth-service/internal/password"
	"github.com/pribylovaa/go-auth-service/internal/resettoken"
	"github.com/pribylovaa/go-auth-service/internal/storage"
	"github.com/pribylovaa/go-auth-service/internal/token"
)

var (
	// ErrValidation — базовая ошибка некорректного ввода. HTTP 400.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidEmail — e-mail пустой или имеет некорректный формат. HTTP 400.
	ErrInvalidEmail = fmt.Errorf("%w: invalid email format", ErrValidation)

	// ErrEmptyPassword — пароль пустой. HTTP 400.
	ErrEmptyPassword = fmt.Errorf("%w: password is empty", ErrValidation)

	// ErrWeakPassword — пароль не удовлетворяет политике. HTTP 400.
	ErrWeakPassword = fmt.Errorf("%w: password is too weak", ErrValidation)

	// ErrInvalidProfile — некорректные поля профиля. HTTP 400.
	ErrInvalidProfile = fmt.Errorf("%w: invalid profile", ErrValidation)

	// ErrEmailTaken — e-mail уже занят. HTTP 409.
	ErrEmailTaken = errors.New("email already taken")

	// ErrInvalidCredentials — неверная пара e-mail/пароль; отсутствие
	// пользователя и неверный пароль не различаются. HTTP 401.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthorized — токен некорректен, истёк, не совпадает с сохранённым
	// или сессия завершена. HTTP 401.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidOrExpiredToken — токен сброса пароля неверен, истёк или уже
	// использован. HTTP 400.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
)

// Deps — зависимости Service.
type Deps struct {
	Storage  storage.Storage
	Hasher   *password.Hasher
	Tokens   *token.Issuer
	Resets   *resettoken.Manager
	Mailer   mailer.Mailer
	ResetURL string
}

// Service описывает бизнес-логику auth-сервиса.
type Service struct {
	storage  storage.Storage
	hasher   *password.Hasher
	tokens   *token.Issuer
	resets   *resettoken.Manager
	mailer   mailer.Mailer
	resetURL string
	now      func() time.Time
}

// New создаёт новый экземпляр Service.
func New(d Deps) *Service {
	return &Service{
		storage:  d.Storage,
		hasher:   d.Hasher,
		tokens:   d.Tokens,
		resets:   d.Resets,
		mailer:   d.Mailer,
		resetURL: d.ResetURL,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock подменяет источник времени (для тестов).
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}
