// token выпускает и проверяет JWT (HS256): короткоживущий access-токен
// и долгоживущий refresh-токен. Хранилище пакет не использует: сверка
// refresh-токена с сохранённым значением выполняется сервисным слоем.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

var (
	// ErrExpired — срок действия токена истёк.
	ErrExpired = errors.New("token expired")
	// ErrMalformed — токен не разбирается, не того типа или содержит неверные claims.
	ErrMalformed = errors.New("token malformed")
	// ErrBadSignature — подпись не сходится или алгоритм не HS256.
	ErrBadSignature = errors.New("token signature invalid")
)

// Config — параметры выпуска токенов.
type Config struct {
	Secret      string
	Issuer      string
	Audience    []string
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
	RememberTTL time.Duration
	Leeway      time.Duration
}

// AccessClaims — claims access-токена.
type AccessClaims struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	Type   string `json:"typ"`
	jwt.RegisteredClaims
}

// RefreshClaims — claims refresh-токена. Remember сохраняет выбор
// «запомнить меня», чтобы ротация выпускала токен того же срока.
type RefreshClaims struct {
	UserID   string `json:"uid"`
	Type     string `json:"typ"`
	Remember bool   `json:"rem,omitempty"`
	jwt.RegisteredClaims
}

// UID возвращает идентификатор пользователя из access-claims.
func (c *AccessClaims) UID() uuid.UUID {
	id, _ := uuid.Parse(c.UserID)
	return id
}

// UID возвращает идентификатор пользователя из refresh-claims.
func (c *RefreshClaims) UID() uuid.UUID {
	id, _ := uuid.Parse(c.UserID)
	return id
}

// Issuer выпускает и проверяет токены.
type Issuer struct {
	cfg    Config
	secret []byte
}

// NewIssuer создаёт Issuer.
func NewIssuer(cfg Config) *Issuer {
	if cfg.RememberTTL < cfg.RefreshTTL {
		cfg.RememberTTL = cfg.RefreshTTL
	}

	return &Issuer{cfg: cfg, secret: []byte(cfg.Secret)}
}

// RefreshTTL возвращает срок жизни refresh-токена с учётом «запомнить меня».
func (i *Issuer) RefreshTTL(extended bool) time.Duration {
	if extended {
		return i.cfg.RememberTTL
	}

	return i.cfg.RefreshTTL
}

// IssueAccess выпускает access-токен и возвращает его срок действия.
func (i *Issuer) IssueAccess(userID uuid.UUID, email string, now time.Time) (string, time.Time, error) {
	const op = "token.IssueAccess"

	exp := now.Add(i.cfg.AccessTTL)
	claims := AccessClaims{
		UserID:           userID.String(),
		Email:            email,
		Type:             typeAccess,
		RegisteredClaims: i.registered(userID, now, exp),
	}

	signed, err := i.sign(claims)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return signed, exp, nil
}

// IssueRefresh выпускает refresh-токен. extended продлевает срок до RememberTTL.
func (i *Issuer) IssueRefresh(userID uuid.UUID, extended bool, now time.Time) (string, time.Time, error) {
	const op = "token.IssueRefresh"

	exp := now.Add(i.RefreshTTL(extended))
	claims := RefreshClaims{
		UserID:           userID.String(),
		Type:             typeRefresh,
		Remember:         extended,
		RegisteredClaims: i.registered(userID, now, exp),
	}

	signed, err := i.sign(claims)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return signed, exp, nil
}

// VerifyAccess проверяет access-токен.
func (i *Issuer) VerifyAccess(tokenStr string) (*AccessClaims, error) {
	const op = "token.VerifyAccess"

	var claims AccessClaims
	if err := i.verify(tokenStr, &claims); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if claims.Type != typeAccess {
		return nil, fmt.Errorf("%s: %w", op, ErrMalformed)
	}

	if _, err := uuid.Parse(claims.UserID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrMalformed)
	}

	return &claims, nil
}

// VerifyRefresh проверяет refresh-токен.
func (i *Issuer) VerifyRefresh(tokenStr string) (*RefreshClaims, error) {
	const op = "token.VerifyRefresh"

	var claims RefreshClaims
	if err := i.verify(tokenStr, &claims); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if claims.Type != typeRefresh {
		return nil, fmt.Errorf("%s: %w", op, ErrMalformed)
	}

	if _, err := uuid.Parse(claims.UserID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrMalformed)
	}

	return &claims, nil
}

// verify — общая проверка подписи, алгоритма, срока, issuer и audience.
func (i *Issuer) verify(tokenStr string, claims jwt.Claims) error {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(i.cfg.Leeway),
		jwt.WithExpirationRequired(),
	}
	if i.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.cfg.Issuer))
	}
	if len(i.cfg.Audience) > 0 {
		opts = append(opts, jwt.WithAudience(i.cfg.Audience...))
	}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}, opts...)

	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrBadSignature
	default:
		return ErrMalformed
	}

	if !token.Valid {
		return ErrMalformed
	}

	return nil
}

func (i *Issuer) registered(userID uuid.UUID, now, exp time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   userID.String(),
		Issuer:    i.cfg.Issuer,
		Audience:  jwt.ClaimStrings(i.cfg.Audience),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
}

func (i *Issuer) sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}
