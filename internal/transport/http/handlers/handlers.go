// handlers реализует HTTP-эндпоинты /auth/*: разбор запроса,
// вызов сервисного слоя, установку cookie с refresh-токеном и ответ JSON.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-auth-service/internal/models"
	logctx "github.com/pribylovaa/go-auth-service/internal/pkg/log"
	"github.com/pribylovaa/go-auth-service/internal/service"
	"github.com/pribylovaa/go-auth-service/internal/token"
	apierrors "github.com/pribylovaa/go-auth-service/internal/transport/http/errors"
)

// maxBodyBytes — верхняя граница тела запроса.
const maxBodyBytes = 1 << 20

// AuthService — операции сервисного слоя, нужные хендлерам.
type AuthService interface {
	Register(ctx context.Context, in service.RegisterInput) (*models.AuthResult, error)
	Login(ctx context.Context, email, password string, rememberMe bool) (*models.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	Logout(ctx context.Context, userID uuid.UUID) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, resetToken, newPassword string) error
	Me(ctx context.Context, userID uuid.UUID) (*models.PublicUser, error)
	Authenticate(ctx context.Context, accessToken string) (*token.AccessClaims, error)
}

// CookieOptions — параметры cookie с refresh-токеном.
type CookieOptions struct {
	Name   string
	Domain string
	Path   string
	Secure bool
}

// Handlers агрегирует зависимости эндпоинтов.
type Handlers struct {
	svc    AuthService
	cookie CookieOptions
	now    func() time.Time
}

func New(svc AuthService, cookie CookieOptions) *Handlers {
	if cookie.Name == "" {
		cookie.Name = "refresh_token"
	}
	if cookie.Path == "" {
		cookie.Path = "/auth"
	}

	return &Handlers{svc: svc, cookie: cookie, now: time.Now}
}

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля и лишние данные.
func decodeStrict(w http.ResponseWriter, r *http.Request, value any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(value); err != nil {
		return fmt.Errorf("%w: %v", apierrors.ErrInvalidArgument, err)
	}

	if dec.More() {
		return fmt.Errorf("%w: trailing data", apierrors.ErrInvalidArgument)
	}

	return nil
}

// fail пишет ошибку клиенту; внутренние ошибки предварительно логируются целиком.
func fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if apierrors.IsInternal(err) {
		logctx.From(r.Context()).Error("request_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
	}

	apierrors.WriteError(w, r, err)
}

// setRefreshCookie кладёт refresh-токен в httpOnly-cookie со сроком жизни токена.
func (h *Handlers) setRefreshCookie(w http.ResponseWriter, pair *models.TokenPair) {
	maxAge := int(pair.RefreshExpiresAt.Sub(h.now()).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    pair.RefreshToken,
		Domain:   h.cookie.Domain,
		Path:     h.cookie.Path,
		Expires:  pair.RefreshExpiresAt.UTC(),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handlers) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Domain:   h.cookie.Domain,
		Path:     h.cookie.Path,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}
