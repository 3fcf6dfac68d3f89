// errors стандартизирует ответы об ошибках HTTP-слоя.
// На вход принимается ошибка сервисного слоя, на выход:
//   - корректный HTTP-статус;
//   - краткий стабильный code и безопасное message без утечки деталей.
//
// Формат тела: {"error":{"code":"...","message":"...","request_id":"..."}}.
package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/pribylovaa/go-auth-service/internal/service"
)

// Нестандартный код часто используемый для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

var (
	// ErrInvalidArgument — тело или параметры запроса не разбираются.
	ErrInvalidArgument = stderrors.New("invalid argument")
	// ErrRateLimited — превышен лимит запросов.
	ErrRateLimited = stderrors.New("rate limited")
)

// APIError — единый формат для фронта.
// Code — короткий стабильный код для машиночитаемой обработки на FE.
// Message — безопасное человекочитаемое описание.
// RequestID — прокидывается из X-Request-Id, если есть (для трассировки).
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ToHTTP конвертирует ошибку сервисного слоя в HTTP-статус и тело ответа.
// Всё, что не распознано (ошибки хранилища, криптографии, nil), отдаётся
// как 500/internal.
func ToHTTP(err error) (int, ErrorResponse) {
	status, code, msg := classify(err)

	return status, ErrorResponse{
		Error: APIError{
			Code:    code,
			Message: msg,
		},
	}
}

// IsInternal сообщает, будет ли ошибка отдана клиенту как 5xx.
func IsInternal(err error) bool {
	status, _, _ := classify(err)
	return status >= http.StatusInternalServerError
}

// WriteError — хелпер для HTTP-хендлеров.
// Пишет корректный статус/тело, добавляет request_id из заголовка, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func classify(err error) (int, string, string) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, "internal", "internal error"
	case stderrors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, "too_many_requests", "too many requests, try again later"
	case stderrors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument", "invalid argument"
	case stderrors.Is(err, service.ErrInvalidEmail):
		return http.StatusBadRequest, "invalid_argument", "invalid email"
	case stderrors.Is(err, service.ErrEmptyPassword):
		return http.StatusBadRequest, "invalid_argument", "password is empty"
	case stderrors.Is(err, service.ErrWeakPassword):
		return http.StatusBadRequest, "invalid_argument", "password must be 8-72 bytes long and contain a letter and a non-letter character"
	case stderrors.Is(err, service.ErrInvalidProfile):
		return http.StatusBadRequest, "invalid_argument", "invalid profile"
	case stderrors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, "invalid_argument", "invalid argument"
	case stderrors.Is(err, service.ErrEmailTaken):
		return http.StatusConflict, "already_exists", "email already registered"
	case stderrors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials", "invalid email or password"
	case stderrors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthenticated", "unauthenticated"
	case stderrors.Is(err, service.ErrInvalidOrExpiredToken):
		return http.StatusBadRequest, "invalid_or_expired_token", "invalid or expired token"
	case stderrors.Is(err, context.Canceled):
		return StatusClientClosedRequest, "canceled", "canceled"
	case stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "deadline_exceeded", "deadline exceeded"
	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}
