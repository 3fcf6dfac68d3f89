package handlers

import (
	"log/slog"
	"net/http"

	logctx "github.com/pribylovaa/go-auth-service/internal/pkg/log"
	"github.com/pribylovaa/go-auth-service/internal/service"
)

// ForgotPassword — POST /auth/forgot-password.
// Ответ одинаков для существующих и несуществующих адресов,
// а также для тела, которое не удалось разобрать.
func (h *Handlers) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.ForgotPassword"

	var in forgotPasswordRequest
	if err := decodeStrict(w, r, &in); err != nil {
		logctx.From(r.Context()).Debug("forgot_password_bad_body", slog.String("err", err.Error()))
		writeJSON(w, http.StatusOK, messageResponse{Message: msgResetSent})
		return
	}

	if err := h.svc.ForgotPassword(r.Context(), in.Email); err != nil {
		logctx.From(r.Context()).Error("forgot_password_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: msgResetSent})
}

// ResetPassword — POST /auth/reset-password?token=...
func (h *Handlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.ResetPassword"

	tok := r.URL.Query().Get("token")
	if tok == "" {
		fail(w, r, op, service.ErrInvalidOrExpiredToken)
		return
	}

	var in resetPasswordRequest
	if err := decodeStrict(w, r, &in); err != nil {
		fail(w, r, op, err)
		return
	}

	if err := h.svc.ResetPassword(r.Context(), tok, in.Password); err != nil {
		fail(w, r, op, err)
		return
	}

	h.clearRefreshCookie(w)
	writeJSON(w, http.StatusOK, messageResponse{Message: msgPasswordReset})
}
