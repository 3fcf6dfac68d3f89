package handlers

import (
	"net/http"

	"github.com/pribylovaa/go-auth-service/internal/service"
	apierrors "github.com/pribylovaa/go-auth-service/internal/transport/http/errors"
	"github.com/pribylovaa/go-auth-service/internal/transport/http/middleware"
)

// Register — POST /auth/register.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.Register"

	var in registerRequest
	if err := decodeStrict(w, r, &in); err != nil {
		fail(w, r, op, err)
		return
	}

	res, err := h.svc.Register(r.Context(), in.toInput())
	if err != nil {
		fail(w, r, op, err)
		return
	}

	h.setRefreshCookie(w, &res.Tokens)
	writeJSON(w, http.StatusCreated, authResponse{Token: res.Tokens.AccessToken, User: res.User})
}

// Login — POST /auth/login.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.Login"

	var in loginRequest
	if err := decodeStrict(w, r, &in); err != nil {
		fail(w, r, op, err)
		return
	}

	res, err := h.svc.Login(r.Context(), in.Email, in.Password, in.RememberMe)
	if err != nil {
		fail(w, r, op, err)
		return
	}

	h.setRefreshCookie(w, &res.Tokens)
	writeJSON(w, http.StatusOK, authResponse{Token: res.Tokens.AccessToken, User: res.User})
}

// Refresh — POST /auth/refresh. Refresh-токен читается только из cookie.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.Refresh"

	c, err := r.Cookie(h.cookie.Name)
	if err != nil || c.Value == "" {
		fail(w, r, op, service.ErrUnauthorized)
		return
	}

	pair, err := h.svc.Refresh(r.Context(), c.Value)
	if err != nil {
		if !apierrors.IsInternal(err) {
			h.clearRefreshCookie(w)
		}
		fail(w, r, op, err)
		return
	}

	h.setRefreshCookie(w, pair)
	writeJSON(w, http.StatusOK, tokenResponse{Token: pair.AccessToken})
}

// Logout — POST /auth/logout, требует RequireAuth.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.Logout"

	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		fail(w, r, op, service.ErrUnauthorized)
		return
	}

	if err := h.svc.Logout(r.Context(), claims.UID()); err != nil {
		fail(w, r, op, err)
		return
	}

	h.clearRefreshCookie(w)
	writeJSON(w, http.StatusOK, messageResponse{Message: msgLoggedOut})
}

// Me — GET /auth/me, требует RequireAuth.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.Me"

	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		fail(w, r, op, service.ErrUnauthorized)
		return
	}

	user, err := h.svc.Me(r.Context(), claims.UID())
	if err != nil {
		fail(w, r, op, err)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{User: *user})
}
