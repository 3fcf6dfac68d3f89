package middleware

import (
	"context"
	"net/http"
	"strings"

	logctx "github.com/pribylovaa/go-auth-service/internal/pkg/log"
	"github.com/pribylovaa/go-auth-service/internal/service"
	"github.com/pribylovaa/go-auth-service/internal/token"
	apierrors "github.com/pribylovaa/go-auth-service/internal/transport/http/errors"
)

const claimsKey ctxKey = iota + 1

// Authenticator проверяет access-токен.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*token.AccessClaims, error)
}

// RequireAuth требует заголовок Authorization: Bearer <token> с действующим
// access-токеном и кладёт его claims в контекст (ClaimsFrom).
// Отсутствующий или некорректный токен — 401/unauthenticated.
func RequireAuth(a Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				apierrors.WriteError(w, r, service.ErrUnauthorized)
				return
			}

			claims, err := a.Authenticate(r.Context(), raw)
			if err != nil {
				apierrors.WriteError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			ctx = logctx.With(ctx, "user_id", claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFrom возвращает claims, положенные RequireAuth.
func ClaimsFrom(ctx context.Context) (*token.AccessClaims, bool) {
	c, ok := ctx.Value(claimsKey).(*token.AccessClaims)
	return c, ok
}

func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "

	auth := r.Header.Get("Authorization")
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", false
	}

	tok := strings.TrimSpace(auth[len(prefix):])

	return tok, tok != ""
}
