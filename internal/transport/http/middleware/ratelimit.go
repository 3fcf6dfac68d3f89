package middleware

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"

	logctx "github.com/pribylovaa/go-auth-service/internal/pkg/log"
	"github.com/pribylovaa/go-auth-service/internal/ratelimit"
	apierrors "github.com/pribylovaa/go-auth-service/internal/transport/http/errors"
)

// Limiter — проверка лимита для ключа клиента в бакете.
type Limiter interface {
	Allow(ctx context.Context, clientKey string, bucket ratelimit.Bucket) (ratelimit.Decision, error)
}

// RateLimit отклоняет запрос с 429 до вызова обработчика, если клиент
// исчерпал лимит бакета. Ошибка хранилища счётчиков не блокирует запрос.
// m может быть nil.
func RateLimit(l Limiter, bucket ratelimit.Bucket, m *Metrics) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := l.Allow(r.Context(), ClientIP(r), bucket)
			if err != nil {
				logctx.From(r.Context()).Warn("rate_limit_store_failed",
					slog.String("bucket", string(bucket)),
					slog.String("err", err.Error()),
				)
			}

			if !d.Allowed {
				if m != nil {
					m.rateLimited.WithLabelValues(string(bucket)).Inc()
				}
				logctx.From(r.Context()).Info("rate_limited", slog.String("bucket", string(bucket)))

				secs := int(math.Ceil(d.RetryAfter.Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				apierrors.WriteError(w, r, apierrors.ErrRateLimited)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP — ключ клиента для лимитов: хост из RemoteAddr.
// За доверенным прокси RemoteAddr заранее переписывает chi middleware.RealIP.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
