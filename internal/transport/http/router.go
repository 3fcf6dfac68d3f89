package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/pribylovaa/go-auth-service/internal/ratelimit"
	"github.com/pribylovaa/go-auth-service/internal/transport/http/handlers"
	"github.com/pribylovaa/go-auth-service/internal/transport/http/middleware"
)

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger  *slog.Logger
	Timeout time.Duration
	// TrustProxy включает chi RealIP: IP клиента берётся из X-Forwarded-For/X-Real-IP.
	TrustProxy bool
	Cookie     handlers.CookieOptions
	// Metrics — nil отключает HTTP-метрики.
	Metrics *middleware.Metrics
	// MetricsHandler монтируется на /metrics, если задан.
	MetricsHandler http.Handler
	// Ready — состояние readiness для /healthz; nil означает "всегда готов".
	Ready func() bool
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(svc handlers.AuthService, limiter middleware.Limiter, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),   // безопасно ловим паники
		middleware.RequestID(), // формируем/прокидываем X-Request-Id (до логирования!)
	)
	if opts.TrustProxy {
		root.Use(chimw.RealIP) // до логирования и лимитов: они читают RemoteAddr
	}
	root.Use(middleware.Logging(opts.Logger))
	if opts.Metrics != nil {
		root.Use(opts.Metrics.Instrument())
	}
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout)) // общий дедлайн запроса
	}

	root.Get("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	root.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if opts.Ready != nil && !opts.Ready() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	if opts.MetricsHandler != nil {
		root.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}

	h := handlers.New(svc, opts.Cookie)
	root.Route("/auth", func(r chi.Router) {
		registerRoutes(r, h, svc, limiter, opts.Metrics)
	})

	return root
}

// registerRoutes — единая точка регистрации эндпоинтов /auth/*.
// Лимит проверяется до разбора тела и вызова сервиса.
func registerRoutes(r chi.Router, h *handlers.Handlers, svc handlers.AuthService, l middleware.Limiter, m *middleware.Metrics) {
	limited := func(b ratelimit.Bucket) func(http.Handler) http.Handler {
		return middleware.RateLimit(l, b, m)
	}

	r.With(limited(ratelimit.BucketRegister)).Post("/register", h.Register)
	r.With(limited(ratelimit.BucketLogin)).Post("/login", h.Login)
	r.With(limited(ratelimit.BucketReset)).Post("/forgot-password", h.ForgotPassword)
	r.With(limited(ratelimit.BucketReset)).Post("/reset-password", h.ResetPassword)
	r.Post("/refresh", h.Refresh)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(svc))
		r.Post("/logout", h.Logout)
		r.Get("/me", h.Me)
	})
}
