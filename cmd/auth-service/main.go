package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pribylovaa/go-auth-service/internal/config"
	"github.com/pribylovaa/go-auth-service/internal/mailer"
	"github.com/pribylovaa/go-auth-service/internal/password"
	"github.com/pribylovaa/go-auth-service/internal/ratelimit"
	"github.com/pribylovaa/go-auth-service/internal/resettoken"
	"github.com/pribylovaa/go-auth-service/internal/service"
	"github.com/pribylovaa/go-auth-service/internal/storage"
	"github.com/pribylovaa/go-auth-service/internal/storage/memory"
	"github.com/pribylovaa/go-auth-service/internal/storage/postgres"
	"github.com/pribylovaa/go-auth-service/internal/token"
	httptransport "github.com/pribylovaa/go-auth-service/internal/transport/http"
	"github.com/pribylovaa/go-auth-service/internal/transport/http/handlers"
	"github.com/pribylovaa/go-auth-service/internal/transport/http/middleware"
)

// Период фоновой очистки просроченных токенов сброса.
const resetJanitorPeriod = 30 * time.Minute

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting application", "env", cfg.Env)

	// Корневой контекст по сигналам.
	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	if err := run(rootCtx, cfg, log); err != nil {
		log.Error("service_failed", slog.String("err", err.Error()))
		rootCancel()
		os.Exit(1)
	}

	log.Info("service_stopped")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	// Хранилище: PostgreSQL или in-memory для local.
	str, db, err := setupStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer str.Close()

	// Счётчики rate limit: Redis или память процесса.
	var (
		rlStore ratelimit.Store
		redisSt *ratelimit.RedisStore
	)
	if cfg.Redis.RedisURL != "" {
		rctx, rcancel := context.WithTimeout(ctx, 5*time.Second)
		redisSt, err = ratelimit.NewRedisStoreFromURL(rctx, cfg.Redis.RedisURL)
		rcancel()
		if err != nil {
			log.Error("redis_connect_failed", slog.String("err", err.Error()))
			return err
		}
		defer func() { _ = redisSt.Close() }()
		rlStore = redisSt
		log.Info("redis_connected")
	} else {
		rlStore = ratelimit.NewMemoryStore(nil)
		log.Warn("rate_limit_in_memory")
	}

	limiter := ratelimit.New(rlStore, map[ratelimit.Bucket]ratelimit.Rule{
		ratelimit.BucketRegister: {Limit: cfg.RateLimit.Register.Limit, Window: cfg.RateLimit.Register.Window},
		ratelimit.BucketLogin:    {Limit: cfg.RateLimit.Login.Limit, Window: cfg.RateLimit.Login.Window},
		ratelimit.BucketReset:    {Limit: cfg.RateLimit.Reset.Limit, Window: cfg.RateLimit.Reset.Window},
	}, ratelimit.WithPrefix(cfg.Redis.Prefix))

	// Почта: SMTP, если задан хост, иначе письма только логируются.
	var sender mailer.Mailer
	if cfg.Mail.Host != "" {
		sender = mailer.NewSMTPSender(mailer.SMTPConfig{
			Addr:     cfg.Mail.Addr(),
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
		})
	} else {
		sender = mailer.NewLogSender(log)
		log.Warn("mail_log_only")
	}
	mails := mailer.NewAsync(sender, log, cfg.Mail.SendTimeout)

	// Сервис.
	srvc := service.New(service.Deps{
		Storage: str,
		Hasher:  password.NewHasher(cfg.Auth.BcryptCost),
		Tokens: token.NewIssuer(token.Config{
			Secret:      cfg.Auth.JWTSecret,
			Issuer:      cfg.Auth.Issuer,
			Audience:    cfg.Auth.Audience,
			AccessTTL:   cfg.Auth.AccessTokenTTL,
			RefreshTTL:  cfg.Auth.RefreshTokenTTL,
			RememberTTL: cfg.Auth.RememberMeTTL,
			Leeway:      5 * time.Second,
		}),
		Resets:   resettoken.NewManager(cfg.Auth.ResetTokenTTL),
		Mailer:   mails,
		ResetURL: cfg.Mail.ResetURL,
	})
	log.Info("service_initialized")

	// Метрики.
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := middleware.NewMetrics(reg)

	var ready atomic.Bool
	readiness := func() bool {
		if !ready.Load() {
			return false
		}

		pctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		if db != nil {
			if err := db.Ping(pctx); err != nil {
				log.Warn("postgres_ping_failed", slog.String("err", err.Error()))
				return false
			}
		}
		// Лимитер работает в режиме fail-open: недоступный Redis не снимает готовность.
		if redisSt != nil {
			if err := redisSt.Ping(pctx); err != nil {
				log.Warn("redis_ping_failed", slog.String("err", err.Error()))
			}
		}

		return true
	}

	router := httptransport.NewRouter(srvc, limiter, httptransport.Options{
		Logger:     log,
		Timeout:    cfg.Timeouts.Service,
		TrustProxy: cfg.HTTP.TrustProxy,
		Cookie: handlers.CookieOptions{
			Name:   cfg.HTTP.Cookie.Name,
			Domain: cfg.HTTP.Cookie.Domain,
			Path:   cfg.HTTP.Cookie.Path,
			Secure: cfg.SecureCookies(),
		},
		Metrics:        metrics,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Ready:          readiness,
	})

	httpAddr := cfg.HTTP.Addr()
	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Фоновая очистка просроченных токенов сброса.
	startResetJanitor(ctx, srvc, log, resetJanitorPeriod)

	serveErrCh := make(chan error, 1)
	go func() {
		log.Info("http_listen_start", slog.String("addr", httpAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	ready.Store(true)

	// Ожидание сигнала завершения или фатальной ошибки сервера.
	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown_requested")
	case serveErr = <-serveErrCh:
		if serveErr != nil {
			log.Error("http_serve_failed", slog.String("err", serveErr.Error()))
		}
	}

	ready.Store(false)

	// Graceful stop с таймаутом.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Timeouts.Shutdown)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_force_stop", slog.String("err", err.Error()))
		_ = httpSrv.Close()
	} else {
		log.Info("http_stopped")
	}

	// Дожидаемся писем, уже поставленных в отправку.
	if err := mails.Wait(shutdownCtx); err != nil {
		log.Warn("mail_drain_incomplete", slog.String("err", err.Error()))
	}

	return serveErr
}

// setupStorage выбирает реализацию хранилища. Второе значение — postgres-хранилище
// для readiness-проверки (nil для in-memory).
func setupStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) (storage.Storage, *postgres.Storage, error) {
	if cfg.DB.DatabaseURL == "" {
		log.Warn("storage_in_memory")
		return memory.New(), nil, nil
	}

	// Подключение к БД c таймаутом.
	dbCtx, dbCancel := context.WithTimeout(ctx, 10*time.Second)
	defer dbCancel()

	str, err := postgres.New(dbCtx, cfg.DB.DatabaseURL)
	if err != nil {
		log.Error("postgres_connect_failed", slog.String("err", err.Error()))
		return nil, nil, err
	}
	log.Info("postgres_connected")

	if cfg.DB.Migrate {
		if err := str.Migrate(dbCtx); err != nil {
			log.Error("postgres_migrate_failed", slog.String("err", err.Error()))
			str.Close()
			return nil, nil, err
		}
		log.Info("postgres_migrated")
	}

	return str, str, nil
}

// setupLogger настраивает slog по окружению.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case config.EnvLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case config.EnvDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case config.EnvProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	}

	return log
}

// resetPurger — операция очистки, которую выполняет janitor.
type resetPurger interface {
	PurgeExpiredResetTokens(ctx context.Context) (int64, error)
}

// startResetJanitor запускает фоновую задачу, которая периодически очищает
// просроченные токены сброса пароля.
func startResetJanitor(ctx context.Context, p resetPurger, log *slog.Logger, period time.Duration) {
	if period <= 0 {
		return
	}

	go func() {
		t := time.NewTicker(period)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				n, err := p.PurgeExpiredResetTokens(ctx)
				if err != nil {
					log.Error("reset_janitor_failed", slog.String("err", err.Error()))
					continue
				}
				if n > 0 {
					log.Info("reset_tokens_purged", slog.Int64("count", n))
				}
			}
		}
	}()
}
