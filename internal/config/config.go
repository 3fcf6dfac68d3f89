// config предоставляет структуру конфигурации сервиса и функции
// загрузки из файла/переменных окружения с предсказуемым приоритетом.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config — корневая конфигурация сервиса.
// Источники значений (по убыванию приоритета):
//  1. явный путь через флаг --config;
//  2. путь в переменной окружения CONFIG_PATH;
//  3. файл local.yaml из рабочей директории;
//  4. переменные окружения (cleanenv).
type Config struct {
	Env       string          `yaml:"env" env:"ENV" env-default:"local"`
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	DB        DBConfig        `yaml:"db"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Mail      MailConfig      `yaml:"mail"`
	Timeouts  TimeoutConfig   `yaml:"timeouts"`
}

// TimeoutConfig — таймауты сервиса.
type TimeoutConfig struct {
	Service  time.Duration `yaml:"service" env:"SERVICE_TIMEOUT" env-default:"5s"`
	Shutdown time.Duration `yaml:"shutdown" env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// HTTPConfig — сетевые настройки HTTP-сервера.
type HTTPConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	// TrustProxy включает разбор X-Forwarded-For/X-Real-IP для определения IP клиента.
	TrustProxy bool         `yaml:"trust_proxy" env:"HTTP_TRUST_PROXY" env-default:"false"`
	Cookie     CookieConfig `yaml:"cookie"`
}

// Addr возвращает адрес в формате host:port.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

// CookieConfig — параметры httpOnly-cookie с refresh-токеном.
type CookieConfig struct {
	Name   string `yaml:"name" env:"COOKIE_NAME" env-default:"refresh_token"`
	Domain string `yaml:"domain" env:"COOKIE_DOMAIN"`
	Path   string `yaml:"path" env:"COOKIE_PATH" env-default:"/auth"`
	// Secure принудительно включается вне local-окружения.
	Secure bool `yaml:"secure" env:"COOKIE_SECURE" env-default:"false"`
}

// AuthConfig содержит параметры выпуска и валидации токенов.
type AuthConfig struct {
	JWTSecret       string        `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl" env:"ACCESS_TOKEN_TTL" env-default:"15m"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl" env:"REFRESH_TOKEN_TTL" env-default:"168h"`
	RememberMeTTL   time.Duration `yaml:"remember_me_ttl" env:"REMEMBER_ME_TTL" env-default:"720h"`
	ResetTokenTTL   time.Duration `yaml:"reset_token_ttl" env:"RESET_TOKEN_TTL" env-default:"1h"`
	Issuer          string        `yaml:"issuer" env:"ISSUER" env-default:"auth-service"`
	Audience        []string      `yaml:"audience" env:"AUDIENCE" env-default:"api"`
	BcryptCost      int           `yaml:"bcrypt_cost" env:"BCRYPT_COST" env-default:"10"`
}

// DBConfig — настройки подключения к базе данных.
// Пустой DatabaseURL допустим только в local-окружении (in-memory хранилище).
type DBConfig struct {
	DatabaseURL string `yaml:"db_url" env:"DATABASE_URL"`
	Migrate     bool   `yaml:"migrate" env:"DB_MIGRATE" env-default:"true"`
}

// RedisConfig — общий стор счётчиков rate limit; пустой URL означает in-memory.
type RedisConfig struct {
	RedisURL string `yaml:"redis_url" env:"REDIS_URL"`
	Prefix   string `yaml:"prefix" env:"REDIS_PREFIX" env-default:"auth:rl:"`
}

// LimitRule — порог и окно одного бакета.
type LimitRule struct {
	Limit  int           `yaml:"limit" env:"LIMIT"`
	Window time.Duration `yaml:"window" env:"WINDOW"`
}

// RateLimitConfig — правила для бакетов register/login/reset.
type RateLimitConfig struct {
	Register LimitRule `yaml:"register" env-prefix:"RL_REGISTER_"`
	Login    LimitRule `yaml:"login" env-prefix:"RL_LOGIN_"`
	Reset    LimitRule `yaml:"reset" env-prefix:"RL_RESET_"`
}

// MailConfig — SMTP-параметры; пустой Host включает лог-отправщик.
type MailConfig struct {
	Host        string        `yaml:"host" env:"SMTP_HOST"`
	Port        string        `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	Username    string        `yaml:"username" env:"SMTP_USERNAME"`
	Password    string        `yaml:"password" env:"SMTP_PASSWORD"`
	From        string        `yaml:"from" env:"MAIL_FROM" env-default:"no-reply@localhost"`
	ResetURL    string        `yaml:"reset_url" env:"MAIL_RESET_URL" env-default:"http://localhost:3000/reset-password"`
	SendTimeout time.Duration `yaml:"send_timeout" env:"MAIL_SEND_TIMEOUT" env-default:"10s"`
}

// Addr возвращает адрес SMTP-сервера в формате host:port.
func (m MailConfig) Addr() string {
	return net.JoinHostPort(m.Host, m.Port)
}

// Значения по умолчанию для бакетов; подставляются, если в конфиге нули.
var (
	defaultRegisterRule = LimitRule{Limit: 5, Window: time.Hour}
	defaultLoginRule    = LimitRule{Limit: 5, Window: 15 * time.Minute}
	defaultResetRule    = LimitRule{Limit: 3, Window: time.Hour}
)

// MustLoad — обёртка над Load с panic при ошибке.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

// Load загружает конфигурацию по приоритету:
// 1) явный путь; 2) CONFIG_PATH; 3) ./local.yaml; 4) ENV.
// После чтения файла ENV-переменные накладываются поверх значений из YAML.
func Load(path string) (*Config, error) {
	var cfg Config

	tryRead := func(p string) (*Config, error) {
		if p == "" {
			return nil, fmt.Errorf("empty config path")
		}

		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		return finalize(&cfg)
	}

	// 1) Явный путь.
	if path != "" {
		return tryRead(path)
	}

	// 2) CONFIG_PATH.
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return tryRead(envPath)
	}

	// 3) ./local.yaml.
	if _, err := os.Stat("local.yaml"); err == nil {
		return tryRead("local.yaml")
	}

	// 4) Только ENV.
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}

	return finalize(&cfg)
}

// finalize подставляет дефолты бакетов и проверяет согласованность значений.
func finalize(cfg *Config) (*Config, error) {
	applyRuleDefault(&cfg.RateLimit.Register, defaultRegisterRule)
	applyRuleDefault(&cfg.RateLimit.Login, defaultLoginRule)
	applyRuleDefault(&cfg.RateLimit.Reset, defaultResetRule)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyRuleDefault(r *LimitRule, def LimitRule) {
	if r.Limit <= 0 {
		r.Limit = def.Limit
	}

	if r.Window <= 0 {
		r.Window = def.Window
	}
}

// Validate проверяет инварианты конфигурации, которые cleanenv не выражает тегами.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 || c.Auth.ResetTokenTTL <= 0 {
		return fmt.Errorf("auth: token ttl values must be positive")
	}

	if c.Auth.RememberMeTTL < c.Auth.RefreshTokenTTL {
		return fmt.Errorf("auth.remember_me_ttl (%s) must not be shorter than refresh_token_ttl (%s)",
			c.Auth.RememberMeTTL, c.Auth.RefreshTokenTTL)
	}

	if c.DB.DatabaseURL == "" && c.Env != EnvLocal {
		return fmt.Errorf("db.db_url is required outside of %q env", EnvLocal)
	}

	return nil
}

// Окружения сервиса.
const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// SecureCookies сообщает, нужно ли ставить Secure на cookie.
func (c *Config) SecureCookies() bool {
	return c.HTTP.Cookie.Secure || c.Env != EnvLocal
}
