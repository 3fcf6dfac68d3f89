// ratelimit ограничивает частоту запросов к чувствительным эндпоинтам
// по ключу клиента (IP). Алгоритм — фиксированное окно: счётчик ключа
// <prefix><bucket>:<client>:<windowStart> живёт одно окно.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// Bucket — группа эндпоинтов с общим лимитом.
type Bucket string

const (
	BucketRegister Bucket = "register"
	BucketLogin    Bucket = "login"
	BucketReset    Bucket = "reset"
)

// Rule — не более Limit запросов за Window. Limit <= 0 снимает ограничение.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Decision — результат проверки лимита.
type Decision struct {
	Allowed bool
	// RetryAfter — время до начала следующего окна (только при Allowed == false).
	RetryAfter time.Duration
}

// Store — атомарный счётчик с временем жизни.
type Store interface {
	// Incr увеличивает счётчик key и возвращает новое значение.
	// При первом инкременте ключ получает время жизни window.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Limiter применяет правила бакетов к счётчикам Store.
type Limiter struct {
	store  Store
	rules  map[Bucket]Rule
	prefix string
	now    func() time.Time
}

// Option настраивает Limiter.
type Option func(*Limiter)

// WithPrefix задаёт префикс ключей счётчиков.
func WithPrefix(prefix string) Option {
	return func(l *Limiter) { l.prefix = prefix }
}

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New создаёт Limiter.
func New(store Store, rules map[Bucket]Rule, opts ...Option) *Limiter {
	l := &Limiter{
		store: store,
		rules: make(map[Bucket]Rule, len(rules)),
		now:   time.Now,
	}
	for b, r := range rules {
		l.rules[b] = r
	}
	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Allow учитывает запрос клиента в бакете и сообщает, допущен ли он.
// Ошибка хранилища не блокирует запрос: возвращается Allowed == true
// вместе с ошибкой, чтобы вызывающий её залогировал.
func (l *Limiter) Allow(ctx context.Context, clientKey string, bucket Bucket) (Decision, error) {
	const op = "ratelimit.Allow"

	rule, ok := l.rules[bucket]
	if !ok || rule.Limit <= 0 || rule.Window <= 0 {
		return Decision{Allowed: true}, nil
	}

	now := l.now()
	start := now.Truncate(rule.Window)
	key := l.key(bucket, clientKey, start)

	count, err := l.store.Incr(ctx, key, rule.Window)
	if err != nil {
		return Decision{Allowed: true}, fmt.Errorf("%s: %w", op, err)
	}

	if count > int64(rule.Limit) {
		return Decision{Allowed: false, RetryAfter: start.Add(rule.Window).Sub(now)}, nil
	}

	return Decision{Allowed: true}, nil
}

func (l *Limiter) key(bucket Bucket, clientKey string, start time.Time) string {
	return l.prefix + string(bucket) + ":" + clientKey + ":" + strconv.FormatInt(start.Unix(), 10)
}
