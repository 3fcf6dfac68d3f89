// password — хэширование и проверка паролей через bcrypt.
package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MaxLength — bcrypt учитывает только первые 72 байта пароля.
const MaxLength = 72

// Hasher хэширует пароли с фиксированной стоимостью.
type Hasher struct {
	cost  int
	dummy []byte
}

// NewHasher создаёт Hasher. Стоимость вне [bcrypt.MinCost, bcrypt.MaxCost]
// приводится к границе, нулевая заменяется на bcrypt.DefaultCost.
func NewHasher(cost int) *Hasher {
	switch {
	case cost == 0:
		cost = bcrypt.DefaultCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}

	// Хэш-заглушка той же стоимости: сравнение с ним занимает столько же,
	// сколько проверка настоящего пароля.
	dummy, err := bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), cost)
	if err != nil {
		panic(fmt.Sprintf("password.NewHasher: %v", err))
	}

	return &Hasher{cost: cost, dummy: dummy}
}

// Cost возвращает фактическую стоимость bcrypt.
func (h *Hasher) Cost() int {
	return h.cost
}

// Hash возвращает bcrypt-хэш пароля (соль генерируется для каждого вызова).
func (h *Hasher) Hash(password string) (string, error) {
	const op = "password.Hash"

	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(b), nil
}

// Verify сообщает, соответствует ли пароль хэшу.
func (h *Hasher) Verify(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// DummyVerify выполняет сравнение с хэшем-заглушкой. Вызывается при входе
// с неизвестным email, чтобы время ответа не выдавало наличие аккаунта.
func (h *Hasher) DummyVerify(password string) {
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(password))
}
