package service

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pribylovaa/go-auth-service/internal/models"
	"github.com/pribylovaa/go-auth-service/internal/password"
)

const (
	minPasswordLen = 8
	maxEmailLen    = 254
	maxFullNameLen = 100
	minAge, maxAge = 1, 149
)

var genders = map[string]struct{}{
	"male":   {},
	"female": {},
	"other":  {},
}

// validateEmail проверяет формат email и нормализует его (trim + lower).
func validateEmail(raw string) (string, error) {
	const op = "service.validateEmail"

	email := strings.TrimSpace(raw)
	if email == "" || len(email) > maxEmailLen {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	addr, err := mail.ParseAddress(email)
	// Отсекаем формы "Name <a@b>": адрес должен совпадать с вводом целиком.
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	return strings.ToLower(email), nil
}

// validatePassword проверяет политику паролей: 8..72 байта,
// хотя бы одна буква и хотя бы один символ, не являющийся буквой.
func validatePassword(pw string) error {
	const op = "service.validatePassword"

	if len(pw) == 0 {
		return fmt.Errorf("%s: %w", op, ErrEmptyPassword)
	}

	if utf8.RuneCountInString(pw) < minPasswordLen || len(pw) > password.MaxLength {
		return fmt.Errorf("%s: %w", op, ErrWeakPassword)
	}

	var hasLetter, hasOther bool
	for _, r := range pw {
		if unicode.IsLetter(r) {
			hasLetter = true
		} else {
			hasOther = true
		}
	}

	if !hasLetter || !hasOther {
		return fmt.Errorf("%s: %w", op, ErrWeakPassword)
	}

	return nil
}

// validateProfile проверяет необязательные поля профиля и нормализует их.
func validateProfile(in RegisterInput) (models.Profile, error) {
	const op = "service.validateProfile"

	var p models.Profile

	if in.FullName != nil {
		name := strings.TrimSpace(*in.FullName)
		if name == "" || utf8.RuneCountInString(name) > maxFullNameLen {
			return p, fmt.Errorf("%s: %w", op, ErrInvalidProfile)
		}
		p.FullName = &name
	}

	if in.Age != nil {
		if *in.Age < minAge || *in.Age > maxAge {
			return p, fmt.Errorf("%s: %w", op, ErrInvalidProfile)
		}
		age := *in.Age
		p.Age = &age
	}

	if in.Gender != nil {
		g := strings.ToLower(strings.TrimSpace(*in.Gender))
		if _, ok := genders[g]; !ok {
			return p, fmt.Errorf("%s: %w", op, ErrInvalidProfile)
		}
		p.Gender = &g
	}

	return p, nil
}
