package models

import (
	"time"

	"github.com/google/uuid"
)

// User — учётная запись в каталоге пользователей.
//
// Поля RefreshTokenHash/ResetTokenHash/ResetTokenExpiry меняет только
// сервисный слой; ResetTokenHash и ResetTokenExpiry либо оба nil, либо оба заданы.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	Profile      Profile

	// RefreshTokenHash — SHA-256 (base64url) единственного действующего refresh-токена.
	RefreshTokenHash *string
	// ResetTokenHash — SHA-256 (hex) последнего выданного токена сброса пароля.
	ResetTokenHash   *string
	ResetTokenExpiry *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Profile — необязательные поля профиля, собираемые при регистрации.
type Profile struct {
	FullName *string
	Age      *int
	Gender   *string
}

// PublicUser — представление пользователя, безопасное для отдачи клиенту.
type PublicUser struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  *string   `json:"fullName,omitempty"`
	Age       *int      `json:"age,omitempty"`
	Gender    *string   `json:"gender,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Public возвращает публичные поля пользователя (без хэшей).
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.Profile.FullName,
		Age:       u.Profile.Age,
		Gender:    u.Profile.Gender,
		CreatedAt: u.CreatedAt,
	}
}
