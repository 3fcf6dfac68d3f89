package handlers

import (
	"github.com/pribylovaa/go-auth-service/internal/models"
	"github.com/pribylovaa/go-auth-service/internal/service"
)

type registerRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	FullName *string `json:"fullName,omitempty"`
	Age      *int    `json:"age,omitempty"`
	Gender   *string `json:"gender,omitempty"`
}

func (r registerRequest) toInput() service.RegisterInput {
	return service.RegisterInput{
		Email:    r.Email,
		Password: r.Password,
		FullName: r.FullName,
		Age:      r.Age,
		Gender:   r.Gender,
	}
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe,omitempty"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

// authResponse — ответ регистрации и входа; refresh-токен в тело не попадает.
type authResponse struct {
	Token string            `json:"token"`
	User  models.PublicUser `json:"user"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type userResponse struct {
	User models.PublicUser `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

const (
	msgLoggedOut     = "logged out"
	msgResetSent     = "if the account exists, a password reset link has been sent"
	msgPasswordReset = "password has been reset"
)
