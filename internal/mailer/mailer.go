// mailer отправляет служебные письма: приветствие после регистрации
// и ссылку для сброса пароля.
package mailer

import (
	"context"
	"fmt"
	"net/url"
)

//go:generate mockgen -destination=../mocks/mailer.go -package=mocks github.com/pribylovaa/go-auth-service/internal/mailer Mailer

// Mailer — контракт отправки писем.
type Mailer interface {
	SendWelcome(ctx context.Context, to string) error
	SendPasswordReset(ctx context.Context, to, link string) error
}

// Message — письмо в готовом к отправке виде.
type Message struct {
	To      string
	Subject string
	Body    string
}

func welcomeMessage(to string) Message {
	return Message{
		To:      to,
		Subject: "Welcome!",
		Body:    "Your account has been created. You can now sign in with your e-mail and password.",
	}
}

func resetMessage(to, link string) Message {
	return Message{
		To:      to,
		Subject: "Password reset",
		Body: "We received a request to reset your password.\r\n\r\n" +
			"Follow the link to choose a new one: " + link + "\r\n\r\n" +
			"If you did not request this, ignore this e-mail.",
	}
}

// ResetLink добавляет токен в query-параметр token базового URL.
func ResetLink(base, token string) (string, error) {
	const op = "mailer.ResetLink"

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	return u.String(), nil
}
