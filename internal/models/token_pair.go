package models

import "time"

// TokenPair — пара токенов, выдаваемая при регистрации/входе/обновлении.
//
// Описание:
//   - AccessToken — короткоживущий JWT для доступа к API (Bearer);
//   - RefreshToken — JWT для обновления пары; клиенту передаётся только
//     в httpOnly-cookie, на сервере хранится его хэш;
//   - AccessExpiresAt/RefreshExpiresAt — моменты истечения (UTC).
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// AuthResult — результат регистрации или входа.
type AuthResult struct {
	Tokens TokenPair
	User   PublicUser
}
