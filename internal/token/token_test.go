package token

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Secret:      "unit-test-secret",
		Issuer:      "auth-service",
		Audience:    []string{"api"},
		AccessTTL:   15 * time.Minute,
		RefreshTTL:  24 * time.Hour,
		RememberTTL: 30 * 24 * time.Hour,
	}
}

func TestIssueAccess_AndVerify_OK(t *testing.T) {
	t.Parallel()

	iss := NewIssuer(testConfig())
	uid := uuid.New()
	now := time.Now().UTC()

	at, exp, err := iss.IssueAccess(uid, "user@example.com", now)
	require.NoError(t, err)
	require.WithinDuration(t, now.Add(15*time.Minute), exp, time.Second)

	claims, err := iss.VerifyAccess(at)
	require.NoError(t, err)
	require.Equal(t, uid, claims.UID())
	require.Equal(t, "user@example.com", claims.Email)
	require.Equal(t, uid.String(), claims.Subject)
	require.NotEmpty(t, claims.ID)
}

func TestIssueRefresh_Lifetime(t *testing.T) {
	t.Parallel()

	iss := NewIssuer(testConfig())
	uid := uuid.New()
	now := time.Now().UTC()

	rt, exp, err := iss.IssueRefresh(uid, false, now)
	require.NoError(t, err)
	require.WithinDuration(t, now.Add(24*time.Hour), exp, time.Second)

	claims, err := iss.VerifyRefresh(rt)
	require.NoError(t, err)
	require.Equal(t, uid, claims.UID())
	require.False(t, claims.Remember)

	rt, exp, err = iss.IssueRefresh(uid, true, now)
	require.NoError(t, err)
	require.WithinDuration(t, now.Add(30*24*time.Hour), exp, time.Second)

	claims, err = iss.VerifyRefresh(rt)
	require.NoError(t, err)
	require.True(t, claims.Remember)
}

func TestIssueRefresh_SameSecondDiffers(t *testing.T) {
	t.Parallel()

	iss := NewIssuer(testConfig())
	uid := uuid.New()
	now := time.Now().UTC()

	a, _, err := iss.IssueRefresh(uid, false, now)
	require.NoError(t, err)
	b, _, err := iss.IssueRefresh(uid, false, now)
	require.NoError(t, err)

	require.NotEqual(t, a, b)
}

func TestVerify_KindMismatch(t *testing.T) {
	t.Parallel()

	iss := NewIssuer(testConfig())
	uid := uuid.New()
	now := time.Now().UTC()

	at, _, err := iss.IssueAccess(uid, "user@example.com", now)
	require.NoError(t, err)
	rt, _, err := iss.IssueRefresh(uid, false, now)
	require.NoError(t, err)

	_, err = iss.VerifyAccess(rt)
	require.ErrorIs(t, err, ErrMalformed)

	_, err = iss.VerifyRefresh(at)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	iss := NewIssuer(testConfig())
	past := time.Now().UTC().Add(-2 * time.Hour)

	at, _, err := iss.IssueAccess(uuid.New(), "user@example.com", past)
	require.NoError(t, err)

	_, err = iss.VerifyAccess(at)
	require.ErrorIs(t, err, ErrExpired)
}

func TestVerify_Leeway(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Leeway = time.Minute
	iss := NewIssuer(cfg)

	// Истёк 10 секунд назад, но укладывается в допуск.
	at, _, err := iss.IssueAccess(uuid.New(), "user@example.com", time.Now().UTC().Add(-cfg.AccessTTL-10*time.Second))
	require.NoError(t, err)

	_, err = iss.VerifyAccess(at)
	require.NoError(t, err)
}

func TestVerify_BadSignature(t *testing.T) {
	t.Parallel()

	iss := NewIssuer(testConfig())

	other := testConfig()
	other.Secret = "another-secret"
	forged, _, err := NewIssuer(other).IssueAccess(uuid.New(), "user@example.com", time.Now().UTC())
	require.NoError(t, err)

	_, err = iss.VerifyAccess(forged)
	require.ErrorIs(t, err, ErrBadSignature)

	// Подмена последнего символа подписи.
	at, _, err := iss.IssueAccess(uuid.New(), "user@example.com", time.Now().UTC())
	require.NoError(t, err)
	parts := strings.Split(at, ".")
	parts[2] = strings.Repeat("A", len(parts[2]))

	_, err = iss.VerifyAccess(strings.Join(parts, "."))
	require.ErrorIs(t, err, ErrBadSignature)
}

func TestVerify_WrongAlg_WrongIssuer_WrongAudience(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	iss := NewIssuer(cfg)
	uid := uuid.New()
	now := time.Now().UTC()

	base := func() jwt.MapClaims {
		return jwt.MapClaims{
			"uid":   uid.String(),
			"email": "a@b.c",
			"typ":   "access",
			"iss":   cfg.Issuer,
			"sub":   uid.String(),
			"aud":   cfg.Audience,
			"exp":   now.Add(cfg.AccessTTL).Unix(),
			"iat":   now.Unix(),
		}
	}

	t.Run("wrong alg", func(t *testing.T) {
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, base()).SignedString([]byte(cfg.Secret))
		require.NoError(t, err)

		_, err = iss.VerifyAccess(signed)
		require.ErrorIs(t, err, ErrBadSignature)
	})

	t.Run("alg none", func(t *testing.T) {
		signed, err := jwt.NewWithClaims(jwt.SigningMethodNone, base()).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = iss.VerifyAccess(signed)
		require.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		c := base()
		c["iss"] = "someone-else"
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(cfg.Secret))
		require.NoError(t, err)

		_, err = iss.VerifyAccess(signed)
		require.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("wrong audience", func(t *testing.T) {
		c := base()
		c["aud"] = []string{"other"}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(cfg.Secret))
		require.NoError(t, err)

		_, err = iss.VerifyAccess(signed)
		require.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("bad uid", func(t *testing.T) {
		c := base()
		c["uid"] = "not-a-uuid"
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(cfg.Secret))
		require.NoError(t, err)

		_, err = iss.VerifyAccess(signed)
		require.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("no exp", func(t *testing.T) {
		c := base()
		delete(c, "exp")
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(cfg.Secret))
		require.NoError(t, err)

		_, err = iss.VerifyAccess(signed)
		require.ErrorIs(t, err, ErrMalformed)
	})
}

func TestVerify_Garbage(t *testing.T) {
	t.Parallel()

	iss := NewIssuer(testConfig())

	for _, s := range []string{"", "abc", "a.b.c"} {
		_, err := iss.VerifyRefresh(s)
		require.ErrorIs(t, err, ErrMalformed, s)
	}
}
