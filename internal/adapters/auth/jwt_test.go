package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/chatrelay/internal/adapters/auth"
	"github.com/dkeye/chatrelay/internal/config"
	"github.com/dkeye/chatrelay/internal/domain"
)

func TestJWTVerifier(t *testing.T) {
	ctx := context.Background()
	v := auth.NewJWTVerifier(auth.JWTConfig{Secret: "secret", Audience: "authenticated"})

	token, err := v.Issue("user-1", time.Hour)
	require.NoError(t, err)
	user, err := v.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("user-1"), user)

	t.Run("expired", func(t *testing.T) {
		token, err := v.Issue("user-1", -time.Minute)
		require.NoError(t, err)
		_, err = v.Verify(ctx, token)
		assert.ErrorIs(t, err, auth.ErrExpiredToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := auth.NewJWTVerifier(auth.JWTConfig{Secret: "other", Audience: "authenticated"})
		token, err := other.Issue("user-1", time.Hour)
		require.NoError(t, err)
		_, err = v.Verify(ctx, token)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("wrong audience", func(t *testing.T) {
		other := auth.NewJWTVerifier(auth.JWTConfig{Secret: "secret", Audience: "anon"})
		token, err := other.Issue("user-1", time.Hour)
		require.NoError(t, err)
		_, err = v.Verify(ctx, token)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("no subject", func(t *testing.T) {
		token, err := v.Issue("", time.Hour)
		require.NoError(t, err)
		_, err = v.Verify(ctx, token)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("other algorithm", func(t *testing.T) {
		claims := jwt.RegisteredClaims{Subject: "user-1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
		require.NoError(t, err)
		_, err = v.Verify(ctx, token)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("garbage and empty", func(t *testing.T) {
		_, err := v.Verify(ctx, "not.a.jwt")
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
		_, err = v.Verify(ctx, "")
		assert.ErrorIs(t, err, auth.ErrMissingToken)
	})

	t.Run("canceled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := v.Verify(cctx, token)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestStaticVerifierAndFactory(t *testing.T) {
	v, err := auth.New(config.AuthConfig{Mode: "static", StaticTokens: map[string]string{"tok": "alice"}})
	require.NoError(t, err)

	user, err := v.Verify(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("alice"), user)
	_, err = v.Verify(context.Background(), "nope")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	_, err = auth.New(config.AuthConfig{Mode: "kerberos"})
	assert.Error(t, err)
	jv, err := auth.New(config.AuthConfig{Mode: "jwt", JWTSecret: "s"})
	require.NoError(t, err)
	assert.IsType(t, &auth.JWTVerifier{}, jv)
}
