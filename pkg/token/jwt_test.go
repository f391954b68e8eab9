package token_test

import (
	"testing"

	"mindpal-go/pkg/token"

	"github.com/stretchr/testify/require"
)

func TestGenerateAndVerifyToken(t *testing.T) {
	m := token.NewJWTManager("secret", 1, 7)

	tok, err := m.GenerateToken(42, "alice")
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	claims, err := m.VerifyToken(tok)
	require.NoError(t, err)
	require.Equal(t, uint(42), claims.UserID)
	require.Equal(t, "alice", claims.Username)
}

func TestVerifyTokenWrongSecret(t *testing.T) {
	m := token.NewJWTManager("secret", 1, 7)
	other := token.NewJWTManager("other-secret", 1, 7)

	tok, err := m.GenerateToken(1, "alice")
	require.NoError(t, err)

	_, err = other.VerifyToken(tok)
	require.Error(t, err)
}

func TestVerifyExpiredToken(t *testing.T) {
	// 过期时间为 0 小时，签发即过期
	m := token.NewJWTManager("secret", 0, 0)

	tok, err := m.GenerateToken(1, "alice")
	require.NoError(t, err)

	_, err = m.VerifyToken(tok)
	require.Error(t, err)
}

func TestVerifyGarbageToken(t *testing.T) {
	m := token.NewJWTManager("secret", 1, 7)

	_, err := m.VerifyToken("not.a.jwt")
	require.Error(t, err)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	m := token.NewJWTManager("secret", 1, 7)

	tok, err := m.GenerateRefreshToken(7, "bob")
	require.NoError(t, err)

	claims, err := m.VerifyToken(tok)
	require.NoError(t, err)
	require.Equal(t, uint(7), claims.UserID)
}
