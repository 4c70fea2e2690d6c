package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)

	token, err := m.GenerateToken(7, "admin")
	require.NoError(t, err)

	claims, err := m.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "admin", claims.Role)
}

func TestTokenWrongSecret(t *testing.T) {
	token, err := NewTokenManager("secret", time.Hour).GenerateToken(1, "operator")
	require.NoError(t, err)

	_, err = NewTokenManager("other", time.Hour).ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenExpired(t *testing.T) {
	m := NewTokenManager("secret", time.Minute)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := m.GenerateToken(1, "operator")
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenRevoke(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	token, err := m.GenerateToken(1, "operator")
	require.NoError(t, err)

	m.Revoke(token)
	assert.True(t, m.IsRevoked(token))
	_, err = m.ParseToken(token)
	assert.ErrorIs(t, err, ErrRevokedToken)
}
