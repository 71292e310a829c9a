package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJwtAuthenticator(t *testing.T) {
	auth := NewJwtAuthenticator("test-secret", "pooled-funds")
	address := "0xF39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

	t.Run("issue and validate", func(t *testing.T) {
		token, err := auth.IssueToken(address, true)
		require.NoError(t, err)

		user, err := auth.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266", user.Address)
		assert.True(t, user.IsAdmin)
		assert.WithinDuration(t, time.Now().Add(24*time.Hour), user.ExpiresAt, time.Minute)
	})

	t.Run("rejects other secret", func(t *testing.T) {
		token, err := NewJwtAuthenticator("other-secret", "pooled-funds").IssueToken(address, false)
		require.NoError(t, err)

		_, err = auth.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("rejects other issuer", func(t *testing.T) {
		token, err := NewJwtAuthenticator("test-secret", "someone-else").IssueToken(address, false)
		require.NoError(t, err)

		_, err = auth.ValidateToken(token)
		assert.ErrorContains(t, err, "issuer")
	})

	t.Run("rejects expired token", func(t *testing.T) {
		short := NewJwtAuthenticator("test-secret", "pooled-funds")
		short.SetTTL(-time.Minute)
		token, err := short.IssueToken(address, false)
		require.NoError(t, err)

		_, err = auth.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("rejects none algorithm", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: address})
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = auth.ValidateToken(signed)
		assert.Error(t, err)
	})

	t.Run("missing secret", func(t *testing.T) {
		_, err := NewJwtAuthenticator("", "").IssueToken(address, false)
		assert.ErrorContains(t, err, "JWT secret not configured")
	})
}
