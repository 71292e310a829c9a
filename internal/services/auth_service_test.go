package services

import (
	"strings"
	"testing"
	"time"

	"github.com/rxtech-lab/pooled-funds/internal/models"
	"github.com/rxtech-lab/pooled-funds/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func newTestAuthService(t *testing.T, admins ...string) (AuthService, *utils.JwtAuthenticator) {
	db := setupTestDB(t)
	authenticator := utils.NewJwtAuthenticator("test-secret", "pooled-funds")
	return NewAuthService(db, authenticator, admins, time.Minute), authenticator
}

func TestAuthServiceLogin(t *testing.T) {
	service, _ := newTestAuthService(t, testAddress.Hex())

	challenge, err := service.CreateNonce(testAddress.Hex())
	require.NoError(t, err)
	assert.Contains(t, challenge.Message, strings.ToLower(testAddress.Hex()))
	assert.Contains(t, challenge.Message, challenge.Nonce)

	signature, err := utils.PersonalSignFromHex(challenge.Message, testKeyHex)
	require.NoError(t, err)

	result, err := service.Login(testAddress.Hex(), signature)
	require.NoError(t, err)
	assert.True(t, result.IsAdmin)
	assert.NotEmpty(t, result.Token)

	user, err := service.ValidateToken(result.Token)
	require.NoError(t, err)
	assert.Equal(t, strings.ToLower(testAddress.Hex()), user.Address)
	assert.True(t, user.IsAdmin)

	t.Run("nonce is single use", func(t *testing.T) {
		_, err := service.Login(testAddress.Hex(), signature)
		assert.ErrorIs(t, err, ErrNonceNotFound)
	})
}

func TestAuthServiceRejections(t *testing.T) {
	service, authenticator := newTestAuthService(t)
	other := "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"

	t.Run("invalid address", func(t *testing.T) {
		_, err := service.CreateNonce("not-an-address")
		assert.Error(t, err)
	})

	t.Run("no nonce", func(t *testing.T) {
		_, err := service.Login(other, "0x00")
		assert.ErrorIs(t, err, ErrNonceNotFound)
	})

	t.Run("signature from another key", func(t *testing.T) {
		challenge, err := service.CreateNonce(other)
		require.NoError(t, err)
		signature, err := utils.PersonalSignFromHex(challenge.Message, testKeyHex)
		require.NoError(t, err)

		_, err = service.Login(other, signature)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("admin list is re-evaluated", func(t *testing.T) {
		token, err := authenticator.IssueToken(other, true)
		require.NoError(t, err)
		user, err := service.ValidateToken(token)
		require.NoError(t, err)
		assert.False(t, user.IsAdmin)
	})

	t.Run("expired nonce", func(t *testing.T) {
		db := setupTestDB(t)
		expired := NewAuthService(db, authenticator, nil, time.Minute)
		challenge, err := expired.CreateNonce(testAddress.Hex())
		require.NoError(t, err)
		require.NoError(t, db.Model(&models.LoginNonce{}).Where("nonce = ?", challenge.Nonce).
			Update("expires_at", time.Now().Add(-time.Second)).Error)

		signature, err := utils.PersonalSignFromHex(challenge.Message, testKeyHex)
		require.NoError(t, err)
		_, err = expired.Login(testAddress.Hex(), signature)
		assert.ErrorIs(t, err, ErrNonceNotFound)
	})
}
