package services

import (
	"testing"

	"github.com/rxtech-lab/pooled-funds/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParticipantService(t *testing.T) {
	db := setupTestDB(t)
	service := NewParticipantService(db)
	pool := createOnchainPool(t, db, 1, models.PoolStatusDepositEnabled)
	address := "0xAbC0000000000000000000000000000000000001"

	t.Run("join", func(t *testing.T) {
		participant, err := service.Join(pool.ID, address)
		require.NoError(t, err)
		assert.Equal(t, models.ParticipantStatusJoined, participant.Status)
		assert.Equal(t, "0xabc0000000000000000000000000000000000001", participant.Address)
	})

	t.Run("check in", func(t *testing.T) {
		participant, err := service.CheckIn(pool.ID, address)
		require.NoError(t, err)
		assert.Equal(t, models.ParticipantStatusCheckedIn, participant.Status)
		assert.NotNil(t, participant.CheckedInAt)

		_, err = service.CheckIn(pool.ID, address)
		assert.ErrorIs(t, err, ErrAlreadyCheckedIn)
	})

	t.Run("repeated join keeps check in", func(t *testing.T) {
		participant, err := service.Join(pool.ID, address)
		require.NoError(t, err)
		assert.Equal(t, models.ParticipantStatusCheckedIn, participant.Status)
	})

	t.Run("refund and rejoin", func(t *testing.T) {
		participant, err := service.MarkRefunded(pool.ID, address)
		require.NoError(t, err)
		assert.Equal(t, models.ParticipantStatusRefunded, participant.Status)

		_, err = service.CheckIn(pool.ID, address)
		assert.ErrorIs(t, err, ErrParticipantRefunded)

		participant, err = service.Join(pool.ID, address)
		require.NoError(t, err)
		assert.Equal(t, models.ParticipantStatusJoined, participant.Status)
	})

	t.Run("unknown participant", func(t *testing.T) {
		_, err := service.CheckIn(pool.ID, "0x0000000000000000000000000000000000000009")
		assert.ErrorIs(t, err, ErrParticipantNotFound)
		_, err = service.MarkRefunded(pool.ID, "0x0000000000000000000000000000000000000009")
		assert.ErrorIs(t, err, ErrParticipantNotFound)
	})

	t.Run("list joins display data", func(t *testing.T) {
		require.NoError(t, db.Create(&models.User{Address: "0xabc0000000000000000000000000000000000001", DisplayName: "Alice"}).Error)
		_, err := service.Join(pool.ID, "0x0000000000000000000000000000000000000002")
		require.NoError(t, err)

		views, err := service.ListParticipants(pool.ID)
		require.NoError(t, err)
		require.Len(t, views, 2)
		assert.Equal(t, "Alice", views[0].DisplayName)
		assert.Empty(t, views[1].DisplayName)
	})
}
