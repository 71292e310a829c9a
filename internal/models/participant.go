package models

import "time"

type ParticipantStatus string

const (
	ParticipantStatusJoined    ParticipantStatus = "joined"
	ParticipantStatusCheckedIn ParticipantStatus = "checked_in"
	ParticipantStatusRefunded  ParticipantStatus = "refunded"
)

// Participant is a wallet registered for a pool after its deposit was verified on-chain.
type Participant struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	PoolID      string            `gorm:"not null;type:varchar(36);uniqueIndex:idx_pool_participant" json:"pool_id"`
	Address     string            `gorm:"not null;type:varchar(42);uniqueIndex:idx_pool_participant" json:"address"`
	Status      ParticipantStatus `gorm:"not null;default:joined" json:"status"`
	CheckedInAt *time.Time        `json:"checked_in_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// SavedPayout is a proposed winner amount persisted between admin sessions.
// Amount is an integer string in the token's base units.
type SavedPayout struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PoolID    string    `gorm:"not null;type:varchar(36);uniqueIndex:idx_pool_payout" json:"pool_id"`
	Address   string    `gorm:"not null;type:varchar(42);uniqueIndex:idx_pool_payout" json:"address"`
	Amount    string    `gorm:"not null" json:"amount"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User carries display data for a wallet address.
type User struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Address     string    `gorm:"not null;type:varchar(42);uniqueIndex" json:"address"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// LoginNonce is a single-use challenge for wallet sign-in.
type LoginNonce struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Address   string    `gorm:"not null;type:varchar(42);index" json:"address"`
	Nonce     string    `gorm:"not null;uniqueIndex" json:"nonce"`
	Used      bool      `gorm:"default:false" json:"used"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
