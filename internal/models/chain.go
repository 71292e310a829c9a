package models

import (
	"time"

	"gorm.io/gorm"
)

// Chain holds the RPC endpoint and pool contract deployed on one EVM network.
type Chain struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Name      string `gorm:"not null" json:"name"`
	RPC       string `gorm:"not null" json:"rpc"`
	NetworkID string `gorm:"column:chain_id;uniqueIndex" json:"chain_id"` // e.g. "8453" for Base
	// PoolContract is the address of the pool escrow contract on this network
	PoolContract string `gorm:"not null" json:"pool_contract"`
	// PaymasterURL enables batched, sponsored submission when set
	PaymasterURL string         `json:"paymaster_url,omitempty"`
	IsActive     bool           `gorm:"default:false" json:"is_active"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}
