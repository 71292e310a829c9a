package models

import "time"

// Pool is a time-boxed group prize event. A row starts as an off-chain draft and
// receives its OnchainID once the creation transaction is confirmed.
type Pool struct {
	ID        string  `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OnchainID *uint64 `gorm:"uniqueIndex" json:"onchain_id,omitempty"`
	ChainID   uint    `gorm:"not null;index" json:"chain_id"`

	Name        string `gorm:"not null" json:"name"`
	Description string `gorm:"type:text;not null" json:"description"`
	BannerImage string `gorm:"not null" json:"banner_image"`
	// Price is the entry price in whole token units, e.g. "10" or "2.5"
	Price         string    `gorm:"not null" json:"price"`
	TokenDecimals uint8     `gorm:"default:18" json:"token_decimals"`
	SoftCap       uint      `gorm:"not null" json:"soft_cap"`
	StartTime     time.Time `gorm:"not null" json:"start_time"`
	EndTime       time.Time `gorm:"not null" json:"end_time"`

	TermsURL           string `json:"terms_url,omitempty"`
	RequiredAcceptance bool   `gorm:"default:false" json:"required_acceptance"`

	Status         PoolStatus `gorm:"not null;index;default:draft" json:"status"`
	TokenAddress   string     `gorm:"not null" json:"token_address"`
	HostAddress    string     `gorm:"not null;index" json:"host_address"`
	CreationTxHash string     `json:"creation_tx_hash,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsOnchain reports whether the creation transaction has been confirmed.
func (p *Pool) IsOnchain() bool {
	return p.OnchainID != nil
}
