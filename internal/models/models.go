package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// JSON stores free-form details in a text column.
type JSON map[string]interface{}

func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSON) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*j = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("type assertion to []byte failed")
	}

	if len(raw) == 0 {
		*j = nil
		return nil
	}
	return json.Unmarshal(raw, j)
}

// ReconciliationKind names the off-chain write that failed after an on-chain success.
type ReconciliationKind string

const (
	ReconciliationPoolCreated   ReconciliationKind = "pool_created"
	ReconciliationPoolStatus    ReconciliationKind = "pool_status"
	ReconciliationWinnersSet    ReconciliationKind = "winners_set"
	ReconciliationParticipation ReconciliationKind = "participation"
)

// ReconciliationIssue records an on-chain action whose follow-up database write failed.
// The pool sync job resolves pool_status rows once chain and database agree again;
// other kinds are left for an admin.
type ReconciliationIssue struct {
	ID        uint               `gorm:"primaryKey" json:"id"`
	PoolID    string             `gorm:"index" json:"pool_id"`
	Kind      ReconciliationKind `gorm:"not null" json:"kind"`
	TxHash    string             `json:"tx_hash"`
	Error     string             `gorm:"type:text" json:"error"`
	Details   JSON               `gorm:"type:text" json:"details"`
	Resolved  bool               `gorm:"default:false" json:"resolved"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}
