package services

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/rxtech-lab/pooled-funds/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrPayoutNotFound = errors.New("saved payout not found")

// PayoutService persists proposed payouts so they survive between admin sessions.
// Every write is mirrored into the in-memory ProposedPayouts store.
type PayoutService interface {
	SavePayout(poolID, address string, amount *big.Int) (*models.SavedPayout, error)
	DeletePayout(poolID, address string) error
	ListSavedPayouts(poolID string) ([]models.SavedPayout, error)
	// ClearSubmitted removes the given payouts whose saved amount still matches.
	// Payouts saved or changed after the submission are kept.
	ClearSubmitted(poolID string, submitted []ProposedPayout) error
	// LoadProposed seeds the proposed store from saved rows, replacing what it held
	LoadProposed(poolID string) ([]ProposedPayout, error)
}

type payoutService struct {
	db       *gorm.DB
	proposed *ProposedPayouts
}

func NewPayoutService(db *gorm.DB, proposed *ProposedPayouts) PayoutService {
	return &payoutService{db: db, proposed: proposed}
}

func (s *payoutService) SavePayout(poolID, address string, amount *big.Int) (*models.SavedPayout, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, errors.New("payout amount must be positive")
	}

	payout := &models.SavedPayout{
		PoolID:  poolID,
		Address: strings.ToLower(address),
		Amount:  amount.String(),
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "pool_id"}, {Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_at"}),
	}).Create(payout).Error
	if err != nil {
		return nil, fmt.Errorf("failed to save payout: %w", err)
	}

	// saved rows are the source of truth; another instance or a restart may have
	// left the store behind the table
	if _, err := s.LoadProposed(poolID); err != nil {
		return nil, err
	}
	return payout, nil
}

func (s *payoutService) DeletePayout(poolID, address string) error {
	result := s.db.Where("pool_id = ? AND address = ?", poolID, strings.ToLower(address)).Delete(&models.SavedPayout{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete payout: %w", result.Error)
	}
	s.proposed.Remove(poolID, address)
	if result.RowsAffected == 0 {
		return ErrPayoutNotFound
	}
	return nil
}

func (s *payoutService) ListSavedPayouts(poolID string) ([]models.SavedPayout, error) {
	var payouts []models.SavedPayout
	err := s.db.Where("pool_id = ?", poolID).Order("id ASC").Find(&payouts).Error
	return payouts, err
}

func (s *payoutService) ClearSubmitted(poolID string, submitted []ProposedPayout) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		for _, payout := range submitted {
			err := tx.Where("pool_id = ? AND address = ? AND amount = ?", poolID, strings.ToLower(payout.Address), payout.Amount.String()).
				Delete(&models.SavedPayout{}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to clear submitted payouts: %w", err)
	}

	for _, payout := range submitted {
		s.proposed.RemoveMatching(poolID, payout.Address, payout.Amount)
	}
	return nil
}

func (s *payoutService) LoadProposed(poolID string) ([]ProposedPayout, error) {
	saved, err := s.ListSavedPayouts(poolID)
	if err != nil {
		return nil, err
	}

	s.proposed.Clear(poolID)
	for _, payout := range saved {
		amount, ok := new(big.Int).SetString(payout.Amount, 10)
		if !ok {
			return nil, fmt.Errorf("saved payout %d has invalid amount %q", payout.ID, payout.Amount)
		}
		s.proposed.Put(poolID, payout.Address, amount)
	}
	return s.proposed.List(poolID), nil
}
