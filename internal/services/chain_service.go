package services

import (
	"errors"
	"fmt"

	"github.com/rxtech-lab/pooled-funds/internal/models"
	"gorm.io/gorm"
)

// ChainService handles chain-related operations
type ChainService interface {
	// UpsertChain creates the chain or updates the row with the same network id
	UpsertChain(chain *models.Chain) error
	GetActiveChain() (*models.Chain, error)
	SetActiveChainByID(chainID uint) error
	ListChains() ([]models.Chain, error)
}

type chainService struct {
	db *gorm.DB
}

// NewChainService creates a new ChainService
func NewChainService(db *gorm.DB) ChainService {
	return &chainService{db: db}
}

func (s *chainService) UpsertChain(chain *models.Chain) error {
	var existing models.Chain
	err := s.db.Where("chain_id = ?", chain.NetworkID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.db.Create(chain).Error
	}
	if err != nil {
		return fmt.Errorf("failed to look up chain %s: %w", chain.NetworkID, err)
	}

	chain.ID = existing.ID
	chain.CreatedAt = existing.CreatedAt
	return s.db.Save(chain).Error
}

// GetActiveChain returns the currently active chain
func (s *chainService) GetActiveChain() (*models.Chain, error) {
	var chain models.Chain
	err := s.db.Where("is_active = ?", true).First(&chain).Error
	if err != nil {
		return nil, err
	}
	return &chain, nil
}

// SetActiveChainByID makes the chain with row id the only active one
func (s *chainService) SetActiveChainByID(chainID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Chain{}).Where("is_active = ?", true).Update("is_active", false).Error; err != nil {
			return err
		}
		result := tx.Model(&models.Chain{}).Where("id = ?", chainID).Update("is_active", true)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// ListChains returns all chains
func (s *chainService) ListChains() ([]models.Chain, error) {
	var chains []models.Chain
	err := s.db.Find(&chains).Error
	return chains, err
}
