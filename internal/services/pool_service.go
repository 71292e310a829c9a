package services

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rxtech-lab/pooled-funds/internal/models"
	"gorm.io/gorm"
)

var (
	ErrPoolNotFound   = errors.New("pool not found")
	ErrPoolNotOnchain = errors.New("pool has not been created on-chain")
	ErrPoolConfirmed  = errors.New("pool creation already confirmed")
)

// ListPoolsFilter narrows ListPools. Zero values match everything.
type ListPoolsFilter struct {
	Status      models.PoolStatus
	HostAddress string
	// IncludeDrafts returns draft and unconfirmed rows as well
	IncludeDrafts bool
	Limit         int
}

type PoolService interface {
	CreateDraft(pool *models.Pool) error
	GetPool(id string) (*models.Pool, error)
	GetPoolByOnchainID(onchainID uint64) (*models.Pool, error)
	// ResolvePool accepts a draft id or a decimal on-chain id
	ResolvePool(ref string) (*models.Pool, error)
	ListPools(filter ListPoolsFilter) ([]models.Pool, error)
	// ListSyncablePools returns non-terminal pools that exist on-chain
	ListSyncablePools() ([]models.Pool, error)

	MarkUnconfirmed(id string, txHash string) error
	MarkConfirmed(id string, onchainID uint64, txHash string) error
	RollbackToDraft(id string) error
	UpdateStatus(id string, to models.PoolStatus) error
	// MirrorStatus writes an on-chain derived status without the one-step edge check
	MirrorStatus(id string, to models.PoolStatus) error
	DeleteDraft(id string) error

	RecordIssue(issue *models.ReconciliationIssue) error
	ListIssues(unresolvedOnly bool) ([]models.ReconciliationIssue, error)
	ResolveIssues(poolID string, kind models.ReconciliationKind) error
}

type poolService struct {
	db *gorm.DB
}

func NewPoolService(db *gorm.DB) PoolService {
	return &poolService{db: db}
}

func (s *poolService) CreateDraft(pool *models.Pool) error {
	if pool.ID == "" {
		pool.ID = uuid.New().String()
	}
	pool.Status = models.PoolStatusDraft
	pool.OnchainID = nil
	pool.HostAddress = strings.ToLower(pool.HostAddress)
	if err := s.db.Create(pool).Error; err != nil {
		return fmt.Errorf("failed to create draft pool: %w", err)
	}
	return nil
}

func (s *poolService) GetPool(id string) (*models.Pool, error) {
	var pool models.Pool
	err := s.db.Where("id = ?", id).First(&pool).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPoolNotFound
	}
	if err != nil {
		return nil, err
	}
	return &pool, nil
}

func (s *poolService) GetPoolByOnchainID(onchainID uint64) (*models.Pool, error) {
	var pool models.Pool
	err := s.db.Where("onchain_id = ?", onchainID).First(&pool).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPoolNotFound
	}
	if err != nil {
		return nil, err
	}
	return &pool, nil
}

func (s *poolService) ResolvePool(ref string) (*models.Pool, error) {
	if onchainID, err := strconv.ParseUint(ref, 10, 64); err == nil {
		return s.GetPoolByOnchainID(onchainID)
	}
	if _, err := uuid.Parse(ref); err != nil {
		return nil, ErrPoolNotFound
	}
	return s.GetPool(ref)
}

func (s *poolService) ListPools(filter ListPoolsFilter) ([]models.Pool, error) {
	query := s.db.Model(&models.Pool{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	} else if !filter.IncludeDrafts {
		query = query.Where("status NOT IN ?", []models.PoolStatus{models.PoolStatusDraft, models.PoolStatusUnconfirmed})
	}
	if filter.HostAddress != "" {
		query = query.Where("host_address = ?", strings.ToLower(filter.HostAddress))
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var pools []models.Pool
	err := query.Order("start_time DESC").Find(&pools).Error
	return pools, err
}

func (s *poolService) ListSyncablePools() ([]models.Pool, error) {
	var pools []models.Pool
	err := s.db.
		Where("onchain_id IS NOT NULL").
		Where("status NOT IN ?", []models.PoolStatus{models.PoolStatusEnded, models.PoolStatusDeleted}).
		Find(&pools).Error
	return pools, err
}

func (s *poolService) MarkUnconfirmed(id string, txHash string) error {
	pool, err := s.GetPool(id)
	if err != nil {
		return err
	}
	// a replacement transaction only moves the tracked hash
	if pool.Status == models.PoolStatusUnconfirmed {
		return s.db.Model(&models.Pool{}).
			Where("id = ? AND status = ?", id, models.PoolStatusUnconfirmed).
			Update("creation_tx_hash", txHash).Error
	}
	return s.transition(id, models.PoolStatusUnconfirmed, map[string]interface{}{
		"creation_tx_hash": txHash,
	})
}

func (s *poolService) MarkConfirmed(id string, onchainID uint64, txHash string) error {
	updates := map[string]interface{}{"onchain_id": onchainID}
	if txHash != "" {
		updates["creation_tx_hash"] = txHash
	}
	return s.transition(id, models.PoolStatusInactive, updates)
}

func (s *poolService) RollbackToDraft(id string) error {
	return s.transition(id, models.PoolStatusDraft, nil)
}

func (s *poolService) UpdateStatus(id string, to models.PoolStatus) error {
	return s.transition(id, to, nil)
}

func (s *poolService) MirrorStatus(id string, to models.PoolStatus) error {
	if !to.Valid() {
		return fmt.Errorf("invalid pool status %q", to)
	}
	result := s.db.Model(&models.Pool{}).Where("id = ?", id).Update("status", to)
	if result.Error != nil {
		return fmt.Errorf("failed to update pool status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrPoolNotFound
	}
	return nil
}

// transition applies a state machine edge. The update is conditional on the status read,
// so two writers racing on the same pool cannot both succeed.
func (s *poolService) transition(id string, to models.PoolStatus, extra map[string]interface{}) error {
	pool, err := s.GetPool(id)
	if err != nil {
		return err
	}
	if pool.Status == to {
		return nil
	}
	if err := models.ValidateTransition(pool.Status, to); err != nil {
		return err
	}

	updates := map[string]interface{}{"status": to}
	for k, v := range extra {
		updates[k] = v
	}
	result := s.db.Model(&models.Pool{}).
		Where("id = ? AND status = ?", id, pool.Status).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update pool status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("pool %s changed status concurrently", id)
	}
	return nil
}

func (s *poolService) DeleteDraft(id string) error {
	pool, err := s.GetPool(id)
	if err != nil {
		return err
	}
	if pool.IsOnchain() {
		return ErrPoolConfirmed
	}
	if pool.Status != models.PoolStatusDraft && pool.Status != models.PoolStatusUnconfirmed {
		return fmt.Errorf("cannot delete pool in status %s", pool.Status)
	}
	return s.db.Delete(&models.Pool{}, "id = ?", id).Error
}

func (s *poolService) RecordIssue(issue *models.ReconciliationIssue) error {
	if err := s.db.Create(issue).Error; err != nil {
		return fmt.Errorf("failed to record reconciliation issue: %w", err)
	}
	return nil
}

func (s *poolService) ListIssues(unresolvedOnly bool) ([]models.ReconciliationIssue, error) {
	query := s.db.Model(&models.ReconciliationIssue{})
	if unresolvedOnly {
		query = query.Where("resolved = ?", false)
	}
	var issues []models.ReconciliationIssue
	err := query.Order("id ASC").Find(&issues).Error
	return issues, err
}

func (s *poolService) ResolveIssues(poolID string, kind models.ReconciliationKind) error {
	return s.db.Model(&models.ReconciliationIssue{}).
		Where("pool_id = ? AND kind = ? AND resolved = ?", poolID, kind, false).
		Update("resolved", true).Error
}
