package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rxtech-lab/pooled-funds/internal/contracts"
	"github.com/rxtech-lab/pooled-funds/internal/models"
)

// PoolDetail combines the stored pool with its on-chain state when it has one.
type PoolDetail struct {
	models.Pool
	Onchain *contracts.PoolInfo `json:"onchain,omitempty"`
}

// PoolReadService serves on-chain reads through the read cache.
type PoolReadService interface {
	Detail(ctx context.Context, pool *models.Pool) (*PoolDetail, error)
	Winners(ctx context.Context, pool *models.Pool) ([]contracts.WinnerDetail, error)
	Claimable(ctx context.Context, address common.Address) ([]contracts.ClaimablePool, error)
	IsParticipant(ctx context.Context, pool *models.Pool, address common.Address) (bool, error)
}

type poolReadService struct {
	reader contracts.PoolReader
	cache  ReadCache
}

func NewPoolReadService(reader contracts.PoolReader, cache ReadCache) PoolReadService {
	return &poolReadService{reader: reader, cache: cache}
}

func (s *poolReadService) Detail(ctx context.Context, pool *models.Pool) (*PoolDetail, error) {
	detail := &PoolDetail{Pool: *pool}
	if !pool.IsOnchain() {
		return detail, nil
	}

	key := CacheKeyPoolDetail + pool.ID
	if cached, ok := s.cache.Get(key); ok {
		detail.Onchain = cached.(*contracts.PoolInfo)
		return detail, nil
	}

	info, err := s.reader.GetAllPoolInfo(ctx, *pool.OnchainID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, info)
	detail.Onchain = info
	return detail, nil
}

func (s *poolReadService) Winners(ctx context.Context, pool *models.Pool) ([]contracts.WinnerDetail, error) {
	if !pool.IsOnchain() {
		return nil, ErrPoolNotOnchain
	}

	key := CacheKeyWinners + pool.ID
	if cached, ok := s.cache.Get(key); ok {
		return cached.([]contracts.WinnerDetail), nil
	}

	winners, err := s.reader.GetWinnersDetails(ctx, *pool.OnchainID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, winners)
	return winners, nil
}

func (s *poolReadService) Claimable(ctx context.Context, address common.Address) ([]contracts.ClaimablePool, error) {
	key := CacheKeyClaimable + strings.ToLower(address.Hex())
	if cached, ok := s.cache.Get(key); ok {
		return cached.([]contracts.ClaimablePool), nil
	}

	pools, err := s.reader.GetClaimablePools(ctx, address)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, pools)
	return pools, nil
}

// IsParticipant always reads the chain; it gates writes and must not be stale.
func (s *poolReadService) IsParticipant(ctx context.Context, pool *models.Pool, address common.Address) (bool, error) {
	if !pool.IsOnchain() {
		return false, ErrPoolNotOnchain
	}
	ok, err := s.reader.IsParticipant(ctx, address, *pool.OnchainID)
	if err != nil {
		return false, fmt.Errorf("failed to verify participation: %w", err)
	}
	return ok, nil
}
