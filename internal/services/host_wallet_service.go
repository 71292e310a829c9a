package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rxtech-lab/pooled-funds/internal/contracts"
	"github.com/rxtech-lab/pooled-funds/internal/models"
	"github.com/rxtech-lab/pooled-funds/internal/utils"
)

var (
	ErrDepositsClosed     = errors.New("pool is not accepting deposits")
	ErrRefundNotAvailable = errors.New("pool does not allow refunds in its current status")
	ErrNothingToClaim     = errors.New("no unclaimed winnings")
)

type DepositResult struct {
	Pool        *models.Pool
	Amount      string
	Transaction *ExecutionResult
}

type ClaimResult struct {
	Winner      common.Address
	PoolIDs     []uint64
	Transaction *ExecutionResult
}

// HostWalletService sends the participant side of the pool contract from the host wallet:
// the host joining its own pool, refunding that deposit, and pushing winnings to winners.
// Participant rows follow from the participation hook once a call is confirmed.
type HostWalletService interface {
	// Deposit approves the pool price and deposits it. With a paymaster both calls go in one batch.
	Deposit(ctx context.Context, poolRef string) (*DepositResult, error)
	SelfRefund(ctx context.Context, poolRef string) (*models.Pool, *ExecutionResult, error)
	// ClaimWinnings pays winner every listed pool, or every unclaimed pool the contract reports
	// when poolRefs is empty.
	ClaimWinnings(ctx context.Context, winner common.Address, poolRefs []string) (*ClaimResult, error)
}

type hostWalletService struct {
	pools    PoolService
	reads    PoolReadService
	executor TransactionExecutor
	cache    ReadCache
	contract common.Address
}

func NewHostWalletService(pools PoolService, reads PoolReadService, executor TransactionExecutor, cache ReadCache, contract common.Address) HostWalletService {
	return &hostWalletService{
		pools:    pools,
		reads:    reads,
		executor: executor,
		cache:    cache,
		contract: contract,
	}
}

func (s *hostWalletService) Deposit(ctx context.Context, poolRef string) (*DepositResult, error) {
	pool, err := s.onchainPool(poolRef)
	if err != nil {
		return nil, err
	}
	if pool.Status != models.PoolStatusDepositEnabled {
		return nil, fmt.Errorf("%w: pool %s is %s", ErrDepositsClosed, pool.ID, pool.Status)
	}

	amount, err := utils.ToBaseUnits(pool.Price, pool.TokenDecimals)
	if err != nil {
		return nil, fmt.Errorf("invalid pool price: %w", err)
	}
	calls := []contracts.Call{
		contracts.Approve{Token: common.HexToAddress(pool.TokenAddress), Spender: s.contract, Amount: amount},
		contracts.Deposit{Contract: s.contract, PoolID: *pool.OnchainID, Amount: amount},
	}
	tx, err := s.executor.Execute(ctx, calls, ExecuteOptions{
		Batch:    true,
		Metadata: map[string]string{"pool_id": pool.ID},
	})
	result := &DepositResult{Pool: pool, Amount: amount.String(), Transaction: tx}
	if err != nil && !errors.Is(err, ErrReconciliationGap) {
		return nil, err
	}
	InvalidatePool(s.cache, pool.ID)
	log.Printf("[HostWallet] deposited %s into pool %s (%d)", amount, pool.ID, *pool.OnchainID)
	return result, err
}

func (s *hostWalletService) SelfRefund(ctx context.Context, poolRef string) (*models.Pool, *ExecutionResult, error) {
	pool, err := s.onchainPool(poolRef)
	if err != nil {
		return nil, nil, err
	}
	// refunds are open until the pool starts, and again once it is deleted
	if pool.Status != models.PoolStatusDepositEnabled && pool.Status != models.PoolStatusDeleted {
		return nil, nil, fmt.Errorf("%w: pool %s is %s", ErrRefundNotAvailable, pool.ID, pool.Status)
	}

	call := contracts.SelfRefund{Contract: s.contract, PoolID: *pool.OnchainID}
	tx, err := s.executor.Execute(ctx, []contracts.Call{call}, ExecuteOptions{
		Batch:    true,
		Metadata: map[string]string{"pool_id": pool.ID},
	})
	if err != nil && !errors.Is(err, ErrReconciliationGap) {
		return nil, nil, err
	}
	InvalidatePool(s.cache, pool.ID)
	log.Printf("[HostWallet] refunded deposit of pool %s (%d)", pool.ID, *pool.OnchainID)
	return pool, tx, err
}

func (s *hostWalletService) ClaimWinnings(ctx context.Context, winner common.Address, poolRefs []string) (*ClaimResult, error) {
	ids, err := s.claimTargets(ctx, winner, poolRefs)
	if err != nil {
		return nil, err
	}

	var call contracts.Call
	if len(ids) == 1 {
		call = contracts.ClaimWinning{Contract: s.contract, PoolID: ids[0], Winner: winner}
	} else {
		winners := make([]common.Address, len(ids))
		for i := range winners {
			winners[i] = winner
		}
		call = contracts.ClaimWinnings{Contract: s.contract, PoolIDs: ids, Winners: winners}
	}

	tx, err := s.executor.Execute(ctx, []contracts.Call{call}, ExecuteOptions{Batch: true})
	if err != nil && !errors.Is(err, ErrReconciliationGap) {
		return nil, err
	}
	s.cache.Invalidate(CacheKeyClaimable)
	for _, id := range ids {
		if pool, lookupErr := s.pools.GetPoolByOnchainID(id); lookupErr == nil {
			InvalidatePool(s.cache, pool.ID)
		}
	}
	log.Printf("[HostWallet] claimed %d pools for %s", len(ids), winner.Hex())
	return &ClaimResult{Winner: winner, PoolIDs: ids, Transaction: tx}, err
}

func (s *hostWalletService) claimTargets(ctx context.Context, winner common.Address, poolRefs []string) ([]uint64, error) {
	if len(poolRefs) > 0 {
		ids := make([]uint64, 0, len(poolRefs))
		for _, ref := range poolRefs {
			pool, err := s.onchainPool(ref)
			if err != nil {
				return nil, err
			}
			ids = append(ids, *pool.OnchainID)
		}
		return ids, nil
	}

	claimable, err := s.reads.Claimable(ctx, winner)
	if err != nil {
		return nil, err
	}
	var ids []uint64
	for _, c := range claimable {
		if !c.Claimed {
			ids = append(ids, c.PoolID)
		}
	}
	if len(ids) == 0 {
		return nil, ErrNothingToClaim
	}
	return ids, nil
}

func (s *hostWalletService) onchainPool(poolRef string) (*models.Pool, error) {
	pool, err := s.pools.ResolvePool(poolRef)
	if err != nil {
		return nil, err
	}
	if !pool.IsOnchain() {
		return nil, ErrPoolNotOnchain
	}
	return pool, nil
}
