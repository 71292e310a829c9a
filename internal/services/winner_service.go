package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rxtech-lab/pooled-funds/internal/contracts"
	"github.com/rxtech-lab/pooled-funds/internal/models"
)

var ErrNoProposedPayouts = errors.New("no proposed payouts for pool")

type WinnersResult struct {
	Pool        *models.Pool
	Payouts     []ProposedPayout
	Transaction *ExecutionResult
}

type WinnerService interface {
	// Propose adds or replaces a payout and persists it
	Propose(poolRef, address string, amount *big.Int) (*ProposedPayout, error)
	Proposed(poolRef string) ([]ProposedPayout, error)
	// SubmitWinners sends the proposed payouts in one transaction. The submitted
	// proposals are cleared only once the call is confirmed.
	SubmitWinners(ctx context.Context, poolRef string) (*WinnersResult, error)
}

type winnerService struct {
	pools    PoolService
	payouts  PayoutService
	executor TransactionExecutor
	cache    ReadCache
	contract common.Address
}

func NewWinnerService(pools PoolService, payouts PayoutService, executor TransactionExecutor, cache ReadCache, contract common.Address) WinnerService {
	return &winnerService{
		pools:    pools,
		payouts:  payouts,
		executor: executor,
		cache:    cache,
		contract: contract,
	}
}

func (s *winnerService) Propose(poolRef, address string, amount *big.Int) (*ProposedPayout, error) {
	pool, err := s.pools.ResolvePool(poolRef)
	if err != nil {
		return nil, err
	}
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid winner address: %s", address)
	}
	saved, err := s.payouts.SavePayout(pool.ID, address, amount)
	if err != nil {
		return nil, err
	}
	return &ProposedPayout{Address: saved.Address, Amount: new(big.Int).Set(amount)}, nil
}

func (s *winnerService) Proposed(poolRef string) ([]ProposedPayout, error) {
	pool, err := s.pools.ResolvePool(poolRef)
	if err != nil {
		return nil, err
	}
	return s.proposedFor(pool.ID)
}

// proposedFor reads the saved payouts, which every proposal is written to first.
func (s *winnerService) proposedFor(poolID string) ([]ProposedPayout, error) {
	return s.payouts.LoadProposed(poolID)
}

// winnersCall uses setWinner for a single payout and setWinners otherwise.
func (s *winnerService) winnersCall(onchainID uint64, payouts []ProposedPayout) contracts.Call {
	if len(payouts) == 1 {
		return contracts.SetWinner{
			Contract: s.contract,
			PoolID:   onchainID,
			Winner:   common.HexToAddress(payouts[0].Address),
			Amount:   payouts[0].Amount,
		}
	}

	call := contracts.SetWinners{
		Contract: s.contract,
		PoolID:   onchainID,
		Winners:  make([]common.Address, len(payouts)),
		Amounts:  make([]*big.Int, len(payouts)),
	}
	for i, p := range payouts {
		call.Winners[i] = common.HexToAddress(p.Address)
		call.Amounts[i] = p.Amount
	}
	return call
}

func (s *winnerService) SubmitWinners(ctx context.Context, poolRef string) (*WinnersResult, error) {
	pool, err := s.pools.ResolvePool(poolRef)
	if err != nil {
		return nil, err
	}
	if !pool.IsOnchain() {
		return nil, ErrPoolNotOnchain
	}
	if pool.Status == models.PoolStatusDeleted {
		return nil, fmt.Errorf("pool %s is deleted", pool.ID)
	}

	payouts, err := s.proposedFor(pool.ID)
	if err != nil {
		return nil, err
	}
	if len(payouts) == 0 {
		return nil, ErrNoProposedPayouts
	}

	call := s.winnersCall(*pool.OnchainID, payouts)

	var clearErr error
	tx, err := s.executor.Execute(ctx, []contracts.Call{call}, ExecuteOptions{
		Batch:    true,
		Metadata: map[string]string{"pool_id": pool.ID},
		OnSuccess: func(*ExecutionResult) {
			clearErr = s.payouts.ClearSubmitted(pool.ID, payouts)
			InvalidatePool(s.cache, pool.ID)
		},
	})
	result := &WinnersResult{Pool: pool, Payouts: payouts, Transaction: tx}
	if err != nil && !errors.Is(err, ErrReconciliationGap) {
		log.Printf("[Winners] setWinners for pool %s failed, keeping %d proposed payouts: %v", pool.ID, len(payouts), err)
		return result, err
	}

	if clearErr != nil {
		gap := fmt.Errorf("%w: %w", ErrReconciliationGap, clearErr)
		if err != nil {
			gap = fmt.Errorf("%w: %w", err, clearErr)
		}
		err = gap
	}
	if err != nil {
		log.Printf("[Winners] winners of pool %s are set on-chain but follow-up writes failed: %v", pool.ID, err)
		issue := &models.ReconciliationIssue{
			PoolID:  pool.ID,
			Kind:    models.ReconciliationWinnersSet,
			Error:   err.Error(),
			Details: models.JSON{"winners": len(payouts)},
		}
		if tx != nil {
			issue.TxHash = tx.Record.LastHash()
		}
		if recErr := s.pools.RecordIssue(issue); recErr != nil {
			log.Printf("[Winners] failed to record reconciliation issue for pool %s: %v", pool.ID, recErr)
		}
		return result, err
	}

	log.Printf("[Winners] set %d winners for pool %s", len(payouts), pool.ID)
	return result, nil
}
