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

var ErrNotPoolHost = errors.New("signer is not the pool host")

type LifecycleAction string

const (
	ActionEnableDeposit LifecycleAction = "enable_deposit"
	ActionStart         LifecycleAction = "start"
	ActionEnd           LifecycleAction = "end"
	ActionDelete        LifecycleAction = "delete"
)

// Target returns the off-chain status an action moves a pool to.
func (a LifecycleAction) Target() (models.PoolStatus, error) {
	switch a {
	case ActionEnableDeposit:
		return models.PoolStatusDepositEnabled, nil
	case ActionStart:
		return models.PoolStatusStarted, nil
	case ActionEnd:
		return models.PoolStatusEnded, nil
	case ActionDelete:
		return models.PoolStatusDeleted, nil
	default:
		return "", fmt.Errorf("unknown lifecycle action %q", a)
	}
}

type LifecycleService interface {
	EnableDeposit(ctx context.Context, poolRef string) (*models.Pool, error)
	Start(ctx context.Context, poolRef string) (*models.Pool, error)
	End(ctx context.Context, poolRef string) (*models.Pool, error)
	Delete(ctx context.Context, poolRef string) (*models.Pool, error)
	Advance(ctx context.Context, poolRef string, action LifecycleAction) (*models.Pool, error)
}

type lifecycleService struct {
	pools    PoolService
	executor TransactionExecutor
	cache    ReadCache
	contract common.Address
}

func NewLifecycleService(pools PoolService, executor TransactionExecutor, cache ReadCache, contract common.Address) LifecycleService {
	return &lifecycleService{pools: pools, executor: executor, cache: cache, contract: contract}
}

func (s *lifecycleService) EnableDeposit(ctx context.Context, poolRef string) (*models.Pool, error) {
	return s.Advance(ctx, poolRef, ActionEnableDeposit)
}

func (s *lifecycleService) Start(ctx context.Context, poolRef string) (*models.Pool, error) {
	return s.Advance(ctx, poolRef, ActionStart)
}

func (s *lifecycleService) End(ctx context.Context, poolRef string) (*models.Pool, error) {
	return s.Advance(ctx, poolRef, ActionEnd)
}

func (s *lifecycleService) Delete(ctx context.Context, poolRef string) (*models.Pool, error) {
	return s.Advance(ctx, poolRef, ActionDelete)
}

func (s *lifecycleService) Advance(ctx context.Context, poolRef string, action LifecycleAction) (*models.Pool, error) {
	target, err := action.Target()
	if err != nil {
		return nil, err
	}

	pool, err := s.pools.ResolvePool(poolRef)
	if err != nil {
		return nil, err
	}
	if !pool.IsOnchain() {
		return nil, ErrPoolNotOnchain
	}
	if !utils.SameAddress(pool.HostAddress, s.executor.Address().Hex()) {
		return nil, ErrNotPoolHost
	}
	if err := models.ValidateTransition(pool.Status, target); err != nil {
		return nil, err
	}

	call := s.callFor(action, *pool.OnchainID)
	result, err := s.executor.Execute(ctx, []contracts.Call{call}, ExecuteOptions{
		Batch:    true,
		Metadata: map[string]string{"pool_id": pool.ID},
	})
	if err != nil && !errors.Is(err, ErrReconciliationGap) {
		return nil, err
	}
	hookErr := err

	if err := s.pools.UpdateStatus(pool.ID, target); err != nil {
		gap := fmt.Errorf("%w: %w", ErrReconciliationGap, err)
		log.Printf("[Lifecycle] pool %s is %s on-chain but the database was not updated: %v", pool.ID, target, err)
		s.recordGap(pool, target, result, gap)
		return pool, gap
	}
	InvalidatePool(s.cache, pool.ID)
	log.Printf("[Lifecycle] pool %s (%d) is now %s", pool.ID, *pool.OnchainID, target)

	updated, err := s.pools.GetPool(pool.ID)
	if err != nil {
		return nil, err
	}
	if hookErr != nil {
		s.recordGap(updated, target, result, hookErr)
		return updated, hookErr
	}
	return updated, nil
}

func (s *lifecycleService) callFor(action LifecycleAction, onchainID uint64) contracts.Call {
	switch action {
	case ActionEnableDeposit:
		return contracts.EnableDeposit{Contract: s.contract, PoolID: onchainID}
	case ActionStart:
		return contracts.StartPool{Contract: s.contract, PoolID: onchainID}
	case ActionEnd:
		return contracts.EndPool{Contract: s.contract, PoolID: onchainID}
	default:
		return contracts.DeletePool{Contract: s.contract, PoolID: onchainID}
	}
}

func (s *lifecycleService) recordGap(pool *models.Pool, target models.PoolStatus, result *ExecutionResult, gap error) {
	issue := &models.ReconciliationIssue{
		PoolID:  pool.ID,
		Kind:    models.ReconciliationPoolStatus,
		Error:   gap.Error(),
		Details: models.JSON{"status": string(target)},
	}
	if result != nil {
		issue.TxHash = result.Record.LastHash()
	}
	if err := s.pools.RecordIssue(issue); err != nil {
		log.Printf("[Lifecycle] failed to record reconciliation issue for pool %s: %v", pool.ID, err)
	}
}
