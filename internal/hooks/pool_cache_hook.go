package hooks

import (
	"context"

	"github.com/rxtech-lab/pooled-funds/internal/contracts"
	"github.com/rxtech-lab/pooled-funds/internal/models"
	"github.com/rxtech-lab/pooled-funds/internal/services"
)

// PoolCacheHook drops cached reads of a pool once a transaction touching it is confirmed.
type PoolCacheHook struct {
	pools services.PoolService
	cache services.ReadCache
}

// CanHandle implements Hook.
func (h *PoolCacheHook) CanHandle(txType models.TransactionType) bool {
	switch txType {
	case models.TransactionTypeApprove, models.TransactionTypeRegular:
		return false
	default:
		return true
	}
}

// OnTransactionConfirmed implements Hook.
func (h *PoolCacheHook) OnTransactionConfirmed(ctx context.Context, tx services.ConfirmedTransaction) error {
	if poolID := tx.Metadata["pool_id"]; poolID != "" {
		services.InvalidatePool(h.cache, poolID)
		return nil
	}

	onchainID, ok := onchainPoolID(tx.Call)
	if !ok {
		// claims and creations without a draft id can touch any pool
		h.cache.Invalidate(services.CacheKeyPools, services.CacheKeyClaimable)
		return nil
	}
	pool, err := h.pools.GetPoolByOnchainID(onchainID)
	if err != nil {
		// the pool may not be tracked off-chain; drop list reads anyway
		h.cache.Invalidate(services.CacheKeyPools, services.CacheKeyClaimable)
		return nil
	}
	services.InvalidatePool(h.cache, pool.ID)
	return nil
}

// onchainPoolID returns the pool a call targets, when it targets exactly one.
func onchainPoolID(call contracts.Call) (uint64, bool) {
	switch c := call.(type) {
	case contracts.EnableDeposit:
		return c.PoolID, true
	case contracts.StartPool:
		return c.PoolID, true
	case contracts.EndPool:
		return c.PoolID, true
	case contracts.DeletePool:
		return c.PoolID, true
	case contracts.Deposit:
		return c.PoolID, true
	case contracts.SelfRefund:
		return c.PoolID, true
	case contracts.SetWinner:
		return c.PoolID, true
	case contracts.SetWinners:
		return c.PoolID, true
	case contracts.ClaimWinning:
		return c.PoolID, true
	default:
		return 0, false
	}
}

func NewPoolCacheHook(pools services.PoolService, cache services.ReadCache) services.Hook {
	return &PoolCacheHook{
		pools: pools,
		cache: cache,
	}
}
