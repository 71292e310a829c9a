package jobs

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/rxtech-lab/pooled-funds/internal/contracts"
	"github.com/rxtech-lab/pooled-funds/internal/models"
	"github.com/rxtech-lab/pooled-funds/internal/services"
)

// SyncResult counts what one pass of the sync job did.
type SyncResult struct {
	Checked int
	Updated int
	// Ahead counts pools whose stored status claims more progress than the contract
	Ahead  int
	Failed int
}

// PoolSyncJob periodically mirrors on-chain pool status into the database.
// It only moves a pool forward to what the contract reports, never past it.
type PoolSyncJob struct {
	pools    services.PoolService
	reader   contracts.PoolReader
	cache    services.ReadCache
	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewPoolSyncJob creates a new pool sync job
func NewPoolSyncJob(pools services.PoolService, reader contracts.PoolReader, cache services.ReadCache, interval time.Duration) *PoolSyncJob {
	if interval <= 0 {
		interval = time.Minute
	}
	return &PoolSyncJob{
		pools:    pools,
		reader:   reader,
		cache:    cache,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start runs the sync loop until ctx is done or Stop is called
func (j *PoolSyncJob) Start(ctx context.Context) {
	log.Printf("[PoolSync] Starting pool sync job (interval: %v)", j.interval)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			result := j.RunOnce(ctx)
			if result.Updated > 0 || result.Failed > 0 {
				log.Printf("[PoolSync] checked %d pools, updated %d, ahead %d, failed %d",
					result.Checked, result.Updated, result.Ahead, result.Failed)
			}
		case <-ctx.Done():
			log.Println("[PoolSync] Stopping pool sync job")
			return
		case <-j.stopChan:
			log.Println("[PoolSync] Stopping pool sync job")
			return
		}
	}
}

// Stop stops the sync loop
func (j *PoolSyncJob) Stop() {
	j.stopOnce.Do(func() { close(j.stopChan) })
}

// RunOnce reconciles every non-terminal on-chain pool a single time.
func (j *PoolSyncJob) RunOnce(ctx context.Context) SyncResult {
	var result SyncResult

	pools, err := j.pools.ListSyncablePools()
	if err != nil {
		log.Printf("[PoolSync] Error fetching pools: %v", err)
		result.Failed++
		return result
	}

	for i := range pools {
		if ctx.Err() != nil {
			return result
		}
		pool := &pools[i]
		result.Checked++

		info, err := j.reader.GetAllPoolInfo(ctx, *pool.OnchainID)
		if err != nil {
			log.Printf("[PoolSync] Error reading pool %s (%d): %v", pool.ID, *pool.OnchainID, err)
			result.Failed++
			continue
		}

		if models.IsAhead(pool.Status, info.Status) {
			log.Printf("[PoolSync] pool %s is %s off-chain but %s on-chain, leaving it", pool.ID, pool.Status, info.Status)
			result.Ahead++
			continue
		}

		next, changed, err := models.Reconcile(pool.Status, info.Status)
		if err != nil {
			log.Printf("[PoolSync] pool %s: %v", pool.ID, err)
			result.Failed++
			continue
		}
		if changed {
			if err := j.pools.MirrorStatus(pool.ID, next); err != nil {
				log.Printf("[PoolSync] Error updating pool %s to %s: %v", pool.ID, next, err)
				result.Failed++
				continue
			}
			services.InvalidatePool(j.cache, pool.ID)
			result.Updated++
			log.Printf("[PoolSync] pool %s moved %s -> %s", pool.ID, pool.Status, next)
		}

		// chain and database agree now
		if err := j.pools.ResolveIssues(pool.ID, models.ReconciliationPoolStatus); err != nil {
			log.Printf("[PoolSync] Error resolving issues of pool %s: %v", pool.ID, err)
		}
	}

	return result
}
