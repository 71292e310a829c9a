package jobs

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rxtech-lab/pooled-funds/internal/contracts"
	"github.com/rxtech-lab/pooled-funds/internal/models"
	"github.com/rxtech-lab/pooled-funds/internal/services"
	"github.com/stretchr/testify/suite"
)

type stubReader struct {
	statuses map[uint64]models.OnchainPoolStatus
}

func (r *stubReader) GetAllPoolInfo(ctx context.Context, poolID uint64) (*contracts.PoolInfo, error) {
	status, ok := r.statuses[poolID]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return &contracts.PoolInfo{Status: status}, nil
}

func (r *stubReader) GetWinnersDetails(ctx context.Context, poolID uint64) ([]contracts.WinnerDetail, error) {
	return nil, nil
}

func (r *stubReader) GetClaimablePools(ctx context.Context, participant common.Address) ([]contracts.ClaimablePool, error) {
	return nil, nil
}

func (r *stubReader) IsParticipant(ctx context.Context, participant common.Address, poolID uint64) (bool, error) {
	return false, nil
}

func (r *stubReader) LatestPoolID(ctx context.Context) (uint64, error) {
	return 0, nil
}

type PoolSyncJobTestSuite struct {
	suite.Suite
	dbService services.DBService
	pools     services.PoolService
	reader    *stubReader
	cache     services.ReadCache
	job       *PoolSyncJob
}

func (s *PoolSyncJobTestSuite) SetupTest() {
	db, err := services.NewSqliteDBService(":memory:")
	s.Require().NoError(err)
	s.dbService = db
	s.pools = services.NewPoolService(db.GetDB())
	s.reader = &stubReader{statuses: map[uint64]models.OnchainPoolStatus{}}
	s.cache = services.NewReadCache(time.Minute)
	s.job = NewPoolSyncJob(s.pools, s.reader, s.cache, time.Millisecond)
}

func (s *PoolSyncJobTestSuite) TearDownTest() {
	s.dbService.Close()
}

func (s *PoolSyncJobTestSuite) createPool(onchainID uint64, status models.PoolStatus) *models.Pool {
	start := time.Now().Add(time.Hour)
	pool := &models.Pool{
		Name:         fmt.Sprintf("Pool %d", onchainID),
		Description:  "sync test",
		BannerImage:  "https://example.com/banner.png",
		Price:        "10",
		SoftCap:      20,
		StartTime:    start,
		EndTime:      start.Add(time.Hour),
		TokenAddress: "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		HostAddress:  "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
	}
	s.Require().NoError(s.pools.CreateDraft(pool))
	s.Require().NoError(s.pools.MarkUnconfirmed(pool.ID, "0xabc"))
	s.Require().NoError(s.pools.MarkConfirmed(pool.ID, onchainID, ""))
	if status != models.PoolStatusInactive {
		s.Require().NoError(s.pools.MirrorStatus(pool.ID, status))
	}
	return pool
}

func (s *PoolSyncJobTestSuite) status(id string) models.PoolStatus {
	pool, err := s.pools.GetPool(id)
	s.Require().NoError(err)
	return pool.Status
}

func (s *PoolSyncJobTestSuite) TestAdvancesToChainStatus() {
	behind := s.createPool(1, models.PoolStatusInactive)
	s.reader.statuses[1] = models.OnchainStarted
	s.cache.Set(services.CacheKeyPoolDetail+behind.ID, "stale")

	result := s.job.RunOnce(context.Background())
	s.Equal(SyncResult{Checked: 1, Updated: 1}, result)
	s.Equal(models.PoolStatusStarted, s.status(behind.ID))
	_, ok := s.cache.Get(services.CacheKeyPoolDetail + behind.ID)
	s.False(ok)
}

func (s *PoolSyncJobTestSuite) TestNeverMovesAheadOfChain() {
	ahead := s.createPool(2, models.PoolStatusEnded)
	// ended pools are not synced at all
	s.reader.statuses[2] = models.OnchainStarted

	started := s.createPool(3, models.PoolStatusStarted)
	s.reader.statuses[3] = models.OnchainDepositEnabled

	result := s.job.RunOnce(context.Background())
	s.Equal(1, result.Checked)
	s.Equal(1, result.Ahead)
	s.Equal(models.PoolStatusEnded, s.status(ahead.ID))
	s.Equal(models.PoolStatusStarted, s.status(started.ID))
}

func (s *PoolSyncJobTestSuite) TestMirrorsDeletion() {
	pool := s.createPool(4, models.PoolStatusDepositEnabled)
	s.reader.statuses[4] = models.OnchainDeleted

	result := s.job.RunOnce(context.Background())
	s.Equal(1, result.Updated)
	s.Equal(models.PoolStatusDeleted, s.status(pool.ID))

	// terminal pools drop out of the next pass
	s.Equal(0, s.job.RunOnce(context.Background()).Checked)
}

func (s *PoolSyncJobTestSuite) TestResolvesStatusIssues() {
	pool := s.createPool(5, models.PoolStatusInactive)
	s.reader.statuses[5] = models.OnchainDepositEnabled
	s.Require().NoError(s.pools.RecordIssue(&models.ReconciliationIssue{
		PoolID: pool.ID,
		Kind:   models.ReconciliationPoolStatus,
		Error:  "database is locked",
	}))
	s.Require().NoError(s.pools.RecordIssue(&models.ReconciliationIssue{
		PoolID: pool.ID,
		Kind:   models.ReconciliationWinnersSet,
	}))

	s.job.RunOnce(context.Background())

	issues, err := s.pools.ListIssues(true)
	s.Require().NoError(err)
	s.Require().Len(issues, 1)
	s.Equal(models.ReconciliationWinnersSet, issues[0].Kind)
}

func (s *PoolSyncJobTestSuite) TestReadFailureIsCounted() {
	pool := s.createPool(6, models.PoolStatusInactive)

	result := s.job.RunOnce(context.Background())
	s.Equal(1, result.Failed)
	s.Equal(models.PoolStatusInactive, s.status(pool.ID))
}

func (s *PoolSyncJobTestSuite) TestStartStops() {
	s.createPool(7, models.PoolStatusInactive)
	s.reader.statuses[7] = models.OnchainInactive

	done := make(chan struct{})
	go func() {
		s.job.Start(context.Background())
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	s.job.Stop()
	s.job.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		s.Fail("sync job did not stop")
	}
}

func TestPoolSyncJobTestSuite(t *testing.T) {
	suite.Run(t, new(PoolSyncJobTestSuite))
}
