package hooks

import (
	"context"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rxtech-lab/pooled-funds/internal/contracts"
	"github.com/rxtech-lab/pooled-funds/internal/models"
	"github.com/rxtech-lab/pooled-funds/internal/services"
	"github.com/stretchr/testify/suite"
)

var participant = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")

type HooksTestSuite struct {
	suite.Suite
	dbService    services.DBService
	pools        services.PoolService
	participants services.ParticipantService
	cache        services.ReadCache
	pool         *models.Pool
}

func (s *HooksTestSuite) SetupTest() {
	// Use in-memory database for testing
	db, err := services.NewSqliteDBService(":memory:")
	s.Require().NoError(err)
	s.dbService = db

	s.pools = services.NewPoolService(db.GetDB())
	s.participants = services.NewParticipantService(db.GetDB())
	s.cache = services.NewReadCache(time.Minute)

	start := time.Now().Add(time.Hour)
	pool := &models.Pool{
		Name:         "Brunch",
		Description:  "Sunday brunch pool",
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
	s.Require().NoError(s.pools.MarkConfirmed(pool.ID, 11, ""))
	s.pool = pool
}

func (s *HooksTestSuite) TearDownTest() {
	if s.dbService != nil {
		s.dbService.Close()
	}
}

func (s *HooksTestSuite) TestPoolCacheHookCanHandle() {
	hook := NewPoolCacheHook(s.pools, s.cache)
	s.True(hook.CanHandle(models.TransactionTypeSetWinners))
	s.True(hook.CanHandle(models.TransactionTypeCreatePool))
	s.False(hook.CanHandle(models.TransactionTypeApprove))
	s.False(hook.CanHandle(models.TransactionTypeRegular))
}

func (s *HooksTestSuite) TestPoolCacheHookByMetadata() {
	hook := NewPoolCacheHook(s.pools, s.cache)
	s.cache.Set(services.CacheKeyWinners+s.pool.ID, "cached")

	err := hook.OnTransactionConfirmed(context.Background(), services.ConfirmedTransaction{
		Type:     models.TransactionTypeSetWinners,
		Call:     contracts.SetWinners{PoolID: 11},
		Metadata: map[string]string{"pool_id": s.pool.ID},
	})
	s.NoError(err)
	_, ok := s.cache.Get(services.CacheKeyWinners + s.pool.ID)
	s.False(ok)
}

func (s *HooksTestSuite) TestPoolCacheHookByOnchainID() {
	hook := NewPoolCacheHook(s.pools, s.cache)
	s.cache.Set(services.CacheKeyPoolDetail+s.pool.ID, "cached")
	s.cache.Set(services.CacheKeyPoolDetail+"other", "cached")

	err := hook.OnTransactionConfirmed(context.Background(), services.ConfirmedTransaction{
		Type: models.TransactionTypeStartPool,
		Call: contracts.StartPool{PoolID: 11},
	})
	s.NoError(err)
	_, ok := s.cache.Get(services.CacheKeyPoolDetail + s.pool.ID)
	s.False(ok)
	_, ok = s.cache.Get(services.CacheKeyPoolDetail + "other")
	s.True(ok)

	// untracked pools still refresh list reads
	s.cache.Set(services.CacheKeyPools+"all", "cached")
	s.NoError(hook.OnTransactionConfirmed(context.Background(), services.ConfirmedTransaction{
		Type: models.TransactionTypeEndPool,
		Call: contracts.EndPool{PoolID: 99},
	}))
	_, ok = s.cache.Get(services.CacheKeyPools + "all")
	s.False(ok)
}

func (s *HooksTestSuite) TestParticipationHook() {
	hook := NewParticipationHook(s.pools, s.participants)
	s.True(hook.CanHandle(models.TransactionTypeJoinPool))
	s.True(hook.CanHandle(models.TransactionTypeSelfRefund))
	s.False(hook.CanHandle(models.TransactionTypeSetWinners))

	err := hook.OnTransactionConfirmed(context.Background(), services.ConfirmedTransaction{
		Type: models.TransactionTypeJoinPool,
		Call: contracts.Deposit{PoolID: 11, Amount: big.NewInt(10)},
		From: participant,
	})
	s.Require().NoError(err)

	p, err := s.participants.GetParticipant(s.pool.ID, participant.Hex())
	s.Require().NoError(err)
	s.Equal(models.ParticipantStatusJoined, p.Status)
	s.Equal(strings.ToLower(participant.Hex()), p.Address)

	err = hook.OnTransactionConfirmed(context.Background(), services.ConfirmedTransaction{
		Type: models.TransactionTypeSelfRefund,
		Call: contracts.SelfRefund{PoolID: 11},
		From: participant,
	})
	s.Require().NoError(err)
	p, err = s.participants.GetParticipant(s.pool.ID, participant.Hex())
	s.Require().NoError(err)
	s.Equal(models.ParticipantStatusRefunded, p.Status)
}

func (s *HooksTestSuite) TestParticipationHookUnknownPool() {
	hook := NewParticipationHook(s.pools, s.participants)
	err := hook.OnTransactionConfirmed(context.Background(), services.ConfirmedTransaction{
		Type: models.TransactionTypeJoinPool,
		Call: contracts.Deposit{PoolID: 404, Amount: big.NewInt(10)},
		From: participant,
	})
	s.ErrorIs(err, services.ErrPoolNotFound)
}

func (s *HooksTestSuite) TestRegisteredWithHookService() {
	hookService := services.NewHookService()
	s.Require().NoError(hookService.AddHook(NewPoolCacheHook(s.pools, s.cache)))
	s.Require().NoError(hookService.AddHook(NewParticipationHook(s.pools, s.participants)))

	s.cache.Set(services.CacheKeyMembers+s.pool.ID, "cached")
	err := hookService.OnTransactionConfirmed(context.Background(), services.ConfirmedTransaction{
		Type: models.TransactionTypeJoinPool,
		Call: contracts.Deposit{PoolID: 11, Amount: big.NewInt(10)},
		From: participant,
	})
	s.NoError(err)
	_, ok := s.cache.Get(services.CacheKeyMembers + s.pool.ID)
	s.False(ok)
}

func TestHooksTestSuite(t *testing.T) {
	suite.Run(t, new(HooksTestSuite))
}
