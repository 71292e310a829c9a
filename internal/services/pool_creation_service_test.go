package services

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rxtech-lab/pooled-funds/internal/contracts"
	"github.com/rxtech-lab/pooled-funds/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func poolCreatedLog(contract common.Address, poolID uint64) *types.Log {
	parsed, err := contracts.PoolABI()
	if err != nil {
		panic(err)
	}
	event := parsed.Events["PoolCreated"]
	data, err := event.Inputs.NonIndexed().Pack("Brunch", big.NewInt(10_000_000), big.NewInt(20))
	if err != nil {
		panic(err)
	}
	return &types.Log{
		Address: contract,
		Topics: []common.Hash{
			event.ID,
			common.BigToHash(new(big.Int).SetUint64(poolID)),
			common.BytesToHash(testAddress.Bytes()),
			common.BytesToHash(testToken.Bytes()),
		},
		Data: data,
	}
}

func validForm() CreatePoolForm {
	start := time.Now().Add(time.Hour)
	return CreatePoolForm{
		Name:        "Brunch",
		Description: "Sunday brunch pool",
		BannerImage: "https://example.com/banner.png",
		Price:       "10",
		SoftCap:     20,
		StartTime:   start,
		EndTime:     start.Add(time.Hour),
	}
}

type PoolCreationServiceTestSuite struct {
	suite.Suite
	pools   PoolService
	chain   *fakeChain
	wallet  *fakeWallet
	cache   ReadCache
	service PoolCreationService
	// mineWith decides how each sent transaction is mined; nil leaves it pending
	mineWith func(tx *types.Transaction)
	lastTx   *types.Transaction
}

func (s *PoolCreationServiceTestSuite) SetupTest() {
	db := setupTestDB(s.T())
	s.pools = NewPoolService(db)
	s.chain = newFakeChain()
	s.wallet = &fakeWallet{}
	s.cache = NewReadCache(time.Minute)
	s.mineWith = func(tx *types.Transaction) {
		s.chain.mine(tx, types.ReceiptStatusSuccessful, poolCreatedLog(testContract, 7))
	}
	s.wallet.onSend = func(tx *types.Transaction) {
		s.lastTx = tx
		if s.mineWith != nil {
			s.mineWith(tx)
		}
	}

	config := fastConfig()
	config.MaxAttempts = 5
	executor := NewTransactionExecutor(s.wallet, s.chain, nil, nil, config)
	s.service = NewPoolCreationService(s.pools, executor, s.cache, PoolCreationConfig{
		Contract:      testContract,
		ChainID:       1,
		DefaultToken:  testToken,
		TokenDecimals: 6,
	})
}

func (s *PoolCreationServiceTestSuite) TestValidate() {
	s.NoError(s.service.Validate(validForm()))

	form := validForm()
	form.StartTime = time.Now().Add(time.Minute)
	form.EndTime = form.StartTime.Add(time.Hour)
	var verr *ValidationError
	s.Require().ErrorAs(s.service.Validate(form), &verr)
	s.Equal("must be at least 5 minutes in the future", verr.Fields["start_time"])

	form = validForm()
	form.EndTime = form.StartTime.Add(10 * time.Minute)
	s.Require().ErrorAs(s.service.Validate(form), &verr)
	s.Equal("must be at least 30 minutes after start", verr.Fields["end_time"])

	form = validForm()
	form.EndTime = form.StartTime.Add(31 * 24 * time.Hour)
	s.Require().ErrorAs(s.service.Validate(form), &verr)
	s.Contains(verr.Fields["end_time"], "30 days")

	form = validForm()
	form.TermsURL = "https://example.com/terms"
	s.Require().ErrorAs(s.service.Validate(form), &verr)
	s.Contains(verr.Fields, "required_acceptance")
	form.RequiredAcceptance = true
	s.NoError(s.service.Validate(form))

	form = validForm()
	form.Name = ""
	form.BannerImage = "not a url"
	form.Price = "1.0000001"
	form.SoftCap = 0
	s.Require().ErrorAs(s.service.Validate(form), &verr)
	s.Equal("is required", verr.Fields["name"])
	s.Equal("must be a valid URL", verr.Fields["banner_image"])
	s.Contains(verr.Fields, "price")
	s.Contains(verr.Fields, "soft_cap")
}

func (s *PoolCreationServiceTestSuite) TestCreateConfirmsPool() {
	s.cache.Set(CacheKeyPools+"all", []models.Pool{})

	result, err := s.service.Create(context.Background(), validForm())
	s.Require().NoError(err)
	s.Equal(uint64(7), result.OnchainID)
	s.Equal("/pools/7", result.Redirect)
	s.Require().NotNil(result.Pool)
	s.Equal(models.PoolStatusInactive, result.Pool.Status)
	s.Equal(s.lastTx.Hash().Hex(), result.Pool.CreationTxHash)
	s.Equal(AttemptConfirmed, s.service.Attempt(result.Pool.ID))

	_, cached := s.cache.Get(CacheKeyPools + "all")
	s.False(cached, "pool list must be invalidated")

	_, err = s.service.Retry(context.Background(), result.Pool.ID)
	s.ErrorIs(err, ErrPoolConfirmed)
	s.ErrorIs(s.service.Cancel(context.Background(), result.Pool.ID), ErrPoolConfirmed)
}

func (s *PoolCreationServiceTestSuite) TestRejectedThenRetried() {
	s.wallet.sendErrs = []error{&providerError{code: 4001, msg: "User rejected the request."}}

	_, err := s.service.Create(context.Background(), validForm())
	var failed *CreationFailedError
	s.Require().ErrorAs(err, &failed)
	s.ErrorIs(err, ErrUserRejected)

	pool, err := s.pools.GetPool(failed.DraftID)
	s.Require().NoError(err)
	s.Equal(models.PoolStatusDraft, pool.Status)
	s.Equal(AttemptFailed, s.service.Attempt(failed.DraftID))

	result, err := s.service.Retry(context.Background(), failed.DraftID)
	s.Require().NoError(err)
	s.Equal(failed.DraftID, result.Pool.ID)
	s.Equal(models.PoolStatusInactive, result.Pool.Status)
}

func (s *PoolCreationServiceTestSuite) TestCancelDeletesDraft() {
	s.wallet.sendErrs = []error{errors.New("connector not connected")}

	_, err := s.service.Create(context.Background(), validForm())
	var failed *CreationFailedError
	s.Require().ErrorAs(err, &failed)
	s.ErrorIs(err, ErrConnectorLost)

	s.Require().NoError(s.service.Cancel(context.Background(), failed.DraftID))
	_, err = s.pools.GetPool(failed.DraftID)
	s.ErrorIs(err, ErrPoolNotFound)
	s.Equal(AttemptNone, s.service.Attempt(failed.DraftID))
}

func (s *PoolCreationServiceTestSuite) TestRevertRollsBackToDraft() {
	s.mineWith = func(tx *types.Transaction) {
		s.chain.mine(tx, types.ReceiptStatusFailed)
	}

	_, err := s.service.Create(context.Background(), validForm())
	var failed *CreationFailedError
	s.Require().ErrorAs(err, &failed)
	s.ErrorIs(err, ErrTransactionReverted)

	pool, err := s.pools.GetPool(failed.DraftID)
	s.Require().NoError(err)
	s.Equal(models.PoolStatusDraft, pool.Status)
	s.Nil(pool.OnchainID)
}

func (s *PoolCreationServiceTestSuite) TestMissingEventKeepsDraft() {
	s.mineWith = func(tx *types.Transaction) {
		s.chain.mine(tx, types.ReceiptStatusSuccessful)
	}

	result, err := s.service.Create(context.Background(), validForm())
	s.ErrorIs(err, ErrPoolIDNotFound)
	s.Require().NotNil(result)
	s.Require().NotNil(result.Pool)
	s.Equal(models.PoolStatusUnconfirmed, result.Pool.Status)
	s.Equal(s.lastTx.Hash().Hex(), result.Pool.CreationTxHash)

	// the transaction did go through, so the draft is neither resubmitted nor deleted
	_, err = s.service.Retry(context.Background(), result.Pool.ID)
	s.ErrorIs(err, ErrPoolConfirmed)
	s.ErrorIs(s.service.Cancel(context.Background(), result.Pool.ID), ErrPoolConfirmed)
	s.Equal(1, s.wallet.sentCount())
}

func (s *PoolCreationServiceTestSuite) TestRetryAfterTimeoutAwaitsSameTransaction() {
	s.mineWith = nil

	_, err := s.service.Create(context.Background(), validForm())
	var failed *CreationFailedError
	s.Require().ErrorAs(err, &failed)
	s.ErrorIs(err, ErrConfirmationTimeout)

	pool, err := s.pools.GetPool(failed.DraftID)
	s.Require().NoError(err)
	s.Equal(models.PoolStatusUnconfirmed, pool.Status)
	s.Equal(s.lastTx.Hash().Hex(), pool.CreationTxHash)

	s.chain.mine(s.lastTx, types.ReceiptStatusSuccessful, poolCreatedLog(testContract, 9))

	result, err := s.service.Retry(context.Background(), failed.DraftID)
	s.Require().NoError(err)
	s.Equal(uint64(9), result.OnchainID)
	s.Equal(1, s.wallet.sentCount(), "retry must not submit a second creation")
}

func (s *PoolCreationServiceTestSuite) TestCancelAfterTimeoutRecordsMinedCreation() {
	s.mineWith = nil

	_, err := s.service.Create(context.Background(), validForm())
	var failed *CreationFailedError
	s.Require().ErrorAs(err, &failed)
	s.ErrorIs(err, ErrConfirmationTimeout)

	// mined after the executor gave up
	s.chain.mine(s.lastTx, types.ReceiptStatusSuccessful, poolCreatedLog(testContract, 9))

	s.ErrorIs(s.service.Cancel(context.Background(), failed.DraftID), ErrPoolConfirmed)
	pool, err := s.pools.GetPool(failed.DraftID)
	s.Require().NoError(err)
	s.Equal(models.PoolStatusInactive, pool.Status)
	s.Require().NotNil(pool.OnchainID)
	s.Equal(uint64(9), *pool.OnchainID)
	s.Equal(AttemptConfirmed, s.service.Attempt(failed.DraftID))
}

func (s *PoolCreationServiceTestSuite) TestCancelAfterRestartChecksChain() {
	s.mineWith = nil

	_, err := s.service.Create(context.Background(), validForm())
	var failed *CreationFailedError
	s.Require().ErrorAs(err, &failed)

	// a fresh service has no attempt history for the draft
	executor := NewTransactionExecutor(s.wallet, s.chain, nil, nil, fastConfig())
	restarted := NewPoolCreationService(s.pools, executor, s.cache, PoolCreationConfig{
		Contract:      testContract,
		DefaultToken:  testToken,
		TokenDecimals: 6,
	})

	s.chain.mu.Lock()
	s.chain.known[s.lastTx.Hash()] = true
	s.chain.mu.Unlock()
	s.ErrorIs(restarted.Cancel(context.Background(), failed.DraftID), ErrCreationInProgress)
	_, err = s.pools.GetPool(failed.DraftID)
	s.NoError(err)
	s.Equal(AttemptNone, restarted.Attempt(failed.DraftID))

	s.chain.mine(s.lastTx, types.ReceiptStatusSuccessful, poolCreatedLog(testContract, 11))
	s.ErrorIs(restarted.Cancel(context.Background(), failed.DraftID), ErrPoolConfirmed)
	pool, err := s.pools.GetPool(failed.DraftID)
	s.Require().NoError(err)
	s.Require().NotNil(pool.OnchainID)
	s.Equal(uint64(11), *pool.OnchainID)
}

func (s *PoolCreationServiceTestSuite) TestCancelDroppedCreation() {
	s.mineWith = nil

	_, err := s.service.Create(context.Background(), validForm())
	var failed *CreationFailedError
	s.Require().ErrorAs(err, &failed)

	// the node no longer knows the transaction
	s.Require().NoError(s.service.Cancel(context.Background(), failed.DraftID))
	_, err = s.pools.GetPool(failed.DraftID)
	s.ErrorIs(err, ErrPoolNotFound)
}

func (s *PoolCreationServiceTestSuite) TestHookFailureIsReconciliationGap() {
	hooks := &countingHooks{err: errors.New("disk full")}
	executor := NewTransactionExecutor(s.wallet, s.chain, hooks, nil, fastConfig())
	service := NewPoolCreationService(s.pools, executor, s.cache, PoolCreationConfig{
		Contract:      testContract,
		DefaultToken:  testToken,
		TokenDecimals: 6,
	})

	result, err := service.Create(context.Background(), validForm())
	s.ErrorIs(err, ErrReconciliationGap)
	s.Require().NotNil(result.Pool)
	s.Equal(models.PoolStatusInactive, result.Pool.Status)
	s.Equal("/pools/7", result.Redirect)

	issues, err := s.pools.ListIssues(true)
	s.Require().NoError(err)
	s.Require().Len(issues, 1)
	s.Equal(models.ReconciliationPoolCreated, issues[0].Kind)
	s.Equal(result.Pool.ID, issues[0].PoolID)
}

func TestPoolCreationServiceTestSuite(t *testing.T) {
	suite.Run(t, new(PoolCreationServiceTestSuite))
}

func TestCreationFailedErrorUnwraps(t *testing.T) {
	err := error(&CreationFailedError{DraftID: "d1", Err: ErrUserRejected})
	assert.ErrorIs(t, err, ErrUserRejected)
	require.Contains(t, err.Error(), "d1")
}
