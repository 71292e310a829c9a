package services

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rxtech-lab/pooled-funds/internal/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	chainID     *big.Int
	chainErr    error
	nonce       uint64
	estimateErr error
	sent        []*types.Transaction
	lastMsg     ethereum.CallMsg
}

func (b *fakeBackend) ChainID(ctx context.Context) (*big.Int, error) {
	return b.chainID, b.chainErr
}

func (b *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return b.nonce, nil
}

func (b *fakeBackend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(2), nil
}

func (b *fakeBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(10), BaseFee: big.NewInt(100)}, nil
}

func (b *fakeBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	b.lastMsg = msg
	return 60000, b.estimateErr
}

func (b *fakeBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	b.sent = append(b.sent, tx)
	return nil
}

func TestKeyedWallet(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{chainID: testChainID, nonce: 7}
	wallet, err := NewKeyedWallet(testKey, testChainID, backend)
	require.NoError(t, err)
	assert.Equal(t, testAddress, wallet.Address())

	t.Run("ready on expected chain", func(t *testing.T) {
		assert.NoError(t, wallet.Ready(ctx))
	})

	t.Run("not ready on other chain", func(t *testing.T) {
		other, err := NewKeyedWallet(testKey, big.NewInt(1), backend)
		require.NoError(t, err)
		assert.ErrorIs(t, other.Ready(ctx), ErrWalletNotReady)
	})

	t.Run("not ready when node unreachable", func(t *testing.T) {
		down := &fakeBackend{chainErr: errors.New("dial tcp: connection refused")}
		w, err := NewKeyedWallet(testKey, testChainID, down)
		require.NoError(t, err)
		assert.ErrorIs(t, w.Ready(ctx), ErrWalletNotReady)
	})

	t.Run("signs dynamic fee transaction", func(t *testing.T) {
		data, err := contracts.StartPool{Contract: testContract, PoolID: 4}.Encode()
		require.NoError(t, err)

		tx, err := wallet.SendTransaction(ctx, data)
		require.NoError(t, err)
		require.Len(t, backend.sent, 1)

		assert.Equal(t, uint8(types.DynamicFeeTxType), tx.Type())
		assert.Equal(t, uint64(7), tx.Nonce())
		assert.Equal(t, uint64(60000), tx.Gas())
		assert.Equal(t, int64(202), tx.GasFeeCap().Int64())
		assert.Equal(t, testContract, *tx.To())
		assert.Equal(t, testAddress, backend.lastMsg.From)

		sender, err := types.Sender(types.LatestSignerForChainID(testChainID), tx)
		require.NoError(t, err)
		assert.Equal(t, testAddress, sender)
	})

	t.Run("estimate failure is returned", func(t *testing.T) {
		failing := &fakeBackend{chainID: testChainID, estimateErr: errors.New("execution reverted")}
		w, err := NewKeyedWallet(testKey, testChainID, failing)
		require.NoError(t, err)

		_, err = w.SendTransaction(ctx, contracts.CallData{To: testContract})
		assert.ErrorContains(t, err, "execution reverted")
		assert.Empty(t, failing.sent)
	})

	t.Run("requires key", func(t *testing.T) {
		_, err := NewKeyedWallet(nil, testChainID, backend)
		assert.Error(t, err)
	})
}
