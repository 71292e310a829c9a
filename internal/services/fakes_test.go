package services

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rxtech-lab/pooled-funds/internal/contracts"
)

var (
	// Anvil account #0
	testKey, _   = crypto.HexToECDSA("ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	testAddress  = crypto.PubkeyToAddress(testKey.PublicKey)
	testChainID  = big.NewInt(31337)
	testContract = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	testToken    = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
)

func signTestTx(nonce uint64, data contracts.CallData, tip int64) *types.Transaction {
	to := data.To
	tx, err := types.SignNewTx(testKey, types.LatestSignerForChainID(testChainID), &types.DynamicFeeTx{
		ChainID:   testChainID,
		Nonce:     nonce,
		GasTipCap: big.NewInt(tip),
		GasFeeCap: big.NewInt(1000),
		Gas:       100000,
		To:        &to,
		Value:     big.NewInt(0),
		Data:      data.Data,
	})
	if err != nil {
		panic(err)
	}
	return tx
}

// providerError mimics an EIP-1193 error surfaced through the rpc package.
type providerError struct {
	code int
	msg  string
}

func (e *providerError) Error() string  { return e.msg }
func (e *providerError) ErrorCode() int { return e.code }

type fakeWallet struct {
	mu       sync.Mutex
	readyErr error
	sendErrs []error
	sent     []contracts.CallData
	nonce    uint64
	onSend   func(tx *types.Transaction)
	// block, when set, holds SendTransaction until closed
	block chan struct{}
}

func (w *fakeWallet) Address() common.Address {
	return testAddress
}

func (w *fakeWallet) Ready(ctx context.Context) error {
	return w.readyErr
}

func (w *fakeWallet) SendTransaction(ctx context.Context, call contracts.CallData) (*types.Transaction, error) {
	if w.block != nil {
		<-w.block
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	idx := len(w.sent)
	w.sent = append(w.sent, call)
	if idx < len(w.sendErrs) && w.sendErrs[idx] != nil {
		return nil, w.sendErrs[idx]
	}

	tx := signTestTx(w.nonce, call, 1)
	w.nonce++
	if w.onSend != nil {
		w.onSend(tx)
	}
	return tx, nil
}

func (w *fakeWallet) sentCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.sent)
}

type fakeChain struct {
	mu       sync.Mutex
	receipts map[common.Hash]*types.Receipt
	// delay is the number of receipt lookups answered with NotFound before a receipt shows
	delay  map[common.Hash]int
	known  map[common.Hash]bool
	nonce  uint64
	blocks []*types.Block
	polls  int
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		receipts: make(map[common.Hash]*types.Receipt),
		delay:    make(map[common.Hash]int),
		known:    make(map[common.Hash]bool),
	}
}

func (c *fakeChain) mine(tx *types.Transaction, status uint64, logs ...*types.Log) *types.Receipt {
	c.mu.Lock()
	defer c.mu.Unlock()
	receipt := &types.Receipt{Status: status, TxHash: tx.Hash(), Logs: logs, BlockNumber: big.NewInt(int64(len(c.blocks)))}
	c.receipts[tx.Hash()] = receipt
	c.known[tx.Hash()] = true
	c.nonce = tx.Nonce() + 1
	c.blocks = append(c.blocks, types.NewBlockWithHeader(&types.Header{Number: big.NewInt(int64(len(c.blocks)))}).WithBody(types.Body{Transactions: []*types.Transaction{tx}}))
	return receipt
}

func (c *fakeChain) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.polls++
	if d := c.delay[txHash]; d > 0 {
		c.delay[txHash] = d - 1
		return nil, ethereum.NotFound
	}
	receipt, ok := c.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (c *fakeChain) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.known[hash] {
		return nil, false, ethereum.NotFound
	}
	for _, block := range c.blocks {
		for _, tx := range block.Transactions() {
			if tx.Hash() == hash {
				return tx, false, nil
			}
		}
	}
	return types.NewTx(&types.LegacyTx{}), true, nil
}

func (c *fakeChain) NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nonce, nil
}

func (c *fakeChain) BlockNumber(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.blocks) == 0 {
		return 0, nil
	}
	return uint64(len(c.blocks) - 1), nil
}

func (c *fakeChain) BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := number.Uint64()
	if n >= uint64(len(c.blocks)) {
		return types.NewBlockWithHeader(&types.Header{Number: number}), nil
	}
	return c.blocks[n], nil
}

func (c *fakeChain) pollCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.polls
}

type fakeBatcher struct {
	mu       sync.Mutex
	sent     [][]contracts.CallData
	sendErr  error
	statuses []*CallsStatus
	lookups  int
}

func (b *fakeBatcher) SendCalls(ctx context.Context, from common.Address, calls []contracts.CallData) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sendErr != nil {
		return "", b.sendErr
	}
	b.sent = append(b.sent, calls)
	return "0xbatch", nil
}

func (b *fakeBatcher) GetCallsStatus(ctx context.Context, id string) (*CallsStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	status := b.statuses[min(b.lookups, len(b.statuses)-1)]
	b.lookups++
	return status, nil
}

type countingHooks struct {
	mu   sync.Mutex
	seen []ConfirmedTransaction
	err  error
}

func (h *countingHooks) AddHook(hook Hook) error {
	return nil
}

func (h *countingHooks) OnTransactionConfirmed(ctx context.Context, tx ConfirmedTransaction) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, tx)
	return h.err
}

func (h *countingHooks) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.seen)
}
