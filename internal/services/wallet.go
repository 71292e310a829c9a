package services

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rxtech-lab/pooled-funds/internal/contracts"
)

// Wallet signs and submits transactions for one account.
type Wallet interface {
	Address() common.Address
	// Ready returns nil when the wallet can submit on the expected network
	Ready(ctx context.Context) error
	SendTransaction(ctx context.Context, call contracts.CallData) (*types.Transaction, error)
}

// ChainReader is the read side the executor polls. *ethclient.Client satisfies it.
type ChainReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (tx *types.Transaction, isPending bool, err error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error)
}

// SigningBackend is what KeyedWallet needs from a node. *ethclient.Client satisfies it.
type SigningBackend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// KeyedWallet signs EIP-1559 transactions with a private key held by the server.
type KeyedWallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
	backend SigningBackend
	// serializes nonce assignment
	mu sync.Mutex
}

func NewKeyedWallet(key *ecdsa.PrivateKey, chainID *big.Int, backend SigningBackend) (*KeyedWallet, error) {
	if key == nil {
		return nil, errors.New("private key cannot be nil")
	}
	if chainID == nil {
		return nil, errors.New("chain id cannot be nil")
	}
	return &KeyedWallet{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
		backend: backend,
	}, nil
}

func (w *KeyedWallet) Address() common.Address {
	return w.address
}

func (w *KeyedWallet) Ready(ctx context.Context) error {
	if w.backend == nil {
		return fmt.Errorf("%w: no node connection", ErrWalletNotReady)
	}
	chainID, err := w.backend.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWalletNotReady, err)
	}
	if chainID.Cmp(w.chainID) != 0 {
		return fmt.Errorf("%w: connected to chain %s, expected %s", ErrWalletNotReady, chainID, w.chainID)
	}
	return nil
}

func (w *KeyedWallet) SendTransaction(ctx context.Context, call contracts.CallData) (*types.Transaction, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	value := call.Value
	if value == nil {
		value = new(big.Int)
	}

	nonce, err := w.backend.PendingNonceAt(ctx, w.address)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	tip, err := w.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest gas tip: %w", err)
	}
	head, err := w.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest header: %w", err)
	}
	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}

	to := call.To
	gas, err := w.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  w.address,
		To:    &to,
		Value: value,
		Data:  call.Data,
	})
	if err != nil {
		// estimation runs the call, so a revert surfaces here before anything is signed
		return nil, fmt.Errorf("failed to estimate gas: %w", err)
	}

	tx, err := types.SignNewTx(w.key, types.LatestSignerForChainID(w.chainID), &types.DynamicFeeTx{
		ChainID:   w.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      call.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := w.backend.SendTransaction(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}
