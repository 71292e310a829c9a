package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rxtech-lab/pooled-funds/internal/contracts"
	"github.com/rxtech-lab/pooled-funds/internal/models"
)

type ExecutorConfig struct {
	PollInterval time.Duration
	// MaxAttempts bounds receipt polls per transaction; zero leaves only the timeout
	MaxAttempts         int
	ConfirmationTimeout time.Duration
	// ReplacementScanDepth is how many recent blocks are searched for a replacement transaction
	ReplacementScanDepth uint64
}

func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		PollInterval:         2 * time.Second,
		ConfirmationTimeout:  10 * time.Minute,
		ReplacementScanDepth: 20,
	}
}

type ExecuteOptions struct {
	// Batch submits all calls as one paymaster request when a paymaster is configured.
	// Pool creation stays sequential: resuming it after a timeout needs a transaction
	// hash, and a pending batch only has a calls id.
	Batch    bool
	Metadata map[string]string
	// OnSubmitted receives each transaction hash as soon as it is known, including replacements
	OnSubmitted func(txHash string)
	// OnSuccess is called once, after every call is confirmed
	OnSuccess func(result *ExecutionResult)
}

type ExecutionResult struct {
	Record   models.TransactionRecord
	Receipts []*types.Receipt
}

// TransactionExecutor submits contract calls through a wallet and waits for their confirmation.
// Only one invocation runs at a time; a concurrent one fails with ErrTransactionInProgress.
type TransactionExecutor interface {
	Execute(ctx context.Context, calls []contracts.Call, opts ExecuteOptions) (*ExecutionResult, error)
	// Await tracks an already submitted transaction as if Execute had sent it
	Await(ctx context.Context, call contracts.Call, txHash common.Hash, opts ExecuteOptions) (*ExecutionResult, error)
	// TransactionState looks up a submitted transaction without waiting for it
	TransactionState(ctx context.Context, txHash common.Hash) (TxState, *types.Receipt, error)
	InProgress() bool
	Address() common.Address
}

type TxState string

const (
	// TxUnknown means the node has neither a receipt nor the transaction, e.g. it was dropped
	TxUnknown TxState = "unknown"
	TxPending TxState = "pending"
	TxMined   TxState = "mined"
)

type transactionExecutor struct {
	wallet     Wallet
	chain      ChainReader
	batcher    BatchSubmitter
	hooks      HookService
	config     ExecutorConfig
	inProgress atomic.Bool
}

// NewTransactionExecutor creates an executor. batcher may be nil when no paymaster is configured.
func NewTransactionExecutor(wallet Wallet, chain ChainReader, hooks HookService, batcher BatchSubmitter, config ExecutorConfig) TransactionExecutor {
	defaults := DefaultExecutorConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.ReplacementScanDepth == 0 {
		config.ReplacementScanDepth = defaults.ReplacementScanDepth
	}
	return &transactionExecutor{
		wallet:  wallet,
		chain:   chain,
		batcher: batcher,
		hooks:   hooks,
		config:  config,
	}
}

func (e *transactionExecutor) InProgress() bool {
	return e.inProgress.Load()
}

func (e *transactionExecutor) Address() common.Address {
	if e.wallet == nil {
		return common.Address{}
	}
	return e.wallet.Address()
}

func (e *transactionExecutor) Execute(ctx context.Context, calls []contracts.Call, opts ExecuteOptions) (*ExecutionResult, error) {
	if len(calls) == 0 {
		return nil, ErrNoCalls
	}
	if e.wallet == nil {
		return nil, ErrWalletNotReady
	}
	if !e.inProgress.CompareAndSwap(false, true) {
		return nil, ErrTransactionInProgress
	}
	defer e.inProgress.Store(false)

	if err := e.wallet.Ready(ctx); err != nil {
		if !errors.Is(err, ErrWalletNotReady) {
			err = fmt.Errorf("%w: %w", ErrWalletNotReady, err)
		}
		return nil, err
	}

	encoded := make([]contracts.CallData, len(calls))
	for i, call := range calls {
		data, err := call.Encode()
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", contracts.Describe(call), err)
		}
		encoded[i] = data
	}

	result := &ExecutionResult{Record: models.TransactionRecord{
		Type:    calls[len(calls)-1].Type(),
		Status:  models.TransactionStatusPending,
		Loading: true,
	}}

	var err error
	if opts.Batch && e.batcher != nil {
		err = e.executeBatch(ctx, encoded, opts, result)
	} else {
		err = e.executeSequential(ctx, encoded, opts, result)
	}
	if err != nil {
		return e.fail(result, err)
	}
	return e.finish(ctx, calls, opts, result)
}

func (e *transactionExecutor) Await(ctx context.Context, call contracts.Call, txHash common.Hash, opts ExecuteOptions) (*ExecutionResult, error) {
	if e.wallet == nil {
		return nil, ErrWalletNotReady
	}
	if !e.inProgress.CompareAndSwap(false, true) {
		return nil, ErrTransactionInProgress
	}
	defer e.inProgress.Store(false)

	result := &ExecutionResult{Record: models.TransactionRecord{
		Type:       call.Type(),
		Hashes:     []string{txHash.Hex()},
		Status:     models.TransactionStatusPending,
		Loading:    true,
		Confirming: true,
	}}

	tracked := trackedTx{hash: txHash}
	if tx, _, err := e.chain.TransactionByHash(ctx, txHash); err == nil {
		tracked = newTrackedTx(tx)
	} else if !errors.Is(err, ethereum.NotFound) {
		log.Printf("[Executor] failed to load transaction %s: %v", txHash.Hex(), err)
	}

	if err := e.confirm(ctx, tracked, opts, result); err != nil {
		return e.fail(result, err)
	}
	return e.finish(ctx, []contracts.Call{call}, opts, result)
}

func (e *transactionExecutor) TransactionState(ctx context.Context, txHash common.Hash) (TxState, *types.Receipt, error) {
	receipt, err := e.chain.TransactionReceipt(ctx, txHash)
	if err == nil {
		return TxMined, receipt, nil
	}
	if !errors.Is(err, ethereum.NotFound) {
		return TxUnknown, nil, fmt.Errorf("failed to get receipt of %s: %w", txHash.Hex(), err)
	}

	if _, _, err := e.chain.TransactionByHash(ctx, txHash); err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return TxUnknown, nil, nil
		}
		return TxUnknown, nil, fmt.Errorf("failed to get transaction %s: %w", txHash.Hex(), err)
	}
	// known without a receipt: still in the pool, or its block was just reorged out
	return TxPending, nil, nil
}

func (e *transactionExecutor) executeSequential(ctx context.Context, encoded []contracts.CallData, opts ExecuteOptions, result *ExecutionResult) error {
	for _, data := range encoded {
		tx, err := e.wallet.SendTransaction(ctx, data)
		if err != nil {
			return classifySubmitError(err)
		}

		result.Record.Hashes = append(result.Record.Hashes, tx.Hash().Hex())
		result.Record.Confirming = true
		if opts.OnSubmitted != nil {
			opts.OnSubmitted(tx.Hash().Hex())
		}

		if err := e.confirm(ctx, newTrackedTx(tx), opts, result); err != nil {
			return err
		}
	}
	return nil
}

// confirm waits for one transaction and appends its receipt to result.
func (e *transactionExecutor) confirm(ctx context.Context, tracked trackedTx, opts ExecuteOptions, result *ExecutionResult) error {
	receipt, err := e.waitForReceipt(ctx, tracked, func(replacement common.Hash) {
		result.Record.Hashes[len(result.Record.Hashes)-1] = replacement.Hex()
		if opts.OnSubmitted != nil {
			opts.OnSubmitted(replacement.Hex())
		}
	})
	if err != nil {
		return err
	}

	result.Receipts = append(result.Receipts, receipt)
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%w: %s", ErrTransactionReverted, receipt.TxHash.Hex())
	}
	return nil
}

func (e *transactionExecutor) executeBatch(ctx context.Context, encoded []contracts.CallData, opts ExecuteOptions, result *ExecutionResult) error {
	id, err := e.batcher.SendCalls(ctx, e.wallet.Address(), encoded)
	if err != nil {
		return classifySubmitError(err)
	}
	result.Record.CallsID = id
	result.Record.Confirming = true

	var status *CallsStatus
	err = e.poll(ctx, func(ctx context.Context) (bool, error) {
		s, err := e.batcher.GetCallsStatus(ctx, id)
		if err != nil {
			log.Printf("[Executor] failed to get status of calls %s: %v", id, err)
			return false, nil
		}
		if s.State == CallsPending {
			return false, nil
		}
		status = s
		return true, nil
	})
	if err != nil {
		return err
	}

	for _, receipt := range status.Receipts {
		result.Record.Hashes = append(result.Record.Hashes, receipt.TxHash.Hex())
		if opts.OnSubmitted != nil {
			opts.OnSubmitted(receipt.TxHash.Hex())
		}
	}
	result.Receipts = status.Receipts

	if status.State == CallsFailed {
		return fmt.Errorf("%w: calls %s", ErrTransactionReverted, id)
	}
	for _, receipt := range status.Receipts {
		if receipt.Status != types.ReceiptStatusSuccessful {
			return fmt.Errorf("%w: %s", ErrTransactionReverted, receipt.TxHash.Hex())
		}
	}
	if len(status.Receipts) == 0 {
		return fmt.Errorf("%w: calls %s confirmed without receipts", ErrTransactionFailed, id)
	}
	return nil
}

func (e *transactionExecutor) fail(result *ExecutionResult, err error) (*ExecutionResult, error) {
	result.Record.Loading = false
	result.Record.Confirming = false
	if !errors.Is(err, ErrConfirmationTimeout) {
		result.Record.Status = models.TransactionStatusFailed
	}
	result.Record.Error = UserMessage(err)
	log.Printf("[Executor] %s failed: %v", result.Record.Type, err)
	return result, err
}

// finish runs hooks for every confirmed call, then the success callback.
func (e *transactionExecutor) finish(ctx context.Context, calls []contracts.Call, opts ExecuteOptions, result *ExecutionResult) (*ExecutionResult, error) {
	result.Record.Loading = false
	result.Record.Confirming = false
	result.Record.Confirmed = true
	result.Record.Status = models.TransactionStatusConfirmed

	// the chain has accepted the calls; follow-up writes must not be cut short by the caller
	hookCtx := context.WithoutCancel(ctx)

	var hookErr error
	if e.hooks != nil {
		for i, call := range calls {
			receipt := receiptFor(result.Receipts, i, len(calls))
			confirmed := ConfirmedTransaction{
				Type:     call.Type(),
				Call:     call,
				From:     e.wallet.Address(),
				Receipt:  receipt,
				Metadata: opts.Metadata,
			}
			if receipt != nil {
				confirmed.TxHash = receipt.TxHash.Hex()
			}
			if err := e.hooks.OnTransactionConfirmed(hookCtx, confirmed); err != nil && hookErr == nil {
				hookErr = fmt.Errorf("%w: %w", ErrReconciliationGap, err)
			}
		}
	}

	if opts.OnSuccess != nil {
		opts.OnSuccess(result)
	}

	if hookErr != nil {
		result.Record.Error = UserMessage(hookErr)
		log.Printf("[Executor] %s confirmed as %s but hooks failed: %v", result.Record.Type, result.Record.LastHash(), hookErr)
		return result, hookErr
	}
	return result, nil
}

// receiptFor pairs call i with its receipt. A batch mined as a single transaction shares one receipt.
func receiptFor(receipts []*types.Receipt, i, calls int) *types.Receipt {
	if len(receipts) == 0 {
		return nil
	}
	if len(receipts) == calls {
		return receipts[i]
	}
	return receipts[len(receipts)-1]
}

type trackedTx struct {
	hash    common.Hash
	nonce   uint64
	chainID *big.Int
	// known is false when only the hash is available and replacements cannot be detected
	known bool
}

func newTrackedTx(tx *types.Transaction) trackedTx {
	return trackedTx{hash: tx.Hash(), nonce: tx.Nonce(), chainID: tx.ChainId(), known: true}
}

func (e *transactionExecutor) waitForReceipt(ctx context.Context, tracked trackedTx, onReplaced func(common.Hash)) (*types.Receipt, error) {
	var receipt *types.Receipt
	err := e.poll(ctx, func(ctx context.Context) (bool, error) {
		r, err := e.chain.TransactionReceipt(ctx, tracked.hash)
		if err == nil {
			receipt = r
			return true, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			log.Printf("[Executor] failed to get receipt for %s: %v", tracked.hash.Hex(), err)
			return false, nil
		}
		if !tracked.known {
			return false, nil
		}

		replacement, err := e.findReplacement(ctx, tracked)
		if err != nil {
			log.Printf("[Executor] replacement lookup for %s failed: %v", tracked.hash.Hex(), err)
			return false, nil
		}
		if replacement == (common.Hash{}) || replacement == tracked.hash {
			return false, nil
		}

		log.Printf("[Executor] transaction %s was replaced by %s", tracked.hash.Hex(), replacement.Hex())
		tracked.hash = replacement
		onReplaced(replacement)

		if r, err := e.chain.TransactionReceipt(ctx, replacement); err == nil {
			receipt = r
			return true, nil
		}
		return false, nil
	})
	return receipt, err
}

// findReplacement returns the hash of a mined transaction from the same sender with the
// same nonce as tracked, or the zero hash when tracked is still pending or nothing was found.
func (e *transactionExecutor) findReplacement(ctx context.Context, tracked trackedTx) (common.Hash, error) {
	if _, _, err := e.chain.TransactionByHash(ctx, tracked.hash); err == nil {
		return common.Hash{}, nil
	} else if !errors.Is(err, ethereum.NotFound) {
		return common.Hash{}, err
	}

	from := e.wallet.Address()
	nonce, err := e.chain.NonceAt(ctx, from, nil)
	if err != nil {
		return common.Hash{}, err
	}
	if nonce <= tracked.nonce {
		return common.Hash{}, nil
	}

	head, err := e.chain.BlockNumber(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	signer := types.LatestSignerForChainID(tracked.chainID)
	for i := uint64(0); i < e.config.ReplacementScanDepth && i <= head; i++ {
		block, err := e.chain.BlockByNumber(ctx, new(big.Int).SetUint64(head-i))
		if err != nil {
			return common.Hash{}, err
		}
		for _, candidate := range block.Transactions() {
			if candidate.Nonce() != tracked.nonce {
				continue
			}
			sender, err := types.Sender(signer, candidate)
			if err != nil || sender != from {
				continue
			}
			return candidate.Hash(), nil
		}
	}
	return common.Hash{}, nil
}

// poll calls check until it reports done, returns an error, MaxAttempts is reached
// or the context ends. The last two yield ErrConfirmationTimeout.
func (e *transactionExecutor) poll(ctx context.Context, check func(ctx context.Context) (bool, error)) error {
	if e.config.ConfirmationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.ConfirmationTimeout)
		defer cancel()
	}

	ticker := time.NewTicker(e.config.PollInterval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		done, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if e.config.MaxAttempts > 0 && attempt >= e.config.MaxAttempts {
			return fmt.Errorf("%w after %d attempts", ErrConfirmationTimeout, attempt)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrConfirmationTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}
