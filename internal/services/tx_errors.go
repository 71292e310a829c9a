package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

var (
	ErrNoCalls               = errors.New("no calls to execute")
	ErrWalletNotReady        = errors.New("wallet is not connected")
	ErrTransactionInProgress = errors.New("another transaction is in progress")
	ErrUserRejected          = errors.New("transaction rejected by user")
	ErrConnectorLost         = errors.New("wallet connection lost")
	ErrTransactionReverted   = errors.New("transaction reverted")
	ErrTransactionFailed     = errors.New("transaction failed")
	ErrConfirmationTimeout   = errors.New("timed out waiting for confirmation")
	// ErrReconciliationGap marks an off-chain write that failed after the chain accepted the transaction
	ErrReconciliationGap = errors.New("on-chain action succeeded but the database was not updated")
)

// EIP-1193 provider error codes
const (
	codeUserRejected = 4001
	codeDisconnected = 4900
	codeChainDisconn = 4901
)

// classifySubmitError maps a wallet error to one of the executor's sentinel errors,
// keeping the original error in the chain.
func classifySubmitError(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{ErrUserRejected, ErrConnectorLost, ErrTransactionReverted, ErrTransactionFailed, ErrConfirmationTimeout} {
		if errors.Is(err, sentinel) {
			return err
		}
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case codeUserRejected:
			return fmt.Errorf("%w: %w", ErrUserRejected, err)
		case codeDisconnected, codeChainDisconn:
			return fmt.Errorf("%w: %w", ErrConnectorLost, err)
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "user rejected"), strings.Contains(msg, "user denied"), strings.Contains(msg, "rejected the request"):
		return fmt.Errorf("%w: %w", ErrUserRejected, err)
	case strings.Contains(msg, "execution reverted"):
		return fmt.Errorf("%w: %w", ErrTransactionReverted, err)
	case strings.Contains(msg, "connector"), strings.Contains(msg, "disconnected"), strings.Contains(msg, "connection refused"):
		return fmt.Errorf("%w: %w", ErrConnectorLost, err)
	default:
		return fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}
}

// UserMessage returns the message shown to whoever started the transaction.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUserRejected):
		return "Transaction cancelled"
	case errors.Is(err, ErrConnectorLost):
		return "Wallet connection lost, please reconnect and try again"
	case errors.Is(err, ErrWalletNotReady):
		return "Wallet is not connected"
	case errors.Is(err, ErrTransactionInProgress):
		return "Another transaction is already in progress"
	case errors.Is(err, ErrConfirmationTimeout):
		return "Transaction is still pending, check again later"
	case errors.Is(err, ErrReconciliationGap):
		return "Transaction confirmed but saving the result failed, an admin has been notified"
	default:
		return "Transaction failed"
	}
}
