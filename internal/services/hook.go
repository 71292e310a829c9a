package services

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rxtech-lab/pooled-funds/internal/contracts"
	"github.com/rxtech-lab/pooled-funds/internal/models"
)

// ConfirmedTransaction is handed to hooks once a call has been mined successfully.
type ConfirmedTransaction struct {
	Type    models.TransactionType
	Call    contracts.Call
	TxHash  string
	From    common.Address
	Receipt *types.Receipt
	// Metadata is copied from ExecuteOptions, e.g. the draft pool id
	Metadata map[string]string
}

// Hook is used to perform actions when a transaction is confirmed base on their transaction type
type Hook interface {
	// CanHandle is used to check if the hook can handle the transaction type
	CanHandle(txType models.TransactionType) bool
	// OnTransactionConfirmed is called when a transaction is confirmed
	OnTransactionConfirmed(ctx context.Context, tx ConfirmedTransaction) error
}
