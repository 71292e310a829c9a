package hooks

import (
	"context"
	"fmt"

	"github.com/rxtech-lab/pooled-funds/internal/contracts"
	"github.com/rxtech-lab/pooled-funds/internal/models"
	"github.com/rxtech-lab/pooled-funds/internal/services"
)

// ParticipationHook mirrors confirmed deposits and self refunds into participant rows.
type ParticipationHook struct {
	pools        services.PoolService
	participants services.ParticipantService
}

// CanHandle implements Hook.
func (h *ParticipationHook) CanHandle(txType models.TransactionType) bool {
	return txType == models.TransactionTypeJoinPool ||
		txType == models.TransactionTypeSelfRefund
}

// OnTransactionConfirmed implements Hook.
func (h *ParticipationHook) OnTransactionConfirmed(ctx context.Context, tx services.ConfirmedTransaction) error {
	var onchainID uint64
	switch c := tx.Call.(type) {
	case contracts.Deposit:
		onchainID = c.PoolID
	case contracts.SelfRefund:
		onchainID = c.PoolID
	default:
		return fmt.Errorf("unexpected call %T for %s", tx.Call, tx.Type)
	}

	pool, err := h.pools.GetPoolByOnchainID(onchainID)
	if err != nil {
		return fmt.Errorf("failed to find pool %d: %w", onchainID, err)
	}

	if tx.Type == models.TransactionTypeSelfRefund {
		_, err = h.participants.MarkRefunded(pool.ID, tx.From.Hex())
	} else {
		_, err = h.participants.Join(pool.ID, tx.From.Hex())
	}
	return err
}

func NewParticipationHook(pools services.PoolService, participants services.ParticipantService) services.Hook {
	return &ParticipationHook{
		pools:        pools,
		participants: participants,
	}
}
