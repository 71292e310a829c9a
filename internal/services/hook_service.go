package services

import (
	"context"
	"fmt"
	"log"
)

type HookService interface {
	AddHook(hook Hook) error
	OnTransactionConfirmed(ctx context.Context, tx ConfirmedTransaction) error
}

type hookService struct {
	hooks []Hook
}

func NewHookService() HookService {
	return &hookService{
		hooks: []Hook{},
	}
}

func (h *hookService) AddHook(hook Hook) error {
	if hook == nil {
		return fmt.Errorf("hook cannot be nil")
	}
	h.hooks = append(h.hooks, hook)
	return nil
}

// OnTransactionConfirmed runs every matching hook even when an earlier one fails,
// so independent side effects are not lost. The first error is returned.
func (h *hookService) OnTransactionConfirmed(ctx context.Context, tx ConfirmedTransaction) error {
	var firstErr error
	for _, hook := range h.hooks {
		if !hook.CanHandle(tx.Type) {
			continue
		}
		if err := hook.OnTransactionConfirmed(ctx, tx); err != nil {
			log.Printf("[Hooks] %T failed for %s %s: %v", hook, tx.Type, tx.TxHash, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
