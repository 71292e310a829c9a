package models

import (
	"errors"
	"fmt"
)

var ErrInvalidTransition = errors.New("invalid pool status transition")

type PoolStatus string

const (
	PoolStatusDraft          PoolStatus = "draft"
	PoolStatusUnconfirmed    PoolStatus = "unconfirmed"
	PoolStatusInactive       PoolStatus = "inactive"
	PoolStatusDepositEnabled PoolStatus = "deposit_enabled"
	PoolStatusStarted        PoolStatus = "started"
	PoolStatusEnded          PoolStatus = "ended"
	PoolStatusDeleted        PoolStatus = "deleted"
)

// OnchainPoolStatus mirrors the contract's status enum.
type OnchainPoolStatus uint8

const (
	OnchainInactive OnchainPoolStatus = iota
	OnchainDepositEnabled
	OnchainStarted
	OnchainEnded
	OnchainDeleted
)

var poolStatusRank = map[PoolStatus]int{
	PoolStatusDraft:          0,
	PoolStatusUnconfirmed:    1,
	PoolStatusInactive:       2,
	PoolStatusDepositEnabled: 3,
	PoolStatusStarted:        4,
	PoolStatusEnded:          5,
}

func (s PoolStatus) Valid() bool {
	if s == PoolStatusDeleted {
		return true
	}
	_, ok := poolStatusRank[s]
	return ok
}

// IsTerminal reports whether no further transition is possible.
func (s PoolStatus) IsTerminal() bool {
	return s == PoolStatusEnded || s == PoolStatusDeleted
}

// Rank orders the forward lifecycle. Deleted has no rank and returns -1.
func (s PoolStatus) Rank() int {
	r, ok := poolStatusRank[s]
	if !ok {
		return -1
	}
	return r
}

// CanTransition reports whether from -> to is an edge of the pool lifecycle.
// Forward edges advance one step at a time; unconfirmed may roll back to draft when a
// creation attempt fails; deleted is reachable from every non-terminal state.
func CanTransition(from, to PoolStatus) bool {
	if !from.Valid() || !to.Valid() || from.IsTerminal() {
		return false
	}
	if to == PoolStatusDeleted {
		return true
	}
	if from == PoolStatusUnconfirmed && to == PoolStatusDraft {
		return true
	}
	return to.Rank() == from.Rank()+1
}

// ValidateTransition is CanTransition with an error describing the rejected edge.
func ValidateTransition(from, to PoolStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

func (s OnchainPoolStatus) String() string {
	switch s {
	case OnchainInactive:
		return "INACTIVE"
	case OnchainDepositEnabled:
		return "DEPOSIT_ENABLED"
	case OnchainStarted:
		return "STARTED"
	case OnchainEnded:
		return "ENDED"
	case OnchainDeleted:
		return "DELETED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(s))
	}
}

// PoolStatus maps the contract status to the off-chain status it allows.
func (s OnchainPoolStatus) PoolStatus() (PoolStatus, error) {
	switch s {
	case OnchainInactive:
		return PoolStatusInactive, nil
	case OnchainDepositEnabled:
		return PoolStatusDepositEnabled, nil
	case OnchainStarted:
		return PoolStatusStarted, nil
	case OnchainEnded:
		return PoolStatusEnded, nil
	case OnchainDeleted:
		return PoolStatusDeleted, nil
	default:
		return "", fmt.Errorf("unknown on-chain pool status %d", uint8(s))
	}
}

// FromOnchain maps the raw status byte returned by the contract.
func FromOnchain(raw uint8) (PoolStatus, error) {
	return OnchainPoolStatus(raw).PoolStatus()
}

// IsAhead reports whether an off-chain status claims more progress than the contract.
func IsAhead(offchain PoolStatus, onchain OnchainPoolStatus) bool {
	mirrored, err := onchain.PoolStatus()
	if err != nil {
		return false
	}
	if mirrored == PoolStatusDeleted {
		return false
	}
	if offchain == PoolStatusDeleted {
		return true
	}
	return offchain.Rank() > mirrored.Rank()
}

// Reconcile returns the off-chain status that mirrors the contract, and whether it
// differs from offchain. It only moves forward: an off-chain status that is
// already ahead of the chain is returned unchanged.
func Reconcile(offchain PoolStatus, onchain OnchainPoolStatus) (PoolStatus, bool, error) {
	mirrored, err := onchain.PoolStatus()
	if err != nil {
		return offchain, false, err
	}
	if offchain == mirrored || IsAhead(offchain, onchain) {
		return offchain, false, nil
	}
	return mirrored, true, nil
}
