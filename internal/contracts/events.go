package contracts

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var ErrPoolCreatedNotFound = errors.New("PoolCreated event not found in receipt logs")

type PoolCreatedEvent struct {
	PoolID                 uint64
	Host                   common.Address
	Token                  common.Address
	Name                   string
	DepositAmountPerPerson *big.Int
	SoftCap                *big.Int
	TxHash                 common.Hash
}

// ParsePoolCreated finds the PoolCreated event emitted by contract in logs. A zero
// contract address accepts the event from any emitter.
func ParsePoolCreated(logs []*types.Log, contract common.Address) (*PoolCreatedEvent, error) {
	parsed, err := PoolABI()
	if err != nil {
		return nil, err
	}
	event := parsed.Events["PoolCreated"]

	for _, l := range logs {
		if l == nil || len(l.Topics) < 4 || l.Topics[0] != event.ID {
			continue
		}
		if contract != (common.Address{}) && l.Address != contract {
			continue
		}

		values, err := parsed.Unpack("PoolCreated", l.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode PoolCreated: %w", err)
		}
		if len(values) != 3 {
			return nil, fmt.Errorf("unexpected PoolCreated payload: %d values", len(values))
		}

		id := new(big.Int).SetBytes(l.Topics[1].Bytes())
		if !id.IsUint64() {
			return nil, fmt.Errorf("pool id %s overflows uint64", id)
		}

		return &PoolCreatedEvent{
			PoolID:                 id.Uint64(),
			Host:                   common.BytesToAddress(l.Topics[2].Bytes()),
			Token:                  common.BytesToAddress(l.Topics[3].Bytes()),
			Name:                   as[string](values[0]),
			DepositAmountPerPerson: as[*big.Int](values[1]),
			SoftCap:                as[*big.Int](values[2]),
			TxHash:                 l.TxHash,
		}, nil
	}

	return nil, ErrPoolCreatedNotFound
}
