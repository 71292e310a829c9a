package contracts

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rxtech-lab/pooled-funds/internal/models"
)

// PoolInfo is the decoded result of getAllPoolInfo
type PoolInfo struct {
	Host                   common.Address
	TimeStart              time.Time
	TimeEnd                time.Time
	Name                   string
	DepositAmountPerPerson *big.Int
	SoftCap                *big.Int
	TotalDeposits          *big.Int
	Balance                *big.Int
	Status                 models.OnchainPoolStatus
	Token                  common.Address
	Participants           []common.Address
	Winners                []common.Address
}

type WinnerDetail struct {
	Address common.Address `json:"address"`
	Amount  *big.Int       `json:"amount"`
	Claimed bool           `json:"claimed"`
}

type ClaimablePool struct {
	PoolID  uint64 `json:"pool_id"`
	Claimed bool   `json:"claimed"`
}

// PoolReader performs read-only calls against the pool contract
type PoolReader interface {
	GetAllPoolInfo(ctx context.Context, poolID uint64) (*PoolInfo, error)
	GetWinnersDetails(ctx context.Context, poolID uint64) ([]WinnerDetail, error)
	GetClaimablePools(ctx context.Context, participant common.Address) ([]ClaimablePool, error)
	IsParticipant(ctx context.Context, participant common.Address, poolID uint64) (bool, error)
	LatestPoolID(ctx context.Context) (uint64, error)
}

type poolReader struct {
	caller  ethereum.ContractCaller
	address common.Address
}

func NewPoolReader(caller ethereum.ContractCaller, address common.Address) PoolReader {
	return &poolReader{caller: caller, address: address}
}

func (r *poolReader) GetAllPoolInfo(ctx context.Context, poolID uint64) (*PoolInfo, error) {
	values, err := r.call(ctx, "getAllPoolInfo", new(big.Int).SetUint64(poolID))
	if err != nil {
		return nil, err
	}
	if len(values) != 12 {
		return nil, fmt.Errorf("unexpected getAllPoolInfo result: %d values", len(values))
	}

	return &PoolInfo{
		Host:                   as[common.Address](values[0]),
		TimeStart:              time.Unix(as[*big.Int](values[1]).Int64(), 0).UTC(),
		TimeEnd:                time.Unix(as[*big.Int](values[2]).Int64(), 0).UTC(),
		Name:                   as[string](values[3]),
		DepositAmountPerPerson: as[*big.Int](values[4]),
		SoftCap:                as[*big.Int](values[5]),
		TotalDeposits:          as[*big.Int](values[6]),
		Balance:                as[*big.Int](values[7]),
		Status:                 models.OnchainPoolStatus(as[uint8](values[8])),
		Token:                  as[common.Address](values[9]),
		Participants:           as[[]common.Address](values[10]),
		Winners:                as[[]common.Address](values[11]),
	}, nil
}

func (r *poolReader) GetWinnersDetails(ctx context.Context, poolID uint64) ([]WinnerDetail, error) {
	values, err := r.call(ctx, "getWinnersDetails", new(big.Int).SetUint64(poolID))
	if err != nil {
		return nil, err
	}
	if len(values) != 3 {
		return nil, fmt.Errorf("unexpected getWinnersDetails result: %d values", len(values))
	}

	winners := as[[]common.Address](values[0])
	amounts := as[[]*big.Int](values[1])
	claimed := as[[]bool](values[2])
	if len(amounts) != len(winners) || len(claimed) != len(winners) {
		return nil, fmt.Errorf("getWinnersDetails returned arrays of different lengths")
	}

	details := make([]WinnerDetail, len(winners))
	for i := range winners {
		details[i] = WinnerDetail{Address: winners[i], Amount: amounts[i], Claimed: claimed[i]}
	}
	return details, nil
}

func (r *poolReader) GetClaimablePools(ctx context.Context, participant common.Address) ([]ClaimablePool, error) {
	values, err := r.call(ctx, "getClaimablePools", participant)
	if err != nil {
		return nil, err
	}
	if len(values) != 2 {
		return nil, fmt.Errorf("unexpected getClaimablePools result: %d values", len(values))
	}

	ids := as[[]*big.Int](values[0])
	claimed := as[[]bool](values[1])
	if len(claimed) != len(ids) {
		return nil, fmt.Errorf("getClaimablePools returned arrays of different lengths")
	}

	pools := make([]ClaimablePool, 0, len(ids))
	for i, id := range ids {
		pools = append(pools, ClaimablePool{PoolID: id.Uint64(), Claimed: claimed[i]})
	}
	return pools, nil
}

func (r *poolReader) IsParticipant(ctx context.Context, participant common.Address, poolID uint64) (bool, error) {
	values, err := r.call(ctx, "isParticipant", participant, new(big.Int).SetUint64(poolID))
	if err != nil {
		return false, err
	}
	if len(values) != 1 {
		return false, fmt.Errorf("unexpected isParticipant result: %d values", len(values))
	}
	return as[bool](values[0]), nil
}

func (r *poolReader) LatestPoolID(ctx context.Context) (uint64, error) {
	values, err := r.call(ctx, "latestPoolId")
	if err != nil {
		return 0, err
	}
	if len(values) != 1 {
		return 0, fmt.Errorf("unexpected latestPoolId result: %d values", len(values))
	}
	return as[*big.Int](values[0]).Uint64(), nil
}

func (r *poolReader) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	parsed, err := PoolABI()
	if err != nil {
		return nil, err
	}

	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", method, err)
	}

	out, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &r.address, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}

	values, err := parsed.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", method, err)
	}
	return values, nil
}

func as[T any](v interface{}) T {
	return *abi.ConvertType(v, new(T)).(*T)
}
