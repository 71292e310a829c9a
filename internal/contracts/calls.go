package contracts

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rxtech-lab/pooled-funds/internal/models"
)

var (
	ErrLengthMismatch = errors.New("winners and amounts must have the same length")
	ErrEmptyWinners   = errors.New("at least one winner is required")
	ErrInvalidAmount  = errors.New("amount must be a positive integer")
)

// CallData is an encoded contract call ready for a wallet to sign
type CallData struct {
	To    common.Address
	Data  []byte
	Value *big.Int
}

// Call is a contract call the transaction executor can submit. The set of
// implementations is closed; use a type switch to handle each operation.
type Call interface {
	Type() models.TransactionType
	Encode() (CallData, error)
	isCall()
}

type CreatePool struct {
	Contract      common.Address
	TimeStart     time.Time
	TimeEnd       time.Time
	Name          string
	DepositAmount *big.Int
	SoftCap       uint64
	Token         common.Address
}

type EnableDeposit struct {
	Contract common.Address
	PoolID   uint64
}

type StartPool struct {
	Contract common.Address
	PoolID   uint64
}

type EndPool struct {
	Contract common.Address
	PoolID   uint64
}

type DeletePool struct {
	Contract common.Address
	PoolID   uint64
}

// Approve grants the pool contract an ERC20 allowance ahead of a deposit
type Approve struct {
	Token   common.Address
	Spender common.Address
	Amount  *big.Int
}

type Deposit struct {
	Contract common.Address
	PoolID   uint64
	Amount   *big.Int
}

type SelfRefund struct {
	Contract common.Address
	PoolID   uint64
}

type SetWinner struct {
	Contract common.Address
	PoolID   uint64
	Winner   common.Address
	Amount   *big.Int
}

// SetWinners records every winner of a pool in one transaction. Winners and
// Amounts are parallel arrays.
type SetWinners struct {
	Contract common.Address
	PoolID   uint64
	Winners  []common.Address
	Amounts  []*big.Int
}

type ClaimWinning struct {
	Contract common.Address
	PoolID   uint64
	Winner   common.Address
}

type ClaimWinnings struct {
	Contract common.Address
	PoolIDs  []uint64
	Winners  []common.Address
}

func (CreatePool) Type() models.TransactionType    { return models.TransactionTypeCreatePool }
func (EnableDeposit) Type() models.TransactionType { return models.TransactionTypeEnableDeposit }
func (StartPool) Type() models.TransactionType     { return models.TransactionTypeStartPool }
func (EndPool) Type() models.TransactionType       { return models.TransactionTypeEndPool }
func (DeletePool) Type() models.TransactionType    { return models.TransactionTypeDeletePool }
func (Approve) Type() models.TransactionType       { return models.TransactionTypeApprove }
func (Deposit) Type() models.TransactionType       { return models.TransactionTypeJoinPool }
func (SelfRefund) Type() models.TransactionType    { return models.TransactionTypeSelfRefund }
func (SetWinner) Type() models.TransactionType     { return models.TransactionTypeSetWinners }
func (SetWinners) Type() models.TransactionType    { return models.TransactionTypeSetWinners }
func (ClaimWinning) Type() models.TransactionType  { return models.TransactionTypeClaimWinnings }
func (ClaimWinnings) Type() models.TransactionType { return models.TransactionTypeClaimWinnings }

func (CreatePool) isCall() {}
func (EnableDeposit) isCall() {}
func (StartPool) isCall() {}
func (EndPool) isCall() {}
func (DeletePool) isCall() {}
func (Approve) isCall() {}
func (Deposit) isCall() {}
func (SelfRefund) isCall() {}
func (SetWinner) isCall() {}
func (SetWinners) isCall() {}
func (ClaimWinning) isCall() {}
func (ClaimWinnings) isCall() {}

func (c CreatePool) Encode() (CallData, error) {
	if c.Name == "" {
		return CallData{}, errors.New("pool name is required")
	}
	if !c.TimeEnd.After(c.TimeStart) {
		return CallData{}, errors.New("pool end must be after start")
	}
	if !isPositive(c.DepositAmount) {
		return CallData{}, fmt.Errorf("deposit amount: %w", ErrInvalidAmount)
	}
	return packPool(c.Contract, nil, "createPool",
		big.NewInt(c.TimeStart.Unix()),
		big.NewInt(c.TimeEnd.Unix()),
		c.Name,
		c.DepositAmount,
		new(big.Int).SetUint64(c.SoftCap),
		c.Token,
	)
}

func (c EnableDeposit) Encode() (CallData, error) {
	return packPool(c.Contract, nil, "enableDeposit", poolID(c.PoolID))
}

func (c StartPool) Encode() (CallData, error) {
	return packPool(c.Contract, nil, "startPool", poolID(c.PoolID))
}

func (c EndPool) Encode() (CallData, error) {
	return packPool(c.Contract, nil, "endPool", poolID(c.PoolID))
}

func (c DeletePool) Encode() (CallData, error) {
	return packPool(c.Contract, nil, "deletePool", poolID(c.PoolID))
}

func (c Approve) Encode() (CallData, error) {
	if !isPositive(c.Amount) {
		return CallData{}, fmt.Errorf("allowance: %w", ErrInvalidAmount)
	}
	parsed, err := ERC20ABI()
	if err != nil {
		return CallData{}, err
	}
	data, err := parsed.Pack("approve", c.Spender, c.Amount)
	if err != nil {
		return CallData{}, fmt.Errorf("failed to encode approve: %w", err)
	}
	return CallData{To: c.Token, Data: data, Value: big.NewInt(0)}, nil
}

func (c Deposit) Encode() (CallData, error) {
	if !isPositive(c.Amount) {
		return CallData{}, fmt.Errorf("deposit: %w", ErrInvalidAmount)
	}
	return packPool(c.Contract, nil, "deposit", poolID(c.PoolID), c.Amount)
}

func (c SelfRefund) Encode() (CallData, error) {
	return packPool(c.Contract, nil, "selfRefund", poolID(c.PoolID))
}

func (c SetWinner) Encode() (CallData, error) {
	if !isPositive(c.Amount) {
		return CallData{}, fmt.Errorf("winner %s: %w", c.Winner.Hex(), ErrInvalidAmount)
	}
	return packPool(c.Contract, nil, "setWinner", poolID(c.PoolID), c.Winner, c.Amount)
}

func (c SetWinners) Encode() (CallData, error) {
	if len(c.Winners) == 0 {
		return CallData{}, ErrEmptyWinners
	}
	if len(c.Winners) != len(c.Amounts) {
		return CallData{}, ErrLengthMismatch
	}
	for i, amount := range c.Amounts {
		if !isPositive(amount) {
			return CallData{}, fmt.Errorf("winner %s: %w", c.Winners[i].Hex(), ErrInvalidAmount)
		}
	}
	return packPool(c.Contract, nil, "setWinners", poolID(c.PoolID), c.Winners, c.Amounts)
}

func (c ClaimWinning) Encode() (CallData, error) {
	return packPool(c.Contract, nil, "claimWinning", poolID(c.PoolID), c.Winner)
}

func (c ClaimWinnings) Encode() (CallData, error) {
	if len(c.PoolIDs) == 0 {
		return CallData{}, errors.New("at least one pool is required")
	}
	if len(c.PoolIDs) != len(c.Winners) {
		return CallData{}, errors.New("pool ids and winners must have the same length")
	}
	ids := make([]*big.Int, len(c.PoolIDs))
	for i, id := range c.PoolIDs {
		ids[i] = poolID(id)
	}
	return packPool(c.Contract, nil, "claimWinnings", ids, c.Winners)
}

// Describe returns a short human readable label for a call, used in logs
func Describe(call Call) string {
	switch c := call.(type) {
	case CreatePool:
		return fmt.Sprintf("createPool(%q)", c.Name)
	case EnableDeposit:
		return fmt.Sprintf("enableDeposit(%d)", c.PoolID)
	case StartPool:
		return fmt.Sprintf("startPool(%d)", c.PoolID)
	case EndPool:
		return fmt.Sprintf("endPool(%d)", c.PoolID)
	case DeletePool:
		return fmt.Sprintf("deletePool(%d)", c.PoolID)
	case Approve:
		return fmt.Sprintf("approve(%s, %s)", c.Spender.Hex(), c.Amount)
	case Deposit:
		return fmt.Sprintf("deposit(%d, %s)", c.PoolID, c.Amount)
	case SelfRefund:
		return fmt.Sprintf("selfRefund(%d)", c.PoolID)
	case SetWinner:
		return fmt.Sprintf("setWinner(%d, %s)", c.PoolID, c.Winner.Hex())
	case SetWinners:
		return fmt.Sprintf("setWinners(%d, %d winners)", c.PoolID, len(c.Winners))
	case ClaimWinning:
		return fmt.Sprintf("claimWinning(%d, %s)", c.PoolID, c.Winner.Hex())
	case ClaimWinnings:
		return fmt.Sprintf("claimWinnings(%d pools)", len(c.PoolIDs))
	default:
		return fmt.Sprintf("%T", call)
	}
}

func packPool(contract common.Address, value *big.Int, method string, args ...interface{}) (CallData, error) {
	parsed, err := PoolABI()
	if err != nil {
		return CallData{}, err
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return CallData{}, fmt.Errorf("failed to encode %s: %w", method, err)
	}
	if value == nil {
		value = big.NewInt(0)
	}
	return CallData{To: contract, Data: data, Value: value}, nil
}

func poolID(id uint64) *big.Int {
	return new(big.Int).SetUint64(id)
}

func isPositive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}
