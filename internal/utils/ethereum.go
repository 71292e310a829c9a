package utils

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

func IsValidEthereumAddress(address string) bool {
	return common.IsHexAddress(address)
}

// ParseAddress accepts a hex string or an address and returns the checksummed address.
func ParseAddress(value any) (common.Address, error) {
	switch v := value.(type) {
	case string:
		if !common.IsHexAddress(v) {
			return common.Address{}, fmt.Errorf("invalid address: %s", v)
		}
		return common.HexToAddress(v), nil
	case common.Address:
		return v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type: %T", value)
	}
}

// ParseBigInt accepts decimal or 0x-prefixed hex strings and integer values.
func ParseBigInt(value any) (*big.Int, error) {
	switch v := value.(type) {
	case string:
		base := 10
		if strings.HasPrefix(v, "0x") {
			v, base = v[2:], 16
		}
		bigInt, ok := new(big.Int).SetString(v, base)
		if !ok {
			return nil, fmt.Errorf("invalid integer: %s", value)
		}
		return bigInt, nil
	case *big.Int:
		return v, nil
	case int64:
		return big.NewInt(v), nil
	case int:
		return big.NewInt(int64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case float64:
		if v != float64(int64(v)) {
			return nil, fmt.Errorf("invalid integer: %v", v)
		}
		return big.NewInt(int64(v)), nil
	default:
		return nil, fmt.Errorf("unsupported integer type: %T", value)
	}
}

// SameAddress compares two hex addresses case-insensitively.
func SameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}
