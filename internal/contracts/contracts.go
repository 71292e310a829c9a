package contracts

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

//go:embed abi/Pool.json
var poolABIJSON []byte

//go:embed abi/ERC20.json
var erc20ABIJSON []byte

// ContractArtifact is the ABI served to front ends that build their own calls
type ContractArtifact struct {
	Name string          `json:"name"`
	ABI  json.RawMessage `json:"abi"`
}

var (
	parseOnce sync.Once
	poolABI   abi.ABI
	erc20ABI  abi.ABI
	parseErr  error
)

func parseABIs() {
	parseOnce.Do(func() {
		poolABI, parseErr = abi.JSON(strings.NewReader(string(poolABIJSON)))
		if parseErr != nil {
			parseErr = fmt.Errorf("failed to parse pool ABI: %w", parseErr)
			return
		}
		erc20ABI, parseErr = abi.JSON(strings.NewReader(string(erc20ABIJSON)))
		if parseErr != nil {
			parseErr = fmt.Errorf("failed to parse ERC20 ABI: %w", parseErr)
		}
	})
}

// PoolABI returns the parsed pool contract ABI
func PoolABI() (abi.ABI, error) {
	parseABIs()
	return poolABI, parseErr
}

// ERC20ABI returns the parsed ERC20 ABI
func ERC20ABI() (abi.ABI, error) {
	parseABIs()
	return erc20ABI, parseErr
}

// GetContractArtifact returns a contract artifact by name
func GetContractArtifact(name string) (*ContractArtifact, error) {
	switch name {
	case "Pool":
		return &ContractArtifact{Name: name, ABI: poolABIJSON}, nil
	case "ERC20":
		return &ContractArtifact{Name: name, ABI: erc20ABIJSON}, nil
	default:
		return nil, fmt.Errorf("unknown contract: %s", name)
	}
}
