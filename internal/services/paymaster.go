package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rxtech-lab/pooled-funds/internal/contracts"
)

type CallsState string

const (
	CallsPending   CallsState = "pending"
	CallsConfirmed CallsState = "confirmed"
	CallsFailed    CallsState = "failed"
)

// CallsStatus is the decoded wallet_getCallsStatus result.
type CallsStatus struct {
	ID       string
	State    CallsState
	Receipts []*types.Receipt
}

// BatchSubmitter submits several calls as one sponsored batch and reports its status.
type BatchSubmitter interface {
	SendCalls(ctx context.Context, from common.Address, calls []contracts.CallData) (string, error)
	GetCallsStatus(ctx context.Context, id string) (*CallsStatus, error)
}

// RPCCaller is the subset of *rpc.Client used by the paymaster client.
type RPCCaller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

type paymasterClient struct {
	rpc          RPCCaller
	chainID      *big.Int
	paymasterURL string
}

// NewPaymasterClient speaks EIP-5792 to a wallet endpoint and requests sponsorship from paymasterURL.
func NewPaymasterClient(client RPCCaller, chainID *big.Int, paymasterURL string) BatchSubmitter {
	return &paymasterClient{rpc: client, chainID: chainID, paymasterURL: paymasterURL}
}

// DialPaymasterClient connects to the wallet RPC endpoint at walletURL.
func DialPaymasterClient(ctx context.Context, walletURL string, chainID *big.Int, paymasterURL string) (BatchSubmitter, error) {
	client, err := rpc.DialContext(ctx, walletURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial wallet endpoint: %w", err)
	}
	return NewPaymasterClient(client, chainID, paymasterURL), nil
}

type sendCall struct {
	To    common.Address `json:"to"`
	Data  hexutil.Bytes  `json:"data"`
	Value *hexutil.Big   `json:"value"`
}

type sendCallsParams struct {
	Version        string                 `json:"version"`
	ChainID        *hexutil.Big           `json:"chainId"`
	From           common.Address         `json:"from"`
	AtomicRequired bool                   `json:"atomicRequired"`
	Calls          []sendCall             `json:"calls"`
	Capabilities   map[string]interface{} `json:"capabilities,omitempty"`
}

func (p *paymasterClient) SendCalls(ctx context.Context, from common.Address, calls []contracts.CallData) (string, error) {
	params := sendCallsParams{
		Version:        "2.0.0",
		ChainID:        (*hexutil.Big)(p.chainID),
		From:           from,
		AtomicRequired: true,
	}
	for _, call := range calls {
		value := call.Value
		if value == nil {
			value = new(big.Int)
		}
		params.Calls = append(params.Calls, sendCall{To: call.To, Data: call.Data, Value: (*hexutil.Big)(value)})
	}
	if p.paymasterURL != "" {
		params.Capabilities = map[string]interface{}{
			"paymasterService": map[string]string{"url": p.paymasterURL},
		}
	}

	// older wallets return the id as a bare string
	var raw json.RawMessage
	if err := p.rpc.CallContext(ctx, &raw, "wallet_sendCalls", params); err != nil {
		return "", err
	}
	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &result); err != nil || result.ID == "" {
		var id string
		if err := json.Unmarshal(raw, &id); err != nil || id == "" {
			return "", fmt.Errorf("unexpected wallet_sendCalls result: %s", string(raw))
		}
		return id, nil
	}
	return result.ID, nil
}

type callsLog struct {
	Address common.Address `json:"address"`
	Topics  []common.Hash  `json:"topics"`
	Data    hexutil.Bytes  `json:"data"`
}

type callsReceipt struct {
	Logs            []callsLog     `json:"logs"`
	Status          hexutil.Uint64 `json:"status"`
	BlockHash       common.Hash    `json:"blockHash"`
	BlockNumber     hexutil.Big    `json:"blockNumber"`
	GasUsed         hexutil.Uint64 `json:"gasUsed"`
	TransactionHash common.Hash    `json:"transactionHash"`
}

type callsStatusResult struct {
	ID       string          `json:"id"`
	Status   json.RawMessage `json:"status"`
	Receipts []callsReceipt  `json:"receipts"`
}

func (p *paymasterClient) GetCallsStatus(ctx context.Context, id string) (*CallsStatus, error) {
	var result callsStatusResult
	if err := p.rpc.CallContext(ctx, &result, "wallet_getCallsStatus", id); err != nil {
		return nil, err
	}

	state, err := parseCallsState(result.Status)
	if err != nil {
		return nil, err
	}

	status := &CallsStatus{ID: id, State: state}
	for _, r := range result.Receipts {
		receipt := &types.Receipt{
			Status:      uint64(r.Status),
			TxHash:      r.TransactionHash,
			BlockHash:   r.BlockHash,
			BlockNumber: r.BlockNumber.ToInt(),
			GasUsed:     uint64(r.GasUsed),
		}
		for i, l := range r.Logs {
			receipt.Logs = append(receipt.Logs, &types.Log{
				Address:     l.Address,
				Topics:      l.Topics,
				Data:        l.Data,
				TxHash:      r.TransactionHash,
				BlockHash:   r.BlockHash,
				BlockNumber: r.BlockNumber.ToInt().Uint64(),
				Index:       uint(i),
			})
		}
		status.Receipts = append(status.Receipts, receipt)
	}
	return status, nil
}

// parseCallsState accepts both the numeric codes of EIP-5792 v2 (100 pending, 200 confirmed,
// 4xx-6xx failed) and the PENDING/CONFIRMED strings of earlier drafts.
func parseCallsState(raw json.RawMessage) (CallsState, error) {
	var code int
	if err := json.Unmarshal(raw, &code); err == nil {
		switch {
		case code < 200:
			return CallsPending, nil
		case code < 300:
			return CallsConfirmed, nil
		default:
			return CallsFailed, nil
		}
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return "", fmt.Errorf("unexpected calls status: %s", string(raw))
	}
	if n, err := strconv.Atoi(text); err == nil {
		return parseCallsState(json.RawMessage(strconv.Itoa(n)))
	}
	switch strings.ToUpper(text) {
	case "PENDING":
		return CallsPending, nil
	case "CONFIRMED":
		return CallsConfirmed, nil
	case "FAILED", "REVERTED":
		return CallsFailed, nil
	default:
		return "", fmt.Errorf("unexpected calls status: %s", text)
	}
}
