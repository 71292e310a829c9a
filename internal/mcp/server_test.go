package mcp

import (
	"context"
	"encoding/json"
	"sort"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rxtech-lab/pooled-funds/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReadOnlyDeps(t *testing.T) Dependencies {
	db, err := services.NewSqliteDBService(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return Dependencies{
		Chains:       services.NewChainService(db.GetDB()),
		Pools:        services.NewPoolService(db.GetDB()),
		Participants: services.NewParticipantService(db.GetDB()),
	}
}

// rpc sends one JSON-RPC message to the server and decodes the result member
func rpc(t *testing.T, s *MCPServer, method string, params interface{}) map[string]interface{} {
	msg, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	require.NoError(t, err)

	resp := s.GetServer().HandleMessage(context.Background(), msg)
	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var out struct {
		Result map[string]interface{} `json:"result"`
		Error  interface{}            `json:"error"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Nil(t, out.Error, string(raw))
	return out.Result
}

func toolNames(t *testing.T, s *MCPServer) []string {
	result := rpc(t, s, "tools/list", map[string]interface{}{})
	var names []string
	for _, tool := range result["tools"].([]interface{}) {
		names = append(names, tool.(map[string]interface{})["name"].(string))
	}
	sort.Strings(names)
	return names
}

func TestReadOnlyServerSkipsWorkflowTools(t *testing.T) {
	s := NewMCPServer(newReadOnlyDeps(t))

	assert.Equal(t, []string{"check_in", "get_pool", "list_chains", "list_pools"}, toolNames(t, s))
}

func TestWorkflowToolsRegistered(t *testing.T) {
	deps := newReadOnlyDeps(t)
	cache := services.NewReadCache(0)
	deps.Creation = services.NewPoolCreationService(deps.Pools, nil, cache, services.PoolCreationConfig{})
	deps.Lifecycle = services.NewLifecycleService(deps.Pools, nil, cache, common.Address{})
	deps.Winners = services.NewWinnerService(deps.Pools, nil, nil, cache, common.Address{})
	deps.HostWallet = services.NewHostWalletService(deps.Pools, nil, nil, cache, common.Address{})
	s := NewMCPServer(deps)

	assert.Equal(t, []string{
		"advance_pool",
		"cancel_pool_draft",
		"check_in",
		"claim_winnings",
		"create_pool",
		"get_pool",
		"host_deposit",
		"host_refund",
		"list_chains",
		"list_pools",
		"propose_payout",
		"retry_pool_creation",
		"submit_winners",
	}, toolNames(t, s))
}

func TestCallListPools(t *testing.T) {
	s := NewMCPServer(newReadOnlyDeps(t))

	result := rpc(t, s, "tools/call", map[string]interface{}{
		"name":      "list_pools",
		"arguments": map[string]interface{}{"include_drafts": true},
	})
	content := result["content"].([]interface{})
	require.Len(t, content, 1)
	assert.Contains(t, content[0].(map[string]interface{})["text"], "Pools listed")
	assert.NotEqual(t, true, result["isError"])
}

func TestUsagePrompt(t *testing.T) {
	s := NewMCPServer(newReadOnlyDeps(t))

	result := rpc(t, s, "prompts/get", map[string]interface{}{
		"name":      "pooled-funds-usage",
		"arguments": map[string]string{"tool_category": "lifecycle"},
	})
	messages := result["messages"].([]interface{})
	require.Len(t, messages, 1)
	text := messages[0].(map[string]interface{})["content"].(map[string]interface{})["text"].(string)
	assert.Contains(t, text, "advance_pool")

	assert.Contains(t, getToolInstructions("unknown"), "Invalid category")
}

func TestStreamableHTTPHandlerIsReused(t *testing.T) {
	s := NewMCPServer(newReadOnlyDeps(t))
	assert.Same(t, s.StreamableHTTPHandler(), s.StreamableHTTPHandler())
}
