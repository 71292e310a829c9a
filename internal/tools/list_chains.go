package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rxtech-lab/pooled-funds/internal/services"
)

func NewListChainsTool(chainService services.ChainService) (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("list_chains",
		mcp.WithDescription("List configured networks with their RPC endpoint and pool contract address"),
	)

	handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		chains, err := chainService.ListChains()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Error listing chains: %v", err)), nil
		}

		items := make([]map[string]interface{}, 0, len(chains))
		var active map[string]interface{}
		for _, chain := range chains {
			item := map[string]interface{}{
				"id":            chain.ID,
				"name":          chain.Name,
				"rpc":           chain.RPC,
				"chain_id":      chain.NetworkID,
				"pool_contract": chain.PoolContract,
				"batched":       chain.PaymasterURL != "",
				"is_active":     chain.IsActive,
			}
			items = append(items, item)
			if chain.IsActive {
				active = item
			}
		}

		response := map[string]interface{}{
			"chains": items,
			"total":  len(items),
		}
		if active != nil {
			response["active_chain"] = active
		}
		return jsonResult("Chains", response), nil
	}

	return tool, handler
}
