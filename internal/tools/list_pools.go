package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rxtech-lab/pooled-funds/internal/models"
	"github.com/rxtech-lab/pooled-funds/internal/services"
)

func NewListPoolsTool(poolService services.PoolService) (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("list_pools",
		mcp.WithDescription("List pools with their status and on-chain id. Drafts that were never created on-chain are hidden unless include_drafts is true."),
		mcp.WithString("status",
			mcp.Description("Filter by status (draft, unconfirmed, inactive, deposit_enabled, started, ended, deleted). Leave empty for all"),
		),
		mcp.WithString("host",
			mcp.Description("Filter by host wallet address"),
		),
		mcp.WithBoolean("include_drafts",
			mcp.Description("Include draft and unconfirmed pools (default: false)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of pools to return (default: 20, max: 100)"),
		),
	)

	handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		filter := services.ListPoolsFilter{
			Status:        models.PoolStatus(request.GetString("status", "")),
			HostAddress:   request.GetString("host", ""),
			IncludeDrafts: request.GetBool("include_drafts", false),
			Limit:         int(request.GetFloat("limit", 20)),
		}
		if filter.Status != "" && !filter.Status.Valid() {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid status: %s", filter.Status)), nil
		}
		if filter.Limit < 1 || filter.Limit > 100 {
			filter.Limit = 100
		}

		pools, err := poolService.ListPools(filter)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Error listing pools: %v", err)), nil
		}

		items := make([]map[string]interface{}, 0, len(pools))
		for _, pool := range pools {
			items = append(items, poolSummary(&pool))
		}
		return jsonResult("Pools listed", map[string]interface{}{
			"pools": items,
			"count": len(items),
		}), nil
	}

	return tool, handler
}

func poolSummary(pool *models.Pool) map[string]interface{} {
	summary := map[string]interface{}{
		"id":         pool.ID,
		"name":       pool.Name,
		"status":     pool.Status,
		"price":      pool.Price,
		"soft_cap":   pool.SoftCap,
		"start_time": pool.StartTime,
		"end_time":   pool.EndTime,
		"host":       pool.HostAddress,
	}
	if pool.OnchainID != nil {
		summary["onchain_id"] = *pool.OnchainID
	}
	if pool.CreationTxHash != "" {
		summary["creation_tx_hash"] = pool.CreationTxHash
	}
	return summary
}
