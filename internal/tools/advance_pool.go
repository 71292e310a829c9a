package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rxtech-lab/pooled-funds/internal/services"
)

func NewAdvancePoolTool(lifecycleService services.LifecycleService) (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("advance_pool",
		mcp.WithDescription("Move a pool one step through its lifecycle on-chain: enable_deposit (inactive -> deposit_enabled), start (-> started), end (-> ended) or delete. Only the pool host can do this."),
		mcp.WithString("pool_id",
			mcp.Required(),
			mcp.Description("Draft id (uuid) or on-chain pool id"),
		),
		mcp.WithString("action",
			mcp.Required(),
			mcp.Description("Lifecycle action"),
			mcp.Enum(
				string(services.ActionEnableDeposit),
				string(services.ActionStart),
				string(services.ActionEnd),
				string(services.ActionDelete),
			),
		),
	)

	handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ref, err := request.RequireString("pool_id")
		if err != nil {
			return mcp.NewToolResultError("pool_id parameter is required"), nil
		}
		action := services.LifecycleAction(request.GetString("action", ""))
		if _, err := action.Target(); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid action: %s", action)), nil
		}

		pool, err := lifecycleService.Advance(ctx, ref, action)
		if err != nil && !(errors.Is(err, services.ErrReconciliationGap) && pool != nil) {
			return errorResult(fmt.Sprintf("running %s", action), err), nil
		}

		response := map[string]interface{}{"pool": poolSummary(pool)}
		if err != nil {
			response["warning"] = fmt.Sprintf("%s: %v", services.UserMessage(err), err)
		}
		return jsonResult("Pool updated", response), nil
	}

	return tool, handler
}
