package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rxtech-lab/pooled-funds/internal/services"
)

func NewSubmitWinnersTool(winnerService services.WinnerService) (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("submit_winners",
		mcp.WithDescription("Send every proposed payout of a pool to the contract in one transaction (setWinner for a single payout, setWinners otherwise). Submitted proposals are cleared once it is confirmed and kept if it fails."),
		mcp.WithString("pool_id",
			mcp.Required(),
			mcp.Description("Draft id (uuid) or on-chain pool id"),
		),
	)

	handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ref, err := request.RequireString("pool_id")
		if err != nil {
			return mcp.NewToolResultError("pool_id parameter is required"), nil
		}

		result, err := winnerService.SubmitWinners(ctx, ref)
		if err != nil && !(errors.Is(err, services.ErrReconciliationGap) && result != nil) {
			return errorResult("submitting winners", err), nil
		}

		response := map[string]interface{}{
			"pool":    poolSummary(result.Pool),
			"winners": payoutList(result.Payouts),
		}
		if result.Transaction != nil {
			response["transaction"] = result.Transaction.Record
		}
		if err != nil {
			response["warning"] = fmt.Sprintf("%s: %v", services.UserMessage(err), err)
		}
		return jsonResult("Winners submitted", response), nil
	}

	return tool, handler
}
