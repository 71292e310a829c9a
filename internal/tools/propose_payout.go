package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rxtech-lab/pooled-funds/internal/services"
	"github.com/rxtech-lab/pooled-funds/internal/utils"
)

func NewProposePayoutTool(winnerService services.WinnerService) (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("propose_payout",
		mcp.WithDescription("Propose or replace a winner payout for a pool. Proposals are saved and sent together by submit_winners."),
		mcp.WithString("pool_id",
			mcp.Required(),
			mcp.Description("Draft id (uuid) or on-chain pool id"),
		),
		mcp.WithString("address",
			mcp.Required(),
			mcp.Description("Winner wallet address"),
		),
		mcp.WithString("amount",
			mcp.Required(),
			mcp.Description("Payout in token base units (integer string)"),
		),
	)

	handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ref, err := request.RequireString("pool_id")
		if err != nil {
			return mcp.NewToolResultError("pool_id parameter is required"), nil
		}
		address, err := request.RequireString("address")
		if err != nil || !utils.IsValidEthereumAddress(address) {
			return mcp.NewToolResultError("address must be a valid wallet address"), nil
		}
		amount, err := utils.ParseBigInt(request.GetString("amount", ""))
		if err != nil || amount.Sign() <= 0 {
			return mcp.NewToolResultError("amount must be a positive integer in base units"), nil
		}

		if _, err := winnerService.Propose(ref, address, amount); err != nil {
			return errorResult("proposing payout", err), nil
		}
		proposed, err := winnerService.Proposed(ref)
		if err != nil {
			return errorResult("listing proposed payouts", err), nil
		}
		return jsonResult("Payout proposed", map[string]interface{}{
			"payouts": payoutList(proposed),
		}), nil
	}

	return tool, handler
}

func payoutList(payouts []services.ProposedPayout) []map[string]string {
	out := make([]map[string]string, 0, len(payouts))
	for _, p := range payouts {
		out = append(out, map[string]string{"address": p.Address, "amount": p.Amount.String()})
	}
	return out
}
