package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rxtech-lab/pooled-funds/internal/services"
	"github.com/rxtech-lab/pooled-funds/internal/utils"
)

// NewGetPoolTool reads a pool with its participants and, when reads is set, its contract state.
func NewGetPoolTool(poolService services.PoolService, participantService services.ParticipantService, reads services.PoolReadService) (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("get_pool",
		mcp.WithDescription("Get a pool by draft id or on-chain id, including participants and the on-chain deposit totals"),
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

		pool, err := poolService.ResolvePool(ref)
		if err != nil {
			return errorResult("getting pool", err), nil
		}

		result := map[string]interface{}{"pool": poolSummary(pool)}
		participants, err := participantService.ListParticipants(pool.ID)
		if err != nil {
			return errorResult("listing participants", err), nil
		}
		result["participants"] = participants

		if reads != nil && pool.IsOnchain() {
			detail, err := reads.Detail(ctx, pool)
			if err != nil {
				return errorResult("reading pool contract", err), nil
			}
			info := detail.Onchain
			result["onchain"] = map[string]interface{}{
				"status":         info.Status.String(),
				"deposit_amount": utils.FromBaseUnits(info.DepositAmountPerPerson, pool.TokenDecimals),
				"total_deposits": utils.FromBaseUnits(info.TotalDeposits, pool.TokenDecimals),
				"balance":        utils.FromBaseUnits(info.Balance, pool.TokenDecimals),
				"participants":   len(info.Participants),
				"winners":        len(info.Winners),
			}
		}

		return jsonResult("Pool", result), nil
	}

	return tool, handler
}
