package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rxtech-lab/pooled-funds/internal/services"
	"github.com/rxtech-lab/pooled-funds/internal/utils"
)

func NewCheckInTool(poolService services.PoolService, participantService services.ParticipantService) (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("check_in",
		mcp.WithDescription("Mark a joined participant as present at the event"),
		mcp.WithString("pool_id",
			mcp.Required(),
			mcp.Description("Draft id (uuid) or on-chain pool id"),
		),
		mcp.WithString("address",
			mcp.Required(),
			mcp.Description("Participant wallet address"),
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

		pool, err := poolService.ResolvePool(ref)
		if err != nil {
			return errorResult("checking in", err), nil
		}
		participant, err := participantService.CheckIn(pool.ID, address)
		if err != nil {
			return errorResult("checking in", err), nil
		}
		return jsonResult("Checked in", map[string]interface{}{"participant": participant}), nil
	}

	return tool, handler
}
