package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rxtech-lab/pooled-funds/internal/services"
)

func NewCancelPoolDraftTool(creationService services.PoolCreationService) (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("cancel_pool_draft",
		mcp.WithDescription("Delete a pool draft that was never confirmed on-chain"),
		mcp.WithString("draft_id",
			mcp.Required(),
			mcp.Description("Draft id returned by create_pool"),
		),
	)

	handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		draftID, err := request.RequireString("draft_id")
		if err != nil {
			return mcp.NewToolResultError("draft_id parameter is required"), nil
		}
		if err := creationService.Cancel(ctx, draftID); err != nil {
			return errorResult("cancelling draft", err), nil
		}
		return jsonResult("Draft cancelled", map[string]interface{}{"draft_id": draftID}), nil
	}

	return tool, handler
}
