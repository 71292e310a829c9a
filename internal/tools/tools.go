package tools

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rxtech-lab/pooled-funds/internal/services"
)

// jsonResult renders v as indented JSON after a short label, the format every tool answers with.
func jsonResult(label string, v interface{}) *mcp.CallToolResult {
	resultJSON, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error encoding result: %v", err))
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(label + ": " + string(resultJSON)),
		},
	}
}

// errorResult turns a service error into a tool error. Transaction failures carry the
// executor's user-facing text followed by the underlying cause.
func errorResult(action string, err error) *mcp.CallToolResult {
	var creationErr *services.CreationFailedError
	switch {
	case errors.As(err, &creationErr):
		return mcp.NewToolResultError(fmt.Sprintf("Error %s: %s (draft %s kept, retry or cancel it): %v",
			action, services.UserMessage(creationErr.Err), creationErr.DraftID, creationErr.Err))
	case isTransactionError(err):
		return mcp.NewToolResultError(fmt.Sprintf("Error %s: %s: %v", action, services.UserMessage(err), err))
	default:
		return mcp.NewToolResultError(fmt.Sprintf("Error %s: %v", action, err))
	}
}

func isTransactionError(err error) bool {
	for _, target := range []error{
		services.ErrWalletNotReady,
		services.ErrTransactionInProgress,
		services.ErrUserRejected,
		services.ErrConnectorLost,
		services.ErrTransactionReverted,
		services.ErrTransactionFailed,
		services.ErrConfirmationTimeout,
		services.ErrReconciliationGap,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
