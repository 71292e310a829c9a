package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rxtech-lab/pooled-funds/internal/services"
	"github.com/rxtech-lab/pooled-funds/internal/utils"
)

// NewCreatePoolTool answers with the pool page URL, resolved against baseURL or
// localhost on serverPort when baseURL is empty.
func NewCreatePoolTool(creationService services.PoolCreationService, baseURL string, serverPort int) (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("create_pool",
		mcp.WithDescription("Create a pool: the form is validated, stored as a draft and submitted on-chain with the host wallet. Blocks until the creation transaction is confirmed. A failed submission keeps the draft; use retry_pool_creation or cancel_pool_draft with the returned draft id."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Pool name (max 100 characters)"),
		),
		mcp.WithString("description",
			mcp.Required(),
			mcp.Description("Pool description"),
		),
		mcp.WithString("banner_image",
			mcp.Required(),
			mcp.Description("Banner image URL"),
		),
		mcp.WithString("price",
			mcp.Required(),
			mcp.Description("Entry price in whole token units, e.g. '10' or '2.5'"),
		),
		mcp.WithNumber("soft_cap",
			mcp.Required(),
			mcp.Description("Maximum number of participants"),
		),
		mcp.WithString("start_time",
			mcp.Required(),
			mcp.Description("Start time in RFC 3339, at least 5 minutes from now"),
		),
		mcp.WithString("end_time",
			mcp.Required(),
			mcp.Description("End time in RFC 3339, 30 minutes to 30 days after start"),
		),
		mcp.WithString("terms_url",
			mcp.Description("Optional terms URL; requires required_acceptance"),
		),
		mcp.WithBoolean("required_acceptance",
			mcp.Description("Participants must accept the terms before joining"),
		),
		mcp.WithString("token_address",
			mcp.Description("Deposit token; defaults to the configured token"),
		),
	)

	handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start, err := time.Parse(time.RFC3339, request.GetString("start_time", ""))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid start_time: %v", err)), nil
		}
		end, err := time.Parse(time.RFC3339, request.GetString("end_time", ""))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid end_time: %v", err)), nil
		}
		softCap := request.GetFloat("soft_cap", 0)
		if softCap < 0 || softCap != float64(uint(softCap)) {
			return mcp.NewToolResultError("soft_cap must be a positive whole number"), nil
		}

		form := services.CreatePoolForm{
			Name:               request.GetString("name", ""),
			Description:        request.GetString("description", ""),
			BannerImage:        request.GetString("banner_image", ""),
			Price:              request.GetString("price", ""),
			SoftCap:            uint(softCap),
			StartTime:          start,
			EndTime:            end,
			TermsURL:           request.GetString("terms_url", ""),
			RequiredAcceptance: request.GetBool("required_acceptance", false),
			TokenAddress:       request.GetString("token_address", ""),
		}

		result, err := creationService.Create(ctx, form)
		return creationResult(result, err, baseURL, serverPort), nil
	}

	return tool, handler
}

func NewRetryPoolCreationTool(creationService services.PoolCreationService, baseURL string, serverPort int) (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("retry_pool_creation",
		mcp.WithDescription("Resubmit a draft whose creation failed. If the last attempt timed out, waits for that transaction instead of sending a new one."),
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
		result, err := creationService.Retry(ctx, draftID)
		return creationResult(result, err, baseURL, serverPort), nil
	}

	return tool, handler
}

func creationResult(result *services.CreationResult, err error, baseURL string, serverPort int) *mcp.CallToolResult {
	var validationErr *services.ValidationError
	if errors.As(err, &validationErr) {
		return jsonResult("Invalid pool form", map[string]interface{}{"fields": validationErr.Fields})
	}
	if err != nil && (result == nil || result.Pool == nil) {
		return errorResult("creating pool", err)
	}

	url, urlErr := utils.GetPoolUrl(baseURL, serverPort, result.OnchainID)
	if urlErr != nil {
		url = result.Redirect
	}
	response := map[string]interface{}{
		"pool":       poolSummary(result.Pool),
		"onchain_id": result.OnchainID,
		"url":        url,
	}
	if result.Transaction != nil {
		response["transaction"] = result.Transaction.Record
	}
	if err != nil {
		response["warning"] = fmt.Sprintf("%s: %v", services.UserMessage(err), err)
	}
	return jsonResult("Pool created", response)
}
