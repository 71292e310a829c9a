package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rxtech-lab/pooled-funds/internal/services"
)

type ClaimWinningsArguments struct {
	Winner  string   `json:"winner" validate:"required,eth_addr"`
	PoolIDs []string `json:"pool_ids"`
}

func NewHostDepositTool(hostWallet services.HostWalletService) (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("host_deposit",
		mcp.WithDescription("Join a pool from the host wallet: approves the pool price and deposits it. The pool must be accepting deposits."),
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

		result, err := hostWallet.Deposit(ctx, ref)
		if err != nil && !(errors.Is(err, services.ErrReconciliationGap) && result != nil) {
			return errorResult("depositing", err), nil
		}

		response := map[string]interface{}{
			"pool":   poolSummary(result.Pool),
			"amount": result.Amount,
		}
		if result.Transaction != nil {
			response["transaction"] = result.Transaction.Record
		}
		if err != nil {
			response["warning"] = fmt.Sprintf("%s: %v", services.UserMessage(err), err)
		}
		return jsonResult("Deposit confirmed", response), nil
	}

	return tool, handler
}

func NewHostRefundTool(hostWallet services.HostWalletService) (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("host_refund",
		mcp.WithDescription("Take the host wallet's deposit back out of a pool. Allowed while deposits are open and after the pool is deleted."),
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

		pool, tx, err := hostWallet.SelfRefund(ctx, ref)
		if err != nil && !(errors.Is(err, services.ErrReconciliationGap) && pool != nil) {
			return errorResult("refunding", err), nil
		}

		response := map[string]interface{}{"pool": poolSummary(pool)}
		if tx != nil {
			response["transaction"] = tx.Record
		}
		if err != nil {
			response["warning"] = fmt.Sprintf("%s: %v", services.UserMessage(err), err)
		}
		return jsonResult("Refund confirmed", response), nil
	}

	return tool, handler
}

func NewClaimWinningsTool(hostWallet services.HostWalletService) (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("claim_winnings",
		mcp.WithDescription("Pay a winner out of one or more ended pools, gas paid by the host wallet. Without pool_ids every unclaimed pool of the winner is claimed."),
		mcp.WithString("winner",
			mcp.Required(),
			mcp.Description("Winner wallet address"),
		),
		mcp.WithArray("pool_ids",
			mcp.Description("Draft ids or on-chain pool ids. Optional."),
			mcp.Items(map[string]interface{}{"type": "string"}),
		),
	)

	handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args ClaimWinningsArguments
		if err := request.BindArguments(&args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err)), nil
		}
		if err := validator.New().Struct(args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err)), nil
		}

		result, err := hostWallet.ClaimWinnings(ctx, common.HexToAddress(args.Winner), args.PoolIDs)
		if err != nil && !(errors.Is(err, services.ErrReconciliationGap) && result != nil) {
			return errorResult("claiming winnings", err), nil
		}

		response := map[string]interface{}{
			"winner":   result.Winner.Hex(),
			"pool_ids": result.PoolIDs,
		}
		if result.Transaction != nil {
			response["transaction"] = result.Transaction.Record
		}
		if err != nil {
			response["warning"] = fmt.Sprintf("%s: %v", services.UserMessage(err), err)
		}
		return jsonResult("Winnings claimed", response), nil
	}

	return tool, handler
}
