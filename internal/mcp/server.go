package mcp

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rxtech-lab/pooled-funds/internal/services"
	"github.com/rxtech-lab/pooled-funds/internal/tools"
)

// Dependencies are the services the tools run against. Reads and the workflow
// services are optional; tools needing a missing one are not registered.
type Dependencies struct {
	Chains       services.ChainService
	Pools        services.PoolService
	Participants services.ParticipantService
	Reads        services.PoolReadService
	Creation     services.PoolCreationService
	Lifecycle    services.LifecycleService
	Winners      services.WinnerService
	HostWallet   services.HostWalletService
	// BaseURL and ServerPort build the pool page links returned by create_pool
	BaseURL    string
	ServerPort int
}

type MCPServer struct {
	server     *server.MCPServer
	httpServer *server.StreamableHTTPServer
	deps       Dependencies
}

func NewMCPServer(deps Dependencies) *MCPServer {
	mcpServer := &MCPServer{
		deps: deps,
	}
	mcpServer.InitializeTools()
	return mcpServer
}

func (s *MCPServer) InitializeTools() {
	srv := server.NewMCPServer(
		"Pooled Funds MCP Server",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	srv.AddPrompt(mcp.NewPrompt("pooled-funds-usage",
		mcp.WithPromptDescription("Instructions and guidance for using pooled funds MCP tools"),
		mcp.WithArgument("tool_category",
			mcp.ArgumentDescription("Category of tools to get instructions for (pools, lifecycle, winners, or all)"),
			mcp.RequiredArgument(),
		),
	), func(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		category := request.Params.Arguments["tool_category"]
		if category == "" {
			return nil, fmt.Errorf("tool_category is required")
		}

		return mcp.NewGetPromptResult(
			fmt.Sprintf("Pooled Funds MCP Tools - %s", category),
			[]mcp.PromptMessage{
				mcp.NewPromptMessage(
					mcp.RoleUser,
					mcp.NewTextContent(getToolInstructions(category)),
				),
			},
		), nil
	})

	// Read tools
	if s.deps.Chains != nil {
		listChainsTool, listChainsHandler := tools.NewListChainsTool(s.deps.Chains)
		srv.AddTool(listChainsTool, listChainsHandler)
	}

	listPoolsTool, listPoolsHandler := tools.NewListPoolsTool(s.deps.Pools)
	srv.AddTool(listPoolsTool, listPoolsHandler)

	getPoolTool, getPoolHandler := tools.NewGetPoolTool(s.deps.Pools, s.deps.Participants, s.deps.Reads)
	srv.AddTool(getPoolTool, getPoolHandler)

	checkInTool, checkInHandler := tools.NewCheckInTool(s.deps.Pools, s.deps.Participants)
	srv.AddTool(checkInTool, checkInHandler)

	// Pool creation
	if s.deps.Creation != nil {
		createPoolTool, createPoolHandler := tools.NewCreatePoolTool(s.deps.Creation, s.deps.BaseURL, s.deps.ServerPort)
		srv.AddTool(createPoolTool, createPoolHandler)

		retryTool, retryHandler := tools.NewRetryPoolCreationTool(s.deps.Creation, s.deps.BaseURL, s.deps.ServerPort)
		srv.AddTool(retryTool, retryHandler)

		cancelTool, cancelHandler := tools.NewCancelPoolDraftTool(s.deps.Creation)
		srv.AddTool(cancelTool, cancelHandler)
	}

	// Lifecycle
	if s.deps.Lifecycle != nil {
		advanceTool, advanceHandler := tools.NewAdvancePoolTool(s.deps.Lifecycle)
		srv.AddTool(advanceTool, advanceHandler)
	}

	// Winners
	if s.deps.Winners != nil {
		proposeTool, proposeHandler := tools.NewProposePayoutTool(s.deps.Winners)
		srv.AddTool(proposeTool, proposeHandler)

		submitTool, submitHandler := tools.NewSubmitWinnersTool(s.deps.Winners)
		srv.AddTool(submitTool, submitHandler)
	}

	// Host wallet
	if s.deps.HostWallet != nil {
		depositTool, depositHandler := tools.NewHostDepositTool(s.deps.HostWallet)
		srv.AddTool(depositTool, depositHandler)

		refundTool, refundHandler := tools.NewHostRefundTool(s.deps.HostWallet)
		srv.AddTool(refundTool, refundHandler)

		claimTool, claimHandler := tools.NewClaimWinningsTool(s.deps.HostWallet)
		srv.AddTool(claimTool, claimHandler)
	}

	s.server = srv
	s.httpServer = nil
}

func getToolInstructions(category string) string {
	switch category {
	case "pools":
		return `Pool Tools:

1. list_pools - List pools with status and on-chain id
   Usage: Drafts are hidden unless include_drafts is true

2. get_pool - Get one pool by draft id or on-chain id
   Usage: Returns participants and, once created, the on-chain deposit totals

3. create_pool - Validate, store and create a pool on-chain
   Usage: Times are RFC 3339; price is in whole token units. Blocks until confirmed

4. retry_pool_creation - Resubmit a failed draft
   Usage: Use the draft_id returned by a failed create_pool

5. cancel_pool_draft - Delete a draft that was never confirmed

6. check_in - Mark a participant as present at the event`

	case "lifecycle":
		return `Lifecycle Tools:

1. advance_pool - Move a pool one step on-chain
   Actions: enable_deposit, start, end, delete
   Usage: Pools advance inactive -> deposit_enabled -> started -> ended.
   delete is allowed from any state before ended. Only the host wallet may advance a pool.

2. host_deposit - Join a pool from the host wallet
   Usage: Approves and deposits the pool price while deposits are open

3. host_refund - Take the host wallet's deposit back
   Usage: Allowed while deposits are open and after the pool is deleted`

	case "winners":
		return `Winner Tools:

1. propose_payout - Propose or replace a payout for a winner
   Usage: amount is in token base units. Proposals survive restarts

2. submit_winners - Send every proposed payout in one setWinner(s) transaction
   Usage: Submitted proposals are cleared once the transaction is confirmed

3. claim_winnings - Pay a winner out of ended pools
   Usage: Without pool_ids every unclaimed pool of the winner is claimed`

	case "all":
		return `Pooled Funds MCP Tools Overview:

This MCP server manages group prize pools backed by an escrow contract.

POOLS:
- list_chains: Show the configured network and pool contract
- list_pools: Browse pools
- get_pool: Inspect one pool
- create_pool / retry_pool_creation / cancel_pool_draft: Create pools on-chain
- check_in: Mark attendance

LIFECYCLE:
- advance_pool: enable_deposit, start, end or delete a pool
- host_deposit / host_refund: Join or leave a pool from the host wallet

WINNERS:
- propose_payout: Stage winner payouts
- submit_winners: Record them on-chain
- claim_winnings: Pay winners out

Transactions are signed by the configured host wallet and block until confirmed.
A result with a warning means the chain accepted the transaction but a database
write failed; the issue is recorded for an admin.`

	default:
		return `Invalid category. Available categories: pools, lifecycle, winners, all`
	}
}

// StartStdioServer serves the tools over stdin/stdout until the input closes.
func (s *MCPServer) StartStdioServer() error {
	return server.ServeStdio(s.server)
}

// StreamableHTTPHandler returns the streamable HTTP transport for the tools.
func (s *MCPServer) StreamableHTTPHandler() http.Handler {
	if s.httpServer == nil {
		s.httpServer = server.NewStreamableHTTPServer(s.server)
	}
	return s.httpServer
}

func (s *MCPServer) GetServer() *server.MCPServer {
	return s.server
}
