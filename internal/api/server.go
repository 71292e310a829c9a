package api

import (
	"fmt"
	"log"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/rxtech-lab/pooled-funds/internal/api/middleware"
	"github.com/rxtech-lab/pooled-funds/internal/mcp"
	"github.com/rxtech-lab/pooled-funds/internal/services"
)

// Dependencies are the services the HTTP routes call into. Workflow services may be
// nil when no host key is configured; their routes then answer 503.
type Dependencies struct {
	Auth         services.AuthService
	Pools        services.PoolService
	Participants services.ParticipantService
	Payouts      services.PayoutService
	Reads        services.PoolReadService
	Creation     services.PoolCreationService
	Lifecycle    services.LifecycleService
	Winners      services.WinnerService
	HostWallet   services.HostWalletService
	Cache        services.ReadCache
	// RateLimiter guards the login routes; nil disables limiting
	RateLimiter *middleware.IPRateLimiter
	// ContractAddresses maps an artifact name to its deployed address
	ContractAddresses map[string]string
}

type APIServer struct {
	app       *fiber.App
	deps      Dependencies
	mcpServer *mcp.MCPServer
	port      int
}

func NewAPIServer(deps Dependencies) *APIServer {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	// Add middleware
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))

	if deps.Cache == nil {
		deps.Cache = services.NewReadCache(0)
	}

	server := &APIServer{
		app:  app,
		deps: deps,
	}
	server.setupRoutes()
	return server
}

func (s *APIServer) setupRoutes() {
	auth := middleware.AuthMiddleware(middleware.AuthConfig{Validator: s.deps.Auth})
	admin := middleware.RequireAdmin()

	login := func(c *fiber.Ctx) error { return c.Next() }
	if s.deps.RateLimiter != nil {
		login = middleware.RateLimit(s.deps.RateLimiter)
	}

	api := s.app.Group("/api")

	// Wallet sign-in
	api.Post("/nonce", login, s.handleNonce)
	api.Post("/backend_login", login, s.handleBackendLogin)

	// Participation, verified against the chain
	api.Post("/join_pool", auth, s.handleJoinPool)
	api.Post("/unjoin_pool", auth, s.handleUnjoinPool)

	// Host administration
	api.Post("/save_payout", auth, admin, s.handleSavePayout)
	api.Post("/delete_payout", auth, admin, s.handleDeletePayout)
	api.Post("/check_in", auth, admin, s.handleCheckIn)
	api.Get("/issues", auth, admin, s.handleListIssues)

	// Pools
	api.Get("/pools", s.handleListPools)
	api.Post("/pools", auth, admin, s.handleCreatePool)
	api.Get("/pools/:id", s.handleGetPool)
	api.Get("/pools/:id/participants", s.handleListParticipants)
	api.Get("/pools/:id/winners", s.handleGetWinners)
	api.Post("/pools/:id/winners", auth, admin, s.handleSubmitWinners)
	api.Get("/pools/:id/payouts", auth, admin, s.handleListPayouts)
	api.Post("/pools/:id/retry", auth, admin, s.handleRetryPool)
	api.Post("/pools/:id/cancel", auth, admin, s.handleCancelPool)
	api.Post("/pools/:id/deposit", auth, admin, s.handleHostDeposit)
	api.Post("/pools/:id/refund", auth, admin, s.handleHostRefund)
	api.Post("/pools/:id/:action", auth, admin, s.handleAdvancePool)

	api.Get("/claimable/:address", s.handleClaimable)
	api.Post("/claim", auth, admin, s.handleClaimWinnings)

	// Contract artifacts API
	api.Get("/contracts/:name", s.handleContractArtifact)

	// Health check
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(map[string]string{"status": "ok"})
	})
}

// EnableStreamableHttp mounts the MCP server at /mcp for admin sessions.
// SetMCPServer must be called first.
func (s *APIServer) EnableStreamableHttp() {
	if s.mcpServer == nil {
		log.Println("[API] MCP server not set, /mcp is disabled")
		return
	}
	auth := middleware.AuthMiddleware(middleware.AuthConfig{Validator: s.deps.Auth})
	handler := adaptor.HTTPHandler(s.mcpServer.StreamableHTTPHandler())
	s.app.All("/mcp", auth, middleware.RequireAdmin(), handler)
	s.app.All("/mcp/*", auth, middleware.RequireAdmin(), handler)
}

// Start listens on port, or on a random free port when port is nil or zero.
func (s *APIServer) Start(port *int) (int, error) {
	selected := 0
	if port != nil {
		selected = *port
	}

	if selected == 0 {
		listener, err := net.Listen("tcp", ":0")
		if err != nil {
			return 0, fmt.Errorf("failed to find available port: %w", err)
		}
		selected = listener.Addr().(*net.TCPAddr).Port
		// Close the listener so Fiber can use it
		listener.Close()
	}
	s.port = selected

	go func() {
		if err := s.app.Listen(fmt.Sprintf(":%d", selected)); err != nil {
			log.Printf("Error starting API server: %v\n", err)
		}
	}()

	return selected, nil
}

func (s *APIServer) Shutdown() error {
	return s.app.Shutdown()
}

func (s *APIServer) GetPort() int {
	return s.port
}

// GetFiberApp exposes the router for adaptors and tests
func (s *APIServer) GetFiberApp() *fiber.App {
	return s.app
}

// SetMCPServer sets the MCP server instance served by EnableStreamableHttp
func (s *APIServer) SetMCPServer(mcpServer *mcp.MCPServer) {
	s.mcpServer = mcpServer
}

// GetMCPServer returns the MCP server instance
func (s *APIServer) GetMCPServer() *mcp.MCPServer {
	return s.mcpServer
}
