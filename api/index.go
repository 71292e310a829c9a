package handler

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/rxtech-lab/pooled-funds/internal/api"
	"github.com/rxtech-lab/pooled-funds/internal/config"
	"github.com/rxtech-lab/pooled-funds/internal/mcp"
	"github.com/rxtech-lab/pooled-funds/internal/server"
)

var (
	apiServer *api.APIServer
	initOnce  sync.Once
	initErr   error
)

// Handler is the main Vercel function handler
func Handler(w http.ResponseWriter, r *http.Request) {
	initOnce.Do(func() {
		initErr = initializeAPIServer()
	})
	if initErr != nil {
		log.Printf("Failed to initialize API server: %v", initErr)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	adaptor.FiberApp(apiServer.GetFiberApp())(w, r)
}

// initializeAPIServer builds the same server as cmd/streamable-http. Functions are
// short-lived, so the pool sync job is not started here.
func initializeAPIServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	// only /tmp is writable on Vercel
	if cfg.Database.PostgresURL == "" && os.Getenv("VERCEL") == "1" {
		cfg.Database.SQLitePath = "/tmp/pooled-funds.db"
	}

	app, err := server.Initialize(context.Background(), cfg)
	if err != nil {
		return err
	}

	apiServer = api.NewAPIServer(app.API)
	apiServer.SetMCPServer(mcp.NewMCPServer(app.MCP))
	apiServer.EnableStreamableHttp()

	apiServer.GetFiberApp().Get("/", func(c *fiber.Ctx) error {
		return c.JSON(map[string]interface{}{
			"message": "Pooled Funds API",
			"status":  "running",
			"version": "1.0.0",
		})
	})
	return nil
}
