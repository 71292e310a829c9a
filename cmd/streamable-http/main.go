package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload" // Automatically load .env file if present
	"github.com/rxtech-lab/pooled-funds/internal/api"
	"github.com/rxtech-lab/pooled-funds/internal/config"
	"github.com/rxtech-lab/pooled-funds/internal/mcp"
	"github.com/rxtech-lab/pooled-funds/internal/server"
)

// configureAndStartServer mounts the API and the admin MCP endpoint and starts listening.
// A zero port picks a random free one.
func configureAndStartServer(app *server.Application, port int) (*api.APIServer, int, error) {
	apiServer := api.NewAPIServer(app.API)
	apiServer.SetMCPServer(mcp.NewMCPServer(app.MCP))
	apiServer.EnableStreamableHttp()

	startedPort, err := apiServer.Start(&port)
	if err != nil {
		return nil, 0, err
	}
	return apiServer, startedPort, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := server.Initialize(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize services:", err)
	}
	defer app.Close()

	apiServer, startedPort, err := configureAndStartServer(app, cfg.Server.Port)
	if err != nil {
		log.Fatal("Failed to start API server:", err)
	}
	log.Printf("API server started on port %d\n", startedPort)

	if app.SyncJob != nil {
		go app.SyncJob.Start(ctx)
	}

	// Set up graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	log.Println("\nShutting down server...")
	cancel()

	if err := apiServer.Shutdown(); err != nil {
		log.Printf("Error shutting down API server: %v", err)
	}

	log.Println("Server shut down successfully")
}
