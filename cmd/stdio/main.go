package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/rxtech-lab/pooled-funds/internal/config"
	"github.com/rxtech-lab/pooled-funds/internal/mcp"
	"github.com/rxtech-lab/pooled-funds/internal/server"
)

// Build information (set via ldflags)
var (
	Version    = "dev"
	CommitHash = "unknown"
	BuildTime  = "unknown"
)

// loadConfig reads the environment like the HTTP server does, with defaults for a local
// session: the database lives in the home directory and no sessions are issued.
func loadConfig() (*config.Config, error) {
	if os.Getenv("SQLITE_PATH") == "" && os.Getenv("POSTGRES_URL") == "" {
		homePath, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		os.Setenv("SQLITE_PATH", filepath.Join(homePath, "pooled-funds.db"))
	}
	if os.Getenv("JWT_SECRET") == "" {
		os.Setenv("JWT_SECRET", "stdio")
	}
	return config.Load()
}

func configureServer(ctx context.Context, cfg *config.Config) (*server.Application, *mcp.MCPServer, error) {
	app, err := server.Initialize(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return app, mcp.NewMCPServer(app.MCP), nil
}

func main() {
	// Command line flags
	var showVersion = flag.Bool("version", false, "Show version information")
	var showHelp = flag.Bool("help", false, "Show help information")
	var enableLog = flag.Bool("log", false, "Enable logging output")
	flag.Parse()

	// stdout carries the MCP stream, so logging is off by default
	if !*enableLog {
		log.SetOutput(io.Discard)
	}

	if *showVersion {
		log.SetOutput(os.Stderr)
		log.Printf("Pooled Funds MCP Server\n")
		log.Printf("Version: %s\n", Version)
		log.Printf("Commit: %s\n", CommitHash)
		log.Printf("Built: %s\n", BuildTime)
		return
	}

	if *showHelp {
		log.SetOutput(os.Stderr)
		log.Printf("Pooled Funds MCP Server\n\n")
		log.Printf("Usage: %s [options]\n\n", os.Args[0])
		log.Printf("Options:\n")
		log.Printf("  --version    Show version information\n")
		log.Printf("  --help       Show this help message\n")
		log.Printf("  --log        Enable logging output\n\n")
		log.Printf("Description:\n")
		log.Printf("  Manages group prize pools on an escrow contract over MCP stdio.\n")
		log.Printf("  Set HOST_PRIVATE_KEY to enable pool creation, lifecycle and winner tools.\n\n")
		log.Printf("Database: ~/pooled-funds.db (SQLite) unless SQLITE_PATH or POSTGRES_URL is set\n")
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		log.SetOutput(os.Stderr)
		log.Fatal("Failed to load configuration:", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, mcpServer, err := configureServer(ctx, cfg)
	if err != nil {
		log.SetOutput(os.Stderr)
		log.Fatal("Failed to initialize services:", err)
	}
	defer app.Close()

	if app.SyncJob != nil {
		go app.SyncJob.Start(ctx)
	}

	// ServeStdio returns on SIGTERM, SIGINT or when stdin closes
	if err := mcpServer.StartStdioServer(); err != nil {
		log.SetOutput(os.Stderr)
		log.SetFlags(0)
		log.Printf("MCP server stopped: %v", err)
	}
}
