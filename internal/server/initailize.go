package server

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rxtech-lab/pooled-funds/internal/api"
	"github.com/rxtech-lab/pooled-funds/internal/api/middleware"
	"github.com/rxtech-lab/pooled-funds/internal/config"
	"github.com/rxtech-lab/pooled-funds/internal/contracts"
	"github.com/rxtech-lab/pooled-funds/internal/hooks"
	"github.com/rxtech-lab/pooled-funds/internal/jobs"
	"github.com/rxtech-lab/pooled-funds/internal/mcp"
	"github.com/rxtech-lab/pooled-funds/internal/models"
	"github.com/rxtech-lab/pooled-funds/internal/services"
	"github.com/rxtech-lab/pooled-funds/internal/utils"
	"golang.org/x/time/rate"
)

const (
	jwtIssuer    = "pooled-funds"
	readCacheTTL = 30 * time.Second
)

// Application holds the wired services shared by the HTTP and stdio entry points.
type Application struct {
	Config  *config.Config
	DB      services.DBService
	API     api.Dependencies
	MCP     mcp.Dependencies
	SyncJob *jobs.PoolSyncJob

	client *ethclient.Client
}

// Initialize opens the database, connects to the configured chain and builds every service.
// Without HOST_PRIVATE_KEY the workflow services stay nil and only reads are served.
func Initialize(ctx context.Context, cfg *config.Config) (*Application, error) {
	db, err := openDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}
	app := &Application{Config: cfg, DB: db}

	if err := app.initialize(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func openDatabase(cfg config.DatabaseConfig) (services.DBService, error) {
	if cfg.PostgresURL != "" {
		log.Println("Using Postgres database")
		return services.NewPostgresDBService(cfg.PostgresURL)
	}
	log.Printf("Using SQLite database at %s", cfg.SQLitePath)
	return services.NewSqliteDBService(cfg.SQLitePath)
}

func (a *Application) initialize(ctx context.Context) error {
	cfg := a.Config
	gdb := a.DB.GetDB()

	chainID, ok := new(big.Int).SetString(cfg.Chain.ChainID, 10)
	if !ok {
		return fmt.Errorf("invalid CHAIN_ID: %s", cfg.Chain.ChainID)
	}
	if cfg.Chain.PoolContract != "" && !utils.IsValidEthereumAddress(cfg.Chain.PoolContract) {
		return fmt.Errorf("invalid POOL_CONTRACT_ADDRESS: %s", cfg.Chain.PoolContract)
	}
	contract := common.HexToAddress(cfg.Chain.PoolContract)

	chainService := services.NewChainService(gdb)
	chain := &models.Chain{
		Name:         cfg.Chain.Name,
		RPC:          cfg.Chain.RPCURL,
		NetworkID:    cfg.Chain.ChainID,
		PoolContract: contract.Hex(),
		PaymasterURL: cfg.Chain.PaymasterURL,
		IsActive:     true,
	}
	if err := chainService.UpsertChain(chain); err != nil {
		return fmt.Errorf("failed to store chain config: %w", err)
	}
	if err := chainService.SetActiveChainByID(chain.ID); err != nil {
		return fmt.Errorf("failed to activate chain: %w", err)
	}

	client, err := ethclient.DialContext(ctx, cfg.Chain.RPCURL)
	if err != nil {
		return fmt.Errorf("failed to connect to RPC %s: %w", cfg.Chain.RPCURL, err)
	}
	a.client = client

	cache := services.NewReadCache(readCacheTTL)
	proposed := services.NewProposedPayouts()
	poolService, participantService, payoutService := InitializeServices(a.DB, proposed)
	reader := contracts.NewPoolReader(client, contract)

	authenticator := utils.NewJwtAuthenticator(cfg.Auth.JWTSecret, jwtIssuer)
	a.API = api.Dependencies{
		Auth:         services.NewAuthService(gdb, authenticator, cfg.Auth.AdminAddresses, cfg.Auth.NonceTTL),
		Pools:        poolService,
		Participants: participantService,
		Payouts:      payoutService,
		Reads:        services.NewPoolReadService(reader, cache),
		Cache:        cache,
		RateLimiter:  middleware.NewIPRateLimiter(rate.Every(6*time.Second), 10),
	}
	a.API.ContractAddresses = map[string]string{
		"Pool":  contract.Hex(),
		"ERC20": cfg.Chain.TokenAddress,
	}
	a.MCP = mcp.Dependencies{
		Chains:       chainService,
		Pools:        poolService,
		Participants: participantService,
		Reads:        a.API.Reads,
		BaseURL:      cfg.Server.BaseURL,
		ServerPort:   cfg.Server.Port,
	}
	if cfg.Server.SyncInterval > 0 {
		a.SyncJob = jobs.NewPoolSyncJob(poolService, reader, cache, cfg.Server.SyncInterval)
	}

	if cfg.Chain.HostPrivateKey == "" {
		log.Println("HOST_PRIVATE_KEY not set, pool workflows are disabled")
		return nil
	}

	key, err := utils.ParsePrivateKey(cfg.Chain.HostPrivateKey)
	if err != nil {
		return fmt.Errorf("invalid HOST_PRIVATE_KEY: %w", err)
	}
	wallet, err := services.NewKeyedWallet(key, chainID, client)
	if err != nil {
		return err
	}

	var batcher services.BatchSubmitter
	if cfg.Chain.PaymasterURL != "" {
		batcher, err = services.DialPaymasterClient(ctx, cfg.Chain.RPCURL, chainID, cfg.Chain.PaymasterURL)
		if err != nil {
			return err
		}
	}

	hookService := services.NewHookService()
	poolCacheHook, participationHook := InitializeHooks(poolService, participantService, cache)
	RegisterHooks(hookService, poolCacheHook, participationHook)

	executorConfig := services.DefaultExecutorConfig()
	if cfg.Executor.PollInterval > 0 {
		executorConfig.PollInterval = cfg.Executor.PollInterval
	}
	if cfg.Executor.ConfirmationTimeout > 0 {
		executorConfig.ConfirmationTimeout = cfg.Executor.ConfirmationTimeout
	}
	executorConfig.MaxAttempts = cfg.Executor.MaxAttempts
	executor := services.NewTransactionExecutor(wallet, client, hookService, batcher, executorConfig)

	a.API.Creation = services.NewPoolCreationService(poolService, executor, cache, services.PoolCreationConfig{
		Contract:      contract,
		ChainID:       chain.ID,
		DefaultToken:  common.HexToAddress(cfg.Chain.TokenAddress),
		TokenDecimals: cfg.Chain.TokenDecimals,
	})
	a.API.Lifecycle = services.NewLifecycleService(poolService, executor, cache, contract)
	a.API.Winners = services.NewWinnerService(poolService, payoutService, executor, cache, contract)
	a.API.HostWallet = services.NewHostWalletService(poolService, a.API.Reads, executor, cache, contract)
	a.MCP.Creation = a.API.Creation
	a.MCP.Lifecycle = a.API.Lifecycle
	a.MCP.Winners = a.API.Winners
	a.MCP.HostWallet = a.API.HostWallet

	log.Printf("Host wallet %s ready on chain %s (batched: %t)", wallet.Address().Hex(), cfg.Chain.ChainID, batcher != nil)
	return nil
}

// Close releases the RPC connection and the database.
func (a *Application) Close() {
	if a.SyncJob != nil {
		a.SyncJob.Stop()
	}
	if a.client != nil {
		a.client.Close()
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}
}

func InitializeServices(db services.DBService, proposed *services.ProposedPayouts) (services.PoolService, services.ParticipantService, services.PayoutService) {
	poolService := services.NewPoolService(db.GetDB())
	participantService := services.NewParticipantService(db.GetDB())
	payoutService := services.NewPayoutService(db.GetDB(), proposed)

	return poolService, participantService, payoutService
}

func InitializeHooks(pools services.PoolService, participants services.ParticipantService, cache services.ReadCache) (services.Hook, services.Hook) {
	poolCacheHook := hooks.NewPoolCacheHook(pools, cache)
	participationHook := hooks.NewParticipationHook(pools, participants)

	return poolCacheHook, participationHook
}

func RegisterHooks(hookService services.HookService, poolCacheHook services.Hook, participationHook services.Hook) {
	if err := hookService.AddHook(poolCacheHook); err != nil {
		log.Fatal("Failed to register pool cache hook:", err)
	}
	if err := hookService.AddHook(participationHook); err != nil {
		log.Fatal("Failed to register participation hook:", err)
	}
}
