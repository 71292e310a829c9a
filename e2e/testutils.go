package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rxtech-lab/pooled-funds/internal/api"
	"github.com/rxtech-lab/pooled-funds/internal/config"
	"github.com/rxtech-lab/pooled-funds/internal/mcp"
	"github.com/rxtech-lab/pooled-funds/internal/server"
	"github.com/rxtech-lab/pooled-funds/internal/services"
	"github.com/rxtech-lab/pooled-funds/internal/utils"
	"github.com/stretchr/testify/require"
)

const (
	// Ethereum testnet configuration
	TESTNET_RPC      = "http://localhost:8545"
	TESTNET_CHAIN_ID = "31337" // Anvil default

	// Anvil account #0, the pool host and admin
	TESTING_PK_1      = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	TESTING_ADDRESS_1 = "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"
)

// TestSetup holds all test infrastructure
type TestSetup struct {
	t          *testing.T
	App        *server.Application
	APIServer  *api.APIServer
	ServerPort int
	EthClient  *ethclient.Client
	TempDir    string
}

// NewTestSetup starts the full server against a local Anvil node with a deployed pool
// contract. It skips the test when either is missing.
func NewTestSetup(t *testing.T) *TestSetup {
	contract := os.Getenv("E2E_POOL_CONTRACT")
	token := os.Getenv("E2E_TOKEN_ADDRESS")
	if contract == "" || token == "" {
		t.Skip("Skipping e2e test: E2E_POOL_CONTRACT and E2E_TOKEN_ADDRESS must be set")
	}

	ethClient, err := ethclient.Dial(TESTNET_RPC)
	if err != nil {
		t.Skipf("Skipping e2e test: anvil not running on %s", TESTNET_RPC)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	networkID, err := ethClient.NetworkID(ctx)
	if err != nil || networkID.Cmp(big.NewInt(31337)) != 0 {
		ethClient.Close()
		t.Skipf("Skipping e2e test: no Anvil node on %s", TESTNET_RPC)
	}

	setup := &TestSetup{t: t, EthClient: ethClient, TempDir: t.TempDir()}

	cfg := &config.Config{
		Database: config.DatabaseConfig{SQLitePath: filepath.Join(setup.TempDir, "test.db")},
		Auth: config.AuthConfig{
			JWTSecret:      "e2e-secret",
			AdminAddresses: []string{TESTING_ADDRESS_1},
			NonceTTL:       time.Minute,
		},
		Chain: config.ChainConfig{
			Name:           "anvil",
			RPCURL:         TESTNET_RPC,
			ChainID:        TESTNET_CHAIN_ID,
			PoolContract:   contract,
			TokenAddress:   token,
			TokenDecimals:  6,
			HostPrivateKey: TESTING_PK_1,
		},
		Executor: config.ExecutorConfig{
			PollInterval:        200 * time.Millisecond,
			ConfirmationTimeout: time.Minute,
		},
	}
	app, err := server.Initialize(context.Background(), cfg)
	require.NoError(t, err)
	setup.App = app

	apiServer := api.NewAPIServer(app.API)
	apiServer.SetMCPServer(mcp.NewMCPServer(app.MCP))
	apiServer.EnableStreamableHttp()
	port, err := apiServer.Start(nil)
	require.NoError(t, err)
	setup.APIServer = apiServer
	setup.ServerPort = port

	// Wait for server to be ready
	time.Sleep(100 * time.Millisecond)

	t.Cleanup(setup.Cleanup)
	return setup
}

func (s *TestSetup) Cleanup() {
	if s.APIServer != nil {
		s.APIServer.Shutdown()
	}
	if s.App != nil {
		s.App.Close()
	}
	if s.EthClient != nil {
		s.EthClient.Close()
	}
}

func (s *TestSetup) baseURL() string {
	return fmt.Sprintf("http://localhost:%d", s.ServerPort)
}

// Login signs the nonce challenge with privateKeyHex and returns a session token
func (s *TestSetup) Login(address, privateKeyHex string) string {
	var challenge services.NonceChallenge
	status := s.Request(http.MethodPost, "/api/nonce", "", map[string]string{"address": address}, &challenge)
	require.Equal(s.t, http.StatusOK, status)

	signature, err := utils.PersonalSignFromHex(challenge.Message, privateKeyHex)
	require.NoError(s.t, err)

	var login services.LoginResult
	status = s.Request(http.MethodPost, "/api/backend_login", "", map[string]string{
		"address":   address,
		"signature": signature,
	}, &login)
	require.Equal(s.t, http.StatusOK, status)
	require.NotEmpty(s.t, login.Token)
	return login.Token
}

// Request sends a JSON request and decodes the response into out, returning the status code
func (s *TestSetup) Request(method, path, token string, body interface{}, out interface{}) int {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, s.baseURL()+path, reader)
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 2 * time.Minute}
	resp, err := client.Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)
	if out != nil && len(raw) > 0 {
		require.NoError(s.t, json.Unmarshal(raw, out), string(raw))
	}
	return resp.StatusCode
}
