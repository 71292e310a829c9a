package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/rxtech-lab/pooled-funds/internal/api"
	"github.com/rxtech-lab/pooled-funds/internal/config"
	"github.com/rxtech-lab/pooled-funds/internal/server"
	"github.com/rxtech-lab/pooled-funds/internal/utils"
	"github.com/stretchr/testify/suite"
)

const (
	testSecret   = "test-secret"
	adminAddress = "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"
	userAddress  = "0x70997970c51812dc3a010c7d01b50e0d17dc79c8"
)

type StreamableHTTPTestSuite struct {
	suite.Suite
	app       *server.Application
	apiServer *api.APIServer
	port      int
}

func (suite *StreamableHTTPTestSuite) SetupSuite() {
	cfg := &config.Config{
		Database: config.DatabaseConfig{SQLitePath: ":memory:"},
		Auth: config.AuthConfig{
			JWTSecret:      testSecret,
			AdminAddresses: []string{adminAddress},
			NonceTTL:       time.Minute,
		},
		Chain: config.ChainConfig{
			Name:         "anvil",
			RPCURL:       "http://127.0.0.1:8545",
			ChainID:      "31337",
			PoolContract: "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		},
	}
	app, err := server.Initialize(context.Background(), cfg)
	suite.Require().NoError(err)
	suite.app = app

	// Configure and start server on a random port
	apiServer, port, err := configureAndStartServer(app, 0)
	suite.Require().NoError(err)
	suite.Require().NotZero(port, "Port should not be 0")

	suite.apiServer = apiServer
	suite.port = port

	// Wait for server to be ready
	time.Sleep(100 * time.Millisecond)
}

func (suite *StreamableHTTPTestSuite) TearDownSuite() {
	if suite.apiServer != nil {
		suite.apiServer.Shutdown()
	}
	if suite.app != nil {
		suite.app.Close()
	}
}

func (suite *StreamableHTTPTestSuite) getBaseURL() string {
	return fmt.Sprintf("http://localhost:%d", suite.port)
}

func (suite *StreamableHTTPTestSuite) token(address string, isAdmin bool) string {
	token, err := utils.NewJwtAuthenticator(testSecret, "pooled-funds").IssueToken(address, isAdmin)
	suite.Require().NoError(err)
	return token
}

func (suite *StreamableHTTPTestSuite) postInitialize(authorization string) *http.Response {
	client := &http.Client{Timeout: 10 * time.Second}

	mcpRequest := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params": map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities":    map[string]interface{}{},
			"clientInfo": map[string]interface{}{
				"name":    "test-client",
				"version": "1.0.0",
			},
		},
	}
	requestBody, err := json.Marshal(mcpRequest)
	suite.Require().NoError(err)

	req, err := http.NewRequest("POST", suite.getBaseURL()+"/mcp", bytes.NewBuffer(requestBody))
	suite.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	resp, err := client.Do(req)
	suite.Require().NoError(err)
	return resp
}

func (suite *StreamableHTTPTestSuite) TestMCPEndpointRequiresAuthentication() {
	resp := suite.postInitialize("")
	defer resp.Body.Close()
	suite.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (suite *StreamableHTTPTestSuite) TestMCPEndpointWithInvalidToken() {
	resp := suite.postInitialize("Bearer invalid-token")
	defer resp.Body.Close()
	suite.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (suite *StreamableHTTPTestSuite) TestMCPEndpointWithEmptyBearerToken() {
	resp := suite.postInitialize("Bearer ")
	defer resp.Body.Close()
	suite.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (suite *StreamableHTTPTestSuite) TestMCPEndpointRejectsNonAdmin() {
	resp := suite.postInitialize("Bearer " + suite.token(userAddress, false))
	defer resp.Body.Close()
	suite.Equal(http.StatusForbidden, resp.StatusCode)
}

func (suite *StreamableHTTPTestSuite) TestMCPEndpointAcceptsAdmin() {
	resp := suite.postInitialize("Bearer " + suite.token(adminAddress, true))
	defer resp.Body.Close()
	suite.Equal(http.StatusOK, resp.StatusCode)
}

func (suite *StreamableHTTPTestSuite) TestPublicRoutesWithoutAuth() {
	client := &http.Client{Timeout: 10 * time.Second}
	for _, path := range []string{"/health", "/api/pools", "/api/contracts/Pool"} {
		resp, err := client.Get(suite.getBaseURL() + path)
		suite.Require().NoError(err)
		resp.Body.Close()
		suite.Equal(http.StatusOK, resp.StatusCode, path)
	}
}

func (suite *StreamableHTTPTestSuite) TestWorkflowRoutesUnavailableWithoutHostKey() {
	client := &http.Client{Timeout: 10 * time.Second}
	req, err := http.NewRequest("POST", suite.getBaseURL()+"/api/pools", bytes.NewBufferString("{}"))
	suite.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+suite.token(adminAddress, true))

	resp, err := client.Do(req)
	suite.Require().NoError(err)
	defer resp.Body.Close()
	suite.Equal(http.StatusServiceUnavailable, resp.StatusCode)
}

func TestStreamableHTTPTestSuite(t *testing.T) {
	suite.Run(t, new(StreamableHTTPTestSuite))
}
