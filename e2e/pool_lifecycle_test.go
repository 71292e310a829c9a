package e2e

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPoolLifecycle creates a pool through the API and walks it to started on a local testnet.
// This test requires anvil to be running on localhost:8545 with the pool contract deployed.
func TestPoolLifecycle(t *testing.T) {
	setup := NewTestSetup(t)
	token := setup.Login(TESTING_ADDRESS_1, TESTING_PK_1)

	start := time.Now().Add(10 * time.Minute).UTC()
	var created struct {
		Pool struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"pool"`
		OnchainID uint64 `json:"onchainId"`
		Redirect  string `json:"redirect"`
		Warning   string `json:"warning"`
		Error     string `json:"error"`
	}
	status := setup.Request(http.MethodPost, "/api/pools", token, map[string]interface{}{
		"name":         "E2E Pool",
		"description":  "Created by the e2e suite",
		"banner_image": "https://example.com/banner.png",
		"price":        "5",
		"soft_cap":     10,
		"start_time":   start,
		"end_time":     start.Add(time.Hour),
	}, &created)
	require.Equal(t, http.StatusCreated, status, created.Error)
	assert.Empty(t, created.Warning)
	assert.Equal(t, "inactive", created.Pool.Status)
	assert.Equal(t, fmt.Sprintf("/pools/%d", created.OnchainID), created.Redirect)

	poolPath := fmt.Sprintf("/api/pools/%d", created.OnchainID)
	for _, step := range []struct {
		action string
		status string
	}{
		{"enable_deposit", "deposit_enabled"},
		{"start", "started"},
	} {
		var advanced struct {
			Pool struct {
				Status string `json:"status"`
			} `json:"pool"`
			Error string `json:"error"`
		}
		code := setup.Request(http.MethodPost, poolPath+"/"+step.action, token, nil, &advanced)
		require.Equal(t, http.StatusOK, code, advanced.Error)
		assert.Equal(t, step.status, advanced.Pool.Status)
	}

	var detail map[string]interface{}
	require.Equal(t, http.StatusOK, setup.Request(http.MethodGet, poolPath, "", nil, &detail))
	assert.NotNil(t, detail["pool"])

	// a finished step cannot be repeated
	var conflict map[string]interface{}
	assert.Equal(t, http.StatusConflict, setup.Request(http.MethodPost, poolPath+"/start", token, nil, &conflict))
}
