package utils

import (
	"fmt"
	"net/url"
)

// PoolPath is the client route for a confirmed pool.
func PoolPath(onchainID uint64) string {
	return fmt.Sprintf("/pools/%d", onchainID)
}

// GetPoolUrl resolves PoolPath against baseURL, falling back to localhost on serverPort.
func GetPoolUrl(baseURL string, serverPort int, onchainID uint64) (string, error) {
	if baseURL == "" {
		return fmt.Sprintf("http://localhost:%d%s", serverPort, PoolPath(onchainID)), nil
	}

	parsedUrl, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	if parsedUrl.Scheme == "" || parsedUrl.Host == "" {
		return "", fmt.Errorf("invalid base url: %s", baseURL)
	}
	parsedUrl.Path = PoolPath(onchainID)
	return parsedUrl.String(), nil
}
