package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// GetAPIToken returns the bearer token protecting the management API.
// The token is generated on first call and persisted 0600 under dataDir so
// restarts keep the same credential. SPRACHLAB_API_TOKEN overrides it.
func GetAPIToken(dataDir string) (string, error) {
	if t := os.Getenv("SPRACHLAB_API_TOKEN"); t != "" {
		return t, nil
	}

	path := filepath.Join(dataDir, "api_token")
	if data, err := os.ReadFile(path); err == nil {
		token := strings.TrimSpace(string(data))
		if token != "" {
			return token, nil
		}
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating API token: %w", err)
	}
	token := hex.EncodeToString(buf)

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", fmt.Errorf("creating data dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("persisting API token: %w", err)
	}
	return token, nil
}
