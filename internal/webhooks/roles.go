package webhooks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultProviderURL = "https://api.clerk.com/v1"

// RoleClient pushes role metadata to the auth provider's management API.
type RoleClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewRoleClient(apiKey string) *RoleClient {
	return &RoleClient{
		apiKey:  apiKey,
		baseURL: defaultProviderURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func NewRoleClientWithBaseURL(apiKey, baseURL string) *RoleClient {
	c := NewRoleClient(apiKey)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// SetUserRole writes the role into the user's public metadata.
func (c *RoleClient) SetUserRole(userID, role string) error {
	body, err := json.Marshal(map[string]any{
		"public_metadata": map[string]string{"role": role},
	})
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	req, err := http.NewRequest(http.MethodPatch, c.baseURL+"/users/"+userID+"/metadata", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("updating user metadata: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider returned status %d", resp.StatusCode)
	}
	return nil
}
