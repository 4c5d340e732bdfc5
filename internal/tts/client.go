package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultModel      = "tts-1"
	synthesizeTimeout = 30 * time.Second
)

// Client calls an OpenAI-compatible speech synthesis endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	voice      string
	httpClient *http.Client
}

func NewClient(apiKey, baseURL, voice string) *Client {
	if voice == "" {
		voice = "alloy"
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		voice:   voice,
		httpClient: &http.Client{
			Timeout: synthesizeTimeout,
		},
	}
}

// Synthesize renders text to MP3 audio bytes.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(map[string]string{
		"model":           defaultModel,
		"input":           text,
		"voice":           c.voice,
		"response_format": "mp3",
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading audio: %w", err)
	}
	return audio, nil
}
