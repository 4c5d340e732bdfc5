package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL   = "https://api.openai.com/v1"
	defaultTimeout   = 60 * time.Second
	streamingTimeout = 300 * time.Second
	maxRetries       = 3
	initialBackoff   = 500 * time.Millisecond
)

// Client communicates with an OpenAI-compatible chat completion API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client with the given API key.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// NewClientWithBaseURL creates a client pointing at a custom base URL (for testing).
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	c := NewClient(apiKey)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// Chat sends a chat completion request and returns the response body as a
// ReadCloser. For streaming requests the body contains SSE events; the caller
// is responsible for closing it. For non-streaming requests the body contains
// the complete JSON response.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (io.ReadCloser, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	timeout := defaultTimeout
	if req.Stream {
		timeout = streamingTimeout
	}

	var lastErr error
	for attempt := range maxRetries {
		rc, err := c.doChat(ctx, body, timeout)
		if err == nil {
			return rc, nil
		}

		if !isRateLimit(err) {
			return nil, err
		}

		lastErr = err
		if attempt < maxRetries-1 {
			backoff := time.Duration(float64(initialBackoff) * math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, fmt.Errorf("rate limited after %d retries: %w", maxRetries, lastErr)
}

// Complete sends a non-streaming request built from plain messages and
// returns the assistant message content.
func (c *Client) Complete(ctx context.Context, model string, messages []Message) (string, error) {
	msgs, err := json.Marshal(messages)
	if err != nil {
		return "", fmt.Errorf("marshaling messages: %w", err)
	}

	rc, err := c.Chat(ctx, ChatRequest{Model: model, Messages: msgs})
	if err != nil {
		return "", err
	}
	defer rc.Close()

	return readAssistantContent(rc)
}

// CompleteStructured sends a non-streaming request with a json_schema
// response format and returns the assistant message content, which the
// caller unmarshals into the struct the schema describes.
func (c *Client) CompleteStructured(ctx context.Context, model string, messages []Message, name string, schema Schema) (string, error) {
	msgs, err := json.Marshal(messages)
	if err != nil {
		return "", fmt.Errorf("marshaling messages: %w", err)
	}

	format, err := json.Marshal(map[string]any{
		"type": "json_schema",
		"json_schema": map[string]any{
			"name":   name,
			"strict": true,
			"schema": schema,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling response format: %w", err)
	}

	rc, err := c.Chat(ctx, ChatRequest{
		Model:    model,
		Messages: msgs,
		Extra:    map[string]json.RawMessage{"response_format": format},
	})
	if err != nil {
		return "", err
	}
	defer rc.Close()

	return readAssistantContent(rc)
}

func readAssistantContent(r io.Reader) (string, error) {
	var resp chatResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("response contains no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// rateLimitError is returned on HTTP 429.
type rateLimitError struct {
	status int
}

func (e *rateLimitError) Error() string {
	return fmt.Sprintf("rate limited (HTTP %d)", e.status)
}

func isRateLimit(err error) bool {
	_, ok := err.(*rateLimitError)
	return ok
}

func (c *Client) doChat(ctx context.Context, body []byte, timeout time.Duration) (io.ReadCloser, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("executing request: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		resp.Body.Close()
		cancel()
		return nil, &rateLimitError{status: resp.StatusCode}
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	// Wrap the body so the timeout context cancel is called when the caller closes it.
	return &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}, nil
}

// cancelOnClose wraps a ReadCloser and cancels a context on Close.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
