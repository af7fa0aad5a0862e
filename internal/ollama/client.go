package ollama

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

// Client wraps Ollama API interactions
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new Ollama client
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute, // generation can be slow on local models
		},
	}
}

// GenerateRequest represents a generation request
type GenerateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

// GenerateResponse represents a generation response
type GenerateResponse struct {
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
	Response  string `json:"response"`
	Done      bool   `json:"done"`
}

// Generate generates text using Ollama. A context cancellation surfaces as
// ctx.Err(), distinguishable from other failures.
func (c *Client) Generate(ctx context.Context, req *GenerateRequest) (string, error) {
	body, err := c.do(ctx, req)
	if err != nil {
		return "", err
	}
	defer body.Close()

	var result strings.Builder
	decoder := json.NewDecoder(body)
	for {
		var genResp GenerateResponse
		if err := decoder.Decode(&genResp); err != nil {
			if err == io.EOF {
				break
			}
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", fmt.Errorf("failed to decode response: %w", err)
		}
		result.WriteString(genResp.Response)
		if genResp.Done {
			break
		}
	}
	return result.String(), nil
}

// GenerateStream generates text, delivering chunks as they arrive
func (c *Client) GenerateStream(ctx context.Context, req *GenerateRequest, onChunk func(string)) error {
	req.Stream = true
	body, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	defer body.Close()

	decoder := json.NewDecoder(body)
	for {
		var genResp GenerateResponse
		if err := decoder.Decode(&genResp); err != nil {
			if err == io.EOF {
				break
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to decode response: %w", err)
		}
		if genResp.Response != "" {
			onChunk(genResp.Response)
		}
		if genResp.Done {
			break
		}
	}
	return nil
}

// do issues the generate request and returns the raw response body
func (c *Client) do(ctx context.Context, req *GenerateRequest) (io.ReadCloser, error) {
	url := fmt.Sprintf("%s/api/generate", c.baseURL)

	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("ollama API error: %d - %s", resp.StatusCode, string(body))
	}
	return resp.Body, nil
}

// Caller adapts the client to the engines' single-prompt transport contract
type Caller struct {
	client  *Client
	model   string
	onChunk func(string)
}

// NewCaller creates a caller bound to one model
func NewCaller(client *Client, model string) *Caller {
	return &Caller{client: client, model: model}
}

// NewStreamingCaller creates a caller that also delivers response chunks as
// they arrive, for live previews. Invoke still returns the full text.
func NewStreamingCaller(client *Client, model string, onChunk func(string)) *Caller {
	return &Caller{client: client, model: model, onChunk: onChunk}
}

// Invoke runs one generation call and returns the full response text
func (c *Caller) Invoke(ctx context.Context, promptText string) (string, error) {
	req := &GenerateRequest{
		Model:  c.model,
		Prompt: promptText,
	}
	if c.onChunk == nil {
		return c.client.Generate(ctx, req)
	}

	var full strings.Builder
	err := c.client.GenerateStream(ctx, req, func(chunk string) {
		full.WriteString(chunk)
		c.onChunk(chunk)
	})
	if err != nil {
		return "", err
	}
	return full.String(), nil
}
