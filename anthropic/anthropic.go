// Package anthropic provides a dispatcher for the Anthropic Messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const (
	providerName    = "anthropic"
	defaultBaseURL  = "https://api.anthropic.com"
	messagesPath    = "/v1/messages"
	apiVersion      = "2023-06-01"
	defaultTimeout  = 60 * time.Second
	fallbackMaxToks = 1024 // Messages API requires max_tokens; used only if the config carries none
)

// Dispatcher sends chat requests to the Anthropic Messages API.
type Dispatcher struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	modelName  string
	parameters map[string]any
	debugMode  bool
}

// messagesRequest is the request body for the Messages API.
type messagesRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	TopK        *int          `json:"top_k,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type tokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// messagesResponse is the response body from the Messages API. The Error
// field is populated instead of Content when the API rejects a request.
type messagesResponse struct {
	ID         string         `json:"id"`
	Model      string         `json:"model"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      tokenUsage     `json:"usage"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// New creates an Anthropic dispatcher. The parameters map holds the
// validated values resolved at construction time (temperature, top_p,
// top_k, max_tokens); unset entries fall back to API defaults. An empty
// baseURL uses the public API endpoint.
func New(apiKey, modelName string, parameters map[string]any, baseURL string, requestTimeoutSeconds int, debugMode bool) (*Dispatcher, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("anthropic model name is required")
	}

	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	timeout := defaultTimeout
	if requestTimeoutSeconds > 0 {
		timeout = time.Duration(requestTimeoutSeconds) * time.Second
	}

	if debugMode {
		log.Printf("Anthropic dispatcher for model %s (timeout %v)", modelName, timeout)
	}

	return &Dispatcher{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		modelName:  modelName,
		parameters: parameters,
		debugMode:  debugMode,
	}, nil
}

// Dispatch sends the input as a single user message and returns the
// concatenated text blocks of the reply.
func (d *Dispatcher) Dispatch(ctx context.Context, input string) (string, error) {
	if d.httpClient == nil {
		return "", fmt.Errorf("anthropic dispatcher not initialized")
	}

	payload := d.buildRequest(input)
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal Anthropic request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+messagesPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create Anthropic request: %w", err)
	}
	req.Header.Set("x-api-key", d.apiKey)
	req.Header.Set("anthropic-version", apiVersion)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request to Anthropic API: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read Anthropic response body: %w", err)
	}

	var apiResp messagesResponse
	if err := json.Unmarshal(responseBody, &apiResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal Anthropic response JSON: %w. Status: %s, Body: %s",
			err, resp.Status, string(responseBody))
	}

	// The JSON error object is more specific than the status line, so check
	// it first.
	if apiResp.Error != nil {
		return "", fmt.Errorf("anthropic API error: %s (Type: %s). HTTP Status: %s",
			apiResp.Error.Message, apiResp.Error.Type, resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("anthropic API request failed with status %s. Body: %s",
			resp.Status, string(responseBody))
	}

	var text strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		if d.debugMode {
			log.Printf("Anthropic response details: ID=%s, Model=%s, StopReason=%s, Usage=%+v",
				apiResp.ID, apiResp.Model, apiResp.StopReason, apiResp.Usage)
		}
		return "", fmt.Errorf("anthropic response contained no text content. HTTP Status: %s", resp.Status)
	}

	return text.String(), nil
}

// buildRequest maps the validated parameter set onto the Messages API
// request body.
func (d *Dispatcher) buildRequest(input string) messagesRequest {
	req := messagesRequest{
		Model:     d.modelName,
		MaxTokens: fallbackMaxToks,
		Messages:  []chatMessage{{Role: "user", Content: input}},
	}

	if v, ok := d.parameters["max_tokens"].(int); ok {
		req.MaxTokens = v
	}
	if v, ok := d.parameters["temperature"].(float64); ok {
		req.Temperature = &v
	}
	if v, ok := d.parameters["top_p"].(float64); ok {
		req.TopP = &v
	}
	if v, ok := d.parameters["top_k"].(int); ok {
		req.TopK = &v
	}

	return req
}

// ProviderName returns the name of this provider.
func (d *Dispatcher) ProviderName() string {
	return providerName
}

// Close is a no-op; the dispatcher holds no connections of its own.
func (d *Dispatcher) Close() error {
	return nil
}
