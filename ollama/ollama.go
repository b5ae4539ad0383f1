// Package ollama provides a dispatcher for self-hosted Ollama servers.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	providerName    = "ollama"
	defaultBaseURL  = "http://localhost:11434"
	generateAPIPath = "/api/generate"
	defaultTimeout  = 60 * time.Second
)

// Dispatcher sends generate requests to an Ollama server. Ollama needs no
// API key; the server address is the only credential-like setting.
type Dispatcher struct {
	httpClient *http.Client
	baseURL    string
	modelName  string
	parameters map[string]any
	debugMode  bool
}

// generateRequest is the request body for Ollama's /api/generate. The
// validated parameter set travels in Options using Ollama's option names
// (max_tokens becomes num_predict).
type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

// generateResponse is the non-streaming response from /api/generate.
type generateResponse struct {
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	Response  string    `json:"response"`
	Done      bool      `json:"done"`
	Error     string    `json:"error,omitempty"`
}

// New creates an Ollama dispatcher. An empty baseURL uses the local
// default server address.
func New(baseURL, modelName string, parameters map[string]any, requestTimeoutSeconds int, debugMode bool) (*Dispatcher, error) {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if modelName == "" {
		return nil, fmt.Errorf("ollama model name is required")
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama base URL '%s': %w", baseURL, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("Ollama base URL scheme must be http or https, got '%s'", parsedURL.Scheme)
	}
	cleanedBaseURL := strings.TrimSuffix(parsedURL.String(), "/")

	timeout := defaultTimeout
	if requestTimeoutSeconds > 0 {
		timeout = time.Duration(requestTimeoutSeconds) * time.Second
	}

	if debugMode {
		log.Printf("Ollama dispatcher for model %s at %s (timeout %v)", modelName, cleanedBaseURL, timeout)
	}

	return &Dispatcher{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cleanedBaseURL,
		modelName:  modelName,
		parameters: parameters,
		debugMode:  debugMode,
	}, nil
}

// Dispatch sends the input to /api/generate and returns the generated
// text.
func (d *Dispatcher) Dispatch(ctx context.Context, input string) (string, error) {
	if d.httpClient == nil {
		return "", fmt.Errorf("ollama dispatcher not initialized")
	}

	payload := generateRequest{
		Model:   d.modelName,
		Prompt:  input,
		Stream:  false,
		Options: d.buildOptions(),
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal Ollama request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+generateAPIPath, bytes.NewReader(payloadBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create Ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request to Ollama server: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read Ollama response body: %w", err)
	}

	var ollamaResp generateResponse
	if err := json.Unmarshal(responseBody, &ollamaResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal Ollama response JSON: %w. Status: %s, Body: %s",
			err, resp.Status, string(responseBody))
	}

	if ollamaResp.Error != "" {
		return "", fmt.Errorf("ollama server error: %s. HTTP Status: %s", ollamaResp.Error, resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama request failed with status %s. Body: %s", resp.Status, string(responseBody))
	}

	if ollamaResp.Response == "" {
		return "", fmt.Errorf("ollama response contained no generated text. HTTP Status: %s", resp.Status)
	}

	return strings.TrimSpace(ollamaResp.Response), nil
}

// buildOptions maps the validated parameter set onto Ollama's runner
// options.
func (d *Dispatcher) buildOptions() map[string]any {
	options := make(map[string]any, len(d.parameters))
	if v, ok := d.parameters["temperature"].(float64); ok {
		options["temperature"] = v
	}
	if v, ok := d.parameters["top_p"].(float64); ok {
		options["top_p"] = v
	}
	if v, ok := d.parameters["top_k"].(int); ok {
		options["top_k"] = v
	}
	if v, ok := d.parameters["max_tokens"].(int); ok {
		options["num_predict"] = v
	}
	if len(options) == 0 {
		return nil
	}
	return options
}

// ProviderName returns the name of this provider.
func (d *Dispatcher) ProviderName() string {
	return providerName
}

// Close is a no-op; the dispatcher holds no connections of its own.
func (d *Dispatcher) Close() error {
	return nil
}
