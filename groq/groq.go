// Package groq provides a dispatcher for Groq's OpenAI-compatible chat API.
package groq

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
	providerName    = "groq"
	groqAPIEndpoint = "https://api.groq.com/openai/v1/chat/completions"
	maxRetries      = 1 // Simple retry for transient network issues
	retryDelay      = 1 * time.Second
	defaultTimeout  = 60 * time.Second
)

// Dispatcher sends chat requests to Groq's chat-completions endpoint.
type Dispatcher struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	modelName  string
	parameters map[string]any
	debugMode  bool
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatCompletionRequest is the request body for Groq's chat-completions
// API. Optional knobs use pointers so unset values are omitted.
type chatCompletionRequest struct {
	Messages    []chatMessage `json:"messages"`
	Model       string        `json:"model"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatCompletionChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type tokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatCompletionResponse struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Created int64                  `json:"created"`
	Model   string                 `json:"model"`
	Choices []chatCompletionChoice `json:"choices"`
	Usage   tokenUsage             `json:"usage"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Param   string `json:"param,omitempty"`
		Code    string `json:"code,omitempty"`
	} `json:"error,omitempty"`
}

// New creates a Groq dispatcher. The parameters map holds the validated
// values resolved at construction time (temperature, top_p, max_tokens);
// Groq's API takes no top_k.
func New(apiKey, modelName string, parameters map[string]any, requestTimeoutSeconds int, debugMode bool) (*Dispatcher, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("groq API key is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("groq model name is required")
	}

	timeout := defaultTimeout
	if requestTimeoutSeconds > 0 {
		timeout = time.Duration(requestTimeoutSeconds) * time.Second
	}

	if debugMode {
		log.Printf("Groq dispatcher for model %s (timeout %v)", modelName, timeout)
	}

	return &Dispatcher{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   groqAPIEndpoint,
		apiKey:     apiKey,
		modelName:  modelName,
		parameters: parameters,
		debugMode:  debugMode,
	}, nil
}

// Dispatch sends the input as a single user message and returns the first
// choice's content.
func (d *Dispatcher) Dispatch(ctx context.Context, input string) (string, error) {
	if d.httpClient == nil {
		return "", fmt.Errorf("groq dispatcher not initialized")
	}

	payload := chatCompletionRequest{
		Messages: []chatMessage{{Role: "user", Content: input}},
		Model:    d.modelName,
		Stream:   false,
	}
	if v, ok := d.parameters["temperature"].(float64); ok {
		payload.Temperature = &v
	}
	if v, ok := d.parameters["top_p"].(float64); ok {
		payload.TopP = &v
	}
	if v, ok := d.parameters["max_tokens"].(int); ok {
		payload.MaxTokens = &v
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal Groq request payload: %w", err)
	}

	var resp *http.Response
	var lastErr error

	for i := 0; i <= maxRetries; i++ {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(payloadBytes))
		if reqErr != nil {
			return "", fmt.Errorf("failed to create Groq request: %w", reqErr)
		}
		req.Header.Set("Authorization", "Bearer "+d.apiKey)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err = d.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("failed to send request to Groq API: %w", err)
			if ctx.Err() != nil {
				return "", lastErr // Don't retry on context errors
			}
			if d.debugMode {
				log.Printf("Groq request attempt %d failed: %v. Retrying in %v...", i+1, err, retryDelay)
			}
			time.Sleep(retryDelay)
			continue
		}
		lastErr = nil
		break
	}
	if lastErr != nil {
		return "", lastErr
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read Groq response body: %w", err)
	}

	var groqResp chatCompletionResponse
	if err := json.Unmarshal(responseBody, &groqResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal Groq response JSON: %w. Status: %s, Body: %s",
			err, resp.Status, string(responseBody))
	}

	// The JSON error object is more specific than the status line, so check
	// it first.
	if groqResp.Error != nil {
		return "", fmt.Errorf("groq API error: %s (Type: %s, Code: %s). HTTP Status: %s",
			groqResp.Error.Message, groqResp.Error.Type, groqResp.Error.Code, resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("groq API request failed with status %s. Body: %s",
			resp.Status, string(responseBody))
	}

	if len(groqResp.Choices) == 0 || groqResp.Choices[0].Message.Content == "" {
		if d.debugMode {
			log.Printf("Groq response details: ID=%s, Model=%s, Usage=%+v",
				groqResp.ID, groqResp.Model, groqResp.Usage)
		}
		return "", fmt.Errorf("groq response contained no choices or empty message content. HTTP Status: %s", resp.Status)
	}

	return strings.TrimSpace(groqResp.Choices[0].Message.Content), nil
}

// ProviderName returns the name of this provider.
func (d *Dispatcher) ProviderName() string {
	return providerName
}

// Close is a no-op; the dispatcher holds no connections of its own.
func (d *Dispatcher) Close() error {
	return nil
}
