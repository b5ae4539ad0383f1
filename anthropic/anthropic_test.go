package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testParameters() map[string]any {
	return map[string]any{
		"temperature": 0.7,
		"top_p":       0.9,
		"top_k":       5,
		"max_tokens":  256,
	}
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New("", "claude-2.1", testParameters(), "", 30, false)
	if err == nil {
		t.Fatal("Expected error for missing API key")
	}
}

func TestNew_RequiresModelName(t *testing.T) {
	_, err := New("sk-test", "", testParameters(), "", 30, false)
	if err == nil {
		t.Fatal("Expected error for missing model name")
	}
}

func TestNew_DefaultBaseURL(t *testing.T) {
	d, err := New("sk-test", "claude-2.1", testParameters(), "", 30, false)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if d.baseURL != "https://api.anthropic.com" {
		t.Errorf("Expected default base URL, got '%s'", d.baseURL)
	}
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	d, err := New("sk-test", "claude-2.1", testParameters(), "https://proxy.example.com/", 30, false)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if d.baseURL != "https://proxy.example.com" {
		t.Errorf("Expected trailing slash to be trimmed, got '%s'", d.baseURL)
	}
}

func TestDispatch_SendsResolvedConfiguration(t *testing.T) {
	var captured messagesRequest
	var headers http.Header

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		if r.URL.Path != "/v1/messages" {
			t.Errorf("Expected path '/v1/messages', got '%s'", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("Failed to decode request body: %v", err)
		}
		json.NewEncoder(w).Encode(messagesResponse{
			ID:      "msg_01",
			Model:   "claude-2.1",
			Content: []contentBlock{{Type: "text", Text: "Hello from Claude"}},
			Usage:   tokenUsage{InputTokens: 3, OutputTokens: 4},
		})
	}))
	defer server.Close()

	d, err := New("sk-test", "claude-2.1", testParameters(), server.URL, 30, false)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	reply, err := d.Dispatch(context.Background(), "Say hello")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if reply != "Hello from Claude" {
		t.Errorf("Expected reply 'Hello from Claude', got '%s'", reply)
	}

	if headers.Get("x-api-key") != "sk-test" {
		t.Errorf("Expected x-api-key header 'sk-test', got '%s'", headers.Get("x-api-key"))
	}
	if headers.Get("anthropic-version") != "2023-06-01" {
		t.Errorf("Expected anthropic-version '2023-06-01', got '%s'", headers.Get("anthropic-version"))
	}

	if captured.Model != "claude-2.1" {
		t.Errorf("Expected model 'claude-2.1', got '%s'", captured.Model)
	}
	if captured.MaxTokens != 256 {
		t.Errorf("Expected max_tokens 256, got %d", captured.MaxTokens)
	}
	if captured.Temperature == nil || *captured.Temperature != 0.7 {
		t.Errorf("Expected temperature 0.7, got %v", captured.Temperature)
	}
	if captured.TopP == nil || *captured.TopP != 0.9 {
		t.Errorf("Expected top_p 0.9, got %v", captured.TopP)
	}
	if captured.TopK == nil || *captured.TopK != 5 {
		t.Errorf("Expected top_k 5, got %v", captured.TopK)
	}
	if len(captured.Messages) != 1 || captured.Messages[0].Role != "user" || captured.Messages[0].Content != "Say hello" {
		t.Errorf("Expected single user message 'Say hello', got %+v", captured.Messages)
	}
}

func TestDispatch_ConcatenatesTextBlocks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(messagesResponse{
			Content: []contentBlock{
				{Type: "text", Text: "part one"},
				{Type: "tool_use"},
				{Type: "text", Text: " part two"},
			},
		})
	}))
	defer server.Close()

	d, err := New("sk-test", "claude-2.1", testParameters(), server.URL, 30, false)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	reply, err := d.Dispatch(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if reply != "part one part two" {
		t.Errorf("Expected concatenated text blocks, got '%s'", reply)
	}
}

func TestDispatch_APIErrorObject(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	defer server.Close()

	d, err := New("sk-bad", "claude-2.1", testParameters(), server.URL, 30, false)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	_, err = d.Dispatch(context.Background(), "hi")
	if err == nil {
		t.Fatal("Expected error from API error object")
	}
}

func TestDispatch_HTTPErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	d, err := New("sk-test", "claude-2.1", testParameters(), server.URL, 30, false)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	_, err = d.Dispatch(context.Background(), "hi")
	if err == nil {
		t.Fatal("Expected error for 500 response")
	}
}

func TestDispatch_EmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(messagesResponse{StopReason: "end_turn"})
	}))
	defer server.Close()

	d, err := New("sk-test", "claude-2.1", testParameters(), server.URL, 30, false)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	_, err = d.Dispatch(context.Background(), "hi")
	if err == nil {
		t.Fatal("Expected error for response without text content")
	}
}

func TestDispatch_SparseParameters(t *testing.T) {
	var captured messagesRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(messagesResponse{
			Content: []contentBlock{{Type: "text", Text: "ok"}},
		})
	}))
	defer server.Close()

	// Only max_tokens resolved; optional sampling knobs stay unset.
	d, err := New("sk-test", "claude-2.1", map[string]any{"max_tokens": 64}, server.URL, 30, false)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if _, err := d.Dispatch(context.Background(), "hi"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if captured.MaxTokens != 64 {
		t.Errorf("Expected max_tokens 64, got %d", captured.MaxTokens)
	}
	if captured.Temperature != nil {
		t.Errorf("Expected temperature omitted, got %v", *captured.Temperature)
	}
	if captured.TopK != nil {
		t.Errorf("Expected top_k omitted, got %v", *captured.TopK)
	}
}

func TestProviderName(t *testing.T) {
	d, err := New("sk-test", "claude-2.1", testParameters(), "", 30, false)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if d.ProviderName() != "anthropic" {
		t.Errorf("Expected provider name 'anthropic', got '%s'", d.ProviderName())
	}
}

func TestClose_Idempotent(t *testing.T) {
	d, err := New("sk-test", "claude-2.1", testParameters(), "", 30, false)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("Expected first Close() to succeed, got: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("Expected second Close() to succeed, got: %v", err)
	}
}
