package gemini

import (
	"context"
	"testing"
)

func testParameters() map[string]any {
	return map[string]any{
		"temperature": 1.0,
		"top_p":       0.95,
		"top_k":       40,
		"max_tokens":  2048,
	}
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(context.Background(), "", "gemini-1.5-flash-latest", testParameters(), 30, false)
	if err == nil {
		t.Fatal("Expected error for missing API key")
	}
}

func TestNew_RequiresModelName(t *testing.T) {
	_, err := New(context.Background(), "test-key", "", testParameters(), 30, false)
	if err == nil {
		t.Fatal("Expected error for missing model name")
	}
}

func TestNew_ValidConfiguration(t *testing.T) {
	// SDK client construction performs no network request, so a fake key
	// is fine here.
	d, err := New(context.Background(), "test-key", "gemini-1.5-flash-latest", testParameters(), 30, false)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	defer d.Close()

	if d.modelName != "gemini-1.5-flash-latest" {
		t.Errorf("Expected model 'gemini-1.5-flash-latest', got '%s'", d.modelName)
	}
}

func TestApplyParameters(t *testing.T) {
	d, err := New(context.Background(), "test-key", "gemini-1.5-flash-latest", testParameters(), 30, false)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	defer d.Close()

	model := d.genaiClient.GenerativeModel(d.modelName)
	d.applyParameters(model)

	if model.Temperature == nil || *model.Temperature != 1.0 {
		t.Errorf("Expected temperature 1.0, got %v", model.Temperature)
	}
	if model.TopP == nil || *model.TopP != 0.95 {
		t.Errorf("Expected top_p 0.95, got %v", model.TopP)
	}
	if model.TopK == nil || *model.TopK != 40 {
		t.Errorf("Expected top_k 40, got %v", model.TopK)
	}
	if model.MaxOutputTokens == nil || *model.MaxOutputTokens != 2048 {
		t.Errorf("Expected max_tokens 2048, got %v", model.MaxOutputTokens)
	}
}

func TestApplyParameters_SparseSet(t *testing.T) {
	d, err := New(context.Background(), "test-key", "gemini-1.5-flash-latest",
		map[string]any{"temperature": 0.2}, 30, false)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	defer d.Close()

	model := d.genaiClient.GenerativeModel(d.modelName)
	d.applyParameters(model)

	if model.Temperature == nil || *model.Temperature != 0.2 {
		t.Errorf("Expected temperature 0.2, got %v", model.Temperature)
	}
	if model.TopK != nil {
		t.Errorf("Expected top_k to remain unset, got %v", *model.TopK)
	}
	if model.MaxOutputTokens != nil {
		t.Errorf("Expected max_tokens to remain unset, got %v", *model.MaxOutputTokens)
	}
}

func TestProviderName(t *testing.T) {
	d, err := New(context.Background(), "test-key", "gemini-1.5-flash-latest", testParameters(), 30, false)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	defer d.Close()

	if d.ProviderName() != "gemini" {
		t.Errorf("Expected provider name 'gemini', got '%s'", d.ProviderName())
	}
}

func TestClose_Idempotent(t *testing.T) {
	d, err := New(context.Background(), "test-key", "gemini-1.5-flash-latest", testParameters(), 30, false)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if err := d.Close(); err != nil {
		t.Errorf("Expected first Close() to succeed, got: %v", err)
	}
	// A second close must not panic; the SDK may return an error here,
	// which is acceptable.
	_ = d.Close()
}
