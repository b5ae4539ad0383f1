// Factory wiring a resolved Config to the built-in provider dispatchers.
package unillm

import (
	"context"
	"fmt"

	"github.com/xostack/unillm/anthropic"
	"github.com/xostack/unillm/gemini"
	"github.com/xostack/unillm/groq"
	"github.com/xostack/unillm/ollama"
)

// DispatchSettings carries transport-level knobs that are not part of the
// validated model configuration.
type DispatchSettings struct {
	// BaseURL overrides the provider's API endpoint. Empty means the
	// provider default ("http://localhost:11434" for ollama).
	BaseURL string

	// RequestTimeoutSeconds bounds each request. Values <= 0 use the
	// provider default.
	RequestTimeoutSeconds int

	// DebugMode enables verbose logging inside the dispatcher.
	DebugMode bool
}

// NewDispatcher builds the transport for a resolved configuration.
//
// Each built-in provider gets its dispatcher constructed with the
// credential, model ID, and validated parameters from cfg. Providers added
// through a custom registry carry no built-in transport and must be paired
// with WithDispatcher.
//
// Making it a variable to allow for easy mocking in tests.
var NewDispatcher func(cfg Config, settings DispatchSettings) (Dispatcher, error) = func(cfg Config, settings DispatchSettings) (Dispatcher, error) {
	switch cfg.Provider {
	case "anthropic":
		return anthropic.New(cfg.Credential.Value, cfg.ModelID, cfg.Parameters,
			settings.BaseURL, settings.RequestTimeoutSeconds, settings.DebugMode)
	case "gemini":
		return gemini.New(context.Background(), cfg.Credential.Value, cfg.ModelID,
			cfg.Parameters, settings.RequestTimeoutSeconds, settings.DebugMode)
	case "groq":
		return groq.New(cfg.Credential.Value, cfg.ModelID, cfg.Parameters,
			settings.RequestTimeoutSeconds, settings.DebugMode)
	case "ollama":
		return ollama.New(settings.BaseURL, cfg.ModelID, cfg.Parameters,
			settings.RequestTimeoutSeconds, settings.DebugMode)
	default:
		return nil, fmt.Errorf("no dispatcher for provider %q", cfg.Provider)
	}
}
