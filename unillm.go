// Package unillm provides a unified facade for addressing multiple LLM
// vendors through a single "provider/model" identifier.
//
// An LLM instance is constructed from a spec string plus a uniform set of
// parameter overrides. Construction is a pure validation and resolution
// step: the (provider, model) pair is checked against the model registry,
// an API key is resolved from an explicit value or the provider's
// environment variable, and overrides are validated against the model's
// declarative parameter rules and merged over the registry defaults. No
// network I/O happens until Chat is called.
//
// Example usage:
//
//	llm, err := unillm.New("anthropic/claude-2.1",
//		unillm.WithTemperature(0.7),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer llm.Close()
//
//	reply, err := llm.Chat(context.Background(), "Hello, world!")
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(reply)
//
// Supported providers and models live in the registry package as data, not
// code; see registry/models.toml for the built-in catalogue.
package unillm

import (
	"context"
	"fmt"
)

// Dispatcher performs the actual network request for one provider. It is
// the only collaborator that touches the wire; everything in this package
// runs without network access.
//
// Implementations should respect context cancellation and wrap
// provider-specific failures in descriptive errors.
type Dispatcher interface {
	// Dispatch sends the input to the provider using the configuration the
	// dispatcher was constructed with and returns the model's text reply.
	Dispatch(ctx context.Context, input string) (string, error)

	// ProviderName returns the stable lowercase provider identifier
	// (e.g. "anthropic").
	ProviderName() string

	// Close releases any resources held by the dispatcher. It must be safe
	// to call more than once.
	Close() error
}

// MalformedSpecError reports a spec string without the "/" separating
// provider from model.
type MalformedSpecError struct {
	Spec string
}

func (e *MalformedSpecError) Error() string {
	return fmt.Sprintf("malformed model spec %q: want \"<provider>/<model>\"", e.Spec)
}
