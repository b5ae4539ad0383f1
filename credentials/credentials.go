// Package credentials resolves API keys for LLM providers.
//
// A key comes from one of two places, in order: an explicit value handed to
// the caller's constructor, or the provider's canonical environment
// variable (<PROVIDER_UPPER>_API_KEY). Resolution happens fresh on every
// call, so rotating a key in the environment takes effect on the next
// construction without restarting the process. Keys are held in memory
// only and never written anywhere.
package credentials

import (
	"fmt"
	"os"
	"strings"
)

// Credential is a resolved API key for a single provider.
type Credential struct {
	Provider string
	Value    string
}

// MissingCredentialError reports that neither an explicit key nor the
// provider's environment variable yielded a non-empty value.
type MissingCredentialError struct {
	Provider string
	EnvVar   string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("no API key for provider %q: pass one explicitly or set %s", e.Provider, e.EnvVar)
}

// EnvVarName returns the canonical environment variable for a provider's
// API key, e.g. "ANTHROPIC_API_KEY" for "anthropic".
func EnvVarName(provider string) string {
	return strings.ToUpper(provider) + "_API_KEY"
}

// Resolver resolves credentials. The zero value reads the real process
// environment; tests can swap LookupEnv for a fake so no global state is
// touched.
type Resolver struct {
	// LookupEnv reports a variable's value and whether it is set.
	// Nil falls back to os.LookupEnv.
	LookupEnv func(key string) (string, bool)
}

// Resolve returns the credential for the provider. An explicit non-empty
// key always wins, verbatim, even when the environment variable is also
// set.
func (r *Resolver) Resolve(provider, explicit string) (Credential, error) {
	if explicit != "" {
		return Credential{Provider: provider, Value: explicit}, nil
	}

	lookup := r.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	envVar := EnvVarName(provider)
	if value, ok := lookup(envVar); ok && value != "" {
		return Credential{Provider: provider, Value: value}, nil
	}

	return Credential{}, &MissingCredentialError{Provider: provider, EnvVar: envVar}
}
