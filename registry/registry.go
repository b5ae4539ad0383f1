// Package registry holds the catalogue of supported LLM providers and models.
//
// The catalogue is declarative data, not code: each model carries a table of
// parameter rules (type, optional min/max bounds, default value) loaded from
// a TOML document. Adding a provider or model means adding table entries,
// never new branching logic.
//
// The built-in catalogue (models.toml, compiled into the binary) is loaded
// once behind a sync.Once guard and is read-only afterwards, so it may be
// shared freely across goroutines. Applications that need their own
// catalogue can build one with Parse at configuration time.
package registry

import (
	_ "embed"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
)

// Rule value types recognized in catalogue tables.
const (
	TypeFloat  = "float"
	TypeInt    = "int"
	TypeString = "string"
)

//go:embed models.toml
var builtinTable []byte

var (
	builtinOnce sync.Once
	builtin     *Registry
)

// ParamRule declares the legality of a single model parameter: its value
// type, optional inclusive bounds, and the default used when a caller
// supplies no override.
type ParamRule struct {
	Type    string   `toml:"type"`
	Min     *float64 `toml:"min"`
	Max     *float64 `toml:"max"`
	Default any      `toml:"default"`
}

// ModelSpec describes one supported (provider, model) pair and the
// parameters it accepts. Lookup returns a fresh copy, so callers may not
// corrupt the registry's record.
type ModelSpec struct {
	Provider   string
	ModelID    string
	ParamRules map[string]ParamRule
}

// Defaults returns the model's default parameter values as a new map.
func (s ModelSpec) Defaults() map[string]any {
	defaults := make(map[string]any, len(s.ParamRules))
	for name, rule := range s.ParamRules {
		defaults[name] = rule.Default
	}
	return defaults
}

// UnsupportedModelError reports a (provider, model) pair absent from the
// registry. ModelID is empty when the provider itself is unknown.
type UnsupportedModelError struct {
	Provider string
	ModelID  string
}

func (e *UnsupportedModelError) Error() string {
	if e.ModelID == "" {
		return fmt.Sprintf("provider %q is not supported", e.Provider)
	}
	return fmt.Sprintf("model %q is not supported by provider %q", e.ModelID, e.Provider)
}

// Registry is an immutable catalogue of providers and their models.
type Registry struct {
	providers map[string]providerEntry
}

type providerEntry struct {
	requiresAPIKey bool
	models         map[string]ModelSpec
}

// tomlDocument mirrors the on-disk catalogue layout:
//
//	[providers.anthropic]
//	requires_api_key = true
//
//	[providers.anthropic.models."claude-2.1".parameters.temperature]
//	type = "float"
//	min = 0.0
//	max = 1.0
//	default = 1.0
type tomlDocument struct {
	Providers map[string]tomlProvider `toml:"providers"`
}

type tomlProvider struct {
	RequiresAPIKey *bool                `toml:"requires_api_key"`
	Models         map[string]tomlModel `toml:"models"`
}

type tomlModel struct {
	Parameters map[string]ParamRule `toml:"parameters"`
}

// Default returns the built-in registry, loading it on first use.
// The embedded table is validated at load; a corrupt table is a build
// defect, so Default panics rather than returning an error.
func Default() *Registry {
	builtinOnce.Do(func() {
		r, err := Parse(strings.NewReader(string(builtinTable)))
		if err != nil {
			panic(fmt.Sprintf("registry: invalid built-in catalogue: %v", err))
		}
		builtin = r
	})
	return builtin
}

// Parse reads a TOML catalogue and validates every rule: recognized value
// types, defaults matching their declared type, and defaults inside their
// declared bounds. The returned Registry is independent of the reader and
// immutable.
func Parse(r io.Reader) (*Registry, error) {
	var doc tomlDocument
	if _, err := toml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode registry TOML: %w", err)
	}
	if len(doc.Providers) == 0 {
		return nil, fmt.Errorf("registry table declares no providers")
	}

	reg := &Registry{providers: make(map[string]providerEntry, len(doc.Providers))}
	for providerName, provider := range doc.Providers {
		if len(provider.Models) == 0 {
			return nil, fmt.Errorf("provider %q declares no models", providerName)
		}

		entry := providerEntry{
			requiresAPIKey: true,
			models:         make(map[string]ModelSpec, len(provider.Models)),
		}
		if provider.RequiresAPIKey != nil {
			entry.requiresAPIKey = *provider.RequiresAPIKey
		}

		for modelID, model := range provider.Models {
			rules := make(map[string]ParamRule, len(model.Parameters))
			for paramName, rule := range model.Parameters {
				normalized, err := normalizeRule(rule)
				if err != nil {
					return nil, fmt.Errorf("provider %q model %q parameter %q: %w",
						providerName, modelID, paramName, err)
				}
				rules[paramName] = normalized
			}
			entry.models[modelID] = ModelSpec{
				Provider:   providerName,
				ModelID:    modelID,
				ParamRules: rules,
			}
		}
		reg.providers[providerName] = entry
	}

	return reg, nil
}

// normalizeRule checks a rule's internal consistency and converts TOML's
// int64 literals to the Go types handed to callers.
func normalizeRule(rule ParamRule) (ParamRule, error) {
	switch rule.Type {
	case TypeFloat, TypeInt, TypeString:
	case "":
		return rule, fmt.Errorf("missing value type")
	default:
		return rule, fmt.Errorf("unknown value type %q", rule.Type)
	}

	if rule.Default == nil {
		return rule, fmt.Errorf("missing default value")
	}

	switch rule.Type {
	case TypeFloat:
		switch v := rule.Default.(type) {
		case float64:
		case int64:
			rule.Default = float64(v)
		default:
			return rule, fmt.Errorf("default %v is not a float", rule.Default)
		}
	case TypeInt:
		v, ok := rule.Default.(int64)
		if !ok {
			return rule, fmt.Errorf("default %v is not an integer", rule.Default)
		}
		rule.Default = int(v)
	case TypeString:
		if _, ok := rule.Default.(string); !ok {
			return rule, fmt.Errorf("default %v is not a string", rule.Default)
		}
		if rule.Min != nil || rule.Max != nil {
			return rule, fmt.Errorf("string parameters do not take bounds")
		}
	}

	if rule.Min != nil && rule.Max != nil && *rule.Min > *rule.Max {
		return rule, fmt.Errorf("min %v exceeds max %v", *rule.Min, *rule.Max)
	}

	var numeric float64
	switch v := rule.Default.(type) {
	case float64:
		numeric = v
	case int:
		numeric = float64(v)
	default:
		return rule, nil
	}
	if rule.Min != nil && numeric < *rule.Min {
		return rule, fmt.Errorf("default %v is below min %v", rule.Default, *rule.Min)
	}
	if rule.Max != nil && numeric > *rule.Max {
		return rule, fmt.Errorf("default %v is above max %v", rule.Default, *rule.Max)
	}

	return rule, nil
}

// Lookup returns the spec for the given (provider, model) pair. The pair is
// matched case-sensitively. The returned spec's rule map is a copy.
func (r *Registry) Lookup(provider, modelID string) (ModelSpec, error) {
	entry, ok := r.providers[provider]
	if !ok {
		return ModelSpec{}, &UnsupportedModelError{Provider: provider}
	}
	spec, ok := entry.models[modelID]
	if !ok {
		return ModelSpec{}, &UnsupportedModelError{Provider: provider, ModelID: modelID}
	}

	rules := make(map[string]ParamRule, len(spec.ParamRules))
	for name, rule := range spec.ParamRules {
		rules[name] = rule
	}
	spec.ParamRules = rules
	return spec, nil
}

// DefaultsFor returns a copy of the default parameter values for the given
// (provider, model) pair.
func (r *Registry) DefaultsFor(provider, modelID string) (map[string]any, error) {
	spec, err := r.Lookup(provider, modelID)
	if err != nil {
		return nil, err
	}
	return spec.Defaults(), nil
}

// RequiresAPIKey reports whether the provider needs a credential. Local
// providers such as ollama run without one.
func (r *Registry) RequiresAPIKey(provider string) (bool, error) {
	entry, ok := r.providers[provider]
	if !ok {
		return false, &UnsupportedModelError{Provider: provider}
	}
	return entry.requiresAPIKey, nil
}

// Providers returns the sorted names of all registered providers.
func (r *Registry) Providers() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ModelsFor returns the sorted model IDs registered for the provider.
func (r *Registry) ModelsFor(provider string) ([]string, error) {
	entry, ok := r.providers[provider]
	if !ok {
		return nil, &UnsupportedModelError{Provider: provider}
	}
	ids := make([]string, 0, len(entry.models))
	for id := range entry.models {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
