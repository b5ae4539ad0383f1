package unillm

import (
	"context"
	"strings"

	"github.com/xostack/unillm/config"
	"github.com/xostack/unillm/credentials"
	"github.com/xostack/unillm/params"
	"github.com/xostack/unillm/registry"
)

// Config is the fully resolved, validated configuration owned by an LLM
// instance. It is fixed at construction and never mutated afterwards.
type Config struct {
	Provider   string
	ModelID    string
	Credential credentials.Credential
	Parameters map[string]any
}

// clone returns a copy whose parameter map is independent of the original.
func (c Config) clone() Config {
	parameters := make(map[string]any, len(c.Parameters))
	for name, value := range c.Parameters {
		parameters[name] = value
	}
	c.Parameters = parameters
	return c
}

type options struct {
	apiKey         string
	overrides      map[string]any
	registry       *registry.Registry
	resolver       *credentials.Resolver
	dispatcher     Dispatcher
	baseURL        string
	timeoutSeconds int
	debugMode      bool
}

// Option customizes LLM construction.
type Option func(*options)

// WithAPIKey supplies an explicit API key, taking precedence over the
// provider's environment variable.
func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

// WithTemperature overrides the model's sampling temperature.
func WithTemperature(value float64) Option {
	return WithParam("temperature", value)
}

// WithTopP overrides the model's nucleus sampling cutoff.
func WithTopP(value float64) Option {
	return WithParam("top_p", value)
}

// WithTopK overrides the model's top-k sampling cutoff.
func WithTopK(value int) Option {
	return WithParam("top_k", value)
}

// WithMaxTokens overrides the model's completion token limit.
func WithMaxTokens(value int) Option {
	return WithParam("max_tokens", value)
}

// WithParam overrides a parameter by name. The name and value are
// validated against the model's registry rules during construction; the
// reserved name "api_key" routes to the credential resolver instead.
func WithParam(name string, value any) Option {
	return func(o *options) {
		if o.overrides == nil {
			o.overrides = make(map[string]any)
		}
		o.overrides[name] = value
	}
}

// WithRegistry uses a custom model catalogue instead of the built-in one.
func WithRegistry(r *registry.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithCredentialResolver uses a custom credential resolver. Tests use this
// to avoid touching the real process environment.
func WithCredentialResolver(r *credentials.Resolver) Option {
	return func(o *options) { o.resolver = r }
}

// WithDispatcher injects a transport, bypassing the provider factory.
func WithDispatcher(d Dispatcher) Option {
	return func(o *options) { o.dispatcher = d }
}

// WithBaseURL overrides the provider's API base URL. Required for ollama
// when the server is not on localhost; useful against API-compatible
// proxies for the cloud providers.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithRequestTimeout sets the per-request timeout in seconds for the
// built-in dispatchers. Values <= 0 fall back to the provider default.
func WithRequestTimeout(seconds int) Option {
	return func(o *options) { o.timeoutSeconds = seconds }
}

// WithDebug enables verbose logging in the built-in dispatchers.
func WithDebug(enabled bool) Option {
	return func(o *options) { o.debugMode = enabled }
}

// LLM is the user-facing handle for one (provider, model) pair with one
// fixed parameter set. It is the unit of reuse: a single instance serves
// any number of Chat calls sharing that configuration.
type LLM struct {
	cfg        Config
	dispatcher Dispatcher
}

// New constructs an LLM from a "provider/model" spec string.
//
// Resolution is fail-fast and strictly ordered: the spec string is parsed,
// the pair is looked up in the registry, the credential is resolved, and
// the overrides are validated and merged. A failure at any stage aborts
// construction with that stage's error and no instance is returned.
func New(spec string, opts ...Option) (*LLM, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	sep := strings.Index(spec, "/")
	if sep < 0 {
		return nil, &MalformedSpecError{Spec: spec}
	}
	provider, modelID := spec[:sep], spec[sep+1:]

	reg := o.registry
	if reg == nil {
		reg = registry.Default()
	}

	modelSpec, err := reg.Lookup(provider, modelID)
	if err != nil {
		return nil, err
	}

	// "api_key" is a recognized override name but never a model parameter;
	// it feeds the credential resolver.
	overrides := o.overrides
	if raw, ok := overrides[params.APIKeyName]; ok {
		key, isString := raw.(string)
		if !isString {
			return nil, &params.TypeMismatchError{
				Name:     params.APIKeyName,
				Expected: registry.TypeString,
				Value:    raw,
			}
		}
		if o.apiKey == "" {
			o.apiKey = key
		}
		overrides = make(map[string]any, len(o.overrides))
		for name, value := range o.overrides {
			overrides[name] = value
		}
		delete(overrides, params.APIKeyName)
	}

	credential := credentials.Credential{Provider: provider}
	needsKey, err := reg.RequiresAPIKey(provider)
	if err != nil {
		return nil, err
	}
	if needsKey {
		resolver := o.resolver
		if resolver == nil {
			resolver = &credentials.Resolver{}
		}
		credential, err = resolver.Resolve(provider, o.apiKey)
		if err != nil {
			return nil, err
		}
	} else if o.apiKey != "" {
		credential.Value = o.apiKey
	}

	parameters, err := params.Build(modelSpec, overrides)
	if err != nil {
		return nil, err
	}

	cfg := Config{
		Provider:   provider,
		ModelID:    modelID,
		Credential: credential,
		Parameters: parameters,
	}

	dispatcher := o.dispatcher
	if dispatcher == nil {
		dispatcher, err = NewDispatcher(cfg, DispatchSettings{
			BaseURL:               o.baseURL,
			RequestTimeoutSeconds: o.timeoutSeconds,
			DebugMode:             o.debugMode,
		})
		if err != nil {
			return nil, err
		}
	}

	return &LLM{cfg: cfg, dispatcher: dispatcher}, nil
}

// Config returns a copy of the instance's resolved configuration. Mutating
// the returned value has no effect on the instance.
func (l *LLM) Config() Config {
	return l.cfg.clone()
}

// Provider returns the provider half of the spec string.
func (l *LLM) Provider() string { return l.cfg.Provider }

// ModelID returns the model half of the spec string.
func (l *LLM) ModelID() string { return l.cfg.ModelID }

// Chat forwards the input together with the instance's configuration to
// the dispatcher and returns the model's reply. Cancellation and timeouts
// are the dispatcher's concern; pass a context with a deadline if needed.
func (l *LLM) Chat(ctx context.Context, input string) (string, error) {
	return l.dispatcher.Dispatch(ctx, input)
}

// Close releases the underlying dispatcher.
func (l *LLM) Close() error {
	return l.dispatcher.Close()
}

// FromConfig constructs an LLM from an application configuration: the
// default provider's model becomes the spec string, and its API key, base
// URL, and the request timeout become options. Explicit opts are applied
// last, so they win over the file's settings.
func FromConfig(cfg config.Config, opts ...Option) (*LLM, error) {
	spec, err := cfg.Spec()
	if err != nil {
		return nil, err
	}

	pc, _ := cfg.Provider(cfg.DefaultProvider)

	combined := make([]Option, 0, len(opts)+3)
	if pc.APIKey != "" {
		combined = append(combined, WithAPIKey(pc.APIKey))
	}
	if pc.BaseURL != "" {
		combined = append(combined, WithBaseURL(pc.BaseURL))
	}
	if cfg.RequestTimeoutSeconds > 0 {
		combined = append(combined, WithRequestTimeout(cfg.RequestTimeoutSeconds))
	}
	combined = append(combined, opts...)

	return New(spec, combined...)
}
