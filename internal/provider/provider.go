// Package provider resolves the hosted completion backend.
//
// Resolution is a lazy singleton: the first successful Resolve wires
// up Genkit with the configured plugin and caches the resulting
// Handle for the process lifetime. A failed resolution is not cached,
// so the next call retries.
//
// Credential modes:
//   - key: a static API key is configured; the OpenAI-compatible
//     plugin authenticates with it against the configured endpoint.
//   - identity: no key is configured; the Google GenAI plugin uses
//     the ambient platform identity.
//   - ollama: explicit opt-in via config; the endpoint is a local
//     model server and the deployment is registered as a chat model.
package provider

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"

	"github.com/cambio-ai/cambio/internal/config"
	"github.com/cambio-ai/cambio/internal/currency"
	"github.com/cambio-ai/cambio/internal/log"
)

// ErrConfiguration is the umbrella error for incomplete model
// configuration. The specific sentinels below all match it under
// errors.Is.
var ErrConfiguration = errors.New("completion backend configuration error")

var (
	// ErrMissingEndpoint indicates no model endpoint is configured.
	ErrMissingEndpoint = fmt.Errorf("%w: endpoint not set", ErrConfiguration)

	// ErrMissingDeployment indicates no deployment/model identifier is configured.
	ErrMissingDeployment = fmt.Errorf("%w: deployment not set", ErrConfiguration)

	// ErrMissingAPIVersion indicates no API version is configured.
	ErrMissingAPIVersion = fmt.Errorf("%w: api version not set", ErrConfiguration)
)

// Credential modes, logged at resolution time. ModeOllama is an
// explicit opt-in for a local model server; the endpoint is the
// server address and the deployment is the model name.
const (
	ModeKey      = "key"
	ModeIdentity = "identity"
	ModeOllama   = "ollama"
)

// maxToolTurns caps the model's tool-call loop per generation.
const maxToolTurns = 5

// StreamCallback is called for each chunk of a streaming response.
// Returning an error aborts generation.
type StreamCallback func(ctx context.Context, chunk *ai.ModelResponseChunk) error

// Provider lazily resolves and caches a completion Handle.
type Provider struct {
	cfg    *config.Config
	logger log.Logger

	mu     sync.Mutex
	handle *Handle

	// initFn builds the handle once validation and credential-mode
	// selection are done. Overridable in tests.
	initFn func(ctx context.Context, mode string) (*Handle, error)
}

// New creates an unresolved provider.
func New(cfg *config.Config, logger log.Logger) *Provider {
	p := &Provider{cfg: cfg, logger: logger}
	p.initFn = p.initGenkit
	return p
}

// Resolve returns the cached handle, resolving it on first use. It is
// safe for concurrent callers: at most one initialization proceeds and
// every caller observes the same result. A failed attempt leaves the
// provider unresolved, so a later call retries.
func (p *Provider) Resolve(ctx context.Context) (*Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handle != nil {
		return p.handle, nil
	}

	if err := p.validate(); err != nil {
		return nil, err
	}

	mode := p.credentialMode()
	p.logger.Info("resolving completion backend",
		"credential_mode", mode,
		"endpoint", p.cfg.Endpoint,
		"deployment", p.cfg.Deployment,
		"api_version", p.cfg.APIVersion,
	)

	handle, err := p.initFn(ctx, mode)
	if err != nil {
		return nil, fmt.Errorf("initializing completion backend: %w", err)
	}

	p.handle = handle
	return handle, nil
}

// Resolved reports whether a handle has been cached, without
// triggering resolution. Health reporting uses this.
func (p *Provider) Resolved() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handle != nil
}

func (p *Provider) validate() error {
	if p.cfg.Endpoint == "" {
		return ErrMissingEndpoint
	}
	if p.cfg.Deployment == "" {
		return ErrMissingDeployment
	}
	if p.cfg.APIVersion == "" {
		return ErrMissingAPIVersion
	}
	return nil
}

func (p *Provider) credentialMode() string {
	if p.cfg.Provider == ModeOllama {
		return ModeOllama
	}
	if p.cfg.APIKey != "" {
		return ModeKey
	}
	return ModeIdentity
}

// initGenkit wires up Genkit with the plugin for the chosen credential
// mode and registers the currency tools.
func (p *Provider) initGenkit(ctx context.Context, mode string) (*Handle, error) {
	var (
		g         *genkit.Genkit
		modelName string
	)

	switch mode {
	case ModeKey:
		// The OpenAI-compatible plugin reads its key and base URL from
		// the environment. SAFETY: os.Setenv is not concurrent-safe,
		// but resolution runs under p.mu and happens once.
		_ = os.Setenv("OPENAI_API_KEY", p.cfg.APIKey)
		_ = os.Setenv("OPENAI_BASE_URL", p.cfg.Endpoint)

		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai-compatible plugin")
		}
		modelName = "openai/" + p.cfg.Deployment

	case ModeIdentity:
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with googleai plugin")
		}
		modelName = "googleai/" + p.cfg.Deployment

	case ModeOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: p.cfg.Endpoint}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama plugin")
		}
		// Ollama requires explicit model registration (no auto-discovery)
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: p.cfg.Deployment,
			Type: "chat",
		}, nil)
		modelName = "ollama/" + p.cfg.Deployment

	default:
		return nil, fmt.Errorf("unknown credential mode %q", mode)
	}

	rates := currency.NewClient(p.cfg.ExchangeBaseURL, nil, p.logger)
	currency.RegisterTools(g, rates)

	return &Handle{
		g:         g,
		modelName: modelName,
		toolNames: currency.ToolNames(),
		logger:    p.logger,
	}, nil
}

// Handle is a resolved connection to the completion backend.
type Handle struct {
	g         *genkit.Genkit
	modelName string
	toolNames []string
	logger    log.Logger
}

// Complete submits a single-shot prompt and returns the full text.
func (h *Handle) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := h.generate(ctx, prompt, nil)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// Stream submits a prompt with a per-chunk callback and returns the
// full accumulated text once generation finishes. Chunks arrive in
// upstream order.
func (h *Handle) Stream(ctx context.Context, prompt string, callback StreamCallback) (string, error) {
	resp, err := h.generate(ctx, prompt, callback)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

func (h *Handle) generate(ctx context.Context, prompt string, callback StreamCallback) (*ai.ModelResponse, error) {
	opts := []ai.GenerateOption{
		ai.WithModelName(h.modelName),
		ai.WithPrompt(prompt),
		ai.WithMaxTurns(maxToolTurns),
	}

	var toolRefs []ai.ToolRef
	for _, name := range h.toolNames {
		if tool := genkit.LookupTool(h.g, name); tool != nil {
			toolRefs = append(toolRefs, tool)
		}
	}
	if len(toolRefs) > 0 {
		opts = append(opts, ai.WithTools(toolRefs...))
	}

	if callback != nil {
		opts = append(opts, ai.WithStreaming(func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
			return callback(ctx, chunk)
		}))
	}

	resp, err := genkit.Generate(ctx, h.g, opts...)
	if err != nil {
		return nil, fmt.Errorf("generating completion: %w", err)
	}
	return resp, nil
}
