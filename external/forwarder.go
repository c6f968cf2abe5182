// Forwarder sends compacted terminal output to a model for diagnosis.
//
// DESIGN: The forwarder is a thin layer over CallLLM:
//   - Config holds provider, endpoint, model and credentials (YAML section "forwarder")
//   - NewForwarder resolves the provider and, for Bedrock, installs SigV4 signing
//   - Diagnose wraps the compacted logs in the diagnosis prompt and calls the model
package external

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultMaxTokens = 1024

	diagnoseSystemPrompt = "You are an expert developer assistant."
	defaultQuestion      = "Analyze these logs for errors and suggest a fix."
)

// Config configures the model forwarder.
type Config struct {
	Enabled   bool          `yaml:"enabled"`
	Provider  string        `yaml:"provider"`   // anthropic, openai, gemini, bedrock; empty = detect from endpoint
	Endpoint  string        `yaml:"endpoint"`   // full API URL; bedrock may leave it empty
	APIKey    string        `yaml:"api_key"`    // usually ${ANTHROPIC_API_KEY} etc.
	Model     string        `yaml:"model"`      // model ID
	MaxTokens int           `yaml:"max_tokens"` // answer budget (default 1024)
	Timeout   time.Duration `yaml:"timeout"`    // per call (default 60s)
	Region    string        `yaml:"region"`     // bedrock only
}

// Validate checks the forwarder config.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch c.Provider {
	case "", ProviderAnthropic, ProviderOpenAI, ProviderGemini, ProviderBedrock:
	default:
		return fmt.Errorf("forwarder: unknown provider %q", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("forwarder.model is required")
	}
	if c.Endpoint == "" && c.Provider != ProviderBedrock {
		return fmt.Errorf("forwarder.endpoint is required")
	}
	if c.APIKey == "" && c.Provider != ProviderBedrock {
		return fmt.Errorf("forwarder.api_key is required for provider %q", c.provider())
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("forwarder.max_tokens must be >= 0")
	}
	return nil
}

func (c *Config) provider() string {
	if c.Provider != "" {
		return c.Provider
	}
	return DetectProvider(c.Endpoint)
}

// DiagnoseRequest is one diagnosis call.
type DiagnoseRequest struct {
	Logs     string // compacted output
	Question string // optional; defaults to a generic "find the error" ask
	Model    string // optional override
}

// Forwarder calls the configured model.
type Forwarder struct {
	cfg        Config
	provider   string
	endpoint   string
	region     string // bedrock: resolved from cfg or the AWS chain
	httpClient *http.Client
}

// NewForwarder builds a forwarder from cfg. Bedrock credentials are loaded
// from the default AWS chain.
func NewForwarder(ctx context.Context, cfg Config) (*Forwarder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	f := &Forwarder{cfg: cfg, provider: cfg.provider(), endpoint: cfg.Endpoint, region: cfg.Region, httpClient: &http.Client{}}
	if f.provider == ProviderBedrock {
		transport, err := NewBedrockSigningTransport(ctx, cfg.Region, nil)
		if err != nil {
			return nil, fmt.Errorf("forwarder: %w", err)
		}
		f.httpClient = &http.Client{Transport: transport}
		f.region = transport.Region()
		if f.endpoint == "" {
			f.endpoint = BedrockEndpoint(f.region, cfg.Model)
		}
	}
	return f, nil
}

// NewForwarderWithClient builds a forwarder around an existing HTTP client.
func NewForwarderWithClient(cfg Config, client *http.Client) (*Forwarder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if client == nil {
		client = &http.Client{}
	}
	endpoint := cfg.Endpoint
	if endpoint == "" && cfg.provider() == ProviderBedrock {
		endpoint = BedrockEndpoint(cfg.Region, cfg.Model)
	}
	return &Forwarder{cfg: cfg, provider: cfg.provider(), endpoint: endpoint, region: cfg.Region, httpClient: client}, nil
}

// Provider returns the resolved provider name.
func (f *Forwarder) Provider() string { return f.provider }

// Model returns the configured model.
func (f *Forwarder) Model() string { return f.cfg.Model }

// BuildDiagnosePrompt wraps compacted logs and a question into the user prompt.
func BuildDiagnosePrompt(logs, question string) string {
	question = strings.TrimSpace(question)
	if question == "" {
		question = defaultQuestion
	}
	var sb strings.Builder
	sb.WriteString("Here are the compressed terminal logs from the user's session. ")
	sb.WriteString("They have been filtered to focus on errors and important context.\n\n")
	sb.WriteString("[BEGIN LOGS]\n")
	sb.WriteString(logs)
	sb.WriteString("\n[END LOGS]\n\n")
	sb.WriteString("User Query: ")
	sb.WriteString(question)
	sb.WriteString("\n")
	return sb.String()
}

// Diagnose sends the compacted logs to the model and returns its answer.
func (f *Forwarder) Diagnose(ctx context.Context, req DiagnoseRequest) (*CallLLMResult, error) {
	model := req.Model
	if model == "" {
		model = f.cfg.Model
	}
	maxTokens := f.cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	endpoint := f.endpoint
	if f.provider == ProviderBedrock && req.Model != "" && f.cfg.Endpoint == "" {
		endpoint = BedrockEndpoint(f.region, model)
	}

	return CallLLM(ctx, CallLLMParams{
		Provider:     f.provider,
		Endpoint:     endpoint,
		APIKey:       f.cfg.APIKey,
		Model:        model,
		SystemPrompt: diagnoseSystemPrompt,
		UserPrompt:   BuildDiagnosePrompt(req.Logs, req.Question),
		MaxTokens:    maxTokens,
		Timeout:      f.cfg.Timeout,
		HTTPClient:   f.httpClient,
	})
}
