// LLM API client used to forward compacted output to a model.
//
// CallLLM is the single entry point for calling any supported LLM provider
// (Anthropic, OpenAI, Gemini, Bedrock).
//
// Request bodies are assembled with sjson and responses are read with gjson,
// so no per-provider struct mirrors are needed.
//
// ADDING A NEW PROVIDER:
//  1. Add case to DetectProvider(), setAuthHeaders(), buildRequestBody(), parseResponse()
//  2. Add a response fixture to llm_test.go
package external

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Provider names.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderBedrock   = "bedrock"
)

const (
	// DefaultTimeout for LLM API calls.
	DefaultTimeout = 60 * time.Second

	// maxResponseSize prevents OOM on unexpectedly large API responses (10MB).
	maxResponseSize = 10 * 1024 * 1024

	// maxErrorBodyLen limits error body in error messages to avoid log bloat.
	maxErrorBodyLen = 500

	anthropicVersion = "2023-06-01"
	bedrockVersion   = "bedrock-2023-05-31"
)

// CallLLMParams contains parameters for calling an LLM provider.
type CallLLMParams struct {
	// Provider overrides auto-detection. If empty, provider is detected from the Endpoint URL.
	Provider string

	Endpoint     string
	APIKey       string
	Model        string
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Timeout      time.Duration

	// HTTPClient overrides the default HTTP client. For Bedrock it should
	// carry a BedrockSigningTransport.
	HTTPClient *http.Client
}

func (p *CallLLMParams) validate() error {
	if p.Endpoint == "" {
		return fmt.Errorf("endpoint required")
	}
	// Bedrock authenticates through the signing transport.
	if p.APIKey == "" && p.Provider != ProviderBedrock {
		return fmt.Errorf("api key required")
	}
	if p.Model == "" {
		return fmt.Errorf("model required")
	}
	if p.Timeout == 0 {
		p.Timeout = DefaultTimeout
	}
	return nil
}

// CallLLMResult contains the response from an LLM call.
type CallLLMResult struct {
	Content      string
	InputTokens  int
	OutputTokens int
	Provider     string
}

// CallLLM calls an LLM provider for text generation.
//
// Provider detection (when params.Provider is empty):
//   - "bedrock" in URL → Bedrock (Anthropic Messages format, SigV4)
//   - "anthropic" in URL → Anthropic Messages API
//   - "generativelanguage.googleapis.com" in URL → Gemini generateContent API
//   - otherwise → OpenAI Chat Completions API
func CallLLM(ctx context.Context, params CallLLMParams) (*CallLLMResult, error) {
	if params.Provider == "" {
		params.Provider = DetectProvider(params.Endpoint)
	}
	if err := params.validate(); err != nil {
		return nil, fmt.Errorf("invalid CallLLM params: %w", err)
	}
	provider := params.Provider

	body, err := buildRequestBody(provider, params)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", provider, err)
	}

	ctx, cancel := context.WithTimeout(ctx, params.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, params.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", provider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	setAuthHeaders(req, provider, params.APIKey)

	client := params.HTTPClient
	if client == nil {
		client = &http.Client{} // timeout via context, not client
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", provider, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", provider, err)
	}

	if resp.StatusCode != http.StatusOK {
		errBody := string(respBody)
		if len(errBody) > maxErrorBodyLen {
			errBody = errBody[:maxErrorBodyLen] + "... (truncated)"
		}
		return nil, fmt.Errorf("%s API returned status %d: %s", provider, resp.StatusCode, errBody)
	}

	return parseResponse(provider, respBody)
}

// DetectProvider infers the LLM provider from an endpoint URL.
func DetectProvider(endpoint string) string {
	switch {
	case strings.Contains(endpoint, "bedrock"):
		return ProviderBedrock
	case strings.Contains(endpoint, "anthropic"):
		return ProviderAnthropic
	case strings.Contains(endpoint, "generativelanguage.googleapis.com"):
		return ProviderGemini
	default:
		return ProviderOpenAI
	}
}

func setAuthHeaders(req *http.Request, provider, apiKey string) {
	switch provider {
	case ProviderAnthropic:
		req.Header.Set("x-api-key", apiKey)
		req.Header.Set("anthropic-version", anthropicVersion)
	case ProviderBedrock:
		// Signed by the transport.
	case ProviderGemini:
		req.Header.Set("x-goog-api-key", apiKey)
	default:
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// sets applies path/value pairs to an empty JSON object in order.
func sets(pairs ...any) ([]byte, error) {
	body := []byte(`{}`)
	var err error
	for i := 0; i+1 < len(pairs); i += 2 {
		body, err = sjson.SetBytes(body, pairs[i].(string), pairs[i+1])
		if err != nil {
			return nil, err
		}
	}
	return body, nil
}

// Temperature is 0 for deterministic answers, except OpenAI where o-series
// models reject the field.
func buildRequestBody(provider string, p CallLLMParams) ([]byte, error) {
	switch provider {
	case ProviderAnthropic, ProviderBedrock:
		pairs := []any{
			"max_tokens", p.MaxTokens,
			"temperature", 0,
			"messages", []message{{Role: "user", Content: p.UserPrompt}},
		}
		if provider == ProviderBedrock {
			// Bedrock takes the model from the URL path.
			pairs = append(pairs, "anthropic_version", bedrockVersion)
		} else {
			pairs = append(pairs, "model", p.Model)
		}
		if p.SystemPrompt != "" {
			pairs = append(pairs, "system", p.SystemPrompt)
		}
		return sets(pairs...)
	case ProviderGemini:
		return sets(
			"system_instruction.parts", []map[string]string{{"text": p.SystemPrompt}},
			"contents", []map[string]any{{"role": "user", "parts": []map[string]string{{"text": p.UserPrompt}}}},
			"generationConfig.maxOutputTokens", p.MaxTokens,
			"generationConfig.temperature", 0,
		)
	default:
		return sets(
			"model", p.Model,
			"messages", []message{
				{Role: "system", Content: p.SystemPrompt},
				{Role: "user", Content: p.UserPrompt},
			},
			"max_completion_tokens", p.MaxTokens,
		)
	}
}

func parseResponse(provider string, body []byte) (*CallLLMResult, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("failed to parse %s response: invalid JSON", provider)
	}
	doc := gjson.ParseBytes(body)
	result := &CallLLMResult{Provider: provider}

	switch provider {
	case ProviderAnthropic, ProviderBedrock:
		var sb strings.Builder
		doc.Get("content").ForEach(func(_, block gjson.Result) bool {
			if block.Get("type").String() == "text" {
				sb.WriteString(block.Get("text").String())
			}
			return true
		})
		result.Content = sb.String()
		result.InputTokens = int(doc.Get("usage.input_tokens").Int())
		result.OutputTokens = int(doc.Get("usage.output_tokens").Int())
	case ProviderGemini:
		var sb strings.Builder
		for _, part := range doc.Get("candidates.0.content.parts.#.text").Array() {
			sb.WriteString(part.String())
		}
		result.Content = sb.String()
		result.InputTokens = int(doc.Get("usageMetadata.promptTokenCount").Int())
		result.OutputTokens = int(doc.Get("usageMetadata.candidatesTokenCount").Int())
	default:
		result.Content = doc.Get("choices.0.message.content").String()
		result.InputTokens = int(doc.Get("usage.prompt_tokens").Int())
		result.OutputTokens = int(doc.Get("usage.completion_tokens").Int())
	}

	if result.Content == "" {
		return nil, fmt.Errorf("%s response contained no text content", provider)
	}
	return result, nil
}
