package provider

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/draftwise/aicore/types"
)

const (
	anthropicProviderName = "anthropic"

	// anthropicDefaultMaxTokens applies when the request carries no output
	// cap; the Messages API requires one.
	anthropicDefaultMaxTokens = 1024
)

// defaultAnthropicModels is the nested fallback chain for Anthropic
// generation.
var defaultAnthropicModels = []string{"claude-sonnet-4-5", "claude-3-5-haiku-latest"}

// AnthropicConfig configures the Anthropic generation provider.
type AnthropicConfig struct {
	APIKey string
	// Models overrides the default variant chain.
	Models []string
}

// AnthropicProvider generates text through the Messages API, retrying across
// its model variants before declaring failure.
type AnthropicProvider struct {
	client    *anthropic.Client
	models    []string
	available bool
}

// NewAnthropicProvider creates an Anthropic generation provider. A missing
// API key does not fail construction; the provider reports itself
// unavailable.
func NewAnthropicProvider(config AnthropicConfig) *AnthropicProvider {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	models := config.Models
	if len(models) == 0 {
		models = defaultAnthropicModels
	}

	p := &AnthropicProvider{models: models, available: apiKey != ""}
	if !p.available {
		return p
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	p.client = &client
	return p
}

// Generate tries each model variant in order and returns the first usable
// response.
func (p *AnthropicProvider) Generate(ctx context.Context, req types.GenerationRequest) (string, error) {
	if !p.available {
		return "", errors.New("Anthropic API key is not configured")
	}

	models := p.models
	if req.Model != "" {
		models = []string{req.Model}
	}

	var lastErr error
	for _, model := range models {
		text, err := p.complete(ctx, model, req)
		if err == nil {
			return text, nil
		}
		lastErr = err
	}

	return "", fmt.Errorf("anthropic generation failed: %w", lastErr)
}

func (p *AnthropicProvider) complete(ctx context.Context, model string, req types.GenerationRequest) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("model %s returned an empty response", model)
	}
	return sb.String(), nil
}

// Name returns the stable provider name.
func (p *AnthropicProvider) Name() string { return anthropicProviderName }

// Available reports whether an API key was configured.
func (p *AnthropicProvider) Available() bool { return p.available }

// HealthCheck issues a minimal one-token message against the primary variant.
func (p *AnthropicProvider) HealthCheck(ctx context.Context) error {
	if !p.available {
		return errors.New("Anthropic API key is not configured")
	}
	_, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.models[0]),
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	return err
}
