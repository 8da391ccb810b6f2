package provider

import (
	"context"
	"errors"
	"fmt"
	"os"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/draftwise/aicore/types"
)

const openaiProviderName = "openai"

// defaultOpenAIModels is the nested fallback chain for OpenAI generation.
var defaultOpenAIModels = []string{"gpt-4o-mini", "gpt-4o"}

// OpenAIConfig configures the OpenAI generation provider.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	OrgID   string
	// Models overrides the default variant chain.
	Models []string
}

// OpenAIProvider generates text through the chat completions API, retrying
// across its model variants before declaring failure.
type OpenAIProvider struct {
	client    *openai.Client
	models    []string
	available bool
}

// NewOpenAIProvider creates an OpenAI generation provider. A missing API key
// does not fail construction; the provider reports itself unavailable.
func NewOpenAIProvider(config OpenAIConfig) *OpenAIProvider {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	models := config.Models
	if len(models) == 0 {
		models = defaultOpenAIModels
	}

	p := &OpenAIProvider{models: models, available: apiKey != ""}
	if !p.available {
		return p
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	if config.OrgID != "" {
		opts = append(opts, option.WithOrganization(config.OrgID))
	}

	client := openai.NewClient(opts...)
	p.client = &client
	return p
}

// Generate tries each model variant in order and returns the first usable
// response.
func (p *OpenAIProvider) Generate(ctx context.Context, req types.GenerationRequest) (string, error) {
	if !p.available {
		return "", errors.New("OpenAI API key is not configured")
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

	return "", fmt.Errorf("openai generation failed: %w", lastErr)
}

func (p *OpenAIProvider) complete(ctx context.Context, model string, req types.GenerationRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("model %s returned an empty response", model)
	}
	return resp.Choices[0].Message.Content, nil
}

// Name returns the stable provider name.
func (p *OpenAIProvider) Name() string { return openaiProviderName }

// Available reports whether an API key was configured.
func (p *OpenAIProvider) Available() bool { return p.available }

// HealthCheck issues a minimal one-token completion against the primary
// variant.
func (p *OpenAIProvider) HealthCheck(ctx context.Context) error {
	if !p.available {
		return errors.New("OpenAI API key is not configured")
	}
	_, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:     openai.ChatModel(p.models[0]),
		Messages:  []openai.ChatCompletionMessageParamUnion{openai.UserMessage("ping")},
		MaxTokens: openai.Int(1),
	})
	return err
}
