package provider

import (
	"context"
	"errors"
	"fmt"
	"os"

	"google.golang.org/genai"

	"github.com/draftwise/aicore/types"
)

const geminiProviderName = "gemini"

// defaultGeminiModels is the nested fallback chain: the first variant
// producing a usable response wins.
var defaultGeminiModels = []string{"gemini-2.5-flash", "gemini-2.0-flash"}

// GeminiConfig configures the Gemini generation provider.
type GeminiConfig struct {
	APIKey string
	// Models overrides the default variant chain.
	Models []string
}

// GeminiProvider generates text through the Gemini API, retrying across its
// model variants before declaring failure.
type GeminiProvider struct {
	client    *genai.Client
	models    []string
	available bool
}

// NewGeminiProvider creates a Gemini generation provider. A missing API key
// does not fail construction; the provider reports itself unavailable.
func NewGeminiProvider(ctx context.Context, config GeminiConfig) (*GeminiProvider, error) {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}

	models := config.Models
	if len(models) == 0 {
		models = defaultGeminiModels
	}

	p := &GeminiProvider{models: models, available: apiKey != ""}
	if !p.available {
		return p, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	p.client = client
	return p, nil
}

// Generate tries each model variant in order and returns the first usable
// response.
func (p *GeminiProvider) Generate(ctx context.Context, req types.GenerationRequest) (string, error) {
	if !p.available {
		return "", errors.New("Gemini API key is not configured")
	}

	models := p.models
	if req.Model != "" {
		models = []string{req.Model}
	}

	cfg := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	var lastErr error
	for _, model := range models {
		resp, err := p.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), cfg)
		if err != nil {
			lastErr = err
			continue
		}
		if text := resp.Text(); text != "" {
			return text, nil
		}
		lastErr = fmt.Errorf("model %s returned an empty response", model)
	}

	return "", fmt.Errorf("gemini generation failed: %w", lastErr)
}

// Name returns the stable provider name.
func (p *GeminiProvider) Name() string { return geminiProviderName }

// Available reports whether an API key was configured.
func (p *GeminiProvider) Available() bool { return p.available }

// HealthCheck issues a minimal one-token generation against the primary
// variant.
func (p *GeminiProvider) HealthCheck(ctx context.Context) error {
	if !p.available {
		return errors.New("Gemini API key is not configured")
	}
	_, err := p.client.Models.GenerateContent(ctx, p.models[0], genai.Text("ping"), &genai.GenerateContentConfig{
		MaxOutputTokens: 1,
	})
	return err
}
