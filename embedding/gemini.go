package embedding

import (
	"context"
	"errors"
	"fmt"
	"os"

	"google.golang.org/genai"
)

const (
	// DefaultGeminiModel is used when no model is configured.
	DefaultGeminiModel = "text-embedding-004"

	geminiProviderName   = "gemini"
	geminiDimension      = 768
	geminiMaxInputTokens = 2048
)

// GeminiConfig provides configuration options for the Gemini embedding provider.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// GeminiProvider embeds text through the Gemini API. EmbedContent accepts
// several contents at once, so batch calls map onto a single request.
type GeminiProvider struct {
	client    *genai.Client
	model     string
	available bool
}

// NewGeminiProvider creates an embedding provider for Gemini. A missing API
// key does not fail construction; the provider reports itself unavailable and
// is skipped in fallback chains.
func NewGeminiProvider(ctx context.Context, config GeminiConfig) (*GeminiProvider, error) {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}

	model := config.Model
	if model == "" {
		model = DefaultGeminiModel
	}

	p := &GeminiProvider{model: model, available: apiKey != ""}
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

// EmbedText sends a single-content embedding request to Gemini.
func (p *GeminiProvider) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds several texts in one EmbedContent request.
func (p *GeminiProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if !p.available {
		return nil, errors.New("Gemini API key is not configured")
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, genai.Text(text)...)
	}

	resp, err := p.client.Models.EmbedContent(ctx, p.model, contents, nil)
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, errors.New("Gemini returned an unexpected number of embeddings")
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		vectors[i] = emb.Values
	}
	return vectors, nil
}

// Name returns the stable provider name.
func (p *GeminiProvider) Name() string { return geminiProviderName }

// Available reports whether an API key was configured.
func (p *GeminiProvider) Available() bool { return p.available }

// Dimension returns the vector length of the configured model.
func (p *GeminiProvider) Dimension() int { return geminiDimension }

// MaxInputTokens returns the largest input the backend accepts.
func (p *GeminiProvider) MaxInputTokens() int { return geminiMaxInputTokens }

// Close is a no-op; the Gemini client holds no long-lived resources.
func (p *GeminiProvider) Close() error { return nil }
