package embedding

import (
	"context"
	"errors"
	"os"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

const (
	// DefaultOpenAIModel is used when no model is configured.
	DefaultOpenAIModel = openai.EmbeddingModelTextEmbedding3Small

	openaiProviderName   = "openai"
	openaiDimension      = 1536
	openaiMaxInputTokens = 8191
)

// OpenAIConfig provides configuration options for the OpenAI embedding provider.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	OrgID   string
	Model   string
}

// OpenAIProvider embeds text through OpenAI's embeddings API. It supports
// native multi-input batch calls.
type OpenAIProvider struct {
	client    *openai.Client
	model     string
	available bool
}

// NewOpenAIProvider creates an embedding provider for OpenAI. A missing API
// key does not fail construction; the provider reports itself unavailable and
// is skipped in fallback chains.
func NewOpenAIProvider(config OpenAIConfig) *OpenAIProvider {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	model := config.Model
	if model == "" {
		model = string(DefaultOpenAIModel)
	}

	p := &OpenAIProvider{model: model, available: apiKey != ""}
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

// EmbedText sends a single-input embedding request to OpenAI.
func (p *OpenAIProvider) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch sends one multi-input embedding request to OpenAI.
func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if !p.available {
		return nil, errors.New("OpenAI API key is not configured")
	}

	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(p.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, errors.New("OpenAI returned an unexpected number of embeddings")
	}

	// OpenAI returns []float64; convert to []float32.
	vectors := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		vector := make([]float32, len(data.Embedding))
		for j, v := range data.Embedding {
			vector[j] = float32(v)
		}
		vectors[i] = vector
	}
	return vectors, nil
}

// Name returns the stable provider name.
func (p *OpenAIProvider) Name() string { return openaiProviderName }

// Available reports whether an API key was configured.
func (p *OpenAIProvider) Available() bool { return p.available }

// Dimension returns the vector length of the configured model.
func (p *OpenAIProvider) Dimension() int { return openaiDimension }

// MaxInputTokens returns the largest input the backend accepts.
func (p *OpenAIProvider) MaxInputTokens() int { return openaiMaxInputTokens }

// Close is a no-op; the OpenAI client holds no long-lived resources.
func (p *OpenAIProvider) Close() error { return nil }
