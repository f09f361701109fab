package engine

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is the Gemini embedding model used when none is configured.
const DefaultGeminiModel = "text-embedding-004"

// GeminiEmbedder uses the Gemini batch embedding API.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

// NewGeminiEmbedder creates an embedder. An empty apiKey is a configuration
// error.
func NewGeminiEmbedder(ctx context.Context, apiKey, model string) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, ErrMissingCredential
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiEmbedder{client: client, model: model}, nil
}

func (g *GeminiEmbedder) Model() string { return "gemini:" + g.model }

// Embed sends all texts as one batch.
func (g *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	em := g.client.EmbeddingModel(g.model)
	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}
	res, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("gemini embeddings: %w", err)
	}
	if err := checkCount(len(texts), len(res.Embeddings)); err != nil {
		return nil, err
	}
	out := make([][]float64, len(res.Embeddings))
	for i, e := range res.Embeddings {
		if e == nil {
			return nil, fmt.Errorf("%w: empty embedding at %d", ErrEmbeddingMismatch, i)
		}
		out[i] = toFloat64(e.Values)
	}
	return out, nil
}

// Close releases the underlying client.
func (g *GeminiEmbedder) Close() error {
	return g.client.Close()
}
