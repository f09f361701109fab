package engine

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"
)

// DefaultOllamaURL is the local Ollama endpoint used when none is configured.
const DefaultOllamaURL = "http://localhost:11434"

// OllamaEmbedder uses a local Ollama server's batched embed API.
type OllamaEmbedder struct {
	client *api.Client
	model  string
}

// NewOllamaEmbedder creates an embedder for model served at baseURL.
func NewOllamaEmbedder(baseURL, model string, timeout time.Duration) (*OllamaEmbedder, error) {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	uri, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse ollama url: %w", err)
	}
	client := api.NewClient(uri, &http.Client{Timeout: timeout})
	return &OllamaEmbedder{client: client, model: model}, nil
}

func (o *OllamaEmbedder) Model() string { return "ollama:" + o.model }

// Embed sends all texts in a single request.
func (o *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	resp, err := o.client.Embed(ctx, &api.EmbedRequest{
		Model: o.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embed api: %w", err)
	}
	if err := checkCount(len(texts), len(resp.Embeddings)); err != nil {
		return nil, err
	}
	out := make([][]float64, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		out[i] = toFloat64(e)
	}
	return out, nil
}
