package engine

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Defaults for the hosted embedding provider.
const (
	DefaultOpenAIModel   = "text-embedding-3-small"
	DefaultEmbedTimeout  = 60 * time.Second
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
)

// OpenAIEmbedder calls an OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
}

// NewOpenAIEmbedder creates an embedder. An empty apiKey is a configuration
// error; empty baseURL and model fall back to the defaults. timeout bounds
// every call and is never retried.
func NewOpenAIEmbedder(apiKey, baseURL, model string, timeout time.Duration) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, ErrMissingCredential
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if timeout <= 0 {
		timeout = DefaultEmbedTimeout
	}
	config.HTTPClient = &http.Client{Timeout: timeout}
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}, nil
}

func (o *OpenAIEmbedder) Model() string { return "openai:" + o.model }

// Embed sends all texts in one request and orders the vectors by the index
// the service reports for each.
func (o *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(o.model),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if err := checkCount(len(texts), len(resp.Data)); err != nil {
		return nil, err
	}
	out := make([][]float64, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) || out[d.Index] != nil {
			return nil, fmt.Errorf("%w: bad index %d", ErrEmbeddingMismatch, d.Index)
		}
		out[d.Index] = toFloat64(d.Embedding)
	}
	return out, nil
}
