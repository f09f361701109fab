package engine

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/lazypower/recall/internal/model"
)

// VectorRetriever ranks pages by cosine similarity of unit embeddings.
type VectorRetriever struct {
	embedder Embedder
	pages    []model.Page
	vecs     [][]float64
}

// NewVectorRetriever returns a retriever backed by e. With a nil embedder
// the retriever is inert: Build indexes nothing and Search returns no hits.
func NewVectorRetriever(e Embedder) *VectorRetriever {
	return &VectorRetriever{embedder: e}
}

func (r *VectorRetriever) Name() string { return model.SourceVector }

// Build embeds every page in one batch. Blank pages are sent as a single
// space since providers reject empty input.
func (r *VectorRetriever) Build(ctx context.Context, pages []model.Page) error {
	ctx, span := tracer.Start(ctx, "engine.vector.build")
	defer span.End()
	span.SetAttributes(attribute.Int("documents", len(pages)))

	r.pages = append([]model.Page(nil), pages...)
	r.vecs = nil
	if r.embedder == nil || len(r.pages) == 0 {
		return nil
	}
	span.SetAttributes(attribute.String("embedder", r.embedder.Model()))

	texts := make([]string, len(r.pages))
	for i, p := range r.pages {
		texts[i] = strings.TrimSpace(p.Text())
		if texts[i] == "" {
			texts[i] = " "
		}
	}
	if f, ok := r.embedder.(Fitter); ok {
		f.Fit(texts)
	}

	vecs, err := r.embedder.Embed(ctx, texts)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("embed corpus: %w", err)
	}
	if err := checkCount(len(texts), len(vecs)); err != nil {
		return err
	}
	r.vecs = make([][]float64, len(vecs))
	for i, v := range vecs {
		r.vecs[i] = unit(v)
	}
	return nil
}

// Search embeds the query and scores it against every page vector.
// Embedding failures are returned to the caller.
func (r *VectorRetriever) Search(ctx context.Context, query string, topK int) ([]model.Hit, error) {
	ctx, span := tracer.Start(ctx, "engine.vector.search")
	defer span.End()
	span.SetAttributes(attribute.String("retriever", r.Name()), attribute.Int("top_k", topK))

	if r.embedder == nil || len(r.vecs) == 0 || topK <= 0 {
		return nil, nil
	}
	qvecs, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if err := checkCount(1, len(qvecs)); err != nil {
		return nil, err
	}
	q := unit(qvecs[0])

	scores := make([]float64, len(r.vecs))
	for i, v := range r.vecs {
		if len(v) != len(q) {
			return nil, fmt.Errorf("%w: query has %d dimensions, page %d has %d",
				ErrEmbeddingMismatch, len(q), i, len(v))
		}
		scores[i] = dot(q, v)
	}
	return scoredHits(r.pages, selectTop(scores, topK), r.Name()), nil
}
