package engine

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/lazypower/recall/internal/model"
)

// LexicalRetriever ranks pages with a term-statistics ranker over tokenized
// header and content.
type LexicalRetriever struct {
	factory RankerFactory
	pages   []model.Page
	ranker  Ranker
}

// NewLexicalRetriever returns a retriever that fits factory on every Build.
// A nil factory is a configuration error.
func NewLexicalRetriever(factory RankerFactory) (*LexicalRetriever, error) {
	if factory == nil {
		return nil, ErrRankerUnavailable
	}
	return &LexicalRetriever{factory: factory}, nil
}

func (r *LexicalRetriever) Name() string { return model.SourceKeyword }

// Build copies pages and fits the ranker on their tokens.
func (r *LexicalRetriever) Build(ctx context.Context, pages []model.Page) error {
	_, span := tracer.Start(ctx, "engine.lexical.build")
	defer span.End()
	span.SetAttributes(attribute.Int("documents", len(pages)))

	r.pages = append([]model.Page(nil), pages...)
	corpus := make([][]string, len(r.pages))
	for i, p := range r.pages {
		corpus[i] = Tokenize(p.Text())
	}
	r.ranker = r.factory(corpus)
	return nil
}

// Search never fails: an unbuilt retriever, an empty corpus, or a query with
// no tokens all yield no hits.
func (r *LexicalRetriever) Search(ctx context.Context, query string, topK int) ([]model.Hit, error) {
	_, span := tracer.Start(ctx, "engine.lexical.search")
	defer span.End()
	span.SetAttributes(attribute.String("retriever", r.Name()), attribute.Int("top_k", topK))

	if r.ranker == nil || len(r.pages) == 0 {
		return nil, nil
	}
	q := Tokenize(query)
	if len(q) == 0 {
		return nil, nil
	}
	ranked := selectTop(r.ranker.Scores(q), topK)
	return scoredHits(r.pages, ranked, r.Name()), nil
}
