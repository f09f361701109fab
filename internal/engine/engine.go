// Package engine implements multi-strategy retrieval over a page corpus
// snapshot: BM25 keyword ranking, embedding similarity, and exact lookup by
// page index, unified under model.Hit.
//
// Retrievers are built once from a snapshot and never observe later corpus
// changes. Rebuild the Registry after the corpus is mutated or purged.
package engine

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"

	"github.com/lazypower/recall/internal/model"
)

// DefaultTopK is the result count used when a caller passes no limit.
const DefaultTopK = 10

var (
	// ErrRankerUnavailable is returned when a lexical retriever is built
	// without a ranking engine.
	ErrRankerUnavailable = errors.New("engine: lexical ranking engine unavailable")
	// ErrMissingCredential is returned when vector search is requested from a
	// provider that needs an API key and none is configured.
	ErrMissingCredential = errors.New("engine: vector search requires an API key")
	// ErrUnknownProvider is returned for an unrecognized embedding provider.
	ErrUnknownProvider = errors.New("engine: unknown embedding provider")
	// ErrEmbeddingMismatch is returned when a provider answers with a
	// different number of vectors than texts sent.
	ErrEmbeddingMismatch = errors.New("engine: embedding count mismatch")
	// ErrUnknownRetriever is returned by Registry.Search for an unregistered name.
	ErrUnknownRetriever = errors.New("engine: unknown retriever")
)

var tracer = otel.Tracer("recall")

// Retriever ranks pages of a corpus snapshot against a query.
type Retriever interface {
	// Name is the registry key and the source tag of produced hits.
	Name() string
	// Build indexes pages, replacing any previous snapshot.
	Build(ctx context.Context, pages []model.Page) error
	// Search returns at most topK hits ordered by descending score.
	Search(ctx context.Context, query string, topK int) ([]model.Hit, error)
}

// scoredHits converts ranked positions into hits tagged with source. Each hit
// carries its 1-based rank, raw score, and corpus index in meta.
func scoredHits(pages []model.Page, ranked []scored, source string) []model.Hit {
	hits := make([]model.Hit, 0, len(ranked))
	for i, r := range ranked {
		meta := map[string]any{
			"rank":  i + 1,
			"score": r.score,
			"index": r.index,
		}
		hits = append(hits, model.NewHit(r.index, pages[r.index], source, meta))
	}
	return hits
}
