package engine

import (
	"context"

	"github.com/lazypower/recall/internal/observe"
)

// EmbeddingCache stores vectors by model and exact text.
type EmbeddingCache interface {
	CachedEmbedding(model, text string) ([]float64, bool, error)
	CacheEmbedding(model, text string, embedding []float64) error
}

// CachedEmbedder consults a cache before calling the wrapped embedder, so
// rebuilding over an unchanged corpus only embeds new pages. Cache failures
// are logged and treated as misses.
type CachedEmbedder struct {
	inner Embedder
	cache EmbeddingCache
	obs   *observe.Observer
}

// NewCachedEmbedder wraps inner with cache.
func NewCachedEmbedder(inner Embedder, cache EmbeddingCache, obs *observe.Observer) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: cache, obs: observe.OrNop(obs)}
}

func (c *CachedEmbedder) Model() string { return c.inner.Model() }

func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	var missing []string
	var missingAt []int
	for i, text := range texts {
		vec, ok, err := c.cache.CachedEmbedding(c.Model(), text)
		if err != nil {
			c.obs.Log().Warn().Err(err).Msg("embedding cache lookup failed")
		}
		if ok {
			out[i] = vec
			continue
		}
		missing = append(missing, text)
		missingAt = append(missingAt, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	fresh, err := c.inner.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	if err := checkCount(len(missing), len(fresh)); err != nil {
		return nil, err
	}
	for j, vec := range fresh {
		out[missingAt[j]] = vec
		if err := c.cache.CacheEmbedding(c.Model(), missing[j], vec); err != nil {
			c.obs.Log().Warn().Err(err).Msg("embedding cache write failed")
		}
	}
	c.obs.Log().Debug().
		Int("hits", len(texts)-len(missing)).
		Int("misses", len(missing)).
		Msg("embedded with cache")
	return out, nil
}
