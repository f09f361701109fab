package engine

import (
	"context"
	"errors"
	"strings"
)

// fakeEmbedder maps texts to vectors by keyword: each dimension counts the
// occurrences of one keyword.
type fakeEmbedder struct {
	keywords []string
	calls    int
	texts    [][]string
	err      error
	short    bool
}

func newFakeEmbedder(keywords ...string) *fakeEmbedder {
	return &fakeEmbedder{keywords: keywords}
}

func (f *fakeEmbedder) Model() string { return "fake" }

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	f.calls++
	f.texts = append(f.texts, append([]string(nil), texts...))
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, 0, len(texts))
	for _, t := range texts {
		vec := make([]float64, len(f.keywords))
		for i, k := range f.keywords {
			vec[i] = float64(strings.Count(strings.ToLower(t), k))
		}
		out = append(out, vec)
	}
	if f.short && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

var errProviderDown = errors.New("provider down")

// memCache is an in-memory EmbeddingCache.
type memCache struct {
	m      map[string][]float64
	failOn string
}

func newMemCache() *memCache { return &memCache{m: map[string][]float64{}} }

func (c *memCache) CachedEmbedding(model, text string) ([]float64, bool, error) {
	if text == c.failOn {
		return nil, false, errors.New("cache broken")
	}
	v, ok := c.m[model+"\x00"+text]
	return v, ok, nil
}

func (c *memCache) CacheEmbedding(model, text string, embedding []float64) error {
	c.m[model+"\x00"+text] = embedding
	return nil
}
