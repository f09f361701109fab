package engine

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIEmbedderRequiresKey(t *testing.T) {
	_, err := NewOpenAIEmbedder("", "", "", 0)
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestOpenAIEmbedderOrdersByIndex(t *testing.T) {
	var got struct {
		Input []string `json:"input"`
		Model string   `json:"model"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","model":"m","data":[
			{"object":"embedding","index":1,"embedding":[0,1]},
			{"object":"embedding","index":0,"embedding":[1,0]}]}`))
	}))
	defer srv.Close()

	emb, err := NewOpenAIEmbedder("sk-test", srv.URL+"/v1/", "", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "openai:"+DefaultOpenAIModel, emb.Model())

	vecs, err := emb.Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, got.Input)
	assert.Equal(t, DefaultOpenAIModel, got.Model)
	assert.Equal(t, [][]float64{{1, 0}, {0, 1}}, vecs)
}

func TestOpenAIEmbedderCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[1]}]}`))
	}))
	defer srv.Close()

	emb, err := NewOpenAIEmbedder("sk-test", srv.URL, "custom", time.Second)
	require.NoError(t, err)
	_, err = emb.Embed(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, ErrEmbeddingMismatch)
}

func TestOpenAIEmbedderServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	emb, _ := NewOpenAIEmbedder("sk-test", srv.URL, "", time.Second)
	_, err := emb.Embed(context.Background(), []string{"a"})
	assert.Error(t, err)
}

func TestOllamaEmbedderBatches(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/api/embed", r.URL.Path)
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		assert.Len(t, req.Input, 2)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"nomic-embed-text","embeddings":[[0.5,0.5],[1,0]]}`))
	}))
	defer srv.Close()

	emb, err := NewOllamaEmbedder(srv.URL, "nomic-embed-text", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ollama:nomic-embed-text", emb.Model())

	vecs, err := emb.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, [][]float64{{0.5, 0.5}, {1, 0}}, vecs)
}

func TestTFIDFEmbedder(t *testing.T) {
	emb := NewTFIDFEmbedder(0)
	assert.Equal(t, 1, emb.Dimensions(), "unfitted embedder")

	emb.Fit([]string{"go sqlite", "go python", "rust"})
	assert.Equal(t, 4, emb.Dimensions())

	vecs, err := emb.Embed(context.Background(), []string{"sqlite", "", "unknown words"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	var norm float64
	for _, x := range vecs[0] {
		norm += x * x
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)
	for _, x := range vecs[1] {
		assert.Zero(t, x)
	}
	for _, x := range vecs[2] {
		assert.Zero(t, x)
	}
}

func TestTFIDFVocabularyCap(t *testing.T) {
	emb := NewTFIDFEmbedder(2)
	emb.Fit([]string{"a b c", "a b", "a"})
	assert.Equal(t, []string{"a", "b"}, emb.vocab)
}

func TestCachedEmbedder(t *testing.T) {
	ctx := context.Background()
	inner := newFakeEmbedder("x", "y")
	cache := newMemCache()
	emb := NewCachedEmbedder(inner, cache, nil)

	first, err := emb.Embed(ctx, []string{"x", "y"})
	require.NoError(t, err)
	require.Equal(t, 1, inner.calls)

	second, err := emb.Embed(ctx, []string{"y", "x", "xy"})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, []string{"xy"}, inner.texts[1], "only the miss is sent")
	assert.Equal(t, first[1], second[0])
	assert.Equal(t, first[0], second[1])
	assert.Equal(t, []float64{1, 1}, second[2])

	_, err = emb.Embed(ctx, []string{"x", "y", "xy"})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls, "fully cached batch")
}

func TestCachedEmbedderTreatsLookupErrorAsMiss(t *testing.T) {
	inner := newFakeEmbedder("x")
	cache := newMemCache()
	cache.failOn = "x"
	emb := NewCachedEmbedder(inner, cache, nil)

	vecs, err := emb.Embed(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1}}, vecs)
	assert.Equal(t, 1, inner.calls)
}
