package store

import (
	"math"
	"testing"
	"time"
)

func TestEncodeDecodeEmbedding(t *testing.T) {
	original := []float64{1.0, -0.5, 0.333, math.Pi, 0.0}
	decoded := decodeEmbedding(encodeEmbedding(original))

	if len(decoded) != len(original) {
		t.Fatalf("length mismatch: %d vs %d", len(decoded), len(original))
	}
	for i := range original {
		if decoded[i] != original[i] {
			t.Errorf("index %d: got %f, want %f", i, decoded[i], original[i])
		}
	}
}

func TestCacheEmbedding(t *testing.T) {
	db := testDB(t)

	if _, ok, err := db.CachedEmbedding("m", "hello"); err != nil || ok {
		t.Fatalf("CachedEmbedding on empty cache = (%v, %v), want miss", ok, err)
	}

	if err := db.CacheEmbedding("m", "hello", []float64{0.6, 0.8}); err != nil {
		t.Fatalf("CacheEmbedding: %v", err)
	}
	if err := db.CacheEmbedding("m", "hello", []float64{1, 0}); err != nil {
		t.Fatalf("CacheEmbedding replace: %v", err)
	}

	vec, ok, err := db.CachedEmbedding("m", "hello")
	if err != nil || !ok {
		t.Fatalf("CachedEmbedding = (%v, %v), want hit", ok, err)
	}
	if len(vec) != 2 || vec[0] != 1 || vec[1] != 0 {
		t.Errorf("embedding = %v, want [1 0]", vec)
	}

	if _, ok, _ := db.CachedEmbedding("other-model", "hello"); ok {
		t.Error("cache hit across models")
	}

	n, err := db.CountEmbeddings("m")
	if err != nil || n != 1 {
		t.Errorf("CountEmbeddings = (%d, %v), want (1, nil)", n, err)
	}
}

func TestPurgeEmbeddings(t *testing.T) {
	db := testDB(t)
	db.CacheEmbedding("m", "a", []float64{1})
	db.CacheEmbedding("m", "b", []float64{1})

	removed, err := db.PurgeEmbeddings(time.Now().Add(time.Hour).UnixMilli())
	if err != nil {
		t.Fatalf("PurgeEmbeddings: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
}

func TestContentHashStable(t *testing.T) {
	if ContentHash("x") != ContentHash("x") {
		t.Error("hash not deterministic")
	}
	if ContentHash("x") == ContentHash("y") {
		t.Error("distinct texts share a hash")
	}
}
