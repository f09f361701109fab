package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"
)

// encodeEmbedding converts a []float64 to a binary BLOB (8 bytes per float64).
func encodeEmbedding(vec []float64) []byte {
	buf := make([]byte, len(vec)*8)
	for i, v := range vec {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// decodeEmbedding converts a binary BLOB back to []float64.
func decodeEmbedding(buf []byte) []float64 {
	n := len(buf) / 8
	vec := make([]float64, n)
	for i := 0; i < n; i++ {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return vec
}

// ContentHash is the cache key for an embedded text.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// CachedEmbedding returns the stored embedding of text under model. The
// second return is false on a cache miss.
func (db *DB) CachedEmbedding(model, text string) ([]float64, bool, error) {
	var blob []byte
	err := db.QueryRow(`
		SELECT embedding FROM embedding_cache
		WHERE content_hash = ? AND model = ?
	`, ContentHash(text), model).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached embedding: %w", err)
	}
	return decodeEmbedding(blob), true, nil
}

// CacheEmbedding stores or replaces the embedding of text under model.
func (db *DB) CacheEmbedding(model, text string, embedding []float64) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO embedding_cache (content_hash, model, embedding, dimensions, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(content_hash, model) DO UPDATE SET
			embedding = excluded.embedding,
			dimensions = excluded.dimensions,
			created_at = excluded.created_at
	`, ContentHash(text), model, encodeEmbedding(embedding), len(embedding), now)
	if err != nil {
		return fmt.Errorf("cache embedding: %w", err)
	}
	return nil
}

// CountEmbeddings returns how many embeddings are cached for model.
func (db *DB) CountEmbeddings(model string) (int, error) {
	var n int
	err := db.QueryRow("SELECT COUNT(*) FROM embedding_cache WHERE model = ?", model).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return n, nil
}

// PurgeEmbeddings drops cached embeddings created before cutoff (unix ms)
// and returns how many were removed.
func (db *DB) PurgeEmbeddings(cutoff int64) (int64, error) {
	res, err := db.Exec("DELETE FROM embedding_cache WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge embeddings: %w", err)
	}
	return res.RowsAffected()
}
