package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// Embedder turns texts into vectors, one per input and in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
	Model() string
}

// Fitter is implemented by embedders whose vector space is derived from the
// corpus itself. The vector retriever fits them on every Build.
type Fitter interface {
	Fit(texts []string)
}

// checkCount enforces the one-vector-per-text contract.
func checkCount(want, got int) error {
	if want != got {
		return fmt.Errorf("%w: sent %d texts, got %d vectors", ErrEmbeddingMismatch, want, got)
	}
	return nil
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// unit returns v scaled to unit L2 length. A zero vector stays zero.
func unit(v []float64) []float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	n := math.Sqrt(sum)
	if n == 0 {
		n = 1e-9
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / n
	}
	return out
}

// dot expects equal lengths; callers check dimensions first.
func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// TFIDFEmbedder generates TF-IDF bag-of-words embeddings. It needs no
// external service and is fitted on the corpus snapshot.
type TFIDFEmbedder struct {
	maxTerms int
	vocab    []string
	idf      map[string]float64
}

// NewTFIDFEmbedder returns an unfitted embedder keeping at most maxTerms
// vocabulary terms (default 512).
func NewTFIDFEmbedder(maxTerms int) *TFIDFEmbedder {
	if maxTerms <= 0 {
		maxTerms = 512
	}
	return &TFIDFEmbedder{maxTerms: maxTerms, idf: map[string]float64{}}
}

func (t *TFIDFEmbedder) Model() string { return "tfidf" }

// Dimensions returns the vector length, at least 1.
func (t *TFIDFEmbedder) Dimensions() int {
	if len(t.vocab) == 0 {
		return 1
	}
	return len(t.vocab)
}

// Fit builds the vocabulary from the most widespread terms of texts.
func (t *TFIDFEmbedder) Fit(texts []string) {
	df := make(map[string]int)
	for _, doc := range texts {
		seen := make(map[string]bool)
		for _, term := range Tokenize(doc) {
			if !seen[term] {
				df[term]++
				seen[term] = true
			}
		}
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if df[terms[i]] != df[terms[j]] {
			return df[terms[i]] > df[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > t.maxTerms {
		terms = terms[:t.maxTerms]
	}

	numDocs := float64(len(texts))
	if numDocs == 0 {
		numDocs = 1
	}
	t.vocab = terms
	t.idf = make(map[string]float64, len(terms))
	for _, term := range terms {
		// smoothed: log(N / df) + 1
		t.idf[term] = math.Log(numDocs/float64(df[term])) + 1.0
	}
}

// Embed generates a unit TF-IDF vector for each text.
func (t *TFIDFEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = t.embedOne(text)
	}
	return out, nil
}

func (t *TFIDFEmbedder) embedOne(text string) []float64 {
	vec := make([]float64, t.Dimensions())
	tf := make(map[string]int)
	maxTF := 0
	for _, tok := range Tokenize(text) {
		tf[tok]++
		if tf[tok] > maxTF {
			maxTF = tf[tok]
		}
	}
	if maxTF == 0 {
		return vec
	}
	for i, term := range t.vocab {
		count := tf[term]
		if count == 0 {
			continue
		}
		// Augmented TF to prevent bias towards longer documents
		augTF := 0.5 + 0.5*float64(count)/float64(maxTF)
		vec[i] = augTF * t.idf[term]
	}
	return unit(vec)
}
