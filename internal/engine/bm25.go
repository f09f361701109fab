package engine

import "math"

// Ranker scores every document of the corpus it was fitted on.
type Ranker interface {
	// Scores returns one score per document, aligned with corpus order.
	Scores(query []string) []float64
}

// RankerFactory fits a Ranker on a tokenized corpus.
type RankerFactory func(corpus [][]string) Ranker

// BM25Params are the Okapi BM25 tuning constants.
type BM25Params struct {
	K1      float64 `yaml:"k1" json:"k1"`
	B       float64 `yaml:"b" json:"b"`
	Epsilon float64 `yaml:"epsilon" json:"epsilon"`
}

// DefaultBM25Params returns k1=1.5, b=0.75, epsilon=0.25.
func DefaultBM25Params() BM25Params {
	return BM25Params{K1: 1.5, B: 0.75, Epsilon: 0.25}
}

// NewBM25 returns a RankerFactory producing Okapi BM25 rankers.
func NewBM25(p BM25Params) RankerFactory {
	return func(corpus [][]string) Ranker {
		return fitBM25(corpus, p)
	}
}

type bm25 struct {
	params BM25Params
	tf     []map[string]int
	docLen []float64
	avgdl  float64
	idf    map[string]float64
}

func fitBM25(corpus [][]string, p BM25Params) *bm25 {
	m := &bm25{
		params: p,
		tf:     make([]map[string]int, len(corpus)),
		docLen: make([]float64, len(corpus)),
		idf:    make(map[string]float64),
	}

	df := make(map[string]int)
	var total float64
	for i, doc := range corpus {
		freqs := make(map[string]int, len(doc))
		for _, tok := range doc {
			freqs[tok]++
		}
		for tok := range freqs {
			df[tok]++
		}
		m.tf[i] = freqs
		m.docLen[i] = float64(len(doc))
		total += float64(len(doc))
	}
	if len(corpus) > 0 {
		m.avgdl = total / float64(len(corpus))
	}

	// Terms present in more than half the corpus get a negative idf, which
	// is replaced by epsilon times the mean idf.
	n := float64(len(corpus))
	var sum float64
	var negative []string
	for tok, freq := range df {
		idf := math.Log(n-float64(freq)+0.5) - math.Log(float64(freq)+0.5)
		m.idf[tok] = idf
		sum += idf
		if idf < 0 {
			negative = append(negative, tok)
		}
	}
	if len(df) > 0 {
		floor := p.Epsilon * sum / float64(len(df))
		for _, tok := range negative {
			m.idf[tok] = floor
		}
	}
	return m
}

// Scores sums the per-term contribution of every query token; repeated
// query tokens count once per occurrence.
func (m *bm25) Scores(query []string) []float64 {
	scores := make([]float64, len(m.tf))
	k1, b := m.params.K1, m.params.B
	for _, q := range query {
		idf, ok := m.idf[q]
		if !ok {
			continue
		}
		for i, freqs := range m.tf {
			f := float64(freqs[q])
			if f == 0 {
				continue
			}
			norm := 1.0
			if m.avgdl > 0 {
				norm = 1 - b + b*m.docLen[i]/m.avgdl
			}
			scores[i] += idf * f * (k1 + 1) / (f + k1*norm)
		}
	}
	return scores
}
