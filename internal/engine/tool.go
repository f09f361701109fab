package engine

import (
	"context"

	"github.com/lazypower/recall/internal/model"
)

// Tool is a search source outside the page corpus. Its hits need not point
// at a page.
type Tool interface {
	Search(ctx context.Context, query string, topK int) ([]model.Hit, error)
}

// MemoryTool ranks memory abstracts with a lexical ranker. Its hits have no
// page index.
type MemoryTool struct {
	abstracts []string
	ranker    Ranker
}

// NewMemoryTool fits factory on abstracts.
func NewMemoryTool(abstracts []string, factory RankerFactory) (*MemoryTool, error) {
	if factory == nil {
		return nil, ErrRankerUnavailable
	}
	corpus := make([][]string, len(abstracts))
	for i, a := range abstracts {
		corpus[i] = Tokenize(a)
	}
	return &MemoryTool{
		abstracts: append([]string(nil), abstracts...),
		ranker:    factory(corpus),
	}, nil
}

func (m *MemoryTool) Search(_ context.Context, query string, topK int) ([]model.Hit, error) {
	if len(m.abstracts) == 0 {
		return nil, nil
	}
	q := Tokenize(query)
	if len(q) == 0 {
		return nil, nil
	}
	ranked := selectTop(m.ranker.Scores(q), topK)
	hits := make([]model.Hit, 0, len(ranked))
	for i, s := range ranked {
		hits = append(hits, model.Hit{
			Snippet: model.Truncate(m.abstracts[s.index], model.SnippetLimit),
			Source:  "memory",
			Meta: map[string]any{
				"rank":  i + 1,
				"score": s.score,
				"index": s.index,
			},
		})
	}
	return hits, nil
}
