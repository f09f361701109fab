package engine

import "github.com/lazypower/recall/internal/model"

// PageGetter resolves a positional page index.
type PageGetter interface {
	Get(index int) (model.Page, bool)
}

// Lookup resolves indices in the given order. Unknown indices are skipped.
// Hits are tagged page_index and carry no score.
func Lookup(pages PageGetter, indices []int) []model.Hit {
	hits := make([]model.Hit, 0, len(indices))
	for _, idx := range indices {
		p, ok := pages.Get(idx)
		if !ok {
			continue
		}
		hits = append(hits, model.NewHit(idx, p, model.SourcePageIndex, nil))
	}
	return hits
}

// Snapshot is a fixed page sequence that satisfies PageGetter.
type Snapshot []model.Page

func (s Snapshot) Get(index int) (model.Page, bool) {
	if index < 0 || index >= len(s) {
		return model.Page{}, false
	}
	return s[index], true
}
