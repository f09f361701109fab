package ttl

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/lazypower/recall/internal/model"
)

// PagesFile is the snapshot key of the page store.
const PagesFile = "ttl_pages.json"

type pageCodec struct{}

func (pageCodec) timestamp(p model.Page) (string, bool) {
	return p.Timestamp()
}

// stamp sets meta.timestamp and assigns a page_id when the page has none.
func (pageCodec) stamp(p model.Page, ts string) model.Page {
	p = p.Clone()
	p.Meta[model.MetaTimestamp] = ts
	ensurePageID(p)
	return p
}

func (pageCodec) encode(pages []model.Page) ([]byte, error) {
	if pages == nil {
		pages = []model.Page{}
	}
	return marshalIndent(pages)
}

// decode accepts a bare array of pages or {"pages": [...]}. Pages whose meta
// has no timestamp key are stamped with now.
func (pageCodec) decode(raw []byte, now string) ([]model.Page, error) {
	var pages []model.Page
	switch shapeOf(raw) {
	case '[':
		if err := json.Unmarshal(raw, &pages); err != nil {
			return nil, err
		}
	case '{':
		var doc struct {
			Pages *[]model.Page `json:"pages"`
		}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
		if doc.Pages == nil {
			return nil, fmt.Errorf("%w: object without pages", ErrUnrecognizedShape)
		}
		pages = *doc.Pages
	default:
		return nil, ErrUnrecognizedShape
	}

	for i := range pages {
		if pages[i].Meta == nil {
			pages[i].Meta = map[string]any{}
		}
		if _, ok := pages[i].Meta[model.MetaTimestamp]; !ok {
			pages[i].Meta[model.MetaTimestamp] = now
		}
		ensurePageID(pages[i])
	}
	return pages, nil
}

func ensurePageID(p model.Page) {
	if p.ID() == "" {
		p.Meta[model.MetaPageID] = uuid.NewString()
	}
}

// PageStore is the page corpus under a TTL policy. Pages are addressed by
// position; positions shift when expired pages are purged, so indices must
// not be reused across a cleanup. meta.page_id is stable.
type PageStore struct {
	lc *lifecycle[model.Page]
}

// NewPageStore creates a page store. With a backend configured, persisted
// state is loaded immediately and, when auto-cleanup applies, purged.
func NewPageStore(opts ...Option) (*PageStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	lc, err := newLifecycle[model.Page]("pages", PagesFile, pageCodec{}, o)
	if err != nil {
		return nil, err
	}
	return &PageStore{lc: lc}, nil
}

// Add appends p stamped with the current time. The caller's meta map is not
// modified.
func (s *PageStore) Add(p model.Page) error {
	return s.lc.append(p)
}

// AddAll appends pages in order with one shared timestamp and a single
// persist.
func (s *PageStore) AddAll(pages []model.Page) error {
	if len(pages) == 0 {
		return nil
	}
	return s.lc.append(pages...)
}

// Get returns the page at index. The second return is false when index is
// out of range.
func (s *PageStore) Get(index int) (model.Page, bool) {
	if index < 0 || index >= len(s.lc.items) {
		return model.Page{}, false
	}
	return s.lc.items[index], true
}

// ListAll returns a snapshot of every stored page, expired ones included.
func (s *PageStore) ListAll() []model.Page {
	out := make([]model.Page, len(s.lc.items))
	copy(out, s.lc.items)
	return out
}

// Len returns the number of stored pages.
func (s *PageStore) Len() int {
	return len(s.lc.items)
}

// Load returns the valid pages, purging expired ones first when auto-cleanup
// is enabled.
func (s *PageStore) Load() ([]model.Page, error) {
	pages, err := s.lc.load()
	if err != nil {
		return nil, err
	}
	out := make([]model.Page, len(pages))
	copy(out, pages)
	return out, nil
}

// Save replaces the whole corpus with pages, stamped with now.
func (s *PageStore) Save(pages []model.Page) error {
	return s.lc.replace(pages)
}

// CleanupExpired removes expired pages and returns how many were removed.
func (s *PageStore) CleanupExpired() (int, error) {
	return s.lc.cleanupExpired()
}

// CleanupDue removes expired pages when auto-cleanup is enabled and
// returns how many were removed. With auto-cleanup off it does nothing.
func (s *PageStore) CleanupDue() (int, error) {
	return s.lc.cleanupDue()
}

// Stats reports occupancy without modifying the store.
func (s *PageStore) Stats() Stats {
	return s.lc.stats()
}

// LoadError returns the error that reset the store to empty when its
// persisted state was unreadable, or nil.
func (s *PageStore) LoadError() error {
	return s.lc.loadErr
}
