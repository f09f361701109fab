package ttl

import (
	"encoding/json"
	"fmt"

	"github.com/lazypower/recall/internal/model"
)

// MemoryFile is the snapshot key of the memory store.
const MemoryFile = "ttl_memory_state.json"

// MemoryEntry is one stored abstract with its creation timestamp. An empty
// Timestamp marks legacy data that never expires.
type MemoryEntry struct {
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type memoryCodec struct{}

func (memoryCodec) timestamp(e MemoryEntry) (string, bool) {
	return e.Timestamp, e.Timestamp != ""
}

func (memoryCodec) stamp(e MemoryEntry, ts string) MemoryEntry {
	e.Timestamp = ts
	return e
}

func (memoryCodec) encode(entries []MemoryEntry) ([]byte, error) {
	if entries == nil {
		entries = []MemoryEntry{}
	}
	return marshalIndent(struct {
		Entries []MemoryEntry `json:"entries"`
	}{entries})
}

// decode accepts the current {"entries": [...]} shape, the legacy
// {"abstracts": [...]} shape, and a bare array of strings or entry objects.
// Legacy items without a timestamp are stamped with now.
func (memoryCodec) decode(raw []byte, now string) ([]MemoryEntry, error) {
	switch shapeOf(raw) {
	case '{':
		var doc struct {
			Entries   *[]MemoryEntry `json:"entries"`
			Abstracts *[]string      `json:"abstracts"`
		}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
		if doc.Entries != nil {
			return *doc.Entries, nil
		}
		if doc.Abstracts != nil {
			entries := make([]MemoryEntry, len(*doc.Abstracts))
			for i, a := range *doc.Abstracts {
				entries[i] = MemoryEntry{Content: a, Timestamp: now}
			}
			return entries, nil
		}
		return nil, fmt.Errorf("%w: object without entries or abstracts", ErrUnrecognizedShape)
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		entries := make([]MemoryEntry, 0, len(items))
		for i, item := range items {
			e, err := decodeMemoryItem(item, now)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			entries = append(entries, e)
		}
		return entries, nil
	default:
		return nil, ErrUnrecognizedShape
	}
}

func decodeMemoryItem(item json.RawMessage, now string) (MemoryEntry, error) {
	switch shapeOf(item) {
	case '"':
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			return MemoryEntry{}, err
		}
		return MemoryEntry{Content: s, Timestamp: now}, nil
	case '{':
		var e MemoryEntry
		if err := json.Unmarshal(item, &e); err != nil {
			return MemoryEntry{}, err
		}
		if e.Timestamp == "" {
			e.Timestamp = now
		}
		return e, nil
	default:
		return MemoryEntry{}, ErrUnrecognizedShape
	}
}

// MemoryStore keeps deduplicated memory abstracts under a TTL policy.
type MemoryStore struct {
	lc *lifecycle[MemoryEntry]
}

// NewMemoryStore creates a memory store. With a backend configured, persisted
// state is loaded immediately and, when auto-cleanup applies, purged.
func NewMemoryStore(opts ...Option) (*MemoryStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	lc, err := newLifecycle[MemoryEntry]("memory", MemoryFile, memoryCodec{}, o)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{lc: lc}, nil
}

// Add stores abstract stamped with the current time. Empty abstracts and
// exact duplicates of a stored abstract are ignored.
func (s *MemoryStore) Add(abstract string) error {
	if abstract == "" {
		return nil
	}
	for _, e := range s.lc.items {
		if e.Content == abstract {
			return nil
		}
	}
	return s.lc.append(MemoryEntry{Content: abstract})
}

// Load returns the valid abstracts, purging expired ones first when
// auto-cleanup is enabled.
func (s *MemoryStore) Load() (model.MemoryState, error) {
	entries, err := s.lc.load()
	if err != nil {
		return model.MemoryState{}, err
	}
	abstracts := make([]string, len(entries))
	for i, e := range entries {
		abstracts[i] = e.Content
	}
	return model.MemoryState{Abstracts: abstracts}, nil
}

// Save replaces every stored abstract with state, stamped with now.
func (s *MemoryStore) Save(state model.MemoryState) error {
	entries := make([]MemoryEntry, len(state.Abstracts))
	for i, a := range state.Abstracts {
		entries[i] = MemoryEntry{Content: a}
	}
	return s.lc.replace(entries)
}

// CleanupExpired removes expired abstracts and returns how many were removed.
func (s *MemoryStore) CleanupExpired() (int, error) {
	return s.lc.cleanupExpired()
}

// CleanupDue removes expired abstracts when auto-cleanup is enabled and
// returns how many were removed. With auto-cleanup off it does nothing.
func (s *MemoryStore) CleanupDue() (int, error) {
	return s.lc.cleanupDue()
}

// Stats reports occupancy without modifying the store.
func (s *MemoryStore) Stats() Stats {
	return s.lc.stats()
}

// Entries returns a copy of the stored entries, expired ones included.
func (s *MemoryStore) Entries() []MemoryEntry {
	out := make([]MemoryEntry, len(s.lc.items))
	copy(out, s.lc.items)
	return out
}

// LoadError returns the error that reset the store to empty when its
// persisted state was unreadable, or nil.
func (s *MemoryStore) LoadError() error {
	return s.lc.loadErr
}
