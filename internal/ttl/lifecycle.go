package ttl

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lazypower/recall/internal/observe"
)

// Stats reports store occupancy. With TTL disabled Valid always equals Total.
type Stats struct {
	Total      int   `json:"total"`
	Valid      int   `json:"valid"`
	Expired    int   `json:"expired"`
	TTLEnabled bool  `json:"ttl_enabled"`
	TTLSeconds int64 `json:"ttl_seconds,omitempty"`
}

// codec adapts a payload type to the lifecycle: where its timestamp lives and
// how its snapshots are read and written. decode normalizes every accepted
// persisted shape into entries; now is the stamp given to legacy entries.
type codec[T any] interface {
	timestamp(item T) (string, bool)
	stamp(item T, ts string) T
	decode(raw []byte, now string) ([]T, error)
	encode(items []T) ([]byte, error)
}

// lifecycle is the TTL state machine shared by MemoryStore and PageStore.
type lifecycle[T any] struct {
	name    string
	key     string
	window  time.Duration
	enabled bool
	auto    bool
	backend Backend
	codec   codec[T]
	now     func() time.Time
	obs     *observe.Observer
	items   []T
	loadErr error
}

func newLifecycle[T any](name, key string, c codec[T], o options) (*lifecycle[T], error) {
	window, enabled := o.retention.Window()
	l := &lifecycle[T]{
		name:    name,
		key:     key,
		window:  window,
		enabled: enabled,
		auto:    o.autoCleanup,
		backend: o.backend,
		codec:   c,
		now:     o.now,
		obs:     observe.OrNop(o.obs),
	}
	if l.backend == nil {
		return l, nil
	}

	if !l.restore() {
		return l, nil
	}
	if l.auto && l.enabled {
		if _, err := l.cleanupExpired(); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// restore reads the persisted snapshot. A snapshot that cannot be read or
// decoded leaves the store empty; the failure is logged and kept in loadErr.
// It reports whether a snapshot was loaded.
func (l *lifecycle[T]) restore() bool {
	raw, err := l.backend.Read(l.key)
	if errors.Is(err, ErrNoSnapshot) {
		return false
	}
	var items []T
	if err == nil {
		items, err = l.codec.decode(raw, l.stamp())
	}
	if err != nil {
		l.loadErr = fmt.Errorf("load %s: %w", l.key, err)
		l.items = nil
		l.obs.Log().Warn().
			Str("store", l.name).
			Str("key", l.key).
			Err(err).
			Msg("failed to load persisted state, starting empty")
		return false
	}
	l.items = items
	l.obs.Log().Debug().Str("store", l.name).Int("entries", len(items)).Msg("restored snapshot")
	return true
}

func (l *lifecycle[T]) stamp() string {
	return formatTimestamp(l.now())
}

func (l *lifecycle[T]) persist() error {
	if l.backend == nil {
		return nil
	}
	data, err := l.codec.encode(l.items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", l.key, err)
	}
	if err := l.backend.Write(l.key, data); err != nil {
		l.obs.Log().Error().Str("store", l.name).Str("key", l.key).Err(err).Msg("failed to persist state")
		return fmt.Errorf("persist %s: %w", l.key, err)
	}
	return nil
}

func (l *lifecycle[T]) append(items ...T) error {
	ts := l.stamp()
	for _, item := range items {
		l.items = append(l.items, l.codec.stamp(item, ts))
	}
	return l.persist()
}

// replace overwrites the whole entry set, stamping every item with now.
func (l *lifecycle[T]) replace(items []T) error {
	ts := l.stamp()
	next := make([]T, len(items))
	for i, item := range items {
		next[i] = l.codec.stamp(item, ts)
	}
	l.items = next
	return l.persist()
}

// load purges expired entries first when auto-cleanup applies, then returns
// the current entries.
func (l *lifecycle[T]) load() ([]T, error) {
	if _, err := l.cleanupDue(); err != nil {
		return nil, err
	}
	return l.items, nil
}

// cleanupDue purges expired entries only when auto-cleanup applies.
func (l *lifecycle[T]) cleanupDue() (int, error) {
	if !l.auto || !l.enabled {
		return 0, nil
	}
	return l.cleanupExpired()
}

func (l *lifecycle[T]) cutoff() time.Time {
	return l.now().UTC().Add(-l.window)
}

func (l *lifecycle[T]) expired(item T, cutoff time.Time) bool {
	ts, ok := l.codec.timestamp(item)
	return expiredAt(ts, ok, cutoff)
}

// cleanupExpired removes entries whose timestamp is at or before
// now - window and returns how many were removed.
func (l *lifecycle[T]) cleanupExpired() (int, error) {
	if !l.enabled {
		return 0, nil
	}
	cutoff := l.cutoff()
	kept := l.items[:0:0]
	for _, item := range l.items {
		if !l.expired(item, cutoff) {
			kept = append(kept, item)
		}
	}
	removed := len(l.items) - len(kept)
	l.items = kept
	if removed == 0 {
		return 0, nil
	}

	l.obs.Log().Info().Str("store", l.name).Int("removed", removed).Msg("cleaned up expired entries")
	if err := l.persist(); err != nil {
		return removed, err
	}
	return removed, nil
}

func (l *lifecycle[T]) stats() Stats {
	total := len(l.items)
	if !l.enabled {
		return Stats{Total: total, Valid: total}
	}
	cutoff := l.cutoff()
	expired := 0
	for _, item := range l.items {
		if l.expired(item, cutoff) {
			expired++
		}
	}
	return Stats{
		Total:      total,
		Valid:      total - expired,
		Expired:    expired,
		TTLEnabled: true,
		TTLSeconds: int64(l.window / time.Second),
	}
}

// marshalIndent encodes v with two-space indentation and without HTML
// escaping so non-ASCII and markup survive unchanged.
func marshalIndent(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// shapeOf returns the first non-space byte of a JSON document.
func shapeOf(raw []byte) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}
