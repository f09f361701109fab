package ttl

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lazypower/recall/internal/model"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func writeSnapshot(t *testing.T, dir, key, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, key), []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestRetentionWindow(t *testing.T) {
	tests := []struct {
		name    string
		r       Retention
		want    time.Duration
		enabled bool
	}{
		{"disabled", Retention{}, 0, false},
		{"seconds", Seconds(60), 60 * time.Second, true},
		{"zero seconds still enabled", Seconds(0), 0, true},
		{"days", Days(30), 30 * 24 * time.Hour, true},
		{"summed", Retention{Days: 1, Hours: 2, Minutes: 3}, 26*time.Hour + 3*time.Minute, true},
		{"seconds overrides units", Retention{Seconds: Seconds(5).Seconds, Days: 9}, 5 * time.Second, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, enabled := tt.r.Window()
			if got != tt.want || enabled != tt.enabled {
				t.Errorf("Window() = (%v, %v), want (%v, %v)", got, enabled, tt.want, tt.enabled)
			}
		})
	}
}

func TestMemoryStoreExpiresAfterWindow(t *testing.T) {
	clock := newFakeClock()
	s, err := NewMemoryStore(WithRetention(Seconds(60)), WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}

	if err := s.Add("user prefers Go"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	st := s.Stats()
	if st.Total != 1 || st.Valid != 1 || st.Expired != 0 {
		t.Errorf("stats = %+v, want total=1 valid=1 expired=0", st)
	}
	if !st.TTLEnabled || st.TTLSeconds != 60 {
		t.Errorf("stats = %+v, want ttl enabled with 60s", st)
	}

	clock.Advance(61 * time.Second)
	state, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(state.Abstracts) != 0 {
		t.Errorf("abstracts = %v, want none after expiry", state.Abstracts)
	}
	if st := s.Stats(); st.Total != 0 {
		t.Errorf("total = %d, want 0", st.Total)
	}
}

func TestMemoryStoreDeduplicates(t *testing.T) {
	s, err := NewMemoryStore()
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	for _, a := range []string{"same", "same", ""} {
		if err := s.Add(a); err != nil {
			t.Fatalf("Add(%q): %v", a, err)
		}
	}
	if got := len(s.Entries()); got != 1 {
		t.Errorf("entries = %d, want 1", got)
	}
}

func TestCleanupIsIdempotent(t *testing.T) {
	clock := newFakeClock()
	s, _ := NewMemoryStore(WithRetention(Seconds(10)), WithAutoCleanup(false), WithClock(clock.Now))
	s.Add("old")
	clock.Advance(20 * time.Second)
	s.Add("new")

	n, err := s.CleanupExpired()
	if err != nil || n != 1 {
		t.Fatalf("first CleanupExpired = (%d, %v), want (1, nil)", n, err)
	}
	n, err = s.CleanupExpired()
	if err != nil || n != 0 {
		t.Errorf("second CleanupExpired = (%d, %v), want (0, nil)", n, err)
	}
}

func TestBoundaryInstantIsExpired(t *testing.T) {
	clock := newFakeClock()
	s, _ := NewMemoryStore(WithRetention(Seconds(60)), WithAutoCleanup(false), WithClock(clock.Now))
	s.Add("edge")

	clock.Advance(60 * time.Second)
	if st := s.Stats(); st.Expired != 1 {
		t.Errorf("expired = %d at exact window boundary, want 1", st.Expired)
	}

	clock.Advance(-time.Nanosecond)
	if st := s.Stats(); st.Expired != 0 {
		t.Errorf("expired = %d just inside the window, want 0", st.Expired)
	}
}

func TestAutoCleanupDisabledKeepsExpired(t *testing.T) {
	clock := newFakeClock()
	s, _ := NewMemoryStore(WithRetention(Seconds(1)), WithAutoCleanup(false), WithClock(clock.Now))
	s.Add("stale")
	clock.Advance(time.Hour)

	state, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(state.Abstracts) != 1 {
		t.Errorf("abstracts = %v, want stale entry kept", state.Abstracts)
	}
	if st := s.Stats(); st.Valid != 0 || st.Expired != 1 {
		t.Errorf("stats = %+v, want valid=0 expired=1", st)
	}
}

func TestDisabledTTLReportsEverythingValid(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir, MemoryFile, `{"entries":[
		{"content":"ancient","timestamp":"2001-01-01T00:00:00Z"},
		{"content":"recent","timestamp":"2025-03-01T11:00:00Z"}]}`)

	s, err := NewMemoryStore(WithBackend(NewFileBackend(dir)))
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	st := s.Stats()
	if st.TTLEnabled {
		t.Error("TTLEnabled = true, want false")
	}
	if st.Total != 2 || st.Valid != 2 || st.Expired != 0 {
		t.Errorf("stats = %+v, want total=2 valid=2 expired=0", st)
	}
	if n, _ := s.CleanupExpired(); n != 0 {
		t.Errorf("CleanupExpired = %d, want 0 with TTL disabled", n)
	}
}

func TestLegacyAbstractsAreFreshlyStamped(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir, MemoryFile, `{"abstracts": ["a", "b"]}`)

	clock := newFakeClock()
	s, err := NewMemoryStore(
		WithBackend(NewFileBackend(dir)),
		WithRetention(Days(30)),
		WithClock(clock.Now),
	)
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	st := s.Stats()
	if st.Total != 2 || st.Valid != 2 {
		t.Errorf("stats = %+v, want both legacy entries valid", st)
	}
	for _, e := range s.Entries() {
		if e.Timestamp != formatTimestamp(clock.Now()) {
			t.Errorf("entry %q timestamp = %q, want load time", e.Content, e.Timestamp)
		}
	}
}

func TestBareListShape(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir, MemoryFile, `["plain", {"content":"dated","timestamp":"2025-02-28T00:00:00+00:00"}, {"content":"undated"}]`)

	clock := newFakeClock()
	s, err := NewMemoryStore(WithBackend(NewFileBackend(dir)), WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	entries := s.Entries()
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	if entries[1].Timestamp != "2025-02-28T00:00:00+00:00" {
		t.Errorf("dated timestamp = %q, want preserved", entries[1].Timestamp)
	}
	if entries[2].Timestamp == "" {
		t.Error("undated list entry should be stamped on load")
	}
}

func TestMissingAndMalformedTimestampsAreKept(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir, MemoryFile, `{"entries":[
		{"content":"no stamp"},
		{"content":"garbage","timestamp":"last tuesday"},
		{"content":"expired","timestamp":"2001-01-01T00:00:00Z"}]}`)

	s, err := NewMemoryStore(WithBackend(NewFileBackend(dir)), WithRetention(Days(1)))
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	state, _ := s.Load()
	if len(state.Abstracts) != 2 {
		t.Fatalf("abstracts = %v, want the two unstamped entries kept", state.Abstracts)
	}
	if state.Abstracts[0] != "no stamp" || state.Abstracts[1] != "garbage" {
		t.Errorf("abstracts = %v", state.Abstracts)
	}
}

func TestCorruptSnapshotResetsToEmpty(t *testing.T) {
	for name, body := range map[string]string{
		"invalid json":  `{"entries": [`,
		"unknown shape": `{"something": 1}`,
		"scalar":        `42`,
	} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writeSnapshot(t, dir, MemoryFile, body)

			s, err := NewMemoryStore(WithBackend(NewFileBackend(dir)))
			if err != nil {
				t.Fatalf("NewMemoryStore: %v", err)
			}
			if s.LoadError() == nil {
				t.Error("LoadError() = nil, want the decode failure")
			}
			if st := s.Stats(); st.Total != 0 {
				t.Errorf("total = %d, want 0", st.Total)
			}
		})
	}
}

func TestUnrecognizedShapeError(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir, MemoryFile, `{"nope": true}`)
	s, _ := NewMemoryStore(WithBackend(NewFileBackend(dir)))
	if !errors.Is(s.LoadError(), ErrUnrecognizedShape) {
		t.Errorf("LoadError() = %v, want ErrUnrecognizedShape", s.LoadError())
	}
}

func TestMemoryStorePersists(t *testing.T) {
	dir := t.TempDir()
	backend := NewFileBackend(dir)

	s, err := NewMemoryStore(WithBackend(backend), WithRetention(Days(30)))
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	s.Add("first")
	s.Add("second")

	reopened, err := NewMemoryStore(WithBackend(backend), WithRetention(Days(30)))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	state, _ := reopened.Load()
	if len(state.Abstracts) != 2 || state.Abstracts[0] != "first" {
		t.Errorf("abstracts = %v, want [first second]", state.Abstracts)
	}
	if reopened.LoadError() != nil {
		t.Errorf("LoadError() = %v, want nil", reopened.LoadError())
	}
}

func TestSaveReplacesAndRestamps(t *testing.T) {
	clock := newFakeClock()
	s, _ := NewMemoryStore(WithRetention(Seconds(60)), WithAutoCleanup(false), WithClock(clock.Now))
	s.Add("old")
	clock.Advance(2 * time.Minute)

	state, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := s.Save(state); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if st := s.Stats(); st.Valid != 1 || st.Expired != 0 {
		t.Errorf("stats = %+v, want the re-stamped entry valid", st)
	}

	if err := s.Save(model.MemoryState{Abstracts: []string{"x", "y"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got := len(s.Entries()); got != 2 {
		t.Errorf("entries = %d, want 2 after overwrite", got)
	}
}
