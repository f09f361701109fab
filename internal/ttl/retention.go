// Package ttl implements the time-to-live lifecycle store used for both the
// free-text memory abstracts and the page corpus.
//
// Lifecycle:
//   - Entries are stamped with an ISO-8601 UTC creation time on Add/Save
//   - An entry is valid while its timestamp is after now - window
//   - Entries without a readable timestamp are always kept (fail-open)
//   - With no retention window configured every operation is a pass-through
//
// Persistence is a whole-snapshot rewrite on every mutation. A store is not
// safe for concurrent use, and two processes must not share one backend:
// the last writer wins.
package ttl

import (
	"fmt"
	"time"
)

// Retention configures the window after which entries expire. Seconds, when
// set, takes precedence over the sum of Days, Hours, and Minutes. With none
// of them set TTL is disabled.
type Retention struct {
	Seconds *int64 `yaml:"seconds,omitempty" json:"seconds,omitempty"`
	Days    int64  `yaml:"days,omitempty" json:"days,omitempty"`
	Hours   int64  `yaml:"hours,omitempty" json:"hours,omitempty"`
	Minutes int64  `yaml:"minutes,omitempty" json:"minutes,omitempty"`
}

// Seconds returns a Retention of exactly n seconds.
func Seconds(n int64) Retention {
	return Retention{Seconds: &n}
}

// Days returns a Retention of n days.
func Days(n int64) Retention {
	return Retention{Days: n}
}

// Window returns the retention duration and whether TTL is enabled at all.
func (r Retention) Window() (time.Duration, bool) {
	if r.Seconds != nil {
		return time.Duration(*r.Seconds) * time.Second, true
	}
	if r.Days == 0 && r.Hours == 0 && r.Minutes == 0 {
		return 0, false
	}
	total := r.Days*86400 + r.Hours*3600 + r.Minutes*60
	return time.Duration(total) * time.Second, true
}

// String renders the retention for logs and CLI output.
func (r Retention) String() string {
	w, ok := r.Window()
	if !ok {
		return "disabled"
	}
	return fmt.Sprintf("%ds", int64(w/time.Second))
}

// timestampLayouts are tried in order when reading a persisted timestamp.
// Timestamps without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// expiredAt reports whether ts is at or before cutoff. Missing or unparseable
// timestamps never expire.
func expiredAt(ts string, ok bool, cutoff time.Time) bool {
	if !ok || ts == "" {
		return false
	}
	t, err := parseTimestamp(ts)
	if err != nil {
		return false
	}
	return !t.After(cutoff)
}
