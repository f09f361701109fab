// Package model holds the data shapes shared by the TTL stores, the retrieval
// engine, and the HTTP API: pages, memory abstracts, and retrieval hits.
package model

import "unicode/utf8"

// Meta keys reserved by the stores.
const (
	MetaTimestamp = "timestamp"
	MetaPageID    = "page_id"
)

// Hit sources.
const (
	SourceKeyword   = "keyword"
	SourceVector    = "vector"
	SourcePageIndex = "page_index"
)

// SnippetLimit caps Hit.Snippet, counted in characters.
const SnippetLimit = 200

// Page is one entry of the page corpus. Its identifier is its position in the
// corpus at the time the corpus is listed; positions shift after a purge.
type Page struct {
	Header  string         `json:"header"`
	Content string         `json:"content"`
	Meta    map[string]any `json:"meta"`
}

// Text is the string the retrievers index: header and content joined by a newline.
func (p Page) Text() string {
	return p.Header + "\n" + p.Content
}

// Snippet returns up to SnippetLimit characters of the content, falling back
// to the header when the content is empty.
func (p Page) Snippet() string {
	s := p.Content
	if s == "" {
		s = p.Header
	}
	return Truncate(s, SnippetLimit)
}

// ID returns the stable page identifier, or "" for pages that predate one.
func (p Page) ID() string {
	id, _ := p.Meta[MetaPageID].(string)
	return id
}

// Timestamp returns the creation timestamp stored in meta. The second return
// is false when the key is missing or not a string.
func (p Page) Timestamp() (string, bool) {
	ts, ok := p.Meta[MetaTimestamp].(string)
	return ts, ok
}

// Clone returns a copy of p with its own meta map.
func (p Page) Clone() Page {
	meta := make(map[string]any, len(p.Meta)+2)
	for k, v := range p.Meta {
		meta[k] = v
	}
	p.Meta = meta
	return p
}

// MemoryState is the abstract-list view of the memory store.
type MemoryState struct {
	Abstracts []string `json:"abstracts"`
}

// Hit is a single retrieval result.
type Hit struct {
	PageIndex *int           `json:"page_index"`
	Snippet   string         `json:"snippet"`
	Source    string         `json:"source"`
	Meta      map[string]any `json:"meta"`
}

// NewHit builds a hit for the page at index idx.
func NewHit(idx int, p Page, source string, meta map[string]any) Hit {
	if meta == nil {
		meta = map[string]any{}
	}
	if id := p.ID(); id != "" {
		meta[MetaPageID] = id
	}
	return Hit{
		PageIndex: &idx,
		Snippet:   p.Snippet(),
		Source:    source,
		Meta:      meta,
	}
}

// ToolSource is the source tag for hits produced by a named external tool.
func ToolSource(name string) string {
	return "tool:" + name
}

// Truncate returns at most n characters of s.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
