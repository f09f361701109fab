// Package ingest reads pages from JSONL files for bulk loading.
//
// Each line is either a page object ({"header", "content", "meta"}) or a
// chat transcript entry ({"type", "message": {"role", "content"}}). Every
// transcript message with usable text becomes one page unless the caller
// asks for the transcript to be condensed into a single page.
package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/lazypower/recall/internal/model"
)

// Meta keys set on ingested pages.
const (
	MetaSource = "source"
	MetaLine   = "line"
	MetaRole   = "role"
)

// minMessageLen drops acknowledgements like "ok" and "yes".
const minMessageLen = 5

const maxLine = 1024 * 1024

// Result is the outcome of reading one file.
type Result struct {
	Pages []model.Page
	// Skipped counts lines that were malformed or carried no usable text.
	Skipped int
	// Messages holds the transcript messages in order, for Condense.
	Messages []Message
}

// Message is one transcript message with its extracted plain text.
type Message struct {
	Type string
	Role string
	Text string
}

// line is the union of both accepted line shapes.
type line struct {
	Type    string          `json:"type"`
	Message json.RawMessage `json:"message"`
	Header  *string         `json:"header"`
	Content json.RawMessage `json:"content"`
	Meta    map[string]any  `json:"meta"`
}

type message struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

var systemReminderRe = regexp.MustCompile(`<system-reminder>[\s\S]*?</system-reminder>`)

// ReadFile reads the JSONL file at path. Pages are tagged with the file's
// base name as meta.source.
func ReadFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f, filepath.Base(path))
}

// Read parses JSONL from r. Malformed lines are counted and skipped.
func Read(r io.Reader, source string) (*Result, error) {
	res := &Result{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLine)

	n := 0
	for scanner.Scan() {
		n++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		if !res.add([]byte(raw), source, n) {
			res.Skipped++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", source, err)
	}
	return res, nil
}

func (res *Result) add(raw []byte, source string, n int) bool {
	var l line
	if err := json.Unmarshal(raw, &l); err != nil {
		return false
	}

	if l.Type != "" && l.Message != nil {
		msg, ok := parseMessage(l.Type, l.Message)
		if !ok {
			return false
		}
		res.Messages = append(res.Messages, msg)
		res.Pages = append(res.Pages, model.Page{
			Header:  msg.Role,
			Content: msg.Text,
			Meta: map[string]any{
				MetaSource: source,
				MetaLine:   n,
				MetaRole:   msg.Role,
			},
		})
		return true
	}

	if l.Header == nil && l.Content == nil {
		return false
	}
	p := model.Page{Meta: l.Meta}
	if l.Header != nil {
		p.Header = *l.Header
	}
	if l.Content != nil {
		if err := json.Unmarshal(l.Content, &p.Content); err != nil {
			return false
		}
	}
	if p.Header == "" && p.Content == "" {
		return false
	}
	if p.Meta == nil {
		p.Meta = map[string]any{}
	}
	if _, ok := p.Meta[MetaSource]; !ok {
		p.Meta[MetaSource] = source
	}
	res.Pages = append(res.Pages, p)
	return true
}

func parseMessage(typ string, raw json.RawMessage) (Message, bool) {
	var m message
	if err := json.Unmarshal(raw, &m); err != nil {
		return Message{}, false
	}

	text := extractText(m.Content)
	text = systemReminderRe.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	// Raw tool payloads carry no prose worth ranking.
	if len(text) < minMessageLen || strings.HasPrefix(text, "{") {
		return Message{}, false
	}
	role := m.Role
	if role == "" {
		role = typ
	}
	return Message{Type: typ, Role: role, Text: text}, true
}

// extractText handles content given as a plain string or as an array of
// content blocks, keeping only text blocks.
func extractText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var items []contentItem
	if err := json.Unmarshal(raw, &items); err == nil {
		var texts []string
		for _, item := range items {
			if item.Type == "text" && item.Text != "" {
				texts = append(texts, item.Text)
			}
		}
		return strings.Join(texts, "\n")
	}
	return ""
}
