package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lazypower/recall/internal/corpus"
	"github.com/lazypower/recall/internal/model"
	"github.com/lazypower/recall/internal/ttl"
)

func resetFlags() {
	flagConfig, flagDataDir, flagBackend = "", "", ""
	flagVerbose, flagJSONLogs = false, false
	searchRetriever, searchVector, searchLimit, searchJSON = "", false, 0, false
	lookupJSON, memoryJSON, memoryAll, statsJSON = false, false, false, false
	addHeader, addContent, addContentFile = "", "", ""
	importCondense = false
}

// run executes the root command against dir with a config path that does
// not exist, so only defaults and flags apply.
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	full := append([]string{"--config", filepath.Join(dir, "none.yaml"), "--data-dir", dir}, args...)
	rootCmd.SetArgs(full)
	err := rootCmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := run(t, dir, args...)
	if err != nil {
		t.Fatalf("recall %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func seedPages(t *testing.T, dir string, extra ...string) {
	t.Helper()
	mustRun(t, dir, append([]string{"add", "page", "--header", "Go channels", "--content", "channels synchronize goroutines"}, extra...)...)
	mustRun(t, dir, append([]string{"add", "page", "--header", "Python lists", "--content", "lists are mutable sequences"}, extra...)...)
	mustRun(t, dir, append([]string{"add", "page", "--header", "Rust ownership", "--content", "borrowing rules"}, extra...)...)
}

func TestVersionCommand(t *testing.T) {
	out := mustRun(t, t.TempDir(), "version")
	if !strings.HasPrefix(out, "recall "+Version) {
		t.Errorf("version output = %q", out)
	}
}

func TestAddSearchLookup(t *testing.T) {
	dir := t.TempDir()
	seedPages(t, dir)

	out := mustRun(t, dir, "search", "goroutines")
	if !strings.Contains(out, "1. [") || !strings.Contains(out, "page 0, keyword") {
		t.Errorf("search output = %q, want page 0 ranked first", out)
	}

	out = mustRun(t, dir, "lookup", "1", "99")
	if !strings.Contains(out, "lists are mutable sequences") {
		t.Errorf("lookup output = %q, want page 1", out)
	}
	if strings.Contains(out, "2. ") {
		t.Errorf("lookup output = %q, want out-of-range index skipped", out)
	}
}

func TestSearchJSON(t *testing.T) {
	dir := t.TempDir()
	seedPages(t, dir)

	out := mustRun(t, dir, "search", "--json", "-n", "1", "mutable")
	var hits []model.Hit
	if err := json.Unmarshal([]byte(out), &hits); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(hits) != 1 {
		t.Fatalf("hits = %d, want 1", len(hits))
	}
	if hits[0].PageIndex == nil || *hits[0].PageIndex != 1 {
		t.Errorf("page_index = %v, want 1", hits[0].PageIndex)
	}
	if hits[0].Source != model.SourceKeyword {
		t.Errorf("source = %q, want keyword", hits[0].Source)
	}
}

func TestSearchNoResults(t *testing.T) {
	out := mustRun(t, t.TempDir(), "search", "anything")
	if !strings.Contains(out, "No results found.") {
		t.Errorf("output = %q", out)
	}
}

func TestAddPageWithMeta(t *testing.T) {
	dir := t.TempDir()
	out := mustRun(t, dir, "add", "page", "--header", "h", "--content", "c", "--meta", "lang=go")
	if !strings.HasPrefix(out, "added page 0 (") {
		t.Errorf("output = %q", out)
	}

	out = mustRun(t, dir, "lookup", "--json", "0")
	var hits []model.Hit
	if err := json.Unmarshal([]byte(out), &hits); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(hits) != 1 || hits[0].Meta["lang"] != "go" {
		t.Errorf("hits = %+v, want meta lang=go", hits)
	}
}

func TestAddPageRequiresContent(t *testing.T) {
	if _, err := run(t, t.TempDir(), "add", "page"); err == nil {
		t.Error("add page with nothing succeeded, want error")
	}
}

func TestLookupRejectsNonNumeric(t *testing.T) {
	if _, err := run(t, t.TempDir(), "lookup", "first"); err == nil {
		t.Error("lookup first succeeded, want error")
	}
}

func TestMemoryCommands(t *testing.T) {
	dir := t.TempDir()
	mustRun(t, dir, "add", "memory", "user", "prefers", "tabs")
	mustRun(t, dir, "add", "memory", "user prefers tabs")

	out := mustRun(t, dir, "memory", "--json")
	var state model.MemoryState
	if err := json.Unmarshal([]byte(out), &state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(state.Abstracts) != 1 || state.Abstracts[0] != "user prefers tabs" {
		t.Errorf("abstracts = %v, want one deduplicated entry", state.Abstracts)
	}
}

func TestMemoryAllListsEntries(t *testing.T) {
	dir := t.TempDir()
	if out := mustRun(t, dir, "memory", "--all"); out != "No memory stored.\n" {
		t.Errorf("empty output = %q", out)
	}
	mustRun(t, dir, "add", "memory", "deploys freeze on fridays")

	out := mustRun(t, dir, "memory", "--all", "--json")
	var entries []ttl.MemoryEntry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(entries) != 1 || entries[0].Content != "deploys freeze on fridays" {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].Timestamp == "" {
		t.Error("timestamp missing")
	}

	out = mustRun(t, dir, "memory", "--all")
	want := fmt.Sprintf("- [%s] deploys freeze on fridays\n", entries[0].Timestamp)
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestStatsSQLiteBackend(t *testing.T) {
	dir := t.TempDir()
	seedPages(t, dir, "--backend", "sqlite")

	out := mustRun(t, dir, "--backend", "sqlite", "stats", "--json")
	var st corpus.Stats
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if st.Backend != "sqlite" || st.Pages.Total != 3 {
		t.Errorf("stats = %+v, want sqlite with 3 pages", st)
	}
	if st.Pages.TTLEnabled {
		t.Error("ttl enabled by default, want disabled")
	}
	if st.Location != filepath.Join(dir, "recall.db") {
		t.Errorf("location = %q", st.Location)
	}
	found := false
	for _, snap := range st.Snapshots {
		found = found || snap.Key == ttl.PagesFile
	}
	if !found {
		t.Errorf("snapshots = %+v, want %s", st.Snapshots, ttl.PagesFile)
	}

	out = mustRun(t, dir, "--backend", "sqlite", "cleanup")
	if out != "removed 0 memory, 0 pages\n" {
		t.Errorf("cleanup output = %q", out)
	}
}

func TestUnknownRetriever(t *testing.T) {
	dir := t.TempDir()
	seedPages(t, dir)
	if _, err := run(t, dir, "search", "-r", "nope", "goroutines"); err == nil {
		t.Error("search with unknown retriever succeeded, want error")
	}
}

func TestImport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(t.TempDir(), "chat.jsonl")
	body := `{"type":"user","message":{"role":"user","content":"How do goroutines leak?"}}
{"type":"assistant","message":{"role":"assistant","content":"Blocked sends on unbuffered channels."}}
not json
{"header":"Notes","content":"context cancellation"}
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	out := mustRun(t, dir, "import", path)
	if out != "imported 3 pages at 0..2 (1 lines skipped)\n" {
		t.Errorf("import output = %q", out)
	}

	out = mustRun(t, dir, "import", "--condense", path)
	if out != "imported 2 pages at 3..4 (1 lines skipped)\n" {
		t.Errorf("condensed import output = %q", out)
	}

	out = mustRun(t, dir, "lookup", "3")
	if !strings.Contains(out, "[USER] How do goroutines leak?") {
		t.Errorf("condensed page = %q", out)
	}
}
