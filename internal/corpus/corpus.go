// Package corpus ties the TTL stores to the retrieval engine. A Corpus owns
// the memory and page stores for one data directory and rebuilds its
// retriever registry whenever the page set changes.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/lazypower/recall/internal/config"
	"github.com/lazypower/recall/internal/engine"
	"github.com/lazypower/recall/internal/model"
	"github.com/lazypower/recall/internal/observe"
	"github.com/lazypower/recall/internal/store"
	"github.com/lazypower/recall/internal/ttl"
)

// Corpus serializes every store and registry operation behind one mutex.
// The stores themselves are not safe for concurrent use.
//
// Page indices handed out by AddPage, Search and Lookup all refer to the
// purged page set: expired pages are swept before every read and write
// when auto-cleanup is enabled, so an index stays valid until the next
// mutation or expiry.
type Corpus struct {
	mu       sync.Mutex
	cfg      config.Config
	obs      *observe.Observer
	now      func() time.Time
	db       *store.DB
	location string
	memory   *ttl.MemoryStore
	pages    *ttl.PageStore
	embedder engine.Embedder
	closer   io.Closer
	reg      *engine.Registry
}

// Option customizes Open.
type Option func(*openOptions)

type openOptions struct {
	now      func() time.Time
	embedder engine.Embedder
}

// WithClock replaces time.Now in both stores.
func WithClock(now func() time.Time) Option {
	return func(o *openOptions) { o.now = now }
}

// WithEmbedder bypasses provider construction for the vector retriever.
// The caller keeps ownership; Close does not release it.
func WithEmbedder(e engine.Embedder) Option {
	return func(o *openOptions) { o.embedder = e }
}

// Open opens the configured backend and loads both stores.
func Open(cfg *config.Config, obs *observe.Observer, opts ...Option) (*Corpus, error) {
	o := openOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	c := &Corpus{cfg: *cfg, obs: observe.OrNop(obs), now: o.now, embedder: o.embedder}

	var backend ttl.Backend
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		db, err := store.Open(store.DefaultPath(cfg.Storage.DataDir))
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		c.db = db
		c.location = db.Path
		backend = db.Snapshots()
	default:
		fb := ttl.NewFileBackend(cfg.Storage.DataDir)
		c.location = fb.Dir()
		backend = fb
	}

	common := []ttl.Option{ttl.WithBackend(backend), ttl.WithObserver(c.obs), ttl.WithClock(o.now)}

	var err error
	c.memory, err = ttl.NewMemoryStore(append(common, cfg.Memory.Options()...)...)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("open memory store: %w", err)
	}
	c.pages, err = ttl.NewPageStore(append(common, cfg.Pages.Options()...)...)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("open page store: %w", err)
	}

	c.obs.Log().Debug().
		Str("backend", cfg.Storage.Backend).
		Str("location", c.location).
		Str("memory_ttl", cfg.Memory.String()).
		Str("pages_ttl", cfg.Pages.String()).
		Msg("corpus opened")
	return c, nil
}

// Close releases the embedding provider the corpus built and the database
// when the sqlite backend is in use.
func (c *Corpus) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	if c.closer != nil {
		errs = append(errs, c.closer.Close())
		c.closer = nil
	}
	if c.db != nil {
		errs = append(errs, c.db.Close())
		c.db = nil
	}
	return errors.Join(errs...)
}

// LoadErrors returns the errors that reset either store on open.
func (c *Corpus) LoadErrors() []error {
	var errs []error
	if err := c.memory.LoadError(); err != nil {
		errs = append(errs, err)
	}
	if err := c.pages.LoadError(); err != nil {
		errs = append(errs, err)
	}
	return errs
}

// sweep applies auto-cleanup so expired entries never reach a caller, and
// drops the registry when that renumbers pages. Callers hold c.mu.
func (c *Corpus) sweep() error {
	n, err := c.pages.CleanupDue()
	if err != nil {
		return fmt.Errorf("cleanup pages: %w", err)
	}
	if n > 0 {
		c.reg = nil
	}
	if c.cfg.Retrieval.MemoryTool {
		n, err = c.memory.CleanupDue()
		if err != nil {
			return fmt.Errorf("cleanup memory: %w", err)
		}
		if n > 0 {
			c.reg = nil
		}
	}
	return nil
}

// AddPage appends a page and returns its index together with the page as
// stored, timestamp and page_id included.
func (c *Corpus) AddPage(p model.Page) (int, model.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.sweep(); err != nil {
		return 0, model.Page{}, err
	}
	if err := c.pages.Add(p); err != nil {
		return 0, model.Page{}, err
	}
	c.reg = nil
	idx := c.pages.Len() - 1
	stored, _ := c.pages.Get(idx)
	return idx, stored, nil
}

// AddPages appends pages in order and returns the index of the first one.
func (c *Corpus) AddPages(pages []model.Page) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.sweep(); err != nil {
		return 0, err
	}
	first := c.pages.Len()
	if err := c.pages.AddAll(pages); err != nil {
		return 0, err
	}
	if len(pages) > 0 {
		c.reg = nil
	}
	return first, nil
}

// Page returns the live page at index.
func (c *Corpus) Page(index int) (model.Page, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.sweep(); err != nil {
		c.obs.Log().Warn().Err(err).Msg("sweep before page read failed")
	}
	return c.pages.Get(index)
}

// AddMemory stores an abstract. Duplicates are ignored.
func (c *Corpus) AddMemory(abstract string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.memory.Add(abstract); err != nil {
		return err
	}
	if c.cfg.Retrieval.MemoryTool {
		c.reg = nil
	}
	return nil
}

// Memory returns the valid abstracts.
func (c *Corpus) Memory() (model.MemoryState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.memory.Load()
}

// MemoryEntries returns every stored abstract with its timestamp, expired
// ones included.
func (c *Corpus) MemoryEntries() []ttl.MemoryEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.memory.Entries()
}

// Stats reports occupancy of both stores.
type Stats struct {
	Memory     ttl.Stats            `json:"memory"`
	Pages      ttl.Stats            `json:"pages"`
	Backend    string               `json:"backend"`
	Location   string               `json:"location"`
	Retrievers []string             `json:"retrievers,omitempty"`
	Snapshots  []store.SnapshotInfo `json:"snapshots,omitempty"`
	// Embeddings counts cached vectors of the active provider model.
	Embeddings int `json:"embeddings,omitempty"`
}

func (c *Corpus) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Memory:   c.memory.Stats(),
		Pages:    c.pages.Stats(),
		Backend:  c.cfg.Storage.Backend,
		Location: c.location,
	}
	if c.reg != nil {
		s.Retrievers = c.reg.Names()
	}
	if c.db != nil {
		snaps, err := c.db.ListSnapshots()
		if err != nil {
			c.obs.Log().Warn().Err(err).Msg("list snapshots failed")
		}
		s.Snapshots = snaps
		if c.embedder != nil {
			n, err := c.db.CountEmbeddings(c.embedder.Model())
			if err != nil {
				c.obs.Log().Warn().Err(err).Msg("count embeddings failed")
			}
			s.Embeddings = n
		}
	}
	return s
}

// CleanupResult counts the entries removed by Cleanup.
type CleanupResult struct {
	Memory     int   `json:"memory"`
	Pages      int   `json:"pages"`
	Embeddings int64 `json:"embeddings"`
}

// Cleanup purges expired entries from both stores. Page removals renumber
// positions, so the registry is invalidated. With the sqlite backend and a
// page retention window, cached embeddings older than that window are
// dropped too.
func (c *Corpus) Cleanup() (CleanupResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var res CleanupResult
	var err error
	if res.Memory, err = c.memory.CleanupExpired(); err != nil {
		return res, fmt.Errorf("cleanup memory: %w", err)
	}
	if res.Memory > 0 && c.cfg.Retrieval.MemoryTool {
		c.reg = nil
	}
	if res.Pages, err = c.pages.CleanupExpired(); err != nil {
		return res, fmt.Errorf("cleanup pages: %w", err)
	}
	if res.Pages > 0 {
		c.reg = nil
	}
	if window, enabled := c.cfg.Pages.Window(); enabled && c.db != nil {
		cutoff := c.now().Add(-window).UnixMilli()
		if res.Embeddings, err = c.db.PurgeEmbeddings(cutoff); err != nil {
			return res, fmt.Errorf("cleanup embeddings: %w", err)
		}
	}
	return res, nil
}

// Search runs query against the named retriever. An empty name means
// keyword; a non-positive topK means the configured default.
func (c *Corpus) Search(ctx context.Context, retriever, query string, topK int) ([]model.Hit, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if retriever == "" {
		retriever = model.SourceKeyword
	}
	if topK <= 0 {
		topK = c.cfg.Retrieval.TopK
	}
	ctx, span := c.obs.StartSpan(ctx, "corpus.search")
	defer span.End()
	span.SetAttributes(attribute.String("retriever", retriever), attribute.Int("top_k", topK))

	reg, err := c.registry(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return reg.Search(ctx, retriever, query, topK)
}

// Lookup resolves page indices against the same snapshot Search ranks, so
// indices taken from hits stay valid until the next mutation or expiry.
func (c *Corpus) Lookup(ctx context.Context, indices []int) ([]model.Hit, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, span := c.obs.StartSpan(ctx, "corpus.lookup")
	defer span.End()
	span.SetAttributes(attribute.Int("indices", len(indices)))

	reg, err := c.registry(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return reg.Lookup(indices), nil
}

// Retrievers returns the registered retriever and tool names.
func (c *Corpus) Retrievers(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	reg, err := c.registry(ctx)
	if err != nil {
		return nil, err
	}
	return reg.Names(), nil
}

// vectorEmbedder returns the embedder of the vector retriever, building the
// configured provider once and reusing it across registry rebuilds.
// Callers hold c.mu.
func (c *Corpus) vectorEmbedder(ctx context.Context) (engine.Embedder, error) {
	if c.embedder != nil {
		return c.embedder, nil
	}
	emb, err := engine.NewEmbedder(ctx, c.cfg.Embedding.Engine())
	if err != nil {
		return nil, fmt.Errorf("vector retriever: %w", err)
	}
	if cl, ok := emb.(io.Closer); ok {
		c.closer = cl
	}
	if _, fitted := emb.(engine.Fitter); !fitted && c.db != nil && c.cfg.Embedding.CacheEnabled() {
		emb = engine.NewCachedEmbedder(emb, c.db, c.obs)
	}
	c.embedder = emb
	return emb, nil
}

// registry returns the current registry after sweeping expired entries,
// rebuilding it from a fresh page snapshot when invalidated. Callers hold
// c.mu.
func (c *Corpus) registry(ctx context.Context) (*engine.Registry, error) {
	if err := c.sweep(); err != nil {
		return nil, err
	}
	if c.reg != nil {
		return c.reg, nil
	}
	pages, err := c.pages.Load()
	if err != nil {
		return nil, fmt.Errorf("load pages: %w", err)
	}

	opts := engine.Options{
		UseVector: c.cfg.Retrieval.UseVector,
		BM25:      c.cfg.Retrieval.BM25,
		Observer:  c.obs,
	}
	if opts.UseVector {
		if opts.Embedder, err = c.vectorEmbedder(ctx); err != nil {
			return nil, err
		}
	}
	reg, err := engine.NewRegistry(ctx, pages, opts)
	if err != nil {
		return nil, err
	}

	if c.cfg.Retrieval.MemoryTool {
		state, err := c.memory.Load()
		if err != nil {
			return nil, fmt.Errorf("load memory: %w", err)
		}
		tool, err := engine.NewMemoryTool(state.Abstracts, engine.NewBM25(c.cfg.Retrieval.BM25))
		if err != nil {
			return nil, err
		}
		reg.AddTool("memory", tool)
	}

	c.reg = reg
	return reg, nil
}
