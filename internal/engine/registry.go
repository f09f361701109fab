package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/lazypower/recall/internal/model"
	"github.com/lazypower/recall/internal/observe"
)

// Embedding providers.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
	ProviderTFIDF  = "tfidf"
)

// EmbeddingConfig selects and configures an embedding provider.
type EmbeddingConfig struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
	Timeout  time.Duration
	MaxTerms int
}

// NewEmbedder constructs the provider named by cfg. An empty provider means
// openai. Hosted providers without an API key return ErrMissingCredential.
func NewEmbedder(ctx context.Context, cfg EmbeddingConfig) (Embedder, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultEmbedTimeout
	}
	var (
		emb Embedder
		err error
	)
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderOpenAI:
		var e *OpenAIEmbedder
		e, err = NewOpenAIEmbedder(cfg.APIKey, cfg.BaseURL, cfg.Model, timeout)
		emb = e
	case ProviderGemini:
		var e *GeminiEmbedder
		e, err = NewGeminiEmbedder(ctx, cfg.APIKey, cfg.Model)
		emb = e
	case ProviderOllama:
		m := cfg.Model
		if m == "" {
			m = "nomic-embed-text"
		}
		var e *OllamaEmbedder
		e, err = NewOllamaEmbedder(cfg.BaseURL, m, timeout)
		emb = e
	case ProviderTFIDF:
		emb = NewTFIDFEmbedder(cfg.MaxTerms)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return emb, nil
}

// Options configures NewRegistry.
type Options struct {
	// UseVector adds the vector retriever.
	UseVector bool
	// Embedding selects the provider when Embedder is nil.
	Embedding EmbeddingConfig
	// Embedder overrides provider construction.
	Embedder Embedder
	// Cache, when set, memoizes embeddings of external providers.
	Cache EmbeddingCache
	// Ranker fits the lexical ranker. Nil means BM25 with BM25 params.
	Ranker RankerFactory
	// BM25 tunes the default ranker. The zero value means the defaults.
	BM25     BM25Params
	Observer *observe.Observer
}

func (o Options) ranker() RankerFactory {
	if o.Ranker != nil {
		return o.Ranker
	}
	p := o.BM25
	if p == (BM25Params{}) {
		p = DefaultBM25Params()
	}
	return NewBM25(p)
}

// Registry holds the retrievers built over one corpus snapshot, plus any
// registered tools. It never observes later corpus changes.
type Registry struct {
	snapshot   Snapshot
	retrievers map[string]Retriever
	tools      map[string]Tool
	order      []string
	obs        *observe.Observer
}

// NewRegistry builds the keyword retriever, and the vector retriever when
// opts.UseVector is set, over a copy of pages.
func NewRegistry(ctx context.Context, pages []model.Page, opts Options) (*Registry, error) {
	ctx, span := tracer.Start(ctx, "engine.registry.build")
	defer span.End()
	span.SetAttributes(
		attribute.Int("documents", len(pages)),
		attribute.Bool("vector", opts.UseVector),
	)

	r := &Registry{
		snapshot:   append(Snapshot(nil), pages...),
		retrievers: make(map[string]Retriever),
		tools:      make(map[string]Tool),
		obs:        observe.OrNop(opts.Observer),
	}

	kw, err := NewLexicalRetriever(opts.ranker())
	if err != nil {
		return nil, err
	}
	if err := r.add(ctx, kw); err != nil {
		return nil, err
	}

	if opts.UseVector {
		emb := opts.Embedder
		if emb == nil {
			emb, err = NewEmbedder(ctx, opts.Embedding)
			if err != nil {
				return nil, fmt.Errorf("vector retriever: %w", err)
			}
			if _, fitted := emb.(Fitter); !fitted && opts.Cache != nil {
				emb = NewCachedEmbedder(emb, opts.Cache, r.obs)
			}
		}
		if err := r.add(ctx, NewVectorRetriever(emb)); err != nil {
			return nil, err
		}
	}

	r.obs.Log().Debug().
		Int("documents", len(pages)).
		Str("retrievers", strings.Join(r.order, ",")).
		Msg("built retriever registry")
	return r, nil
}

func (r *Registry) add(ctx context.Context, ret Retriever) error {
	if err := ret.Build(ctx, r.snapshot); err != nil {
		return fmt.Errorf("build %s retriever: %w", ret.Name(), err)
	}
	r.retrievers[ret.Name()] = ret
	r.order = append(r.order, ret.Name())
	return nil
}

// AddTool registers an external search source under name. Its hits are
// tagged tool:<name>.
func (r *Registry) AddTool(name string, t Tool) {
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Search runs query against the retriever or tool registered under name.
// A non-positive topK means DefaultTopK.
func (r *Registry) Search(ctx context.Context, name, query string, topK int) ([]model.Hit, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if ret, ok := r.retrievers[name]; ok {
		return ret.Search(ctx, query, topK)
	}
	if t, ok := r.tools[name]; ok {
		hits, err := t.Search(ctx, query, topK)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", name, err)
		}
		for i := range hits {
			hits[i].Source = model.ToolSource(name)
		}
		return hits, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownRetriever, name)
}

// Lookup resolves indices against the registry's own snapshot, so they
// match the page_index values of hits it returned.
func (r *Registry) Lookup(indices []int) []model.Hit {
	return Lookup(r.snapshot, indices)
}

// Size returns the number of pages in the snapshot.
func (r *Registry) Size() int {
	return len(r.snapshot)
}
