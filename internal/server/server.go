package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lazypower/recall/internal/corpus"
	"github.com/lazypower/recall/internal/observe"
)

// Server is the recall HTTP API server.
type Server struct {
	corpus  *corpus.Corpus
	obs     *observe.Observer
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server over c.
func New(c *corpus.Corpus, obs *observe.Observer, version string) *Server {
	s := &Server{
		corpus:  c,
		obs:     observe.OrNop(obs),
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)
		r.Post("/cleanup", s.handleCleanup)

		r.Get("/memory", s.handleListMemory)
		r.Post("/memory", s.handleAddMemory)

		r.Post("/pages", s.handleAddPage)
		r.Get("/pages/{index}", s.handleGetPage)

		r.Get("/search", s.handleSearch)
		r.Post("/lookup", s.handleLookup)
	})

	s.router = r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.obs.Log().Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Str("took", time.Since(start).String()).
			Msg("request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	loadErrors := []string{}
	for _, err := range s.corpus.LoadErrors() {
		loadErrors = append(loadErrors, err.Error())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"version":     s.version,
		"uptime":      time.Since(s.started).Seconds(),
		"load_errors": loadErrors,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
