package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lazypower/recall/internal/engine"
	"github.com/lazypower/recall/internal/model"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.corpus.Stats())
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	res, err := s.corpus.Cleanup()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": res})
}

func (s *Server) handleListMemory(w http.ResponseWriter, r *http.Request) {
	state, err := s.corpus.Memory()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if state.Abstracts == nil {
		state.Abstracts = []string{}
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleAddMemory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Abstract string `json:"abstract"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Abstract) == "" {
		writeError(w, http.StatusBadRequest, "abstract required")
		return
	}
	if err := s.corpus.AddMemory(req.Abstract); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

func (s *Server) handleAddPage(w http.ResponseWriter, r *http.Request) {
	var req model.Page
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Header == "" && req.Content == "" {
		writeError(w, http.StatusBadRequest, "header or content required")
		return
	}

	idx, p, err := s.corpus.AddPage(req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"page_index": idx,
		"page_id":    p.ID(),
	})
}

func (s *Server) handleGetPage(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "index must be an integer")
		return
	}
	p, ok := s.corpus.Page(idx)
	if !ok {
		writeError(w, http.StatusNotFound, "page not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	retriever := r.URL.Query().Get("retriever")

	topK := 0
	if v := r.URL.Query().Get("top_k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "top_k must be a positive integer")
			return
		}
		topK = n
	}

	hits, err := s.corpus.Search(r.Context(), retriever, q, topK)
	switch {
	case errors.Is(err, engine.ErrUnknownRetriever):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, engine.ErrMissingCredential), errors.Is(err, engine.ErrUnknownProvider):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		s.obs.Log().Error().Err(err).Str("retriever", retriever).Msg("search failed")
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeHits(w, hits)
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Indices []int `json:"indices"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	hits, err := s.corpus.Lookup(r.Context(), req.Indices)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeHits(w, hits)
}

func writeHits(w http.ResponseWriter, hits []model.Hit) {
	if hits == nil {
		hits = []model.Hit{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"hits": hits})
}
