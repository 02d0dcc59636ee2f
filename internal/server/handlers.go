package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hyperjump/atrbot/internal/llm"
	"github.com/hyperjump/atrbot/internal/models"
	"github.com/hyperjump/atrbot/internal/retry"
	"github.com/hyperjump/atrbot/internal/storage"
	"github.com/hyperjump/atrbot/pkg/utils"
	"go.uber.org/zap"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.deps.Index.Stats()
	resp := map[string]interface{}{
		"manifest":  s.deps.Index.Manifest(),
		"documents": stats.Documents,
		"chunks":    stats.Chunks,
		"vectors":   stats.Vectors,
	}
	if s.deps.Sessions != nil {
		resp["open_sessions"] = s.deps.Sessions.Len()
	}
	if s.deps.IndexPath != "" {
		if bytes, err := storage.DiskUsageBytes(s.deps.IndexPath); err == nil {
			resp["disk_usage_bytes"] = bytes
		} else {
			s.logger.Warn("status: disk usage failed", zap.Error(err))
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request", zap.String("query", utils.Truncate(query.Query, 80)), zap.Int("k", query.K))
	response, err := s.deps.Searcher.Search(r.Context(), &query)
	if err != nil {
		s.respondFailure(w, "search failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var query models.AskQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := query.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	answer, err := s.deps.Answerer.Generate(r.Context(), query.Question)
	if err != nil {
		s.respondFailure(w, "ask failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, answer)
}

// respondFailure maps pipeline errors to status codes.
func (s *Server) respondFailure(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, models.ErrEmptyQuery):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, llm.ErrUnavailable), errors.Is(err, retry.ErrExhausted):
		s.logger.Warn(msg, zap.Error(err))
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error(msg, zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
