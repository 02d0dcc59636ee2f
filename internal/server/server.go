// Package server provides the admin HTTP API for atrbot.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/atrbot/internal/config"
	"github.com/hyperjump/atrbot/internal/index"
	"github.com/hyperjump/atrbot/internal/models"
	"github.com/hyperjump/atrbot/internal/rag"
	"github.com/hyperjump/atrbot/pkg/utils"
	"go.uber.org/zap"
)

// Searcher runs retrieval requests. *search.Retriever implements it.
type Searcher interface {
	Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error)
}

// Answerer generates answers. *rag.Generator implements it.
type Answerer interface {
	Generate(ctx context.Context, question string) (*rag.Answer, error)
}

// IndexInfo describes the loaded index. *index.Index implements it.
type IndexInfo interface {
	Manifest() models.Manifest
	Stats() index.Stats
}

// SessionCounter reports open conversations. *conversation.Sessions implements it.
type SessionCounter interface {
	Len() int
}

// Deps are the components the API exposes. Sessions may be nil.
type Deps struct {
	Searcher  Searcher
	Answerer  Answerer
	Index     IndexInfo
	Sessions  SessionCounter
	IndexPath string
}

// Server is the HTTP server for the admin API.
type Server struct {
	deps   Deps
	config *config.ServerConfig
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(deps Deps, cfg *config.ServerConfig, logger *zap.Logger) *Server {
	return &Server{deps: deps, config: cfg, logger: utils.OrNop(logger)}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/search", s.handleSearch)
		r.Post("/ask", s.handleAsk)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting admin server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
