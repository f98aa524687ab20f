package api

import (
	"log/slog"
	"net/http"

	"github.com/dgallion1/xmlgest/internal/config"
	"github.com/dgallion1/xmlgest/internal/graphstore"
	"github.com/dgallion1/xmlgest/internal/ingest"
	"github.com/dgallion1/xmlgest/internal/parser"
	"github.com/dgallion1/xmlgest/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP API server for xmlgest.
type Server struct {
	router       chi.Router
	loader       *ingest.Loader
	orchestrator *pipeline.Orchestrator
	store        *graphstore.Client
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(loader *ingest.Loader, orch *pipeline.Orchestrator, store *graphstore.Client, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		loader:       loader,
		orchestrator: orch,
		store:        store,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.XmlgestAPIKey, s.log))

		r.Post("/api/load", s.handleLoad)
		r.Post("/api/import", s.handleImport)
		r.Get("/api/import/{jobID}", s.handleImportStatus)
		r.Get("/api/stats/store", s.handleStoreStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// limits maps the configured XML hardening knobs onto parser limits.
// Unset knobs fall back to the parser defaults.
func (s *Server) limits() parser.Limits {
	return parser.Limits{
		MaxDepth:            s.cfg.XMLMaxDepth,
		MaxAttrs:            s.cfg.XMLMaxAttrs,
		MaxEntityExpansions: s.cfg.XMLMaxEntityExpansions,
	}
}
