// Package web serves the panels as an HTML page, standalone SVG documents, and a JSON API.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/rewired-gh/electionmap/internal/choropleth"
	"github.com/rewired-gh/electionmap/internal/logger"
	"github.com/rewired-gh/electionmap/internal/models"
	"github.com/rewired-gh/electionmap/internal/panel"
)

// HistoryStore lists recorded loads. Storage satisfies it.
type HistoryStore interface {
	RecentLoads(panelID string, k int) ([]models.LoadRecord, error)
}

// Options configures the HTTP server.
type Options struct {
	Address        string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
	// ReloadTimeout bounds a reload triggered over HTTP.
	ReloadTimeout time.Duration
}

// Server exposes a panel registry over HTTP.
type Server struct {
	registry *panel.Registry
	history  HistoryStore
	opts     Options
	hovers   map[string]*choropleth.Hover
	handler  http.Handler
}

// NewServer builds the router. history may be nil, in which case the history endpoint
// reports that storage is disabled.
func NewServer(registry *panel.Registry, history HistoryStore, opts Options) *Server {
	if opts.ReloadTimeout <= 0 {
		opts.ReloadTimeout = time.Minute
	}
	s := &Server{
		registry: registry,
		history:  history,
		opts:     opts,
		hovers:   make(map[string]*choropleth.Hover),
	}
	for _, p := range registry.All() {
		s.hovers[p.ID] = &choropleth.Hover{OffsetX: 10, OffsetY: 10}
	}

	router := mux.NewRouter()
	s.setupRoutes(router)
	router.Use(loggingMiddleware)
	router.Use(recoveryMiddleware)
	s.handler = corsMiddleware(opts.AllowedOrigins)(router)
	return s
}

func (s *Server) setupRoutes(router *mux.Router) {
	router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/panels/{id}.svg", s.handleSVG).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	panels := api.PathPrefix("/panels").Subrouter()
	panels.HandleFunc("", s.handleListPanels).Methods(http.MethodGet)
	panels.HandleFunc("/{id}", s.handleGetPanel).Methods(http.MethodGet)
	panels.HandleFunc("/{id}/tooltip", s.handleTooltipLeave).Methods(http.MethodDelete)
	panels.HandleFunc("/{id}/tooltip/{shape}", s.handleTooltip).Methods(http.MethodGet)
	panels.HandleFunc("/{id}/reload", s.handleReload).Methods(http.MethodPost)
	panels.HandleFunc("/{id}/resize", s.handleResize).Methods(http.MethodPost)
	panels.HandleFunc("/{id}/source", s.handleSetSource).Methods(http.MethodPut)
	panels.HandleFunc("/{id}/history", s.handleHistory).Methods(http.MethodGet)
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.opts.Address,
		Handler:      s.handler,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening on %s", s.opts.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func (s *Server) panel(w http.ResponseWriter, r *http.Request) (*panel.Panel, bool) {
	id := mux.Vars(r)["id"]
	p, ok := s.registry.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Panel not found", errors.New(id))
		return nil, false
	}
	return p, true
}
