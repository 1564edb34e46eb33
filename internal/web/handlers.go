package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/rewired-gh/electionmap/internal/models"
	"github.com/rewired-gh/electionmap/internal/panel"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// panelSummary is the list form of a panel.
type panelSummary struct {
	ID         string            `json:"id"`
	Kind       panel.Kind        `json:"kind"`
	Title      string            `json:"title"`
	Loaded     bool              `json:"loaded"`
	Error      string            `json:"error,omitempty"`
	Generation uint64            `json:"generation"`
	Totals     models.VoteTotals `json:"totals"`
	LoadedAt   time.Time         `json:"loaded_at,omitempty"`
}

type resizeRequest struct {
	Width float64 `json:"width"`
}

type sourceRequest struct {
	Source *string `json:"source"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, "ok", map[string]int{"panels": len(s.registry.All())})
}

func (s *Server) handleListPanels(w http.ResponseWriter, r *http.Request) {
	panels := s.registry.All()
	out := make([]panelSummary, 0, len(panels))
	for _, p := range panels {
		snap := p.Snapshot()
		out = append(out, panelSummary{
			ID:         snap.ID,
			Kind:       snap.Kind,
			Title:      snap.Title,
			Loaded:     snap.Loaded,
			Error:      snap.Error,
			Generation: snap.Generation,
			Totals:     snap.Totals,
			LoadedAt:   snap.LoadedAt,
		})
	}
	writeSuccess(w, fmt.Sprintf("Found %d panels", len(out)), out)
}

func (s *Server) handleGetPanel(w http.ResponseWriter, r *http.Request) {
	p, ok := s.panel(w, r)
	if !ok {
		return
	}
	writeSuccess(w, "", p.Snapshot())
}

func (s *Server) handleSVG(w http.ResponseWriter, r *http.Request) {
	p, ok := s.panel(w, r)
	if !ok {
		return
	}
	width, err := floatParam(r, "width")
	if err != nil || width < 0 {
		writeError(w, http.StatusBadRequest, "Invalid width", err)
		return
	}

	var buf bytes.Buffer
	if err := p.WriteSVG(&buf, width); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error(), nil)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleTooltip(w http.ResponseWriter, r *http.Request) {
	p, ok := s.panel(w, r)
	if !ok {
		return
	}
	x, errX := floatParam(r, "x")
	y, errY := floatParam(r, "y")
	if err := errors.Join(errX, errY); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid pointer position", err)
		return
	}

	snap := p.Snapshot()
	if snap.Scene == nil {
		writeError(w, http.StatusNotFound, "Panel has no map drawn", nil)
		return
	}
	hover := s.hovers[p.ID]
	shape := mux.Vars(r)["shape"]
	if !hover.Enter(snap.Scene, shape, x, y) {
		writeError(w, http.StatusNotFound, "Shape not found", errors.New(shape))
		return
	}
	writeSuccess(w, "", hover.Tooltip())
}

func (s *Server) handleTooltipLeave(w http.ResponseWriter, r *http.Request) {
	p, ok := s.panel(w, r)
	if !ok {
		return
	}
	hover := s.hovers[p.ID]
	hover.Leave()
	writeSuccess(w, "", hover.Tooltip())
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	p, ok := s.panel(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.ReloadTimeout)
	defer cancel()

	writeLoadResult(w, p, p.Load(ctx), "Panel reloaded")
}

// handleSetSource points a panel at a new data source and loads it. An empty source
// is accepted and fails the load the same way an unconfigured panel does.
func (s *Server) handleSetSource(w http.ResponseWriter, r *http.Request) {
	p, ok := s.panel(w, r)
	if !ok {
		return
	}
	var req sourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Source == nil {
		writeError(w, http.StatusBadRequest, "Source is required", nil)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.ReloadTimeout)
	defer cancel()

	writeLoadResult(w, p, p.SetSource(ctx, *req.Source), "Panel source updated")
}

func writeLoadResult(w http.ResponseWriter, p *panel.Panel, err error, message string) {
	switch {
	case errors.Is(err, panel.ErrStale):
		writeError(w, http.StatusConflict, "A newer load superseded this one", err)
	case err != nil:
		snap := p.Snapshot()
		writeJSON(w, http.StatusBadGateway, apiResponse{
			Message: snap.Error,
			Data:    snap,
			Error:   err.Error(),
		})
	default:
		writeSuccess(w, message, p.Snapshot())
	}
}

func (s *Server) handleResize(w http.ResponseWriter, r *http.Request) {
	p, ok := s.panel(w, r)
	if !ok {
		return
	}
	var req resizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if !(req.Width > 0) {
		writeError(w, http.StatusBadRequest, "Width must be positive", nil)
		return
	}
	p.Resize(req.Width)
	writeJSON(w, http.StatusAccepted, apiResponse{Success: true, Message: "Resize scheduled", Data: req})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	p, ok := s.panel(w, r)
	if !ok {
		return
	}
	if s.history == nil {
		writeError(w, http.StatusNotFound, "Load history is not recorded", nil)
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	loads, err := s.history.RecentLoads(p.ID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read load history", err)
		return
	}
	writeSuccess(w, fmt.Sprintf("Found %d loads", len(loads)), loads)
}

// floatParam reads an optional numeric query parameter; missing means 0.
func floatParam(r *http.Request, name string) (float64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return f, nil
}
