// Package api serves the flight state to HTTP observers.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/eytandecker/flightcam/internal/state"
	"github.com/eytandecker/flightcam/pkg/types"
)

// StateSource is implemented by state.Manager.
type StateSource interface {
	Snapshot() (types.Snapshot, error)
	LastUpdated() time.Time
	Subscribe(buffer int) (<-chan types.Snapshot, func())
}

// SurfaceStatus is implemented by render.Bridge.
type SurfaceStatus interface {
	Attached() bool
}

// streamBuffer is how many snapshots a slow SSE client may lag before frames drop.
const streamBuffer = 16

// Server routes the observer endpoints.
type Server struct {
	state   StateSource
	surface SurfaceStatus
	metrics http.Handler
	log     *slog.Logger
	mux     *http.ServeMux
}

// NewServer builds the routes. metrics may be nil, in which case /metrics is
// not served; log may be nil.
func NewServer(st StateSource, surface SurfaceStatus, metrics http.Handler, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Server{state: st, surface: surface, metrics: metrics, log: log, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.health)
	s.mux.HandleFunc("GET /state", s.snapshot)
	s.mux.HandleFunc("GET /stream", s.streamSSE)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics)
	}
}

type healthResponse struct {
	Status          string `json:"status"`
	SurfaceAttached bool   `json:"surface_attached"`
	LastPublished   string `json:"last_published,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// health reports ok while the flight loop is publishing.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", SurfaceAttached: s.surface.Attached()}
	if t := s.state.LastUpdated(); !t.IsZero() {
		resp.LastPublished = t.UTC().Format(time.RFC3339Nano)
	}
	status := http.StatusOK
	if _, err := s.state.Snapshot(); err != nil {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.state.Snapshot()
	if err != nil {
		code := "UNKNOWN_ERROR"
		switch {
		case errors.Is(err, state.ErrNotPublished):
			code = "NOT_PUBLISHED"
		case errors.Is(err, state.ErrStale):
			code = "DATA_STALE"
		}
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error(), Code: code})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) streamSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx := r.Context()
	ch, unsub := s.state.Subscribe(streamBuffer)
	defer unsub()

	s.log.Debug("stream client connected", "remote", r.RemoteAddr)
	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			s.log.Debug("stream client disconnected", "remote", r.RemoteAddr)
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			b, err := json.Marshal(snap)
			if err != nil {
				s.log.Warn("encode snapshot", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: state\n")
			fmt.Fprintf(w, "id: %d\n", snap.Tick)
			fmt.Fprintf(w, "data: %s\n\n", b)
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
