// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"audiomap/internal/audio"
	applog "audiomap/internal/log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Directory is the part of the detector the server needs.
type Directory interface {
	Snapshot() audio.Snapshot
	Refresh(ctx context.Context) (audio.RefreshReport, error)
}

// Server exposes a directory over HTTP:
//
//	GET  /devices[?direction=input|output|input_output]
//	POST /refresh
//	GET  /metrics
//	     /ws
type Server struct {
	dir      Directory
	ws       *WebSocketTransport
	gatherer prometheus.Gatherer

	server   *http.Server
	listener net.Listener
}

// NewServer builds a server over dir. ws and gatherer may be nil to leave
// /ws or /metrics unmounted.
func NewServer(addr string, dir Directory, ws *WebSocketTransport, gatherer prometheus.Gatherer) *Server {
	s := &Server{dir: dir, ws: ws, gatherer: gatherer}
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /devices", s.handleDevices)
	mux.HandleFunc("POST /refresh", s.handleRefresh)
	if s.ws != nil {
		mux.Handle("/ws", s.ws.Handler())
	}
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	s.listener = ln

	go func() {
		applog.Infof("server: listening on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			applog.Errorf("server: %v", err)
		}
	}()
	return nil
}

// Addr is the bound address once Start has returned.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.server.Addr
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	snap := s.dir.Snapshot()

	if q := r.URL.Query().Get("direction"); q != "" {
		dir, err := audio.ParseDirection(q)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		filtered := make([]audio.Device, 0, len(snap.Devices))
		for _, d := range snap.Devices {
			if d.Direction.Matches(dir) {
				filtered = append(filtered, d)
			}
		}
		snap.Devices = filtered
	}
	writeJSON(w, http.StatusOK, SnapshotMessage(snap))
}

type refreshResponse struct {
	Generation uint64   `json:"generation"`
	Devices    int      `json:"devices"`
	Skipped    []string `json:"skipped,omitempty"`
	Duration   string   `json:"duration,omitempty"`
	Error      string   `json:"error,omitempty"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	report, err := s.dir.Refresh(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, refreshResponse{
			Generation: s.dir.Snapshot().Generation,
			Error:      err.Error(),
		})
		return
	}

	resp := refreshResponse{
		Generation: report.Generation,
		Devices:    report.Devices,
		Duration:   report.Duration.String(),
	}
	for _, e := range report.Skipped {
		resp.Skipped = append(resp.Skipped, e.Error())
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		applog.Debugf("server: write response: %v", err)
	}
}
