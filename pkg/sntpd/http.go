package sntpd

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor is an optional HTTP listener exposing the server's metrics and
// health. It serves monitoring traffic only and shares nothing with the
// UDP pipeline beyond read-only snapshots.
type Monitor struct {
	srv       *Server
	http      *http.Server
	ln        net.Listener
	startedAt time.Time
}

func NewMonitor(addr string, srv *Server) *Monitor {
	m := &Monitor{srv: srv}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(srv.PromRegistry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", m.handleHealth)
	mux.HandleFunc("/stats", m.handleStats)

	m.http = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return m
}

// Start binds the listener and serves in the background. Binding errors
// are returned synchronously so a bad address fails startup.
func (m *Monitor) Start() error {
	ln, err := net.Listen("tcp", m.http.Addr)
	if err != nil {
		return err
	}
	m.ln = ln
	m.startedAt = time.Now().UTC()

	go func() {
		_ = m.http.Serve(ln)
	}()
	return nil
}

func (m *Monitor) Stop(ctx context.Context) error {
	return m.http.Shutdown(ctx)
}

// Addr returns the bound address, useful when starting on port 0.
func (m *Monitor) Addr() string {
	if m.ln != nil {
		return m.ln.Addr().String()
	}
	return m.http.Addr
}

func (m *Monitor) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(m.startedAt).String(),
		"service": map[string]any{
			"name":    "go-sntpd",
			"version": Version,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(health)
}

func (m *Monitor) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := map[string]any{
		"timestamp":   time.Now().UTC(),
		"listen_addr": m.srv.Addr(),
		"queue_depth": m.srv.QueueDepth(),
		"totals":      m.srv.Metrics(),
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stats)
}
