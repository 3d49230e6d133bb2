package api

import (
	"net/http"
	"time"

	"github.com/cuemby/scontrol/pkg/metrics"
)

// HealthServer provides the HTTP health check and metrics endpoints
type HealthServer struct {
	mux *http.ServeMux
}

// NewHealthServer creates a new health check HTTP server reporting the
// components in reg
func NewHealthServer(reg *metrics.Registry) *HealthServer {
	mux := http.NewServeMux()
	hs := &HealthServer{mux: mux}

	mux.HandleFunc("/health", getOnly(reg.HealthHandler()))
	mux.HandleFunc("/ready", getOnly(reg.ReadyHandler()))
	mux.HandleFunc("/live", getOnly(reg.LivenessHandler()))
	mux.Handle("/metrics", metrics.Handler())

	return hs
}

// getOnly rejects everything but GET
func getOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

// Server returns an HTTP server for addr
func (hs *HealthServer) Server(addr string) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      hs.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// GetHandler returns the HTTP handler for embedding in other servers
func (hs *HealthServer) GetHandler() http.Handler {
	return hs.mux
}
