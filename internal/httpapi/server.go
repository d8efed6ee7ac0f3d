// Package httpapi exposes diarserver's HTTP surface: chunk annotation,
// session introspection, and liveness/readiness/metrics for the
// surrounding infrastructure.
package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/diarserver/internal/annotate"
	"github.com/MrWong99/diarserver/internal/config"
	"github.com/MrWong99/diarserver/internal/observe"
	"github.com/MrWong99/diarserver/internal/speaker"
	"github.com/MrWong99/diarserver/pkg/provider/diarizer"
	"github.com/MrWong99/diarserver/pkg/provider/embedder"
	"github.com/MrWong99/diarserver/pkg/provider/transcriber"
)

// maxUploadBytes bounds one multipart chunk upload.
const maxUploadBytes = 200 << 20 // 200 MiB

// Server holds everything needed to serve the annotation API.
type Server struct {
	orchestrator *annotate.Orchestrator
	store        *speaker.Store
	transcriber  transcriber.Provider
	diarizer     diarizer.Provider
	embedder     embedder.Provider
	cfg          *config.Config
}

// New constructs a Server.
func New(orc *annotate.Orchestrator, store *speaker.Store, t transcriber.Provider, d diarizer.Provider, e embedder.Provider, cfg *config.Config) *Server {
	return &Server{
		orchestrator: orc,
		store:        store,
		transcriber:  t,
		diarizer:     d,
		embedder:     e,
		cfg:          cfg,
	}
}

// Handler builds the complete routed handler, wrapped with the
// observability middleware.
func (s *Server) Handler(metrics *observe.Metrics) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /inference", s.handleAnnotate)
	mux.HandleFunc("POST /transcribe", s.handleAnnotate)
	mux.HandleFunc("GET /session/{session_id}/speakers", s.handleSpeakers)
	mux.HandleFunc("DELETE /session/{session_id}", s.handleDeleteSession)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	return observe.Middleware(metrics)(mux)
}
