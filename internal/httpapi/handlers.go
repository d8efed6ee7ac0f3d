package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/MrWong99/diarserver/internal/annotate"
	"github.com/MrWong99/diarserver/internal/merge"
	"github.com/MrWong99/diarserver/internal/speaker"
)

type healthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
	Config   map[string]string `json:"config"`
}

// handleHealth serves GET /health with the exact {status, services, config}
// shape external callers depend on.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	services := map[string]string{
		"transcriber": availabilityLabel(s.transcriber.Available(r.Context())),
		"diarizer":    availabilityLabel(s.diarizer.Available(r.Context())),
		"embedder":    availabilityLabel(s.embedder.Available(r.Context())),
	}

	status := "ok"
	if services["transcriber"] != "ok" {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:   status,
		Services: services,
		Config: map[string]string{
			"listen_addr":         s.cfg.ListenAddr,
			"speaker_persist_dir": s.cfg.SpeakerPersistDir,
		},
	})
}

func availabilityLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "unavailable"
}

type probeResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// handleHealthz is a liveness probe: a running process that can serve HTTP
// is considered alive.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, probeResponse{Status: "ok"})
}

// handleReadyz is a readiness probe over the same collaborator set /health
// reports on. It fails closed: the transcriber is required for every
// request, so its unavailability alone fails readiness; the diarizer and
// embedder are best-effort collaborators whose absence only degrades a
// response, so they're reported but don't flip readiness on their own.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{
		"transcriber": availabilityLabel(s.transcriber.Available(r.Context())),
		"diarizer":    availabilityLabel(s.diarizer.Available(r.Context())),
		"embedder":    availabilityLabel(s.embedder.Available(r.Context())),
	}

	status := http.StatusOK
	ready := "ok"
	if checks["transcriber"] != "ok" {
		status = http.StatusServiceUnavailable
		ready = "fail"
	}

	writeJSON(w, status, probeResponse{Status: ready, Checks: checks})
}

type segmentResponse struct {
	Text    string  `json:"text"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

type inferenceResponse struct {
	Segments []segmentResponse `json:"segments"`
	Text     string            `json:"text"`
}

// handleAnnotate serves both POST /inference and POST /transcribe — the
// latter is a convenience alias with an implicit response_format=json.
func (s *Server) handleAnnotate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing required file field")
		return
	}
	defer file.Close()

	if rf := r.FormValue("response_format"); rf != "" && rf != "json" {
		writeError(w, http.StatusBadRequest, "response_format must be json")
		return
	}

	diarize := true
	if v := r.FormValue("diarize"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "diarize must be a boolean")
			return
		}
		diarize = parsed
	}

	hint := speaker.NoSpeakersHint
	if v := r.FormValue("num_speakers"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "num_speakers must be a positive integer")
			return
		}
		hint = n
	}

	var temperature float64
	if v := r.FormValue("temperature"); v != "" {
		temperature, err = strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "temperature must be a number")
			return
		}
	}

	res, err := s.orchestrator.Process(r.Context(), annotate.Request{
		Audio:           file,
		Diarize:         diarize,
		SessionID:       r.FormValue("session_id"),
		NumSpeakersHint: hint,
		Temperature:     temperature,
	})
	if err != nil {
		writeAnnotateError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, inferenceResponse{
		Segments: toSegmentResponses(res.Segments),
		Text:     res.Text,
	})
}

func toSegmentResponses(segs []merge.Annotated) []segmentResponse {
	out := make([]segmentResponse, len(segs))
	for i, s := range segs {
		out[i] = segmentResponse{Text: s.Text, Start: s.Start, End: s.End, Speaker: s.Speaker}
	}
	return out
}

func writeAnnotateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, annotate.ErrTransientTimeout):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, annotate.ErrCorruptInput), errors.Is(err, annotate.ErrCollaboratorUnavailable):
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		slog.Error("httpapi: annotate request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type speakersResponse struct {
	SessionID    string                   `json:"session_id"`
	Speakers     []speaker.SpeakerSummary `json:"speakers"`
	SpeakerCount int                      `json:"speaker_count"`
}

// handleSpeakers serves GET /session/{session_id}/speakers.
func (s *Server) handleSpeakers(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	speakers := s.store.Speakers(sessionID)

	writeJSON(w, http.StatusOK, speakersResponse{
		SessionID:    sessionID,
		Speakers:     speakers,
		SpeakerCount: len(speakers),
	})
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// handleDeleteSession serves DELETE /session/{session_id}.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	if err := s.store.Clear(sessionID); err != nil {
		slog.Error("httpapi: clear session failed", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to evict session")
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Status:  "ok",
		Message: "session " + sessionID + " evicted",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("httpapi: encode response failed", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
