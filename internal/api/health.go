package api

import (
	"net/http"
	"time"
)

const serviceName = "cambio"

// health handles GET /health: liveness only, no backend calls.
func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// aiServiceStatus reports the completion backend's resolvability.
type aiServiceStatus struct {
	Configured bool   `json:"configured"`
	Error      string `json:"error,omitempty"`
}

// detailedHealth handles GET /health/detailed. It attempts completion
// backend resolution, so a misconfigured deployment shows up here as
// degraded while the process itself stays healthy.
func (s *Server) detailedHealth(w http.ResponseWriter, r *http.Request) {
	ai := aiServiceStatus{Configured: true}
	overall := "ok"
	if err := s.probe(r.Context()); err != nil {
		ai.Configured = false
		ai.Error = err.Error()
		overall = "degraded"
	}

	agentStatus := "uninitialized"
	if s.runner.Ready() {
		agentStatus = "ready"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    overall,
		"service":   serviceName,
		"aiService": ai,
		"agent":     agentStatus,
		"sessions":  map[string]int{"count": s.sessions.Count()},
		"version":   s.version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
