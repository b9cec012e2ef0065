package api

import (
	"log/slog"
	"net/http"
)

// Sessions is the registry surface the HTTP layer needs. Satisfied by
// *session.Registry.
type Sessions interface {
	Touch(id string) string
	Remove(id string) bool
	Count() int
}

type sessionHandler struct {
	sessions Sessions
	logger   *slog.Logger
}

// count handles GET /api/chat/sessions.
func (sh *sessionHandler) count(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"count": sh.sessions.Count()})
}

// remove handles DELETE /api/chat/sessions/{id}. Deleting an unknown
// session is a 404; repeating a delete therefore also 404s.
func (sh *sessionHandler) remove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "missing_id", "session ID required", sh.logger)
		return
	}

	if !sh.sessions.Remove(id) {
		WriteError(w, http.StatusNotFound, "not_found", "session not found", sh.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message":   "session deleted",
		"sessionId": id,
	})
}
