package web

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"accounting-engine/internal/core"
)

type errorResponse struct {
	Code      string `json:"code"`
	Status    int    `json:"status"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes the JSON error envelope.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Code:      code,
		Status:    status,
		Message:   message,
		RequestID: requestIDFromContext(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeServiceError maps a core error kind onto the envelope. Internal failures are
// logged with their cause and reported without it.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	kind := core.KindOf(err)
	status := core.StatusOf(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"request_id": requestIDFromContext(r.Context()),
			"kind":       kind,
			"path":       r.URL.Path,
		}).Error("request failed")
		if kind == core.KindInternal {
			message = "internal server error"
		}
	}
	writeError(w, r, message, string(kind), status)
}

// writeJSON writes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
