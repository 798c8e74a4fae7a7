package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"camserver/internal/services/stream"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeStreamError maps registry errors to their HTTP representation.
// Anything outside the taxonomy is a 500 with a generic body; the detail
// stays in the server log.
func writeStreamError(w http.ResponseWriter, log *logrus.Logger, err error) {
	switch {
	case errors.Is(err, stream.ErrNotFound):
		writeError(w, http.StatusNotFound, "Device stream not found")
	case errors.Is(err, stream.ErrForbidden):
		writeError(w, http.StatusForbidden, "Unauthorized to access this stream")
	case errors.Is(err, stream.ErrNoFrame):
		writeJSON(w, http.StatusNotFound, map[string]bool{"available": false})
	default:
		log.Errorf("Unexpected stream error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
