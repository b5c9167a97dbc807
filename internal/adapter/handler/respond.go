package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// internalError logs err and answers 500 without leaking the detail.
func internalError(w http.ResponseWriter, logger *slog.Logger, msg string, err error, args ...any) {
	logger.Error(msg, append(args, "error", err)...)
	writeError(w, http.StatusInternalServerError, "internal server error")
}
