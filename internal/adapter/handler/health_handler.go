package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is anything that can report its own reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	storage Pinger
	cache   Pinger
	poller  func() string
	mode    func() string
	logger  *slog.Logger
}

// NewHealthHandler accepts a nil cache when caching runs in process.
func NewHealthHandler(storage, cache Pinger, poller, mode func() string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		storage: storage,
		cache:   cache,
		poller:  poller,
		mode:    mode,
		logger:  logger,
	}
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dbStatus := "healthy"
	cacheStatus := "healthy"
	overallStatus := "healthy"

	if err := h.storage.Ping(ctx); err != nil {
		dbStatus = "unhealthy"
		overallStatus = "degraded"
		h.logger.Warn("database health check failed", "error", err)
	}

	if h.cache == nil {
		cacheStatus = "in-process"
	} else if err := h.cache.Ping(ctx); err != nil {
		cacheStatus = "unhealthy"
		overallStatus = "degraded"
		h.logger.Warn("cache health check failed", "error", err)
	}

	response := map[string]any{
		"status": overallStatus,
		"checks": map[string]string{
			"database": dbStatus,
			"cache":    cacheStatus,
		},
	}
	if h.poller != nil {
		response["poller"] = h.poller()
	}
	if h.mode != nil {
		response["mode"] = h.mode()
	}

	statusCode := http.StatusOK
	if overallStatus == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, response)
}
