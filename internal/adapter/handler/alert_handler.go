package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"bitbalance/internal/adapter/storage"
	"bitbalance/internal/application/service"
	"bitbalance/internal/domain/model"
)

type AlertHandler struct {
	alerts *service.AlertService
	logger *slog.Logger
}

func NewAlertHandler(alerts *service.AlertService, logger *slog.Logger) *AlertHandler {
	return &AlertHandler{alerts: alerts, logger: logger}
}

// Create serves POST /alerts.
func (h *AlertHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in service.CreateAlertInput
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	alert, err := h.alerts.CreateAlert(r.Context(), in)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		internalError(w, h.logger, "failed to create alert", err)
		return
	}
	writeJSON(w, http.StatusCreated, alert)
}

// List serves GET /alerts?portfolio_id=...&active=true.
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	activeOnly := false
	if v := q.Get("active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "active must be a boolean")
			return
		}
		activeOnly = b
	}

	alerts, err := h.alerts.ListAlerts(r.Context(), q.Get("portfolio_id"), activeOnly)
	if err != nil {
		internalError(w, h.logger, "failed to list alerts", err)
		return
	}
	if alerts == nil {
		alerts = []model.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

// Delete serves DELETE /alerts/{id}.
func (h *AlertHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.alerts.RemoveAlert(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrAlertNotFound) {
			writeError(w, http.StatusNotFound, "alert not found")
			return
		}
		internalError(w, h.logger, "failed to delete alert", err, "id", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Evaluate serves POST /alerts/evaluate.
func (h *AlertHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	triggered, err := h.alerts.EvaluateAlerts(r.Context())
	if err != nil {
		internalError(w, h.logger, "alert evaluation failed", err, "triggered", len(triggered))
		return
	}
	if triggered == nil {
		triggered = []model.Alert{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"triggered": triggered})
}
