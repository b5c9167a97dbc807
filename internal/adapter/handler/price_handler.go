package handler

import (
	"log/slog"
	"net/http"

	"bitbalance/internal/application/usecase"
	"bitbalance/internal/domain/model"
)

type PriceHandler struct {
	useCase *usecase.PriceUseCase
	logger  *slog.Logger
}

func NewPriceHandler(useCase *usecase.PriceUseCase, logger *slog.Logger) *PriceHandler {
	return &PriceHandler{
		useCase: useCase,
		logger:  logger,
	}
}

// GetLatestPrice serves GET /prices/{symbol}.
func (h *PriceHandler) GetLatestPrice(w http.ResponseWriter, r *http.Request) {
	symbol, err := model.ParseCoinSymbol(r.PathValue("symbol"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	price, err := h.useCase.GetLatestPrice(r.Context(), symbol)
	if err != nil {
		internalError(w, h.logger, "failed to get latest price", err, "symbol", symbol)
		return
	}
	if price == nil {
		writeError(w, http.StatusNotFound, "no price available for "+symbol.String())
		return
	}

	writeJSON(w, http.StatusOK, price)
}

// GetSnapshot serves GET /snapshots/{symbol}.
func (h *PriceHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	symbol, err := model.ParseCoinSymbol(r.PathValue("symbol"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := h.useCase.GetSnapshot(r.Context(), symbol)
	if err != nil {
		internalError(w, h.logger, "failed to get snapshot", err, "symbol", symbol)
		return
	}
	if snap == nil {
		writeError(w, http.StatusNotFound, "no snapshot for "+symbol.String())
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// GetTracked serves GET /prices/tracked.
func (h *PriceHandler) GetTracked(w http.ResponseWriter, r *http.Request) {
	symbols, err := h.useCase.TrackedSymbols(r.Context())
	if err != nil {
		internalError(w, h.logger, "failed to list tracked symbols", err)
		return
	}
	if symbols == nil {
		symbols = []model.CoinSymbol{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"symbols": symbols})
}
