package handler

import "net/http"

// Handlers groups everything the router serves. WS may be nil.
type Handlers struct {
	Price  *PriceHandler
	Alert  *AlertHandler
	Mode   *ModeHandler
	Health *HealthHandler
	WS     *WSHandler
}

func NewRouter(h Handlers) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /prices/tracked", h.Price.GetTracked)
	mux.HandleFunc("GET /prices/{symbol}", h.Price.GetLatestPrice)
	mux.HandleFunc("GET /snapshots/{symbol}", h.Price.GetSnapshot)

	mux.HandleFunc("POST /alerts", h.Alert.Create)
	mux.HandleFunc("GET /alerts", h.Alert.List)
	mux.HandleFunc("DELETE /alerts/{id}", h.Alert.Delete)
	mux.HandleFunc("POST /alerts/evaluate", h.Alert.Evaluate)

	mux.HandleFunc("GET /mode", h.Mode.GetMode)
	mux.HandleFunc("POST /mode/test", h.Mode.SwitchToTest)
	mux.HandleFunc("POST /mode/live", h.Mode.SwitchToLive)

	mux.HandleFunc("GET /health", h.Health.Check)
	if h.WS != nil {
		mux.HandleFunc("GET /ws", h.WS.Serve)
	}
	return mux
}
