package handler

import (
	"log/slog"
	"net/http"
	"time"

	"bitbalance/internal/domain/model"

	"github.com/gorilla/websocket"
)

const wsWriteWait = 10 * time.Second

// EventSource hands out event subscriptions.
type EventSource interface {
	Subscribe(buffer int) (<-chan model.Event, func())
}

// WSHandler streams pipeline events to websocket clients as JSON.
type WSHandler struct {
	events   EventSource
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewWSHandler(events EventSource, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		events: events,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
}

// Serve handles GET /ws.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade error", "error", err)
		return
	}
	defer conn.Close()

	events, unsubscribe := h.events.Subscribe(0)
	defer unsubscribe()
	h.logger.Info("websocket client connected", "remote", r.RemoteAddr)
	defer h.logger.Info("websocket client disconnected", "remote", r.RemoteAddr)

	// the read loop only notices a closed connection
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(wsWriteWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Debug("websocket write failed", "error", err)
				return
			}
		}
	}
}
