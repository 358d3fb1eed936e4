package handlers

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"robolink/internal/realtime"
)

// EventsHandler — живой поток событий привязки для дашборда.
type EventsHandler struct {
	hub *realtime.EventHub
}

func NewEventsHandler(hub *realtime.EventHub) *EventsHandler {
	return &EventsHandler{hub: hub}
}

// Stream — WebSocket-подписка. Поток односторонний: клиент только
// слушает, входящие кадры читаем и выбрасываем, чтобы заметить закрытие.
func (h *EventsHandler) Stream(c *gin.Context) {
	conn, err := realtime.Upgrade(c.Writer, c.Request)
	if err != nil {
		return
	}
	h.hub.Register(conn)
	defer h.hub.Unregister(conn)

	for {
		var discard json.RawMessage
		if err := conn.ReadJSON(&discard); err != nil {
			break
		}
	}
}
