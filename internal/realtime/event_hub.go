package realtime

import (
	"sync"
	"time"
)

// Типы событий жизненного цикла привязки.
const (
	EventStarted    = "started"
	EventVerified   = "verified"
	EventReverified = "reverified"
	EventCancelled  = "cancelled"
)

// Event — то, что уходит подписчикам дашборда. Код заявки наружу не уходит.
type Event struct {
	Type           string    `json:"type"`
	TelegramUserID int64     `json:"telegram_user_id"`
	RobloxID       int64     `json:"roblox_id,omitempty"`
	RobloxUsername string    `json:"roblox_username,omitempty"`
	At             time.Time `json:"at"`
}

// EventHub — общий поток событий для всех подписчиков (комнат нет,
// дашборд видит всё).
type EventHub struct {
	mu   sync.RWMutex
	subs map[*Conn]struct{}
}

func NewEventHub() *EventHub {
	return &EventHub{
		subs: make(map[*Conn]struct{}),
	}
}

func (h *EventHub) Register(conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[conn] = struct{}{}
}

func (h *EventHub) Unregister(conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, conn)
	_ = conn.Close()
}

// Publish — рассылка всем живым подписчикам. Безопасен на nil-хабе,
// чтобы сервисам не нужны были проверки. Подписчика, которому не удалось
// записать (разрыв или ушёл в таймаут), выкидываем.
func (h *EventHub) Publish(ev Event) {
	if h == nil {
		return
	}
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.subs))
	for conn := range h.subs {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.WriteJSON(ev); err != nil {
			h.Unregister(conn)
		}
	}
}

// Subscribers — сколько подключено сейчас (для healthz/отладки).
func (h *EventHub) Subscribers() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
