package ws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"rewards_webapp/internal/logger"
	"rewards_webapp/internal/metrics"
)

// Message - конверт всех серверных сообщений
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Hub держит открытые соединения по пользователям.
// У одного пользователя может быть несколько вкладок
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[*Client]struct{}
	log     *slog.Logger
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[int64]map[*Client]struct{}),
		log:     logger.With("component", "ws"),
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.UserID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.UserID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()

	metrics.LiveConnections.Inc()
	h.log.Debug("client connected", "user_id", c.UserID)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.UserID]
	if ok {
		if _, present := set[c]; !present {
			h.mu.Unlock()
			return
		}
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.UserID)
		}
	}
	h.mu.Unlock()

	if ok {
		metrics.LiveConnections.Dec()
		h.log.Debug("client disconnected", "user_id", c.UserID)
	}
}

// Connected - сколько соединений у пользователя
func (h *Hub) Connected(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// SendToUser рассылает сообщение во все соединения пользователя.
// Не блокирует: медленный клиент с заполненным буфером отключается
func (h *Hub) SendToUser(userID int64, msg Message) int {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("marshal message", "type", msg.Type, "error", err)
		return 0
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients[userID]))
	for c := range h.clients[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range targets {
		if c.enqueue(payload) {
			sent++
			continue
		}
		h.log.Warn("send buffer full, dropping client", "user_id", userID)
		c.close()
	}
	return sent
}
