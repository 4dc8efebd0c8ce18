package server

import (
	"sync"

	"vibe_chat/internal/model"
	"vibe_chat/internal/utils/log"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Hub tracks websocket subscribers per party and fans newly stored messages
// out to them.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*websocket.Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[*websocket.Conn]struct{}),
	}
}

func (h *Hub) Add(partyID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[partyID] == nil {
		h.subs[partyID] = make(map[*websocket.Conn]struct{})
	}
	h.subs[partyID][conn] = struct{}{}
}

func (h *Hub) Remove(partyID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[partyID], conn)
}

// Broadcast pushes a message to every subscriber of its party. Connections
// that fail to accept the write are dropped.
func (h *Hub) Broadcast(msg *model.WireMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.subs[msg.PartyID] {
		if err := conn.WriteJSON(msg); err != nil {
			log.Debug("subscriber write failed, dropping", zap.Error(err))
			conn.Close()
			delete(h.subs[msg.PartyID], conn)
		}
	}
}
