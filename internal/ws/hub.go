package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Event types carried on a test's push channel. Delivery is at-least-once;
// clients must treat them as idempotent.
const (
	EventParticipantJoined = "participant_joined"
	EventParticipantLeft   = "participant_left"
	EventTestForceEnd      = "test_force_end"
	EventPresenceSnapshot  = "presence_snapshot"
)

type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Hub fans out push messages to every connection attached to a test.
// Connections are tracked per test so unrelated tests never serialize
// against each other beyond the bucket lookup.
type Hub struct {
	mu    sync.RWMutex
	tests map[uint]map[*websocket.Conn]bool
}

func NewHub() *Hub {
	return &Hub{
		tests: make(map[uint]map[*websocket.Conn]bool),
	}
}

func (h *Hub) AddConnection(testID uint, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.tests[testID] == nil {
		h.tests[testID] = make(map[*websocket.Conn]bool)
	}
	h.tests[testID][conn] = true
	log.Info().Uint("testID", testID).Int("connections", len(h.tests[testID])).Msg("ws: client attached")
}

func (h *Hub) RemoveConnection(testID uint, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.tests[testID]; ok {
		delete(conns, conn)
		conn.Close()
		if len(conns) == 0 {
			delete(h.tests, testID)
		}
		log.Info().Uint("testID", testID).Msg("ws: client detached")
	}
}

// Send writes a message to a single connection, used for observer
// snapshots on attach. The write happens under h.mu: gorilla connections
// do not support concurrent writers, and Broadcast may be writing the
// same connection from a timer or presence goroutine.
func (h *Hub) Send(conn *websocket.Conn, message Message) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Error().Err(err).Msg("ws: marshal error")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Warn().Err(err).Msg("ws: write error")
	}
}

func (h *Hub) Broadcast(testID uint, message Message) {
	// Full lock: dead connections are removed while iterating.
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.tests[testID]
	if !ok {
		return
	}

	data, err := json.Marshal(message)
	if err != nil {
		log.Error().Err(err).Msg("ws: marshal error")
		return
	}

	for conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			// Disconnects are expected; drop the connection quietly.
			log.Warn().Err(err).Uint("testID", testID).Msg("ws: write error, dropping connection")
			conn.Close()
			delete(conns, conn)
		}
	}
}
