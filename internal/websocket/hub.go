package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"syllabus-calendar-be/internal/pkg/logger"
	"syllabus-calendar-be/pkg/store"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisChannel = "import_progress_events"

// Hub routes import-progress frames to the websocket connections of the user
// whose import is running. A user may have several devices connected; every
// device gets every frame. Redis fanout covers connections held by other
// instances.
type Hub struct {
	// UserID -> connected clients (multi-device)
	clients map[uuid.UUID][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	// Redis connection for cross-instance fanout, may be nil.
	rdb *redis.Client

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uuid.UUID][]*Client),
		rdb:        rdb,
		logger:     log,
	}
}

func (h *Hub) Run() {
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.UserID] = append(h.clients[client.UserID], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"user_id": client.UserID})

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.UserID]; ok {
				for i, c := range clients {
					if c == client {
						h.clients[client.UserID] = append(clients[:i], clients[i+1:]...)
						client.closeSend()
						break
					}
				}
				if len(h.clients[client.UserID]) == 0 {
					delete(h.clients, client.UserID)
					h.logger.Info("Hub", "Client completely unregistered", map[string]interface{}{"user_id": client.UserID})
				}
			}
			h.mu.Unlock()
		}
	}
}

// SendProgress pushes one import-session snapshot to all of the user's
// connections, local and (via redis) remote.
func (h *Hub) SendProgress(userID uuid.UUID, snapshot store.Snapshot) {
	data, _ := json.Marshal(map[string]interface{}{
		"type": "import_progress",
		"data": snapshot,
	})
	h.sendRaw(userID, data)
}

func (h *Hub) sendRaw(userID uuid.UUID, data []byte) {
	h.mu.RLock()
	clients := append([]*Client(nil), h.clients[userID]...)
	h.mu.RUnlock()

	// A client that cannot keep up is dropped. Its Send channel is closed in
	// exactly one place, the unregister case of Run.
	for _, client := range clients {
		if !client.trySend(data) {
			h.logger.Warn("Hub", "Client Send buffer full, dropping client", map[string]interface{}{"user_id": userID})
			h.unregister <- client
		}
	}

	// Always publish so connections held by other instances see the frame too.
	if h.rdb != nil {
		payload := map[string]interface{}{
			"target_user_id": userID.String(),
			"message":        data,
		}
		jsonPayload, _ := json.Marshal(payload)
		h.rdb.Publish(context.Background(), redisChannel, jsonPayload)
	}
}

func (h *Hub) subscribeToRedis() {
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, redisChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()

	for msg := range ch {
		var payload struct {
			TargetUserID string          `json:"target_user_id"`
			Message      json.RawMessage `json:"message"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			log.Printf("Redis msg parse error: %v", err)
			continue
		}

		uid, err := uuid.Parse(payload.TargetUserID)
		if err != nil {
			continue
		}

		h.mu.RLock()
		clients := append([]*Client(nil), h.clients[uid]...)
		h.mu.RUnlock()

		for _, client := range clients {
			if !client.trySend(payload.Message) {
				h.unregister <- client
			}
		}
	}
}
