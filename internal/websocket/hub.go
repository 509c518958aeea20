package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"clinical-assistant-be/internal/pkg/logger"
	"clinical-assistant-be/pkg/live"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ClusterChannel carries live updates between API instances.
const ClusterChannel = "live_events"

type clusterMessage struct {
	Origin  string          `json:"origin"`
	Key     live.Key        `json:"key"`
	Message json.RawMessage `json:"message"`
}

type Hub struct {
	// live.Key.String() -> connected clients (several tabs or devices)
	clients map[string][]*Client

	register   chan *Client
	unregister chan *Client

	// done is closed when Run returns.
	done     chan struct{}
	doneOnce sync.Once

	mu sync.RWMutex

	// Optional. When set, updates fan out to other instances.
	rdb *redis.Client

	// instanceID filters this instance's own messages off the cluster channel.
	instanceID string

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[string][]*Client),
		rdb:        rdb,
		instanceID: uuid.NewString(),
		logger:     log,
	}
}

// Run owns client registration until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer h.doneOnce.Do(func() { close(h.done) })

	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			id := client.Key.String()
			h.mu.Lock()
			h.clients[id] = append(h.clients[id], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{
				"conversation_id": client.Key.Conversation,
			})

		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

// Done is closed once the hub stops serving registrations.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) remove(client *Client) {
	id := client.Key.String()
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.clients[id]
	for i, c := range clients {
		if c == client {
			h.clients[id] = append(clients[:i], clients[i+1:]...)
			close(client.Send)
			break
		}
	}
	if len(h.clients[id]) == 0 {
		delete(h.clients, id)
	}
}

// Publish sends {type, data} to every client of the session, here and on
// other instances.
func (h *Hub) Publish(key live.Key, msgType string, data interface{}) {
	frame, err := json.Marshal(map[string]interface{}{
		"type": msgType,
		"data": data,
	})
	if err != nil {
		h.logger.Error("Hub", "Failed to encode live update", map[string]interface{}{"error": err.Error()})
		return
	}

	h.deliver(key, frame)

	if h.rdb != nil {
		payload, _ := json.Marshal(clusterMessage{
			Origin:  h.instanceID,
			Key:     key,
			Message: frame,
		})
		if err := h.rdb.Publish(context.Background(), ClusterChannel, payload).Err(); err != nil {
			h.logger.Warn("Hub", "Failed to publish live update to cluster", map[string]interface{}{"error": err.Error()})
		}
	}
}

// ClientCount reports the local connections of a session.
func (h *Hub) ClientCount(key live.Key) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[key.String()])
}

// deliver never blocks. A client with a full buffer misses the frame.
func (h *Hub) deliver(key live.Key, frame []byte) {
	h.mu.RLock()
	clients := append([]*Client(nil), h.clients[key.String()]...)
	h.mu.RUnlock()

	for _, client := range clients {
		if !client.trySend(frame) {
			h.logger.Warn("Hub", "Client send buffer full, dropping frame", map[string]interface{}{
				"conversation_id": key.Conversation,
			})
		}
	}
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, ClusterChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var payload clusterMessage
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				h.logger.Warn("Hub", "Redis message parse error", map[string]interface{}{"error": err.Error()})
				continue
			}
			if payload.Origin == h.instanceID {
				continue
			}
			h.deliver(payload.Key, payload.Message)
		}
	}
}
