package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"ai-editorial-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ClusterChannel is the Redis channel used to reach clients connected to
// other instances.
const ClusterChannel = "cluster_events"

type Hub struct {
	// Registered clients: SessionID -> set of clients (several tabs/devices)
	clients map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu sync.RWMutex

	// Redis connection for cross-instance delivery; nil on a single instance
	rdb *redis.Client
	// instanceID tags published frames so an instance skips its own
	instanceID string

	logger logger.ILogger
}

type clusterFrame struct {
	Origin    string          `json:"origin"`
	SessionID string          `json:"session_id"`
	Message   json.RawMessage `json:"message"`
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		rdb:        rdb,
		instanceID: uuid.NewString(),
		logger:     log,
	}
}

// Run serves register/unregister requests until ctx is done, then closes
// every client.
func (h *Hub) Run(ctx context.Context) {
	var wg sync.WaitGroup
	if h.rdb != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.subscribeToRedis(ctx)
		}()
	}

	defer func() {
		close(h.done)
		h.mu.Lock()
		for sessionID, set := range h.clients {
			for client := range set {
				client.closeSend()
			}
			delete(h.clients, sessionID)
		}
		h.mu.Unlock()
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.SessionID] == nil {
				h.clients[client.SessionID] = make(map[*Client]struct{})
			}
			h.clients[client.SessionID][client] = struct{}{}
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"session_id": client.SessionID, "user_id": client.UserID})
		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

// Register adds a client. It returns false when the hub is stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[c.SessionID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	c.closeSend()
	if len(set) == 0 {
		delete(h.clients, c.SessionID)
		h.logger.Info("Hub", "Session has no listeners left", map[string]interface{}{"session_id": c.SessionID})
	}
}

// ClientCount returns how many local clients listen to a session.
func (h *Hub) ClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

// Send delivers a frame to every client of the session, here and on other
// instances.
func (h *Hub) Send(sessionID string, message []byte) {
	h.deliverLocal(sessionID, message)

	if h.rdb != nil {
		payload, err := json.Marshal(clusterFrame{Origin: h.instanceID, SessionID: sessionID, Message: message})
		if err != nil {
			h.logger.Error("Hub", "Failed to encode cluster frame", map[string]interface{}{"error": err.Error()})
			return
		}
		if err := h.rdb.Publish(context.Background(), ClusterChannel, payload).Err(); err != nil {
			h.logger.Warn("Hub", "Failed to publish cluster frame", map[string]interface{}{"error": err.Error()})
		}
	}
}

func (h *Hub) deliverLocal(sessionID string, message []byte) {
	var slow []*Client

	h.mu.RLock()
	for client := range h.clients[sessionID] {
		select {
		case client.Send <- message:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	// Dropped outside the read lock; remove takes the write lock.
	for _, client := range slow {
		h.logger.Warn("Hub", "Client Send buffer full, dropping client", map[string]interface{}{"session_id": sessionID})
		h.remove(client)
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
			var frame clusterFrame
			if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
				h.logger.Warn("Hub", "Redis msg parse error", map[string]interface{}{"error": err.Error()})
				continue
			}
			if frame.Origin == h.instanceID {
				continue
			}
			h.deliverLocal(frame.SessionID, frame.Message)
		}
	}
}
