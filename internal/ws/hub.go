package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pocketlist/pocketlist/internal/metrics"
	"github.com/pocketlist/pocketlist/pkg/idx"
)

// Event types pushed to clients.
const (
	EventTokenExpiring = "TOKEN_EXPIRING"
)

// Event is the envelope for every message pushed over a socket.
type Event struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// TokenExpiringPayload carries the warning details for EventTokenExpiring.
type TokenExpiringPayload struct {
	ExpiresAt time.Time `json:"expires_at"`
	LeadTime  string    `json:"lead_time"`
}

// Hub maintains active WebSocket connections grouped per user so events can
// be targeted at all of a user's open sessions.
type Hub struct {
	// rooms maps a user id to that user's connected clients
	rooms map[idx.ID]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	metrics *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(ctx context.Context, m *metrics.Metrics) *Hub {
	hubCtx, cancel := context.WithCancel(ctx)
	return &Hub{
		rooms:      make(map[idx.ID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		metrics:    m,
		ctx:        hubCtx,
		cancel:     cancel,
	}
}

// Run owns the registration lifecycle. Call it in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			room, ok := h.rooms[client.userID]
			if !ok {
				room = make(map[*Client]bool)
				h.rooms[client.userID] = room
			}
			room[client] = true
			h.mu.Unlock()
			if h.metrics != nil {
				h.metrics.ConnectedSockets.Inc()
			}

		case client := <-h.unregister:
			h.mu.Lock()
			if room, ok := h.rooms[client.userID]; ok {
				if _, ok := room[client]; ok {
					delete(room, client)
					close(client.send)
					if len(room) == 0 {
						delete(h.rooms, client.userID)
					}
					if h.metrics != nil {
						h.metrics.ConnectedSockets.Dec()
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// Stop shuts the hub down and disconnects every client.
func (h *Hub) Stop() {
	h.cancel()
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, room := range h.rooms {
		for client := range room {
			close(client.send)
			delete(room, client)
			if h.metrics != nil {
				h.metrics.ConnectedSockets.Dec()
			}
		}
		delete(h.rooms, userID)
	}
}

// Register enqueues a client for registration.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.ctx.Done():
	}
}

// Unregister enqueues a client for removal.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.ctx.Done():
	}
}

// SendToUser delivers an event to every open socket of one user. Delivery is
// best effort: a client whose buffer is full is dropped rather than allowed
// to block the sender.
func (h *Hub) SendToUser(userID idx.ID, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[userID]
	if !ok {
		return nil
	}

	for client := range room {
		select {
		case client.send <- data:
		default:
			close(client.send)
			delete(room, client)
			if h.metrics != nil {
				h.metrics.ConnectedSockets.Dec()
			}
		}
	}
	if len(room) == 0 {
		delete(h.rooms, userID)
	}
	return nil
}

// NotifyTokenExpiring pushes a TOKEN_EXPIRING warning to the user.
func (h *Hub) NotifyTokenExpiring(userID idx.ID, expiresAt time.Time, lead time.Duration) error {
	payload, err := json.Marshal(TokenExpiringPayload{
		ExpiresAt: expiresAt,
		LeadTime:  lead.String(),
	})
	if err != nil {
		return err
	}
	return h.SendToUser(userID, Event{
		Type:      EventTokenExpiring,
		Payload:   payload,
		Timestamp: time.Now(),
	})
}

// ClientCount returns the number of connected clients across all users.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, room := range h.rooms {
		n += len(room)
	}
	return n
}
