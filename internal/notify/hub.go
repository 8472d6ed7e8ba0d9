package notify

import (
	"context"
	"sync"

	"sharecrop/internal/models"
)

// Hub fans notifications out to live subscribers, keyed by user id.
type Hub struct {
	clients map[string][]chan models.Notification
	mu      sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string][]chan models.Notification)}
}

// Subscribe registers a client for userID. The channel is closed once ctx
// is done.
func (h *Hub) Subscribe(ctx context.Context, userID string) <-chan models.Notification {
	clientChan := make(chan models.Notification, 10)

	h.mu.Lock()
	h.clients[userID] = append(h.clients[userID], clientChan)
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.remove(userID, clientChan)
	}()

	return clientChan
}

// Publish delivers n to every subscriber of n.UserID. Slow clients with a
// full buffer miss the message.
func (h *Hub) Publish(n models.Notification) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, clientChan := range h.clients[n.UserID] {
		select {
		case clientChan <- n:
			delivered++
		default:
		}
	}
	return delivered
}

func (h *Hub) remove(userID string, clientChan chan models.Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.clients[userID]
	for i, ch := range clients {
		if ch == clientChan {
			h.clients[userID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}

	if len(h.clients[userID]) == 0 {
		delete(h.clients, userID)
	}
}

// ClientCount returns the number of live subscribers for userID.
func (h *Hub) ClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}
