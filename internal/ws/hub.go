package ws

import "sync"

type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{subscribers: map[string]map[*Client]struct{}{}}
}

func (h *Hub) Subscribe(topic string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[topic]; !ok {
		h.subscribers[topic] = map[*Client]struct{}{}
	}
	h.subscribers[topic][client] = struct{}{}
	client.addChannel(topic)
}

func (h *Hub) Unsubscribe(topic string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(topic, client)
	client.removeChannel(topic)
}

func (h *Hub) UnsubscribeAll(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, topic := range client.listChannels() {
		h.remove(topic, client)
	}
}

func (h *Hub) remove(topic string, client *Client) {
	if subs, ok := h.subscribers[topic]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.subscribers, topic)
		}
	}
}

// Publish returns the number of clients the payload was queued for.
func (h *Hub) Publish(topic string, payload []byte) int {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.subscribers[topic]))
	for c := range h.subscribers[topic] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	queued := 0
	for _, c := range clients {
		if c.send(payload) {
			queued++
		}
	}
	return queued
}

func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[topic])
}
