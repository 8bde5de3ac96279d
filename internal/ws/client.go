package ws

import (
	"sync"

	"golang.org/x/net/websocket"

	"github.com/lendingdesk/backoffice/internal/auth"
)

type Client struct {
	conn   *websocket.Conn
	out    chan []byte
	viewer auth.Principal

	mu       sync.RWMutex
	channels map[string]struct{}
	closed   bool
}

func NewClient(conn *websocket.Conn, viewer auth.Principal) *Client {
	return &Client{
		conn:     conn,
		out:      make(chan []byte, 64),
		viewer:   viewer,
		channels: map[string]struct{}{},
	}
}

// send drops slow consumers instead of blocking the publisher. It reports
// false once the client is closed.
func (c *Client) send(payload []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.out <- payload:
		return true
	default:
		if c.conn != nil {
			_ = c.conn.Close()
		}
		return false
	}
}

// close ends the writer. Publishers holding a stale copy of the client see
// the flag and skip it.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.out)
}

func (c *Client) addChannel(channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channels[channel] = struct{}{}
}

func (c *Client) removeChannel(channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.channels, channel)
}

func (c *Client) listChannels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		out = append(out, ch)
	}
	return out
}
