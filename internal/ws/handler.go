package ws

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/net/websocket"

	"github.com/lendingdesk/backoffice/internal/auth"
	creditdomain "github.com/lendingdesk/backoffice/internal/domain/credit"
	loandomain "github.com/lendingdesk/backoffice/internal/domain/loan"
	"github.com/lendingdesk/backoffice/internal/http/middleware"
)

type LoanReader interface {
	GetLoan(ctx context.Context, viewer auth.Principal, loanID string) (*loandomain.View, error)
}

type CreditReader interface {
	GetCredit(ctx context.Context, viewer auth.Principal, creditID string) (*creditdomain.View, error)
}

// Access decides whether a viewer may follow a channel. Record channels
// reuse the read rules of the owning service.
type Access struct {
	Loans   LoanReader
	Credits CreditReader
}

func (a Access) Allowed(ctx context.Context, viewer auth.Principal, channel, id string) bool {
	switch channel {
	case ChannelStaffActivity:
		return viewer.Internal()
	case ChannelLoanRepayments:
		if a.Loans == nil {
			return false
		}
		_, err := a.Loans.GetLoan(ctx, viewer, id)
		return err == nil
	case ChannelCreditPayouts:
		if a.Credits == nil {
			return false
		}
		_, err := a.Credits.GetCredit(ctx, viewer, id)
		return err == nil
	}
	return false
}

type Handler struct {
	hub    *Hub
	access Access
}

func NewHandler(hub *Hub, access Access) *Handler {
	return &Handler{hub: hub, access: access}
}

func (h *Handler) HandleWebSocket(c *gin.Context) {
	viewer := middleware.Principal(c)
	ctx := c.Request.Context()
	websocket.Handler(func(conn *websocket.Conn) {
		client := NewClient(conn, viewer)
		go h.writer(client)
		h.reader(ctx, client)
	}).ServeHTTP(c.Writer, c.Request)
}

func (h *Handler) reader(ctx context.Context, client *Client) {
	defer func() {
		h.hub.UnsubscribeAll(client)
		client.close()
		_ = client.conn.Close()
	}()

	for {
		var raw string
		if err := websocket.Message.Receive(client.conn, &raw); err != nil {
			return
		}
		var msg subscribeMessage
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			continue
		}
		h.handle(ctx, client, msg)
	}
}

func (h *Handler) handle(ctx context.Context, client *Client, msg subscribeMessage) {
	channel, id, topic := subscription(msg)
	if topic == "" {
		return
	}
	switch strings.ToLower(strings.TrimSpace(msg.Action)) {
	case "subscribe":
		if !h.access.Allowed(ctx, client.viewer, channel, id) {
			client.send(errorFrame("forbidden", channel))
			return
		}
		h.hub.Subscribe(topic, client)
		client.send(ackFrame("subscribed", topic))
	case "unsubscribe":
		h.hub.Unsubscribe(topic, client)
		client.send(ackFrame("unsubscribed", topic))
	}
}

func (h *Handler) writer(client *Client) {
	for payload := range client.out {
		if err := websocket.Message.Send(client.conn, string(payload)); err != nil {
			return
		}
	}
}

func ackFrame(event, topic string) []byte {
	b, _ := json.Marshal(map[string]any{"event": event, "channel": topic})
	return b
}

func errorFrame(code, channel string) []byte {
	b, _ := json.Marshal(map[string]any{"event": "error", "error": code, "channel": channel})
	return b
}
