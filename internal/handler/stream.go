package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"fz-pos-api/internal/middleware"
	"fz-pos-api/internal/pos"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StreamMessage is a frame sent by the screen.
type StreamMessage struct {
	Type string `json:"type"`
	KeyRequest
	Raw string `json:"raw,omitempty"`
}

// StreamEvent is a frame pushed to the screen.
type StreamEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

type streamClient struct {
	conn *websocket.Conn
	send chan []byte
}

// push queues an event. Events are dropped when the client falls behind.
func (c *streamClient) push(typ string, data interface{}) {
	b, err := json.Marshal(StreamEvent{Type: typ, Data: data})
	if err != nil {
		return
	}
	select {
	case c.send <- b:
	default:
	}
}

// Stream handles GET /api/v1/pos/sessions/{id}/ws. Keystrokes and decoded
// scans come in; outcomes, toasts and snapshots go out.
func (h *SessionHandler) Stream(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	log := middleware.Logger(r.Context()).WithField("session", s.ID())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("[Stream] Upgrade failed")
		return
	}
	log.Debug("[Stream] Client connected")

	c := &streamClient{conn: conn, send: make(chan []byte, sendBuffer)}
	done := make(chan struct{})
	go c.writePump(done)

	toasts, unsubscribe := s.Notifier().Subscribe()
	go func() {
		for t := range toasts {
			c.push("toast", t)
			c.push("snapshot", s.Snapshot())
		}
	}()

	c.push("snapshot", s.Snapshot())
	c.readPump(r.Context(), s)

	unsubscribe()
	close(done)
	log.Debug("[Stream] Client disconnected")
}

func (c *streamClient) readPump(ctx context.Context, s *pos.Session) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg StreamMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.push("error", "invalid message")
			continue
		}

		switch msg.Type {
		case "key":
			c.push("outcome", s.HandleKey(msg.event()))
		case "scan":
			go func(raw string) {
				res, err := s.Scan(ctx, raw)
				if err != nil {
					c.push("error", err.Error())
					return
				}
				c.push("scan", res)
				c.push("snapshot", s.Snapshot())
			}(msg.Raw)
		case "snapshot":
			c.push("snapshot", s.Snapshot())
		default:
			c.push("error", "unknown message type")
		}
	}
}

func (c *streamClient) writePump(done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
