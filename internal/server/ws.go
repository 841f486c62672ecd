package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a frame to the client.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the client.
	pongWait = 60 * time.Second

	// Send pings to client with this period. Must be less than pongWait.
	pingPeriod = 15 * time.Second

	// Maximum frame size allowed from client.
	maxFrameSize = 8 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsConn adapts a websocket connection to hub.Conn. gorilla allows one
// concurrent writer; pings go through WriteControl, which is exempt.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) Send(ctx context.Context, frame []byte) error {
	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

func (c *wsConn) keepalive(done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// handleWebSocket handles GET /v1/ws. Each connection is one actor; the
// actor ID is assigned here and sent to the client in a connected frame.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		s.logger.Debug("server: websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	actorID := uuid.NewString()
	wc := &wsConn{conn: conn}
	s.Connect(actorID, wc)
	defer func() {
		s.Disconnect(actorID)
		conn.Close()
	}()

	if _, err := s.hub.ToActor(actorID, eventConnected, connectedPayload{ActorID: actorID}); err != nil {
		s.logger.Error("server: connected frame failed", "actor", actorID, "error", err)
	}

	done := make(chan struct{})
	defer close(done)
	go wc.keepalive(done)

	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx := context.WithoutCancel(r.Context())
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("server: websocket closed", "actor", actorID, "error", err)
			}
			return
		}
		s.HandleFrame(ctx, actorID, raw)
	}
}
