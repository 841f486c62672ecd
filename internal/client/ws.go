package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeWait bounds a single frame write on the real-time connection.
const writeWait = 10 * time.Second

// Frame is one real-time message in either direction.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// RealtimeConn is a websocket connection to /v1/ws. Send is safe for
// concurrent use; Recv must be called from one goroutine.
type RealtimeConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// DialRealtime opens the real-time channel. The token, if any, is sent as
// a bearer header.
func (c *HTTPClient) DialRealtime(ctx context.Context) (*RealtimeConn, error) {
	u, err := url.Parse(c.baseURL + "/v1/ws")
	if err != nil {
		return nil, fmt.Errorf("parse server URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	hdr := http.Header{}
	if c.token != "" {
		hdr.Set("Authorization", "Bearer "+c.token)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), hdr)
	if err != nil {
		if resp != nil {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(err.Error())}
		}
		return nil, fmt.Errorf("dial %s: %w", u, err)
	}
	return &RealtimeConn{conn: conn}, nil
}

// Send writes one frame.
func (r *RealtimeConn) Send(event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event, err)
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if err := r.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return r.conn.WriteJSON(Frame{Event: event, Data: raw})
}

// Recv blocks for the next frame from the server.
func (r *RealtimeConn) Recv() (*Frame, error) {
	var f Frame
	if err := r.conn.ReadJSON(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Close sends a close frame and closes the connection.
func (r *RealtimeConn) Close() error {
	r.writeMu.Lock()
	_ = r.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	r.writeMu.Unlock()
	return r.conn.Close()
}
