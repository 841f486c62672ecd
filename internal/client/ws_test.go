package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/websocket"
)

// echoServer upgrades /v1/ws and echoes every frame back.
func echoServer(t *testing.T, gotAuth *string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/ws" {
			http.NotFound(w, r)
			return
		}
		*gotAuth = r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, raw); err != nil {
				return
			}
		}
	}))
}

func TestDialRealtime_SendRecv(t *testing.T) {
	var auth string
	srv := echoServer(t, &auth)
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "secret")
	rc, err := c.DialRealtime(context.Background())
	if err != nil {
		t.Fatalf("DialRealtime() error = %v", err)
	}
	defer rc.Close()

	if err := rc.Send("join", map[string]string{"sessionId": "evt1", "actorName": "alice"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	f, err := rc.Recv()
	if err != nil {
		t.Fatalf("Recv() error = %v", err)
	}
	if f.Event != "join" || string(f.Data) != `{"actorName":"alice","sessionId":"evt1"}` {
		t.Fatalf("unexpected frame %s %s", f.Event, f.Data)
	}
	if auth != "Bearer secret" {
		t.Fatalf("authorization = %q", auth)
	}
}

func TestDialRealtime_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL, "").DialRealtime(context.Background())
	apiErr, ok := err.(*APIError)
	if !ok || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 APIError, got %v", err)
	}
}
