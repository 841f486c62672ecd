package hub

import (
	"context"
	"sync"
	"time"
)

type member struct {
	id   string
	conn Conn
	room string // guarded by Hub.mu

	mu     sync.Mutex
	closed bool
	queue  chan []byte
	stop   chan struct{}
}

func newMember(id string, conn Conn, size int) *member {
	return &member{
		id:    id,
		conn:  conn,
		queue: make(chan []byte, size),
		stop:  make(chan struct{}),
	}
}

// offer enqueues without blocking. It reports false if the queue is full
// or the member has been closed.
func (m *member) offer(frame []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	select {
	case m.queue <- frame:
		return true
	default:
		return false
	}
}

func (m *member) run(timeout time.Duration, onErr func(string, error)) {
	for {
		select {
		case <-m.stop:
			return
		case frame := <-m.queue:
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			err := m.conn.Send(ctx, frame)
			cancel()
			if err != nil {
				onErr(m.id, err)
			}
		}
	}
}

func (m *member) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.stop)
}
