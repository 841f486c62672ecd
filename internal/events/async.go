package events

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// AsyncPublisher wraps a Publisher with a bounded queue drained by a single
// goroutine. Publish never blocks: when the queue is full the event is
// dropped and counted. Failures of the underlying publisher are logged and
// counted, never returned.
type AsyncPublisher struct {
	next    Publisher
	logger  *slog.Logger
	timeout time.Duration

	queue chan pending
	done  chan struct{}

	mu     sync.RWMutex
	closed bool

	dropped atomic.Int64
	failed  atomic.Int64
}

type pending struct {
	topic string
	event any
}

// Compile-time check that AsyncPublisher implements Publisher.
var _ Publisher = (*AsyncPublisher)(nil)

// NewAsyncPublisher starts the drain goroutine. size is the queue depth;
// timeout bounds each underlying publish (0 means 5s).
func NewAsyncPublisher(next Publisher, size int, timeout time.Duration, logger *slog.Logger) *AsyncPublisher {
	if size <= 0 {
		size = 256
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &AsyncPublisher{
		next:    next,
		logger:  logger,
		timeout: timeout,
		queue:   make(chan pending, size),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish enqueues the event and returns immediately. It always returns nil.
func (p *AsyncPublisher) Publish(_ context.Context, topic string, event any) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.dropped.Add(1)
		return nil
	}
	select {
	case p.queue <- pending{topic: topic, event: event}:
	default:
		p.dropped.Add(1)
		p.logger.Warn("events: publish queue full, dropping event", "topic", topic)
	}
	return nil
}

func (p *AsyncPublisher) run() {
	defer close(p.done)
	for ev := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		if err := p.next.Publish(ctx, ev.topic, ev.event); err != nil {
			p.failed.Add(1)
			p.logger.Warn("events: failed to publish event", "topic", ev.topic, "error", err)
		}
		cancel()
	}
}

// Dropped returns the number of events discarded because the queue was full
// or the publisher was closed.
func (p *AsyncPublisher) Dropped() int64 { return p.dropped.Load() }

// Failed returns the number of events the underlying publisher rejected.
func (p *AsyncPublisher) Failed() int64 { return p.failed.Load() }

// Close drains queued events, then closes the underlying publisher.
func (p *AsyncPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	<-p.done
	return p.next.Close()
}
