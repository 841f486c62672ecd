package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/alfredjeanlab/tracknow/internal/alert"
	"github.com/alfredjeanlab/tracknow/internal/events"
	"github.com/alfredjeanlab/tracknow/internal/fence"
	"github.com/alfredjeanlab/tracknow/internal/hub"
	"github.com/alfredjeanlab/tracknow/internal/presence"
	"github.com/alfredjeanlab/tracknow/internal/store"
	"github.com/alfredjeanlab/tracknow/internal/telemetry"
)

// maxHistoryWrites bounds concurrent best-effort location history writes.
// Samples arriving while all slots are busy are dropped.
const maxHistoryWrites = 32

// historyWriteTimeout bounds a single location history write.
const historyWriteTimeout = 5 * time.Second

// Options tune the real-time side of the server. Zero values pick defaults.
type Options struct {
	DeliveryTimeout time.Duration
	MemberQueue     int
	IdleTimeout     time.Duration // 0 disables the idle reaper
	Logger          *slog.Logger
}

// Server wires the fence cache, session registry, hub and alert dispatcher
// to the store and the message bus. Transports (HTTP, websocket) call into it.
type Server struct {
	store     store.Store
	publisher events.Publisher
	fences    *fence.Cache
	Presence  *presence.Registry
	hub       *hub.Hub
	alerts    *alert.Dispatcher
	logger    *slog.Logger
	tracer    trace.Tracer
	history   *semaphore.Weighted
	now       func() time.Time

	// fenceLocks serializes persist-then-cache per fence ID. actorLocks
	// keeps registry and hub room membership in step per actor.
	fenceLocks *keyedLocks
	actorLocks *keyedLocks
}

// New returns a Server backed by the given store and publisher. The
// publisher should be best-effort (see events.AsyncPublisher): it is called
// inline on the real-time path.
func New(s store.Store, p events.Publisher, opts Options) *Server {
	if p == nil {
		p = &events.NoopPublisher{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := hub.New(hub.Options{
		QueueSize:       opts.MemberQueue,
		DeliveryTimeout: opts.DeliveryTimeout,
		Logger:          logger,
	})
	srv := &Server{
		store:     s,
		publisher: p,
		fences:    fence.NewCache(),
		Presence:  presence.New(),
		hub:       h,
		alerts:    alert.NewDispatcher(p, h, logger),
		logger:    logger,
		tracer:    telemetry.Tracer("server"),
		history:   semaphore.NewWeighted(maxHistoryWrites),
		now:       time.Now,

		fenceLocks: newKeyedLocks(),
		actorLocks: newKeyedLocks(),
	}
	if opts.IdleTimeout > 0 {
		srv.Presence.StartReaper(&presence.ReaperConfig{
			IdleThreshold: opts.IdleTimeout,
			EvictAfter:    2 * opts.IdleTimeout,
			OnIdle:        srv.handleIdle,
		})
	}
	return srv
}

// LoadFences warms the fence cache from the store. Call once at startup
// before accepting traffic.
func (s *Server) LoadFences(ctx context.Context) error {
	if err := s.fences.Load(ctx, s.store); err != nil {
		return fmt.Errorf("warm fence cache: %w", err)
	}
	s.logger.Info("server: fence cache loaded", "fences", s.fences.Len())
	return nil
}

// Fences exposes the fence cache for read-only use. The sync exporter reads
// the store, not the cache.
func (s *Server) Fences() *fence.Cache { return s.fences }

// Close stops background work. It does not close the store or publisher.
func (s *Server) Close() {
	s.Presence.Stop()
	s.hub.Close()
}

// publish hands an event to the message bus. Failures are logged and
// never returned.
func (s *Server) publish(ctx context.Context, topic string, event any) {
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		s.logger.Warn("server: failed to publish event", "topic", topic, "error", err)
	}
}

// inputError indicates invalid user input.
// Transport layers map this to 400.
type inputError string

func (e inputError) Error() string { return string(e) }
