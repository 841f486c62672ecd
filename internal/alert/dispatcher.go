// Package alert turns triggered geofence rules into alerts.
package alert

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/alfredjeanlab/tracknow/internal/events"
	"github.com/alfredjeanlab/tracknow/internal/fence"
	"github.com/alfredjeanlab/tracknow/internal/model"
	"github.com/alfredjeanlab/tracknow/internal/telemetry"
)

// Event is the real-time event name alerts are broadcast under.
const Event = "geofenceAlert"

// Broadcaster delivers a payload to a session room.
type Broadcaster interface {
	ToRoom(sessionID, event string, data any, exclude ...string) (int, error)
}

// Dispatcher publishes alerts to the message bus and broadcasts them to the
// session. The bus is best-effort; the broadcast always happens.
type Dispatcher struct {
	pub    events.Publisher
	room   Broadcaster
	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewDispatcher creates a Dispatcher. pub may be nil.
func NewDispatcher(pub events.Publisher, room Broadcaster, logger *slog.Logger) *Dispatcher {
	if pub == nil {
		pub = &events.NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		pub:    pub,
		room:   room,
		logger: logger,
		tracer: telemetry.Tracer("alert"),
		now:    time.Now,
	}
}

// Dispatch builds the alert for one triggered rule, publishes it, and
// broadcasts it to every member of sessionID including the actor.
func (d *Dispatcher) Dispatch(ctx context.Context, rule model.Rule, actorID, sessionID string, f *model.Fence) model.Alert {
	ctx, span := d.tracer.Start(ctx, "alert.Dispatch", trace.WithAttributes(
		attribute.String("fence.id", f.ID),
		attribute.String("session.id", sessionID),
		attribute.String("alert.type", rule.Action.String()),
	))
	defer span.End()

	a := model.Alert{
		Type:      rule.Action,
		Message:   rule.Message,
		ActorID:   actorID,
		SessionID: sessionID,
		FenceID:   f.ID,
		FenceName: f.Name,
		Timestamp: d.now().UnixMilli(),
	}

	if err := d.pub.Publish(ctx, events.TopicGeofenceAlert, a); err != nil {
		span.RecordError(err)
		d.logger.Warn("alert: failed to publish alert", "fence", f.ID, "session", sessionID, "error", err)
	}

	n, err := d.room.ToRoom(sessionID, Event, a)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		d.logger.Error("alert: broadcast failed", "fence", f.ID, "session", sessionID, "error", err)
		return a
	}
	span.SetAttributes(attribute.Int("alert.recipients", n))
	d.logger.Debug("alert: dispatched", "type", a.Type, "fence", f.ID, "actor", actorID, "session", sessionID, "recipients", n)
	return a
}

// DispatchAll dispatches every trigger in order.
func (d *Dispatcher) DispatchAll(ctx context.Context, triggers []fence.Trigger, actorID, sessionID string) []model.Alert {
	if len(triggers) == 0 {
		return nil
	}
	alerts := make([]model.Alert, 0, len(triggers))
	for _, tr := range triggers {
		alerts = append(alerts, d.Dispatch(ctx, tr.Rule, actorID, sessionID, tr.Fence))
	}
	return alerts
}
