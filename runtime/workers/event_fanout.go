package workers

import (
	"context"
	"log/slog"
	"project-hub/contract"
	"project-hub/domain"
	"project-hub/observability"
)

// EventFanout delivers queued events to live connections.
//
// It provides best-effort fan-out with no guarantees regarding delivery,
// durability, or retries. Targets are resolved against the epoch stamped at
// send time, so a user that was offline when the event was sent never sees it.
//
// Run a single instance: deliveries are handled one at a time, which keeps
// the events of one room in the order they were broadcast.
type EventFanout struct {
	log        *slog.Logger
	registry   contract.IRegistry
	deliveries <-chan domain.Delivery
	metrics    *observability.Metrics
}

func NewEventFanout(log *slog.Logger, registry contract.IRegistry,
	deliveries <-chan domain.Delivery, metrics *observability.Metrics) *EventFanout {
	return &EventFanout{log: log, registry: registry, deliveries: deliveries, metrics: metrics}
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case d := <-w.deliveries:
			w.Fanout(d)
		case <-ctx.Done():
			w.log.Debug("Context done, stopping event fanout")
			return nil
		}
	}
}

// Fanout resolves the target of one delivery and pushes the event to each connection.
func (w *EventFanout) Fanout(d domain.Delivery) {
	if d.IsRoom() {
		conns := w.registry.ConnectionsForRoomAsOf(d.Room, d.Epoch)
		if len(conns) == 0 {
			w.metrics.EventDropped("no_subscriber")
			w.log.Debug("No subscriber in room", "room_id", d.Room, "event", d.Event.Name)
			return
		}
		for _, conn := range conns {
			w.deliver(conn, d)
		}
		return
	}

	conn, ok := w.registry.LookupAsOf(d.User, d.Epoch)
	if !ok {
		w.metrics.EventDropped("no_connection")
		w.log.Debug("User not connected, event dropped", "user_id", d.User, "event", d.Event.Name)
		return
	}
	w.deliver(conn, d)
}

func (w *EventFanout) deliver(conn contract.Connection, d domain.Delivery) {
	if err := conn.Send(d.Event); err != nil {
		w.metrics.Delivery("failed")
		w.log.Warn("Failed to deliver event",
			"connection_id", conn.ID(), "event", d.Event.Name,
			"room_id", d.Room, "user_id", d.User, "error", err)
		return
	}
	w.metrics.Delivery("delivered")
}
