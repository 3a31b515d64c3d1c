package runtime

import (
	"log/slog"
	"project-hub/contract"
	"project-hub/domain"
	"project-hub/observability"
)

// Broadcaster accepts events from business code and hands them to the fanout worker.
// It never blocks and never fails the caller: a full queue drops the event.
//
// Targets are fixed when the call is made: a user connecting or joining while the
// event waits in the queue does not receive it.
type Broadcaster struct {
	log        *slog.Logger
	registry   contract.IRegistry
	deliveries chan<- domain.Delivery
	metrics    *observability.Metrics
}

func NewBroadcaster(log *slog.Logger, registry contract.IRegistry,
	deliveries chan<- domain.Delivery, metrics *observability.Metrics) *Broadcaster {
	return &Broadcaster{log: log, registry: registry, deliveries: deliveries, metrics: metrics}
}

// BroadcastToRoom queues an event for every connection subscribed to roomID.
func (b *Broadcaster) BroadcastToRoom(roomID domain.RoomID, name domain.EventName, payload any) {
	b.enqueue(domain.RoomDelivery(roomID, domain.Event{Name: name, Payload: payload}), "room")
}

// SendToUser queues an event for the user's current connection, if any.
func (b *Broadcaster) SendToUser(userID domain.UserID, name domain.EventName, payload any) {
	b.enqueue(domain.UserDelivery(userID, domain.Event{Name: name, Payload: payload}), "user")
}

func (b *Broadcaster) enqueue(d domain.Delivery, target string) {
	d.Epoch = b.registry.Epoch()
	select {
	case b.deliveries <- d:
		b.metrics.EventEnqueued(target)
	default:
		b.metrics.EventDropped("queue_full")
		b.log.Warn("Delivery queue full, dropping event",
			"event", d.Event.Name, "room_id", d.Room, "user_id", d.User)
	}
}
