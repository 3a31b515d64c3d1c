package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"project-hub/contract"
	"project-hub/domain"
)

// Membership keeps live subscriptions in line with the persisted room sets.
type Membership struct {
	log      *slog.Logger
	registry contract.IRegistry
	store    contract.IRoomStore
}

func NewMembership(log *slog.Logger, registry contract.IRegistry, store contract.IRoomStore) *Membership {
	return &Membership{log: log, registry: registry, store: store}
}

// OnConnect subscribes a fresh connection to every room persisted for the user.
// A failing read leaves the connection unsubscribed but alive.
func (m *Membership) OnConnect(ctx context.Context, userID domain.UserID, conn contract.Connection) {
	rooms, err := m.store.GetUserRooms(ctx, userID)
	if err != nil {
		m.log.Warn("Room reconciliation failed, connection stays unsubscribed",
			"user_id", userID, "connection_id", conn.ID(), "error", err)
		return
	}
	subscribed := 0
	for _, roomID := range rooms {
		if m.registry.Subscribe(userID, conn, roomID) {
			subscribed++
		}
	}
	m.log.Debug("Connection reconciled", "user_id", userID,
		"connection_id", conn.ID(), "rooms", subscribed)
}

// Join persists the membership first, then subscribes the live connection if any.
// Joining an already joined room has no additional effect.
func (m *Membership) Join(ctx context.Context, userID domain.UserID, roomID domain.RoomID) error {
	if err := m.store.AppendUserRoom(ctx, userID, roomID); err != nil {
		return fmt.Errorf("persist room %s for user %s: %w", roomID, userID, err)
	}
	conn, ok := m.registry.Lookup(userID)
	if !ok {
		m.log.Debug("User joined room while offline", "user_id", userID, "room_id", roomID)
		return nil
	}
	m.registry.Subscribe(userID, conn, roomID)
	return nil
}
