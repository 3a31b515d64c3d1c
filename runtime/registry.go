package runtime

import (
	"math"
	"project-hub/contract"
	"project-hub/domain"
	"sync"
	"time"

	"github.com/samber/lo"
)

// Set maps a member to the epoch at which it subscribed.
type Set map[domain.UserID]uint64

type session struct {
	conn        contract.Connection
	connectedAt time.Time
	epoch       uint64
	rooms       map[domain.RoomID]struct{}
}

// Registry owns the presence map: at most one live connection per user,
// plus the rooms each live connection is subscribed to.
// All mutations go through its methods; the maps are never exposed.
//
// Every register and subscribe advances the epoch. A delivery stamped with the
// epoch of its send call only reaches connections and subscriptions that existed then.
type Registry struct {
	mu          sync.RWMutex
	epoch       uint64
	sessions    map[domain.UserID]*session // map user -> current connection
	roomMembers map[domain.RoomID]Set      // map room -> users whose current connection is subscribed
	now         func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:    make(map[domain.UserID]*session),
		roomMembers: make(map[domain.RoomID]Set),
		now:         time.Now,
	}
}

// Register makes conn the user's current connection. A previous connection is
// orphaned along with its subscriptions; closing it is the transport's job.
func (r *Registry) Register(userID domain.UserID, conn contract.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if previous, ok := r.sessions[userID]; ok {
		r.dropSubscriptions(userID, previous)
	}
	r.epoch++
	r.sessions[userID] = &session{
		conn:        conn,
		connectedAt: r.now().UTC(),
		epoch:       r.epoch,
		rooms:       make(map[domain.RoomID]struct{}),
	}
}

// Unregister removes the user's entry only when conn is still the current one.
// A late disconnect from a replaced connection is a no-op.
func (r *Registry) Unregister(userID domain.UserID, conn contract.Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.sessions[userID]
	if !ok || !sameConnection(current.conn, conn) {
		return false
	}
	r.dropSubscriptions(userID, current)
	delete(r.sessions, userID)
	return true
}

func (r *Registry) Lookup(userID domain.UserID) (contract.Connection, bool) {
	return r.LookupAsOf(userID, math.MaxUint64)
}

// LookupAsOf returns the user's current connection only if it was registered at or before epoch.
func (r *Registry) LookupAsOf(userID domain.UserID, epoch uint64) (contract.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	current, ok := r.sessions[userID]
	if !ok || current.epoch > epoch {
		return nil, false
	}
	return current.conn, true
}

// Epoch returns the current registry epoch.
func (r *Registry) Epoch() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.epoch
}

// Entry returns the full registry entry of a user.
func (r *Registry) Entry(userID domain.UserID) (contract.ConnectionEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	current, ok := r.sessions[userID]
	if !ok {
		return contract.ConnectionEntry{}, false
	}
	return contract.ConnectionEntry{
		UserID:      userID,
		Connection:  current.conn,
		ConnectedAt: current.connectedAt,
	}, true
}

// Subscribe adds roomID to the subscriptions of conn. It returns false when conn
// is no longer the user's current connection. Subscribing twice has no extra effect.
func (r *Registry) Subscribe(userID domain.UserID, conn contract.Connection, roomID domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.sessions[userID]
	if !ok || !sameConnection(current.conn, conn) {
		return false
	}
	if _, ok := current.rooms[roomID]; ok {
		return true
	}
	r.epoch++
	current.rooms[roomID] = struct{}{}
	if _, ok := r.roomMembers[roomID]; !ok {
		r.roomMembers[roomID] = make(Set)
	}
	r.roomMembers[roomID][userID] = r.epoch
	return true
}

// ConnectionsForRoom retrieves all active connections subscribed to a room.
// It performs a two-step lookup:
// 1. Identifies user IDs associated with the room via roomMembers.
// 2. Resolves those IDs into their current connection using the sessions map.
// Returns nil if nobody is subscribed.
func (r *Registry) ConnectionsForRoom(roomID domain.RoomID) []contract.Connection {
	return r.ConnectionsForRoomAsOf(roomID, math.MaxUint64)
}

// ConnectionsForRoomAsOf keeps only the subscriptions made at or before epoch.
func (r *Registry) ConnectionsForRoomAsOf(roomID domain.RoomID, epoch uint64) []contract.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.roomMembers[roomID]
	if !ok {
		return nil
	}
	var active []contract.Connection
	for userID, subscribedAt := range members {
		if subscribedAt > epoch {
			continue
		}
		if current, exists := r.sessions[userID]; exists {
			active = append(active, current.conn)
		}
	}
	return active
}

// SubscribedRooms lists the rooms of the user's current connection.
func (r *Registry) SubscribedRooms(userID domain.UserID) []domain.RoomID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	current, ok := r.sessions[userID]
	if !ok {
		return nil
	}
	return lo.Keys(current.rooms)
}

// Count returns the number of users with a live connection.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// dropSubscriptions must be called with the write lock held.
// Empty room sets are removed to prevent the map from growing forever.
func (r *Registry) dropSubscriptions(userID domain.UserID, s *session) {
	for roomID := range s.rooms {
		if members, ok := r.roomMembers[roomID]; ok {
			delete(members, userID)
			if len(members) == 0 {
				delete(r.roomMembers, roomID)
			}
		}
	}
}

func sameConnection(a, b contract.Connection) bool {
	if a == nil || b == nil {
		return false
	}
	return a.ID() == b.ID()
}
