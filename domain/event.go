package domain

import "time"

// EventName is part of the wire contract with the web client.
// Values must never be renamed.
type EventName string

const (
	NewTask           EventName = "new-task"
	ChangeTaskStatus  EventName = "change-task-status"
	DeleteTask        EventName = "delete-task"
	AssignTaskGeneral EventName = "assign-task-general"
	AssignedTask      EventName = "assigned-task"
	InviteMember      EventName = "invite-member"
	InviteNewMember   EventName = "invite-new-member"
	InviteMsg         EventName = "invite-msg"
	AcceptMsg         EventName = "accept-msg"
	NewLogs           EventName = "new-logs"
	DeleteLog         EventName = "delete-log"
	NewMessage        EventName = "newMessage"
	DeleteProject     EventName = "delete-project"
)

var knownEvents = map[EventName]struct{}{
	NewTask:           {},
	ChangeTaskStatus:  {},
	DeleteTask:        {},
	AssignTaskGeneral: {},
	AssignedTask:      {},
	InviteMember:      {},
	InviteNewMember:   {},
	InviteMsg:         {},
	AcceptMsg:         {},
	NewLogs:           {},
	DeleteLog:         {},
	NewMessage:        {},
	DeleteProject:     {},
}

// IsKnown reports whether the web client listens to this event.
func (n EventName) IsKnown() bool {
	_, ok := knownEvents[n]
	return ok
}

// Event is a named notification. Payload is opaque to the realtime layer
// and is forwarded as-is.
type Event struct {
	Name    EventName
	Payload any
}

// Delivery is an event addressed either to a room or to a single user.
// Epoch is the registry epoch when the event was sent: later connections
// and subscriptions do not receive it.
type Delivery struct {
	Room       RoomID
	User       UserID
	Event      Event
	EnqueuedAt time.Time
	Epoch      uint64
}

func RoomDelivery(roomID RoomID, evt Event) Delivery {
	return Delivery{Room: roomID, Event: evt, EnqueuedAt: time.Now().UTC()}
}

func UserDelivery(userID UserID, evt Event) Delivery {
	return Delivery{User: userID, Event: evt, EnqueuedAt: time.Now().UTC()}
}

// IsRoom reports whether the delivery fans out to a room.
func (d Delivery) IsRoom() bool {
	return d.Room != ""
}
