//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"project-hub/domain"
	"reflect"
	"time"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Connection is the handle of one live transport session.
// Send must not block: it queues the event or fails immediately.
type Connection interface {
	ID() string
	Send(evt domain.Event) error
}

// ConnectionEntry is what the registry knows about a user's current connection.
type ConnectionEntry struct {
	UserID      domain.UserID
	Connection  Connection
	ConnectedAt time.Time
}

type IRegistry interface {
	Register(userID domain.UserID, conn Connection)
	Unregister(userID domain.UserID, conn Connection) bool
	Lookup(userID domain.UserID) (Connection, bool)
	Subscribe(userID domain.UserID, conn Connection, roomID domain.RoomID) bool
	ConnectionsForRoom(roomID domain.RoomID) []Connection
	Epoch() uint64
	LookupAsOf(userID domain.UserID, epoch uint64) (Connection, bool)
	ConnectionsForRoomAsOf(roomID domain.RoomID, epoch uint64) []Connection
}

// IRoomStore persists the rooms a user belongs to.
type IRoomStore interface {
	GetUserRooms(ctx context.Context, userID domain.UserID) ([]domain.RoomID, error)
	AppendUserRoom(ctx context.Context, userID domain.UserID, roomID domain.RoomID) error
}

type IMembership interface {
	OnConnect(ctx context.Context, userID domain.UserID, conn Connection)
	Join(ctx context.Context, userID domain.UserID, roomID domain.RoomID) error
}

type IBroadcaster interface {
	BroadcastToRoom(roomID domain.RoomID, name domain.EventName, payload any)
	SendToUser(userID domain.UserID, name domain.EventName, payload any)
}

// IJobStore is the durable backing of the scheduler. Claim and Remove
// must be atomic with respect to each other and to concurrent callers.
type IJobStore interface {
	Save(ctx context.Context, job domain.DelayedJob) error
	Remove(ctx context.Context, jobID domain.JobID) (bool, error)
	Claim(ctx context.Context, jobID domain.JobID, now time.Time) (domain.DelayedJob, error)
	RecordFailure(ctx context.Context, jobID domain.JobID, cause error) error
	Fail(ctx context.Context, jobID domain.JobID, cause error) (bool, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.DelayedJob, error)
	Get(ctx context.Context, jobID domain.JobID) (domain.DelayedJob, error)
}

type IScheduler interface {
	Schedule(ctx context.Context, jobID domain.JobID, kind domain.JobKind,
		payload domain.Payload, fireAt time.Time) (domain.ScheduleResult, error)
	Cancel(ctx context.Context, jobID domain.JobID) (domain.CancelResult, error)
	FireDue(ctx context.Context, limit int) (int, error)
}

// JobHandler runs the side effect of one job kind.
type JobHandler interface {
	Handle(ctx context.Context, job domain.DelayedJob) error
}

// IReminderSender delivers the reminder itself (email in production).
type IReminderSender interface {
	SendReminderEmail(ctx context.Context, recipientAddress, taskTitle string, dueAt time.Time) error
}
