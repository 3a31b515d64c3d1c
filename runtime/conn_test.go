package runtime

import (
	"project-hub/domain"
	"sync"

	"github.com/google/uuid"
)

// recordingConn is an in-memory connection handle keeping every event it receives.
type recordingConn struct {
	id     string
	mu     sync.Mutex
	events []domain.Event
}

func newRecordingConn() *recordingConn {
	return &recordingConn{id: uuid.NewString()}
}

func (c *recordingConn) ID() string { return c.id }

func (c *recordingConn) Send(evt domain.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *recordingConn) Events() []domain.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Event(nil), c.events...)
}
