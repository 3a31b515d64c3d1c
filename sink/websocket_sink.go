package sink

import (
	"context"
	"log/slog"
	"project-hub/domain"
	"project-hub/errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const maxInboundMessageSize = 4096

// envelope is the wire format of every pushed event.
type envelope struct {
	Event domain.EventName `json:"event"`
	Data  any              `json:"data"`
}

// WebsocketSink is the connection handle of one websocket session.
// Send only queues: a dedicated writer goroutine drains the queue in order,
// so a slow client never stalls the fanout worker.
type WebsocketSink struct {
	id           string
	log          *slog.Logger
	conn         *websocket.Conn
	outbound     chan domain.Event
	writeTimeout time.Duration
	pingInterval time.Duration
	closed       chan struct{}
	closeOnce    sync.Once
}

func NewWebsocketSink(log *slog.Logger, conn *websocket.Conn, bufferSize int,
	writeTimeout, pingInterval time.Duration) *WebsocketSink {
	id := uuid.NewString()
	return &WebsocketSink{
		id:           id,
		log:          log.With("connection_id", id),
		conn:         conn,
		outbound:     make(chan domain.Event, bufferSize),
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
		closed:       make(chan struct{}),
	}
}

func (s *WebsocketSink) ID() string { return s.id }

// Send queues evt without blocking.
func (s *WebsocketSink) Send(evt domain.Event) error {
	select {
	case <-s.closed:
		return errors.ErrConnectionClosed
	default:
	}
	select {
	case s.outbound <- evt:
		return nil
	case <-s.closed:
		return errors.ErrConnectionClosed
	default:
		return errors.ErrSendBufferFull
	}
}

// Serve pumps events to the client until the client goes away or ctx is done.
// Inbound messages are read and discarded: the channel is push only.
func (s *WebsocketSink) Serve(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.writePump(ctx); err != nil {
			s.log.Debug("Write pump stopped", "error", err)
		}
		s.Close()
	}()

	s.readPump()
	cancel()
	s.Close()
	wg.Wait()
}

// Close ends the session. Safe to call more than once.
func (s *WebsocketSink) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		if s.conn != nil {
			_ = s.conn.Close()
		}
	})
}

func (s *WebsocketSink) readPump() {
	s.conn.SetReadLimit(maxInboundMessageSize)
	if s.pingInterval > 0 {
		pongWait := 2 * s.pingInterval
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
		s.conn.SetPongHandler(func(string) error {
			return s.conn.SetReadDeadline(time.Now().Add(pongWait))
		})
	}
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("Websocket closed unexpectedly", "error", err)
			}
			return
		}
	}
}

func (s *WebsocketSink) writePump(ctx context.Context) error {
	var ping <-chan time.Time
	if s.pingInterval > 0 {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			s.writeClose()
			return nil
		case <-s.closed:
			return nil
		case evt := <-s.outbound:
			s.setWriteDeadline()
			if err := s.conn.WriteJSON(envelope{Event: evt.Name, Data: evt.Payload}); err != nil {
				return err
			}
		case <-ping:
			s.setWriteDeadline()
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}

func (s *WebsocketSink) writeClose() {
	s.setWriteDeadline()
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	_ = s.conn.WriteMessage(websocket.CloseMessage, msg)
}

func (s *WebsocketSink) setWriteDeadline() {
	if s.writeTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
}
