package libemit

import "sync"

// ConnEvent names the notifications published by ConnStatus.
type ConnEvent string

const (
	// EventConnect carries (connID string).
	EventConnect ConnEvent = "connect"
	// EventClose carries (connID string, reason error). reason is nil on a local close.
	EventClose ConnEvent = "close"
	// EventReconnect carries (connID string, attempts int).
	EventReconnect ConnEvent = "reconnect"
	// EventMessage carries (Message).
	EventMessage ConnEvent = "message"
	// EventError carries (error).
	EventError ConnEvent = "error"
)

// ConnEvents lists every event a ConnStatus accepts.
var ConnEvents = []ConnEvent{EventConnect, EventClose, EventReconnect, EventMessage, EventError}

type ConnState int

const (
	StateIdle ConnState = iota
	StateConnected
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ConnStatus tracks the lifecycle of a connection and publishes it as ConnEvent
// notifications. Subscribing to EventConnect while connected, or to EventClose once closed,
// replays the current state to the new listener.
type ConnStatus struct {
	*Emitter[ConnEvent]

	mu       sync.RWMutex
	state    ConnState
	connID   string
	closeErr error
}

func NewConnStatus(opts ...Option) *ConnStatus {
	s := &ConnStatus{}
	s.Emitter = MustNew[ConnEvent](s, ConnEvents, opts...)
	return s
}

func (s *ConnStatus) InitialEvent(event ConnEvent) ([]any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch {
	case event == EventConnect && s.state == StateConnected:
		return []any{s.connID}, true
	case event == EventClose && s.state == StateClosed:
		return []any{s.connID, s.closeErr}, true
	default:
		return nil, false
	}
}

func (s *ConnStatus) State() ConnState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// ConnID returns the id of the current (or last) connection.
func (s *ConnStatus) ConnID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connID
}

// CloseErr returns the reason of the last close, nil while connected or after a local close.
func (s *ConnStatus) CloseErr() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closeErr
}

func (s *ConnStatus) connected(connID string) {
	s.set(StateConnected, connID, nil)
	s.Trigger(EventConnect, connID)
}

// closed reports connID as closed. A close of a connection that has already been replaced
// by a newer one is still published but leaves the state untouched.
func (s *ConnStatus) closed(connID string, reason error) {
	s.mu.Lock()
	if s.state != StateConnected || s.connID == connID {
		s.state = StateClosed
		s.connID = connID
		s.closeErr = reason
	}
	s.mu.Unlock()

	s.Trigger(EventClose, connID, reason)
}

func (s *ConnStatus) reconnected(connID string, attempts int) {
	s.set(StateConnected, connID, nil)
	s.Trigger(EventReconnect, connID, attempts)
}

func (s *ConnStatus) received(m Message) {
	s.Trigger(EventMessage, m)
}

func (s *ConnStatus) failed(err error) {
	s.Trigger(EventError, err)
}

func (s *ConnStatus) set(state ConnState, connID string, closeErr error) {
	s.mu.Lock()
	s.state = state
	s.connID = connID
	s.closeErr = closeErr
	s.mu.Unlock()
}
