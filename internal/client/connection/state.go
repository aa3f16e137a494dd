package connection

import (
	"sync"
	"time"
)

// Status is the externally observable connection state.
type Status int

const (
	StatusIdle Status = iota
	StatusConnecting
	StatusConnected
	StatusDisconnected // terminal for this Manager; reconnect with a new one
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Session is the identity issued by the join bootstrap.
type Session struct {
	RoomID   string
	PlayerID uint16
	Token    string
}

// State holds the observable side of a connection: status, session identity,
// and the latest round-trip estimate. It is an explicit object handed to
// whoever needs it, never a package-level singleton.
type State struct {
	mu      sync.RWMutex
	status  Status
	session Session
	rtt     time.Duration
}

// NewState starts in StatusIdle with an empty session.
func NewState() *State {
	return &State{}
}

// Status returns the current connection status.
func (s *State) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Session returns the issued identity; zero-valued until the join succeeds.
func (s *State) Session() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// RTT returns the latest round-trip estimate, zero before the first pong.
func (s *State) RTT() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rtt
}

func (s *State) setStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

func (s *State) setSession(session Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = session
}

func (s *State) setRTT(rtt time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rtt = rtt
}
