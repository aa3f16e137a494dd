package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// pendingSession is an identity issued by /join that has not yet shown up on
// the websocket.
type pendingSession struct {
	roomID   string
	playerID uint16
	expires  time.Time
}

// SessionRegistry maps join tokens to the identities they grant. A token is
// consumed by the first socket that presents it; stale tokens age out.
type SessionRegistry struct {
	sessions map[string]pendingSession
	mu       sync.Mutex
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]pendingSession)}
}

// Issue mints a capability token for the given identity.
func (sr *SessionRegistry) Issue(roomID string, playerID uint16, ttl time.Duration) string {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	token := uuid.NewString()
	sr.sessions[token] = pendingSession{
		roomID:   roomID,
		playerID: playerID,
		expires:  time.Now().Add(ttl),
	}
	return token
}

// Consume redeems a token exactly once. Expired or unknown tokens fail.
func (sr *SessionRegistry) Consume(token string) (roomID string, playerID uint16, ok bool) {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	now := time.Now()
	for t, s := range sr.sessions {
		if now.After(s.expires) {
			delete(sr.sessions, t)
		}
	}

	s, found := sr.sessions[token]
	if !found {
		return "", 0, false
	}
	delete(sr.sessions, token)
	return s.roomID, s.playerID, true
}
