package connection

import (
	"time"

	"github.com/Dan0net/worldify-multiplayer/internal/protocol"
)

// Event represents events from the connection manager. The sync layer never
// writes into UI state directly; consumers subscribe and pull what they need.
type Event interface {
	isEvent()
}

// StatusEvent is sent on every connection status transition.
type StatusEvent struct {
	Status Status
}

func (StatusEvent) isEvent() {}

// WelcomeEvent is sent when the server confirms the socket's identity.
type WelcomeEvent struct {
	RoomID   string
	PlayerID uint16
}

func (WelcomeEvent) isEvent() {}

// PlayerCountEvent reports the room population.
type PlayerCountEvent struct {
	Count uint8
}

func (PlayerCountEvent) isEvent() {}

// SnapshotEvent carries one authoritative tick of player state.
type SnapshotEvent struct {
	Snapshot protocol.Snapshot
}

func (SnapshotEvent) isEvent() {}

// BuildEvent carries a contiguous run of sequenced placements. A BuildSingle
// arrives as a run of one, so consumers handle exactly one shape.
type BuildEvent struct {
	BaseBuildSeq uint32
	Placements   []protocol.BuildPlacement
}

func (BuildEvent) isEvent() {}

// ServerErrorEvent surfaces an application error code. The connection stays
// open.
type ServerErrorEvent struct {
	Code uint8
}

func (ServerErrorEvent) isEvent() {}

// PongEvent reports a fresh round-trip measurement.
type PongEvent struct {
	RTT time.Duration
}

func (PongEvent) isEvent() {}
