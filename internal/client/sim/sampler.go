// Package sim is the client side of the state-synchronization layer: local
// prediction for the controlled player, interpolation for everyone else, and
// the replay-safe build log. It has no network access of its own; the loop
// wires it to a connection manager.
package sim

import (
	"github.com/Dan0net/worldify-multiplayer/internal/protocol"
)

// Controls is one sample of the player's control state: held movement buttons
// and where they are looking.
type Controls struct {
	Buttons    uint8
	Yaw, Pitch float32
}

// Sampler turns control state into sequenced input commands. It is a pure
// function of the control snapshot plus its internal counter; the fixed-rate
// driver lives in Loop.
type Sampler struct {
	seq uint16
}

// Sample produces the next input command. The sequence counter wraps at 16
// bits, which the server tolerates because inputs are full-state samples.
func (s *Sampler) Sample(c Controls) protocol.Input {
	s.seq++
	return protocol.Input{
		Buttons: c.Buttons,
		Yaw:     c.Yaw,
		Pitch:   c.Pitch,
		Seq:     s.seq,
	}
}

// Seq reports the last issued sequence number.
func (s *Sampler) Seq() uint16 {
	return s.seq
}
