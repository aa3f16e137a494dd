package client

import (
	"sync"

	"github.com/Dan0net/worldify-multiplayer/internal/client/sim"
)

// ControlState is the hand-off point between whatever produces input (a TUI,
// a bot script) and the fixed-rate sampler in Loop. Producers write whenever
// they like; the loop reads a consistent snapshot each input tick.
type ControlState struct {
	mu sync.Mutex
	c  sim.Controls
}

// Set replaces the whole control state.
func (cs *ControlState) Set(c sim.Controls) {
	cs.mu.Lock()
	cs.c = c
	cs.mu.Unlock()
}

// SetButtons replaces only the held-button bitmask.
func (cs *ControlState) SetButtons(buttons uint8) {
	cs.mu.Lock()
	cs.c.Buttons = buttons
	cs.mu.Unlock()
}

// ToggleButton flips one button bit and reports whether it is now held.
func (cs *ControlState) ToggleButton(bit uint8) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.c.Buttons ^= bit
	return cs.c.Buttons&bit != 0
}

// Turn adds a yaw delta in radians.
func (cs *ControlState) Turn(delta float32) {
	cs.mu.Lock()
	cs.c.Yaw += delta
	cs.mu.Unlock()
}

// Snapshot returns the current control state.
func (cs *ControlState) Snapshot() sim.Controls {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.c
}
