package sim

import (
	"math"

	"github.com/Dan0net/worldify-multiplayer/internal/protocol"
)

// Pose is a rendered position plus facing.
type Pose struct {
	Position Vec3
	Yaw      float32
}

// Interpolator smooths one remote player. The latest snapshot always wins:
// there is no buffering of past snapshots and no extrapolation, just an
// exponential pull of the rendered pose toward the newest authoritative one.
type Interpolator struct {
	smoothingWindowMs float32

	current     Pose
	target      Pose
	initialized bool
	closed      bool
}

// NewInterpolator creates an interpolator with the given smoothing window.
func NewInterpolator(smoothingWindowMs float32) *Interpolator {
	return &Interpolator{smoothingWindowMs: smoothingWindowMs}
}

// ApplySnapshot overwrites the target pose. The very first snapshot also
// seeds the rendered pose so a freshly seen player does not slide in from the
// origin.
func (it *Interpolator) ApplySnapshot(ps protocol.PlayerState) {
	it.target = Pose{
		Position: Vec3{X: ps.X, Y: ps.Y, Z: ps.Z},
		Yaw:      ps.Yaw,
	}
	if !it.initialized {
		it.current = it.target
		it.initialized = true
	}
}

// Update blends the rendered pose toward the target. Yaw travels the shortest
// angular path so a -π/π crossing never spins the long way around.
func (it *Interpolator) Update(dtMs float32) {
	if !it.initialized {
		return
	}
	frac := dtMs / it.smoothingWindowMs
	if frac > 1 {
		frac = 1
	}

	it.current.Position = it.current.Position.add(
		it.target.Position.sub(it.current.Position).scale(frac))

	delta := wrapAngle(it.target.Yaw - it.current.Yaw)
	it.current.Yaw = wrapAngle(it.current.Yaw + delta*frac)
}

// Pose returns the rendered pose.
func (it *Interpolator) Pose() Pose { return it.current }

// Close releases the instance; it must be called exactly once when the player
// is known to have left. Further updates are no-ops.
func (it *Interpolator) Close() {
	it.closed = true
	it.initialized = false
}

// wrapAngle normalizes an angle to (-π, π].
func wrapAngle(a float32) float32 {
	x := float64(a)
	for x > math.Pi {
		x -= 2 * math.Pi
	}
	for x <= -math.Pi {
		x += 2 * math.Pi
	}
	return float32(x)
}

// InterpolatorSet owns one Interpolator per visible remote player. Entries
// appear on first reference and are closed and removed the snapshot a player
// is absent, so nothing leaks when players churn.
type InterpolatorSet struct {
	smoothingWindowMs float32
	entries           map[uint16]*Interpolator
}

// NewInterpolatorSet creates an empty set.
func NewInterpolatorSet(smoothingWindowMs float32) *InterpolatorSet {
	return &InterpolatorSet{
		smoothingWindowMs: smoothingWindowMs,
		entries:           make(map[uint16]*Interpolator),
	}
}

// ApplySnapshot routes each remote player's state to its interpolator,
// creating and disposing entries as the player list changes. localID is
// skipped; the predictor owns that player.
func (s *InterpolatorSet) ApplySnapshot(snap protocol.Snapshot, localID uint16) {
	seen := make(map[uint16]bool, len(snap.Players))
	for _, ps := range snap.Players {
		if ps.PlayerID == localID {
			continue
		}
		seen[ps.PlayerID] = true
		it, ok := s.entries[ps.PlayerID]
		if !ok {
			it = NewInterpolator(s.smoothingWindowMs)
			s.entries[ps.PlayerID] = it
		}
		it.ApplySnapshot(ps)
	}

	for id, it := range s.entries {
		if !seen[id] {
			it.Close()
			delete(s.entries, id)
		}
	}
}

// Update advances every interpolator one render frame.
func (s *InterpolatorSet) Update(dtMs float32) {
	for _, it := range s.entries {
		it.Update(dtMs)
	}
}

// Poses returns the rendered pose of every remote player.
func (s *InterpolatorSet) Poses() map[uint16]Pose {
	out := make(map[uint16]Pose, len(s.entries))
	for id, it := range s.entries {
		out[id] = it.Pose()
	}
	return out
}

// Len reports how many remote players are tracked.
func (s *InterpolatorSet) Len() int { return len(s.entries) }
