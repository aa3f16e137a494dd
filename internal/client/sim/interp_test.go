package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dan0net/worldify-multiplayer/internal/protocol"
)

func TestInterpolatorFirstSnapshotSeedsPose(t *testing.T) {
	it := NewInterpolator(100)
	it.ApplySnapshot(protocol.PlayerState{X: 3, Y: 1, Z: -2, Yaw: 0.5})

	pose := it.Pose()
	assert.Equal(t, Vec3{X: 3, Y: 1, Z: -2}, pose.Position, "new player must not slide in from the origin")
	assert.Equal(t, float32(0.5), pose.Yaw)
}

func TestInterpolatorConverges(t *testing.T) {
	it := NewInterpolator(100)
	it.ApplySnapshot(protocol.PlayerState{})
	it.ApplySnapshot(protocol.PlayerState{X: 10, Z: -4, Yaw: 1})

	prev := float32(math.MaxFloat32)
	for i := 0; i < 60; i++ {
		it.Update(16)
		d := Vec3{X: 10, Z: -4}.sub(it.Pose().Position).length()
		require.LessOrEqual(t, d, prev)
		prev = d
	}
	assert.Less(t, prev, float32(0.05))
	assert.InDelta(t, 1.0, float64(it.Pose().Yaw), 0.01)
}

func TestInterpolatorYawTakesShortestArc(t *testing.T) {
	it := NewInterpolator(100)
	it.ApplySnapshot(protocol.PlayerState{Yaw: 3.0})
	it.ApplySnapshot(protocol.PlayerState{Yaw: -3.0})

	// Crossing π is ~0.28 rad the short way; the long way passes through 0.
	for i := 0; i < 30; i++ {
		it.Update(16)
		yaw := math.Abs(float64(it.Pose().Yaw))
		require.Greater(t, yaw, 2.9, "yaw must not travel through zero")
	}
	assert.InDelta(t, -3.0, float64(wrapAngle(it.Pose().Yaw)), 0.05)
}

func TestInterpolatorSetLifecycle(t *testing.T) {
	set := NewInterpolatorSet(100)

	set.ApplySnapshot(protocol.Snapshot{Tick: 1, Players: []protocol.PlayerState{
		{PlayerID: 1, X: 1},
		{PlayerID: 2, X: 2},
		{PlayerID: 3, X: 3},
	}}, 1)

	assert.Equal(t, 2, set.Len(), "the local player never gets an interpolator")
	_, hasLocal := set.Poses()[1]
	assert.False(t, hasLocal)

	// Player 3 left; its entry must be disposed.
	set.ApplySnapshot(protocol.Snapshot{Tick: 2, Players: []protocol.PlayerState{
		{PlayerID: 1, X: 1},
		{PlayerID: 2, X: 2.5},
	}}, 1)

	assert.Equal(t, 1, set.Len())
	_, gone := set.Poses()[3]
	assert.False(t, gone)

	// Rejoining starts from a fresh seed, not the stale pose.
	set.ApplySnapshot(protocol.Snapshot{Tick: 3, Players: []protocol.PlayerState{
		{PlayerID: 2, X: 2.5},
		{PlayerID: 3, X: 30},
	}}, 1)

	pose := set.Poses()[3]
	assert.Equal(t, float32(30), pose.Position.X)
}

func TestSamplerSequencesAndWraps(t *testing.T) {
	var s Sampler

	in := s.Sample(Controls{Buttons: protocol.ButtonJump, Yaw: 0.3})
	assert.Equal(t, uint16(1), in.Seq)
	assert.Equal(t, protocol.ButtonJump, in.Buttons)

	s.seq = math.MaxUint16
	in = s.Sample(Controls{})
	assert.Equal(t, uint16(0), in.Seq, "sequence counter wraps at 16 bits")
}
