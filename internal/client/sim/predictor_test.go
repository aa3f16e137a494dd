package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Dan0net/worldify-multiplayer/internal/protocol"
)

func TestPredictorDeadReckonsFromControls(t *testing.T) {
	p := NewPredictor(100, 6)
	p.SetControls(Controls{Buttons: protocol.ButtonForward, Yaw: 0})

	// 1 second of forward movement at yaw 0 is +Z at moveSpeed.
	for i := 0; i < 100; i++ {
		p.Update(10)
	}

	pos := p.Position()
	assert.InDelta(t, 0.0, pos.X, 1e-3)
	assert.InDelta(t, 6.0, pos.Z, 1e-2)
}

func TestPredictorSprintAndDiagonal(t *testing.T) {
	p := NewPredictor(100, 6)
	p.SetControls(Controls{Buttons: protocol.ButtonForward | protocol.ButtonRight | protocol.ButtonSprint, Yaw: 0})

	p.Update(1000)

	// Sprint scales to 9.6, diagonal normalization splits it across both axes.
	want := 6.0 * 1.6 * math.Sqrt2 / 2
	pos := p.Position()
	assert.InDelta(t, want, float64(pos.X), 1e-2)
	assert.InDelta(t, want, float64(pos.Z), 1e-2)
}

func TestPredictorNeverSnapsToServerState(t *testing.T) {
	p := NewPredictor(100, 6)
	p.OnServerState(protocol.PlayerState{X: 10, Z: 10})

	assert.Equal(t, Vec3{}, p.Position(), "correction must wait for Update")

	p.Update(10)
	pos := p.Position()
	assert.Less(t, pos.X, float32(10), "one frame must not cover the whole correction")
	assert.Greater(t, pos.X, float32(0))
}

func TestPredictorConvergesOnTarget(t *testing.T) {
	p := NewPredictor(100, 6)
	p.OnServerState(protocol.PlayerState{X: 5, Y: 1, Z: -3})

	prev := p.TargetDistance()
	for i := 0; i < 50; i++ {
		p.Update(16)
		d := p.TargetDistance()
		assert.LessOrEqual(t, d, prev, "distance to authority must never grow while idle")
		prev = d
	}
	assert.Less(t, prev, float32(0.01))
}

func TestPredictorOrientationIsLocal(t *testing.T) {
	p := NewPredictor(100, 6)
	p.SetControls(Controls{Yaw: 1.5, Pitch: -0.25})
	p.OnServerState(protocol.PlayerState{Yaw: 3.0, Pitch: 0.5})
	p.Update(16)

	yaw, pitch := p.Orientation()
	assert.Equal(t, float32(1.5), yaw)
	assert.Equal(t, float32(-0.25), pitch)
}
