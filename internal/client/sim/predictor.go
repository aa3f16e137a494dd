package sim

import (
	"math"

	"github.com/Dan0net/worldify-multiplayer/internal/protocol"
)

// Vec3 is a position in world units.
type Vec3 struct {
	X, Y, Z float32
}

func (v Vec3) add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) scale(f float32) Vec3 {
	return Vec3{v.X * f, v.Y * f, v.Z * f}
}

func (v Vec3) length() float32 {
	return float32(math.Sqrt(float64(v.X*v.X + v.Y*v.Y + v.Z*v.Z)))
}

// Predictor keeps the locally controlled player responsive under latency: it
// dead-reckons from the current controls every frame and blends toward the
// latest authoritative position instead of snapping to it. There is no
// rollback-and-replay; if the server goes quiet the position simply stops
// being pulled and local dead-reckoning carries on.
type Predictor struct {
	smoothingWindowMs float32
	moveSpeed         float32

	position   Vec3
	target     Vec3
	velocity   Vec3
	yaw, pitch float32
	hasTarget  bool
}

// NewPredictor creates a predictor. smoothingWindowMs controls how hard the
// authoritative position pulls; moveSpeed must match the server's so
// dead-reckoning and authority agree while input is steady.
func NewPredictor(smoothingWindowMs, moveSpeed float32) *Predictor {
	return &Predictor{
		smoothingWindowMs: smoothingWindowMs,
		moveSpeed:         moveSpeed,
	}
}

// SetControls applies a fresh control sample: orientation is taken directly
// (it is never server-smoothed) and the buttons become the dead-reckoning
// velocity.
func (p *Predictor) SetControls(c Controls) {
	p.yaw = c.Yaw
	p.pitch = c.Pitch

	var fwd, strafe float32
	if c.Buttons&protocol.ButtonForward != 0 {
		fwd++
	}
	if c.Buttons&protocol.ButtonBack != 0 {
		fwd--
	}
	if c.Buttons&protocol.ButtonRight != 0 {
		strafe++
	}
	if c.Buttons&protocol.ButtonLeft != 0 {
		strafe--
	}

	speed := p.moveSpeed
	if c.Buttons&protocol.ButtonSprint != 0 {
		speed *= 1.6
	}
	if fwd != 0 && strafe != 0 {
		speed *= float32(math.Sqrt2 / 2)
	}

	sin := float32(math.Sin(float64(c.Yaw)))
	cos := float32(math.Cos(float64(c.Yaw)))
	p.velocity = Vec3{
		X: (fwd*sin + strafe*cos) * speed,
		Z: (fwd*cos - strafe*sin) * speed,
	}
}

// OnServerState records the latest authoritative position as the blend
// target. The rendered position is never snapped here.
func (p *Predictor) OnServerState(ps protocol.PlayerState) {
	p.target = Vec3{X: ps.X, Y: ps.Y, Z: ps.Z}
	p.hasTarget = true
}

// Update advances one render frame: dead-reckon by the current velocity, then
// pull a fraction of the remaining distance toward the authoritative target.
func (p *Predictor) Update(dtMs float32) {
	dt := dtMs / 1000
	p.position = p.position.add(p.velocity.scale(dt))

	if !p.hasTarget {
		return
	}
	frac := dtMs / p.smoothingWindowMs
	if frac > 1 {
		frac = 1
	}
	p.position = p.position.add(p.target.sub(p.position).scale(frac))
}

// Position returns the rendered (predicted) position.
func (p *Predictor) Position() Vec3 { return p.position }

// Orientation returns the locally sampled look angles.
func (p *Predictor) Orientation() (yaw, pitch float32) { return p.yaw, p.pitch }

// TargetDistance reports how far the rendered position is from the latest
// authoritative one; useful for debugging drift.
func (p *Predictor) TargetDistance() float32 {
	if !p.hasTarget {
		return 0
	}
	return p.target.sub(p.position).length()
}
