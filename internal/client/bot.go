package client

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/Dan0net/worldify-multiplayer/internal/client/sim"
	"github.com/Dan0net/worldify-multiplayer/internal/protocol"
)

// Bot drives a ControlState with nobody at the keyboard: it wanders the
// world, sprints and jumps now and then, and drops the odd piece. Useful for
// soaking a server or populating a room while testing the observer.
type Bot struct {
	controls   *ControlState
	loop       *Loop
	gridExtent uint16
	rng        *rand.Rand
}

// NewBot creates a bot. gridExtent bounds the cells it will build on; seed
// makes a run reproducible.
func NewBot(controls *ControlState, loop *Loop, gridExtent uint16, seed int64) *Bot {
	return &Bot{
		controls:   controls,
		loop:       loop,
		gridExtent: gridExtent,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// Run rewrites the controls on a slow cadence until ctx is cancelled. The
// loop's sampler picks the changes up on its own schedule.
func (b *Bot) Run(ctx context.Context) {
	ticker := time.NewTicker(700 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.step()
		}
	}
}

func (b *Bot) step() {
	buttons := protocol.ButtonForward
	if b.rng.Intn(4) == 0 {
		buttons |= protocol.ButtonSprint
	}
	if b.rng.Intn(8) == 0 {
		buttons |= protocol.ButtonJump
	}
	if b.rng.Intn(10) == 0 {
		buttons = 0 // stand still for a beat
	}

	b.controls.Set(sim.Controls{
		Buttons: buttons,
		Yaw:     float32(b.rng.Float64()*2*math.Pi - math.Pi),
	})

	if b.rng.Intn(5) == 0 {
		b.loop.PlaceBuild(
			protocol.PieceType(b.rng.Intn(5)),
			uint16(b.rng.Intn(int(b.gridExtent))),
			uint16(b.rng.Intn(int(b.gridExtent))),
			uint8(b.rng.Intn(4)),
		)
	}
}
