// Package client runs the client half of the sync layer: it joins a room
// through the connection manager, samples controls at a fixed rate, feeds
// snapshots and builds into the sim package, and hands rendered frames to
// whichever front end is attached (the terminal observer or a headless bot).
package client

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Dan0net/worldify-multiplayer/internal/client/connection"
	"github.com/Dan0net/worldify-multiplayer/internal/client/sim"
	"github.com/Dan0net/worldify-multiplayer/internal/protocol"
)

// View is one rendered frame: everything a front end needs to draw, with no
// back-references into loop state.
type View struct {
	Status      connection.Status
	RoomID      string
	PlayerID    uint16
	Tick        uint32
	PlayerCount uint8
	Position    sim.Vec3
	Yaw         float32
	Remotes     map[uint16]sim.Pose
	Pieces      int
	Watermark   uint32
	RTT         time.Duration
	LastError   uint8
	Drift       float32
}

// Options tunes the loop's fixed rates. Zero values pick the defaults.
type Options struct {
	RenderRate        int     // frames per second, default 30
	InputRate         int     // input samples per second, default 20
	SmoothingWindowMs float32 // default 100
	MoveSpeed         float32 // world units per second, must match the server
}

func (o Options) withDefaults() Options {
	if o.RenderRate <= 0 {
		o.RenderRate = 30
	}
	if o.InputRate <= 0 {
		o.InputRate = 20
	}
	if o.SmoothingWindowMs <= 0 {
		o.SmoothingWindowMs = 100
	}
	if o.MoveSpeed <= 0 {
		o.MoveSpeed = 6
	}
	return o
}

// Loop is the client's cooperative scheduler. A single goroutine owns all sim
// state; connection events, input sampling, and render frames are multiplexed
// through one select, so the sim package needs no locks.
type Loop struct {
	mgr  *connection.Manager
	log  *zap.SugaredLogger
	opts Options

	controls *ControlState
	onFrame  func(View)

	sampler   sim.Sampler
	predictor *sim.Predictor
	interps   *sim.InterpolatorSet
	builds    *sim.BuildLog

	events chan connection.Event

	localID     uint16
	roomID      string
	tick        uint32
	playerCount uint8
	lastError   uint8
}

// NewLoop wires a loop to a connection manager. onFrame is called once per
// render frame from the loop goroutine; it must not block. Passing nil is
// fine for consumers that only submit input.
func NewLoop(mgr *connection.Manager, controls *ControlState, onFrame func(View), opts Options, log *zap.SugaredLogger) *Loop {
	opts = opts.withDefaults()
	l := &Loop{
		mgr:       mgr,
		log:       log,
		opts:      opts,
		controls:  controls,
		onFrame:   onFrame,
		predictor: sim.NewPredictor(opts.SmoothingWindowMs, opts.MoveSpeed),
		interps:   sim.NewInterpolatorSet(opts.SmoothingWindowMs),
		builds:    sim.NewBuildLog(),
		events:    make(chan connection.Event, 256),
	}
	mgr.OnEvent(l.enqueue)
	return l
}

// enqueue runs on the manager's read goroutine; it must never block it.
func (l *Loop) enqueue(event connection.Event) {
	select {
	case l.events <- event:
	default:
		l.log.Warnw("event queue full, dropping", "event", event)
	}
}

// PlaceBuild asks the server to sequence a placement. The piece appears only
// when the sequenced command comes back; there is no local echo.
func (l *Loop) PlaceBuild(piece protocol.PieceType, gridX, gridZ uint16, rotation uint8) {
	l.mgr.Send(protocol.BuildRequest{
		PieceType: piece,
		GridX:     gridX,
		GridZ:     gridZ,
		Rotation:  rotation,
	})
}

// Run joins the room and drives the loop until the connection drops or ctx is
// cancelled. It returns nil on a server-side close and ctx.Err() on cancel.
func (l *Loop) Run(ctx context.Context) error {
	if _, err := l.mgr.Join(ctx); err != nil {
		return err
	}

	renderTicker := time.NewTicker(time.Second / time.Duration(l.opts.RenderRate))
	defer renderTicker.Stop()
	inputTicker := time.NewTicker(time.Second / time.Duration(l.opts.InputRate))
	defer inputTicker.Stop()

	lastFrame := time.Now()
	for {
		select {
		case <-ctx.Done():
			l.mgr.Disconnect()
			return ctx.Err()

		case event := <-l.events:
			if l.handleEvent(event) {
				return nil
			}

		case <-inputTicker.C:
			if l.mgr.Status() != connection.StatusConnected {
				continue
			}
			c := l.controls.Snapshot()
			l.predictor.SetControls(c)
			l.mgr.Send(l.sampler.Sample(c))

		case now := <-renderTicker.C:
			dtMs := float32(now.Sub(lastFrame).Seconds() * 1000)
			lastFrame = now
			l.predictor.Update(dtMs)
			l.interps.Update(dtMs)
			if l.onFrame != nil {
				l.onFrame(l.view())
			}
		}
	}
}

// handleEvent applies one connection event to sim state. Returns true when
// the loop should exit.
func (l *Loop) handleEvent(event connection.Event) bool {
	switch e := event.(type) {
	case connection.WelcomeEvent:
		l.localID = e.PlayerID
		l.roomID = e.RoomID

	case connection.SnapshotEvent:
		l.tick = e.Snapshot.Tick
		for _, ps := range e.Snapshot.Players {
			if ps.PlayerID == l.localID {
				l.predictor.OnServerState(ps)
			}
		}
		l.interps.ApplySnapshot(e.Snapshot, l.localID)

	case connection.BuildEvent:
		placed := l.builds.Apply(e.BaseBuildSeq, e.Placements)
		if placed > 0 {
			l.log.Debugw("builds applied",
				"base", e.BaseBuildSeq, "placed", placed, "watermark", l.builds.Watermark())
		}

	case connection.PlayerCountEvent:
		l.playerCount = e.Count

	case connection.ServerErrorEvent:
		l.lastError = e.Code
		l.log.Warnw("server rejected a command", "code", e.Code)

	case connection.StatusEvent:
		if e.Status == connection.StatusDisconnected {
			return true
		}
	}
	return false
}

func (l *Loop) view() View {
	yaw, _ := l.predictor.Orientation()
	return View{
		Status:      l.mgr.Status(),
		RoomID:      l.roomID,
		PlayerID:    l.localID,
		Tick:        l.tick,
		PlayerCount: l.playerCount,
		Position:    l.predictor.Position(),
		Yaw:         yaw,
		Remotes:     l.interps.Poses(),
		Pieces:      l.builds.PieceCount(),
		Watermark:   l.builds.Watermark(),
		RTT:         l.mgr.RTT(),
		LastError:   l.lastError,
		Drift:       l.predictor.TargetDistance(),
	}
}
