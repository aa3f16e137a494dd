package server

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Dan0net/worldify-multiplayer/internal/protocol"
)

func testConfig() Config {
	return Config{
		DefaultRoomID: "LOBBY",
		RoomCapacity:  4,
		TickRate:      20,
		GridExtent:    32,
		WorldExtent:   100,
		MoveSpeed:     6,
		JoinTTL:       time.Second,
	}
}

func testRoom(t *testing.T) *Room {
	t.Helper()
	return NewRoom("TESTROOM", testConfig(), zap.NewNop().Sugar())
}

func addPlayer(r *Room, id uint16) *playerState {
	p := &playerState{id: id}
	r.players[id] = p
	return p
}

// Ticks are driven by calling step directly; Run is only a scheduler around it.

func TestStepKeepsOnlyLatestInputPerPlayer(t *testing.T) {
	r := testRoom(t)
	addPlayer(r, 1)

	r.Submit(1, protocol.Input{Buttons: protocol.ButtonForward, Yaw: 0.5, Seq: 1})
	r.Submit(1, protocol.Input{Buttons: 0, Yaw: 1.5, Seq: 2})
	r.step()

	p := r.players[1]
	assert.InDelta(t, 1.5, p.yaw, 1e-6)
	assert.Equal(t, uint16(2), p.lastSeq)
	assert.EqualValues(t, 1, r.metrics.InputsApplied)
	assert.EqualValues(t, 1, r.metrics.InputsDropped)
}

func TestStepMovesHeldButtonsEveryTick(t *testing.T) {
	r := testRoom(t)
	p := addPlayer(r, 1)

	// One sample, several ticks: the full-state sample keeps acting.
	r.Submit(1, protocol.Input{Buttons: protocol.ButtonForward, Yaw: 0, Seq: 1})
	for i := 0; i < 4; i++ {
		r.step()
	}

	dt := float32(r.cfg.TickInterval().Seconds())
	assert.InDelta(t, float64(4*r.cfg.MoveSpeed*dt), float64(p.z), 1e-4)
	assert.InDelta(t, 0, float64(p.x), 1e-4)
}

func TestStepMovementFollowsYaw(t *testing.T) {
	r := testRoom(t)
	p := addPlayer(r, 1)

	r.Submit(1, protocol.Input{Buttons: protocol.ButtonForward, Yaw: math.Pi / 2, Seq: 1})
	r.step()

	dt := float32(r.cfg.TickInterval().Seconds())
	assert.InDelta(t, float64(r.cfg.MoveSpeed*dt), float64(p.x), 1e-4)
	assert.InDelta(t, 0, float64(p.z), 1e-3)
}

func TestStepClampsToWorldExtent(t *testing.T) {
	r := testRoom(t)
	p := addPlayer(r, 1)
	p.z = r.cfg.WorldExtent

	r.Submit(1, protocol.Input{Buttons: protocol.ButtonForward, Yaw: 0, Seq: 1})
	r.step()

	assert.Equal(t, r.cfg.WorldExtent, p.z)
}

func TestStepSequencesBuildRequests(t *testing.T) {
	r := testRoom(t)
	addPlayer(r, 1)

	r.Submit(1, protocol.BuildRequest{PieceType: protocol.PieceWall, GridX: 2, GridZ: 3, Rotation: 1})
	r.step()

	assert.Equal(t, uint32(1), r.sequencer.LastSeq())
	assert.Equal(t, 1, r.sequencer.PieceCount())
	assert.EqualValues(t, 1, r.metrics.BuildsAccepted)
}

func TestStepRejectsInvalidBuildWithoutSequencing(t *testing.T) {
	r := testRoom(t)
	addPlayer(r, 1)

	r.Submit(1, protocol.BuildRequest{GridX: r.cfg.GridExtent, GridZ: 0})
	r.step()

	assert.Equal(t, uint32(0), r.sequencer.LastSeq())
	assert.EqualValues(t, 1, r.metrics.BuildsRejected)
}

func TestBuildSnapshotOrderedByPlayerID(t *testing.T) {
	r := testRoom(t)
	addPlayer(r, 7)
	addPlayer(r, 2)
	addPlayer(r, 5)
	r.tick = 42

	snap := r.buildSnapshot()
	require.Len(t, snap.Players, 3)
	assert.Equal(t, uint32(42), snap.Tick)
	assert.Equal(t, uint16(2), snap.Players[0].PlayerID)
	assert.Equal(t, uint16(5), snap.Players[1].PlayerID)
	assert.Equal(t, uint16(7), snap.Players[2].PlayerID)
}

func TestReserveEnforcesCapacity(t *testing.T) {
	r := testRoom(t)

	ids := make(map[uint16]bool)
	for i := 0; i < r.cfg.RoomCapacity; i++ {
		id, err := r.Reserve(time.Minute)
		require.NoError(t, err)
		assert.False(t, ids[id], "playerId %d issued twice", id)
		ids[id] = true
	}

	_, err := r.Reserve(time.Minute)
	assert.ErrorIs(t, err, ErrRoomFull)
}

func TestReserveExpiredSlotsFreeCapacity(t *testing.T) {
	r := testRoom(t)

	for i := 0; i < r.cfg.RoomCapacity; i++ {
		_, err := r.Reserve(time.Millisecond)
		require.NoError(t, err)
	}
	time.Sleep(5 * time.Millisecond)

	_, err := r.Reserve(time.Minute)
	assert.NoError(t, err)
}

func TestSubmitNeverBlocksWhenQueueFull(t *testing.T) {
	r := testRoom(t)
	addPlayer(r, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < cap(r.inbound)*2; i++ {
			r.Submit(1, protocol.Input{Seq: uint16(i)})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a full queue")
	}
	assert.Positive(t, r.metrics.InputsDropped)
}
