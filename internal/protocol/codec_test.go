package protocol

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeHello(t *testing.T) {
	m := Hello{ProtocolVersion: 1, PlayerID: 42}
	got, err := Decode(Encode(m))
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestEncodeDecodeWelcome(t *testing.T) {
	m := Welcome{PlayerID: 42, RoomID: "ABCDEFGH"}
	got, err := Decode(Encode(m))
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestWelcomeRoomIDZeroPadding(t *testing.T) {
	m := Welcome{PlayerID: 7, RoomID: "AB"}
	data := Encode(m)
	require.Len(t, data, 1+2+RoomIDLen)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "AB", got.(Welcome).RoomID)
}

func TestEncodeDecodePlayerCount(t *testing.T) {
	for _, count := range []uint8{0, 1, 255} {
		got, err := Decode(Encode(PlayerCount{Count: count}))
		require.NoError(t, err)
		assert.Equal(t, PlayerCount{Count: count}, got)
	}
}

func TestEncodeDecodeSnapshot(t *testing.T) {
	m := Snapshot{
		Tick: 123456,
		Players: []PlayerState{
			{PlayerID: 1, X: 10.25, Y: 0.5, Z: -3.75, Yaw: 1.5, Pitch: -0.25, Buttons: ButtonForward | ButtonJump, Flags: 0},
			{PlayerID: 2, X: -100, Y: 2, Z: 50, Yaw: -math.Pi, Pitch: math.Pi, Buttons: 0xFF, Flags: 3},
		},
	}
	got, err := Decode(Encode(m))
	require.NoError(t, err)

	s := got.(Snapshot)
	assert.Equal(t, m.Tick, s.Tick)
	require.Len(t, s.Players, len(m.Players))
	for i, want := range m.Players {
		have := s.Players[i]
		assert.Equal(t, want.PlayerID, have.PlayerID)
		assert.InDelta(t, want.X, have.X, 0.01)
		assert.InDelta(t, want.Y, have.Y, 0.01)
		assert.InDelta(t, want.Z, have.Z, 0.01)
		assert.InDelta(t, want.Yaw, have.Yaw, 2*math.Pi/65535)
		assert.InDelta(t, want.Pitch, have.Pitch, 2*math.Pi/65535)
		assert.Equal(t, want.Buttons, have.Buttons)
		assert.Equal(t, want.Flags, have.Flags)
	}
}

func TestEncodeDecodeEmptySnapshot(t *testing.T) {
	got, err := Decode(Encode(Snapshot{Tick: 9}))
	require.NoError(t, err)
	s := got.(Snapshot)
	assert.Equal(t, uint32(9), s.Tick)
	assert.Empty(t, s.Players)
}

func TestEncodeDecodeInput(t *testing.T) {
	m := Input{Buttons: ButtonForward | ButtonSprint, Yaw: 0.75, Pitch: -1.2, Seq: 65535}
	got, err := Decode(Encode(m))
	require.NoError(t, err)

	in := got.(Input)
	assert.Equal(t, m.Buttons, in.Buttons)
	assert.Equal(t, m.Seq, in.Seq)
	assert.InDelta(t, m.Yaw, in.Yaw, 2*math.Pi/65535)
	assert.InDelta(t, m.Pitch, in.Pitch, 2*math.Pi/65535)
}

func TestEncodeDecodeBuildSingle(t *testing.T) {
	m := BuildSingle{
		BuildSeq: 1 << 30,
		BuildPlacement: BuildPlacement{
			PlayerID: 42, PieceType: PieceWall, GridX: 12, GridZ: 900, Rotation: 3,
		},
	}
	got, err := Decode(Encode(m))
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestEncodeDecodeBuildBatch(t *testing.T) {
	m := BuildBatch{
		BaseBuildSeq: 100,
		Placements: []BuildPlacement{
			{PlayerID: 1, PieceType: PieceFloor, GridX: 0, GridZ: 0, Rotation: 0},
			{PlayerID: 2, PieceType: PieceSlope, GridX: 65535, GridZ: 65535, Rotation: 255},
			{PlayerID: 1, PieceType: PieceRoof, GridX: 7, GridZ: 9, Rotation: 1},
		},
	}
	got, err := Decode(Encode(m))
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestEncodeDecodeBuildRequest(t *testing.T) {
	m := BuildRequest{PieceType: PiecePillar, GridX: 3, GridZ: 4, Rotation: 2}
	got, err := Decode(Encode(m))
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestEncodeDecodeServerError(t *testing.T) {
	got, err := Decode(Encode(ServerError{Code: ErrCodeCellOccupied}))
	require.NoError(t, err)
	assert.Equal(t, ServerError{Code: ErrCodeCellOccupied}, got)
}

func TestEncodeDecodePingPong(t *testing.T) {
	gotPing, err := Decode(Encode(Ping{OriginTimestamp: 0xDEADBEEF}))
	require.NoError(t, err)
	assert.Equal(t, Ping{OriginTimestamp: 0xDEADBEEF}, gotPing)

	gotPong, err := Decode(Encode(Pong{OriginTimestamp: 0xCAFEBABE}))
	require.NoError(t, err)
	assert.Equal(t, Pong{OriginTimestamp: 0xCAFEBABE}, gotPong)
}

func TestDecodeUnknownTag(t *testing.T) {
	_, err := Decode([]byte{0xF0, 0, 0})
	assert.ErrorIs(t, err, ErrUnknownMessageKind)
}

func TestDecodeEmptyBuffer(t *testing.T) {
	_, err := Decode(nil)
	assert.ErrorIs(t, err, ErrMalformedMessage)
}

func TestDecodeShortBuffer(t *testing.T) {
	// Every kind, truncated one byte before its declared end.
	msgs := []Message{
		Hello{ProtocolVersion: 1, PlayerID: 2},
		Welcome{PlayerID: 1, RoomID: "ROOM"},
		PlayerCount{Count: 4},
		Snapshot{Tick: 1, Players: []PlayerState{{PlayerID: 1}}},
		Input{Buttons: 1, Seq: 2},
		BuildSingle{BuildSeq: 1},
		BuildBatch{BaseBuildSeq: 1, Placements: []BuildPlacement{{PlayerID: 1}}},
		BuildRequest{PieceType: PieceWall},
		ServerError{Code: 1},
		Ping{OriginTimestamp: 1},
		Pong{OriginTimestamp: 1},
	}
	for _, m := range msgs {
		data := Encode(m)
		_, err := Decode(data[:len(data)-1])
		assert.ErrorIs(t, err, ErrMalformedMessage, "tag %d", data[0])
	}
}

func TestSnapshotClaimsMorePlayersThanBuffer(t *testing.T) {
	data := Encode(Snapshot{Tick: 5})
	data[5] = 3 // playerCount byte now lies
	_, err := Decode(data)
	assert.ErrorIs(t, err, ErrMalformedMessage)
}

func TestEncodeIsLittleEndian(t *testing.T) {
	data := Encode(Pong{OriginTimestamp: 0x04030201})
	assert.Equal(t, []byte{byte(TagPong), 0x01, 0x02, 0x03, 0x04}, data)
}
