package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedMessage means the buffer ended before the fields its tag
	// byte promised.
	ErrMalformedMessage = errors.New("protocol: malformed message")
	// ErrUnknownMessageKind means the leading tag byte is not a recognized
	// kind. Callers log and drop; it is never fatal to the connection.
	ErrUnknownMessageKind = errors.New("protocol: unknown message kind")
)

// writer is a little-endian append buffer. Capacity doubles on overflow so a
// long run of appends stays amortized O(1).
type writer struct {
	buf []byte
}

func newWriter(sizeHint int) *writer {
	return &writer{buf: make([]byte, 0, sizeHint)}
}

func (w *writer) grow(n int) {
	if len(w.buf)+n <= cap(w.buf) {
		return
	}
	c := cap(w.buf) * 2
	if c < len(w.buf)+n {
		c = len(w.buf) + n
	}
	next := make([]byte, len(w.buf), c)
	copy(next, w.buf)
	w.buf = next
}

func (w *writer) u8(v uint8) {
	w.grow(1)
	w.buf = append(w.buf, v)
}

func (w *writer) u16(v uint16) {
	w.grow(2)
	w.buf = append(w.buf, byte(v), byte(v>>8))
}

func (w *writer) u32(v uint32) {
	w.grow(4)
	w.buf = append(w.buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func (w *writer) i16(v int16) {
	w.u16(uint16(v))
}

// reader walks a received buffer with a cursor; it never copies the backing
// slice. All getters report a short buffer through ok.
type reader struct {
	buf []byte
	off int
}

func (r *reader) u8() (uint8, bool) {
	if r.off+1 > len(r.buf) {
		return 0, false
	}
	v := r.buf[r.off]
	r.off++
	return v, true
}

func (r *reader) u16() (uint16, bool) {
	if r.off+2 > len(r.buf) {
		return 0, false
	}
	v := uint16(r.buf[r.off]) | uint16(r.buf[r.off+1])<<8
	r.off += 2
	return v, true
}

func (r *reader) u32() (uint32, bool) {
	if r.off+4 > len(r.buf) {
		return 0, false
	}
	v := uint32(r.buf[r.off]) | uint32(r.buf[r.off+1])<<8 |
		uint32(r.buf[r.off+2])<<16 | uint32(r.buf[r.off+3])<<24
	r.off += 4
	return v, true
}

func (r *reader) i16() (int16, bool) {
	v, ok := r.u16()
	return int16(v), ok
}

func (r *reader) bytes(n int) ([]byte, bool) {
	if r.off+n > len(r.buf) {
		return nil, false
	}
	v := r.buf[r.off : r.off+n]
	r.off += n
	return v, true
}

// Encode serializes a message to its wire form: one tag byte followed by
// little-endian fields. It is total for well-formed in-memory values.
func Encode(m Message) []byte {
	w := newWriter(encodedSizeHint(m))
	w.u8(uint8(m.tag()))

	switch v := m.(type) {
	case Hello:
		w.u8(v.ProtocolVersion)
		w.u16(v.PlayerID)

	case Welcome:
		w.u16(v.PlayerID)
		var room [RoomIDLen]byte
		copy(room[:], v.RoomID)
		w.grow(RoomIDLen)
		w.buf = append(w.buf, room[:]...)

	case PlayerCount:
		w.u8(v.Count)

	case Snapshot:
		w.u32(v.Tick)
		w.u8(uint8(len(v.Players)))
		for _, p := range v.Players {
			w.u16(p.PlayerID)
			w.i16(quantizeCoord(p.X))
			w.i16(quantizeCoord(p.Y))
			w.i16(quantizeCoord(p.Z))
			w.i16(QuantizeAngle(p.Yaw))
			w.i16(QuantizeAngle(p.Pitch))
			w.u8(p.Buttons)
			w.u8(p.Flags)
		}

	case Input:
		w.u8(v.Buttons)
		w.i16(QuantizeAngle(v.Yaw))
		w.i16(QuantizeAngle(v.Pitch))
		w.u16(v.Seq)

	case BuildSingle:
		w.u32(v.BuildSeq)
		writePlacement(w, v.BuildPlacement)

	case BuildBatch:
		w.u32(v.BaseBuildSeq)
		w.u16(uint16(len(v.Placements)))
		for _, p := range v.Placements {
			writePlacement(w, p)
		}

	case BuildRequest:
		w.u8(uint8(v.PieceType))
		w.u16(v.GridX)
		w.u16(v.GridZ)
		w.u8(v.Rotation)

	case ServerError:
		w.u8(v.Code)

	case Ping:
		w.u32(v.OriginTimestamp)

	case Pong:
		w.u32(v.OriginTimestamp)
	}

	return w.buf
}

// Decode parses a single wire message. The returned error is either
// ErrUnknownMessageKind (bad tag) or wraps ErrMalformedMessage (short buffer).
func Decode(data []byte) (Message, error) {
	r := &reader{buf: data}
	t, ok := r.u8()
	if !ok {
		return nil, fmt.Errorf("%w: empty buffer", ErrMalformedMessage)
	}

	switch Tag(t) {
	case TagHello:
		var m Hello
		var ok1, ok2 bool
		m.ProtocolVersion, ok1 = r.u8()
		m.PlayerID, ok2 = r.u16()
		if !ok1 || !ok2 {
			return nil, short(TagHello)
		}
		return m, nil

	case TagWelcome:
		var m Welcome
		id, ok1 := r.u16()
		room, ok2 := r.bytes(RoomIDLen)
		if !ok1 || !ok2 {
			return nil, short(TagWelcome)
		}
		m.PlayerID = id
		m.RoomID = trimRoomID(room)
		return m, nil

	case TagPlayerCount:
		count, ok := r.u8()
		if !ok {
			return nil, short(TagPlayerCount)
		}
		return PlayerCount{Count: count}, nil

	case TagSnapshot:
		tick, ok1 := r.u32()
		count, ok2 := r.u8()
		if !ok1 || !ok2 {
			return nil, short(TagSnapshot)
		}
		m := Snapshot{Tick: tick, Players: make([]PlayerState, 0, count)}
		for i := 0; i < int(count); i++ {
			var p PlayerState
			id, okID := r.u16()
			x, okX := r.i16()
			y, okY := r.i16()
			z, okZ := r.i16()
			yaw, okYaw := r.i16()
			pitch, okPitch := r.i16()
			buttons, okB := r.u8()
			flags, okF := r.u8()
			if !(okID && okX && okY && okZ && okYaw && okPitch && okB && okF) {
				return nil, short(TagSnapshot)
			}
			p.PlayerID = id
			p.X = dequantizeCoord(x)
			p.Y = dequantizeCoord(y)
			p.Z = dequantizeCoord(z)
			p.Yaw = DequantizeAngle(yaw)
			p.Pitch = DequantizeAngle(pitch)
			p.Buttons = buttons
			p.Flags = flags
			m.Players = append(m.Players, p)
		}
		return m, nil

	case TagInput:
		buttons, ok1 := r.u8()
		yaw, ok2 := r.i16()
		pitch, ok3 := r.i16()
		seq, ok4 := r.u16()
		if !(ok1 && ok2 && ok3 && ok4) {
			return nil, short(TagInput)
		}
		return Input{
			Buttons: buttons,
			Yaw:     DequantizeAngle(yaw),
			Pitch:   DequantizeAngle(pitch),
			Seq:     seq,
		}, nil

	case TagBuildSingle:
		seq, ok := r.u32()
		if !ok {
			return nil, short(TagBuildSingle)
		}
		p, ok := readPlacement(r)
		if !ok {
			return nil, short(TagBuildSingle)
		}
		return BuildSingle{BuildSeq: seq, BuildPlacement: p}, nil

	case TagBuildBatch:
		base, ok1 := r.u32()
		count, ok2 := r.u16()
		if !ok1 || !ok2 {
			return nil, short(TagBuildBatch)
		}
		m := BuildBatch{BaseBuildSeq: base, Placements: make([]BuildPlacement, 0, count)}
		for i := 0; i < int(count); i++ {
			p, ok := readPlacement(r)
			if !ok {
				return nil, short(TagBuildBatch)
			}
			m.Placements = append(m.Placements, p)
		}
		return m, nil

	case TagBuildRequest:
		piece, ok1 := r.u8()
		gx, ok2 := r.u16()
		gz, ok3 := r.u16()
		rot, ok4 := r.u8()
		if !(ok1 && ok2 && ok3 && ok4) {
			return nil, short(TagBuildRequest)
		}
		return BuildRequest{PieceType: PieceType(piece), GridX: gx, GridZ: gz, Rotation: rot}, nil

	case TagServerError:
		code, ok := r.u8()
		if !ok {
			return nil, short(TagServerError)
		}
		return ServerError{Code: code}, nil

	case TagPing:
		ts, ok := r.u32()
		if !ok {
			return nil, short(TagPing)
		}
		return Ping{OriginTimestamp: ts}, nil

	case TagPong:
		ts, ok := r.u32()
		if !ok {
			return nil, short(TagPong)
		}
		return Pong{OriginTimestamp: ts}, nil

	default:
		return nil, fmt.Errorf("%w: tag %d", ErrUnknownMessageKind, t)
	}
}

func writePlacement(w *writer, p BuildPlacement) {
	w.u16(p.PlayerID)
	w.u8(uint8(p.PieceType))
	w.u16(p.GridX)
	w.u16(p.GridZ)
	w.u8(p.Rotation)
}

func readPlacement(r *reader) (BuildPlacement, bool) {
	var p BuildPlacement
	id, ok1 := r.u16()
	piece, ok2 := r.u8()
	gx, ok3 := r.u16()
	gz, ok4 := r.u16()
	rot, ok5 := r.u8()
	if !(ok1 && ok2 && ok3 && ok4 && ok5) {
		return p, false
	}
	p.PlayerID = id
	p.PieceType = PieceType(piece)
	p.GridX = gx
	p.GridZ = gz
	p.Rotation = rot
	return p, true
}

func short(t Tag) error {
	return fmt.Errorf("%w: short buffer for tag %d", ErrMalformedMessage, t)
}

func trimRoomID(b []byte) string {
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	return string(b[:end])
}

const placementSize = 8

func encodedSizeHint(m Message) int {
	switch v := m.(type) {
	case Snapshot:
		return 6 + len(v.Players)*14
	case BuildBatch:
		return 7 + len(v.Placements)*placementSize
	default:
		return 16
	}
}
