package protocol // binary wire protocol shared by client and server

// Version is the protocol revision spoken by this build. The join bootstrap
// and the Hello message both carry it; a mismatch rejects the join.
const Version uint8 = 1

// Tag is the leading byte that identifies a wire message kind.
type Tag uint8

const (
	// Client -> Server
	TagHello        Tag = 1
	TagInput        Tag = 5
	TagPing         Tag = 10
	TagBuildRequest Tag = 11

	// Server -> Client
	TagWelcome     Tag = 2
	TagPlayerCount Tag = 3
	TagSnapshot    Tag = 4
	TagBuildSingle Tag = 6
	TagBuildBatch  Tag = 7
	TagServerError Tag = 8
	TagPong        Tag = 9
)

// Message is the closed set of wire messages. Decode produces exactly one of
// the variants below; adding a kind means adding a variant here plus its
// encode/decode arms, so a missed switch case is caught at review time rather
// than as a silent default at runtime.
type Message interface {
	tag() Tag
}

// RoomIDLen is the fixed on-wire width of a room identifier (ASCII,
// zero-padded on the right).
const RoomIDLen = 8

// PieceType enumerates the placeable world pieces.
type PieceType uint8

const (
	PieceFloor PieceType = iota
	PieceWall
	PieceSlope
	PiecePillar
	PieceRoof
)

// Button bits carried in the Input and PlayerState bitmasks.
const (
	ButtonForward uint8 = 1 << iota
	ButtonBack
	ButtonLeft
	ButtonRight
	ButtonJump
	ButtonSprint
)

// Hello binds a freshly opened socket to the identity issued by the join
// bootstrap.
type Hello struct {
	ProtocolVersion uint8
	PlayerID        uint16
}

// Welcome confirms the binding and names the room.
type Welcome struct {
	PlayerID uint16
	RoomID   string // at most RoomIDLen ASCII bytes
}

// PlayerCount announces the current population of the room.
type PlayerCount struct {
	Count uint8
}

// PlayerState is one player's pose inside a Snapshot. Positions travel as
// fixed-point i16 (scale 100), angles as quantized i16 (±32767 ↔ ±π).
type PlayerState struct {
	PlayerID   uint16
	X, Y, Z    float32
	Yaw, Pitch float32 // radians
	Buttons    uint8
	Flags      uint8
}

// Snapshot is the authoritative per-tick state of every player in the room.
type Snapshot struct {
	Tick    uint32
	Players []PlayerState
}

// Input is one full-state control sample: not a delta, so the server may
// safely keep only the latest per player per tick.
type Input struct {
	Buttons    uint8
	Yaw, Pitch float32 // radians
	Seq        uint16
}

// BuildPlacement is the common body of build commands: who placed what where.
type BuildPlacement struct {
	PlayerID  uint16
	PieceType PieceType
	GridX     uint16
	GridZ     uint16
	Rotation  uint8
}

// BuildSingle delivers one sequenced placement.
type BuildSingle struct {
	BuildSeq uint32
	BuildPlacement
}

// BuildBatch delivers a contiguous run of placements; the i-th placement has
// buildSeq BaseBuildSeq+i.
type BuildBatch struct {
	BaseBuildSeq uint32
	Placements   []BuildPlacement
}

// BuildRequest asks the server to sequence a placement for the sending player.
type BuildRequest struct {
	PieceType PieceType
	GridX     uint16
	GridZ     uint16
	Rotation  uint8
}

// ServerError reports an application-level failure code. It never closes the
// connection by itself.
type ServerError struct {
	Code uint8
}

// Application error codes carried by ServerError.
const (
	ErrCodeCellOccupied uint8 = iota + 1
	ErrCodeOutOfGrid
	ErrCodeUnknownPlayer
)

// Ping carries a client timestamp for round-trip measurement.
type Ping struct {
	OriginTimestamp uint32
}

// Pong echoes the Ping timestamp back unchanged.
type Pong struct {
	OriginTimestamp uint32
}

func (Hello) tag() Tag        { return TagHello }
func (Welcome) tag() Tag      { return TagWelcome }
func (PlayerCount) tag() Tag  { return TagPlayerCount }
func (Snapshot) tag() Tag     { return TagSnapshot }
func (Input) tag() Tag        { return TagInput }
func (BuildSingle) tag() Tag  { return TagBuildSingle }
func (BuildBatch) tag() Tag   { return TagBuildBatch }
func (BuildRequest) tag() Tag { return TagBuildRequest }
func (ServerError) tag() Tag  { return TagServerError }
func (Ping) tag() Tag         { return TagPing }
func (Pong) tag() Tag         { return TagPong }
