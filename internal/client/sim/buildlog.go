package sim

import (
	"github.com/Dan0net/worldify-multiplayer/internal/protocol"
)

// PlacedPiece is one applied build command, kept for the render sink.
type PlacedPiece struct {
	BuildSeq uint32
	protocol.BuildPlacement
}

type cellKey struct {
	x, z uint16
}

// BuildLog makes build delivery replay-safe on the client: every sequenced
// placement is applied exactly once no matter how often, in what batching, or
// in what order it is redelivered. The watermark is the highest applied
// buildSeq; a contiguous floor below it lets the applied-set stay small.
type BuildLog struct {
	floor   uint32 // every seq in [1, floor] has been applied
	max     uint32
	applied map[uint32]bool // applied seqs above floor
	pieces  map[cellKey]PlacedPiece
}

// NewBuildLog starts with nothing applied (watermark 0).
func NewBuildLog() *BuildLog {
	return &BuildLog{
		applied: make(map[uint32]bool),
		pieces:  make(map[cellKey]PlacedPiece),
	}
}

// Apply consumes a contiguous run of placements starting at base (a single
// command is a run of one, a batch expands to base, base+1, ...). Runs are
// walked in ascending order and already-applied sequence numbers are skipped,
// so redelivery and overlapping batches are harmless. Returns how many pieces
// were newly placed.
func (b *BuildLog) Apply(base uint32, placements []protocol.BuildPlacement) int {
	placed := 0
	for i, p := range placements {
		seq := base + uint32(i)
		if b.isApplied(seq) {
			continue
		}
		b.markApplied(seq)
		b.pieces[cellKey{x: p.GridX, z: p.GridZ}] = PlacedPiece{BuildSeq: seq, BuildPlacement: p}
		placed++
	}
	return placed
}

// Watermark reports the highest buildSeq applied so far.
func (b *BuildLog) Watermark() uint32 {
	return b.max
}

// PieceCount reports how many pieces stand on the client's grid.
func (b *BuildLog) PieceCount() int {
	return len(b.pieces)
}

// PieceAt looks a placed piece up by grid cell.
func (b *BuildLog) PieceAt(gridX, gridZ uint16) (PlacedPiece, bool) {
	p, ok := b.pieces[cellKey{x: gridX, z: gridZ}]
	return p, ok
}

func (b *BuildLog) isApplied(seq uint32) bool {
	return seq <= b.floor || b.applied[seq]
}

func (b *BuildLog) markApplied(seq uint32) {
	b.applied[seq] = true
	if seq > b.max {
		b.max = seq
	}
	for b.applied[b.floor+1] {
		delete(b.applied, b.floor+1)
		b.floor++
	}
}
