package server

import (
	"github.com/Dan0net/worldify-multiplayer/internal/protocol"
)

// BuildSequencer owns the room-global build sequence. Placements are accepted
// or rejected here; only accepted placements get a buildSeq and enter the
// history, so every client observes a gap-free non-decreasing stream. It is
// only ever touched from the room's tick goroutine.
type BuildSequencer struct {
	gridExtent uint16
	nextSeq    uint32
	occupied   map[gridCell]protocol.BuildPlacement
	history    []protocol.BuildPlacement // index i holds buildSeq i+1
}

type gridCell struct {
	x, z uint16
}

// NewBuildSequencer creates a sequencer for a square grid of
// gridExtent×gridExtent cells. The first accepted placement gets buildSeq 1.
func NewBuildSequencer(gridExtent uint16) *BuildSequencer {
	return &BuildSequencer{
		gridExtent: gridExtent,
		nextSeq:    1,
		occupied:   make(map[gridCell]protocol.BuildPlacement),
	}
}

// Accept validates a placement request. On success it assigns the next
// buildSeq and records the piece; on failure it returns an application error
// code and sequences nothing.
func (s *BuildSequencer) Accept(playerID uint16, req protocol.BuildRequest) (protocol.BuildSingle, uint8) {
	if req.GridX >= s.gridExtent || req.GridZ >= s.gridExtent {
		return protocol.BuildSingle{}, protocol.ErrCodeOutOfGrid
	}
	cell := gridCell{x: req.GridX, z: req.GridZ}
	if _, taken := s.occupied[cell]; taken {
		return protocol.BuildSingle{}, protocol.ErrCodeCellOccupied
	}

	placement := protocol.BuildPlacement{
		PlayerID:  playerID,
		PieceType: req.PieceType,
		GridX:     req.GridX,
		GridZ:     req.GridZ,
		Rotation:  req.Rotation,
	}
	cmd := protocol.BuildSingle{
		BuildSeq:       s.nextSeq,
		BuildPlacement: placement,
	}
	s.nextSeq++
	s.occupied[cell] = placement
	s.history = append(s.history, placement)
	return cmd, 0
}

// LastSeq reports the highest buildSeq assigned so far.
func (s *BuildSequencer) LastSeq() uint32 {
	return s.nextSeq - 1
}

// PieceCount reports how many pieces stand on the grid.
func (s *BuildSequencer) PieceCount() int {
	return len(s.occupied)
}

// HistoryBatches packs the full placement history into BuildBatch messages of
// at most chunk placements each, for replay to a freshly joined client.
func (s *BuildSequencer) HistoryBatches(chunk int) []protocol.BuildBatch {
	var batches []protocol.BuildBatch
	for start := 0; start < len(s.history); start += chunk {
		end := start + chunk
		if end > len(s.history) {
			end = len(s.history)
		}
		batches = append(batches, protocol.BuildBatch{
			BaseBuildSeq: uint32(start + 1),
			Placements:   s.history[start:end],
		})
	}
	return batches
}
