package sim

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dan0net/worldify-multiplayer/internal/protocol"
)

func placement(x, z uint16) protocol.BuildPlacement {
	return protocol.BuildPlacement{
		PlayerID:  1,
		PieceType: protocol.PieceWall,
		GridX:     x,
		GridZ:     z,
	}
}

func TestBuildLogAppliesBatch(t *testing.T) {
	log := NewBuildLog()

	placed := log.Apply(1, []protocol.BuildPlacement{
		placement(0, 0), placement(0, 1), placement(0, 2),
	})

	assert.Equal(t, 3, placed)
	assert.Equal(t, uint32(3), log.Watermark())
	assert.Equal(t, 3, log.PieceCount())

	p, ok := log.PieceAt(0, 1)
	require.True(t, ok)
	assert.Equal(t, uint32(2), p.BuildSeq)
}

func TestBuildLogRedeliveryIsIdempotent(t *testing.T) {
	log := NewBuildLog()
	batch := []protocol.BuildPlacement{placement(1, 1), placement(1, 2)}

	assert.Equal(t, 2, log.Apply(5, batch))
	assert.Equal(t, 0, log.Apply(5, batch), "redelivered batch must place nothing")
	assert.Equal(t, 0, log.Apply(5, batch[:1]), "single redelivery of a batched command must place nothing")
	assert.Equal(t, 2, log.PieceCount())
	assert.Equal(t, uint32(6), log.Watermark())
}

func TestBuildLogOverlappingBatches(t *testing.T) {
	log := NewBuildLog()

	log.Apply(1, []protocol.BuildPlacement{placement(0, 0), placement(0, 1), placement(0, 2)})

	// Seqs 2 and 3 overlap; only seq 4 is new.
	placed := log.Apply(2, []protocol.BuildPlacement{placement(0, 1), placement(0, 2), placement(0, 3)})

	assert.Equal(t, 1, placed)
	assert.Equal(t, uint32(4), log.Watermark())
	assert.Equal(t, 4, log.PieceCount())
}

func TestBuildLogWatermarkAdvancesAcrossBatch(t *testing.T) {
	log := NewBuildLog()
	log.Apply(1, makeRun(1, 99))
	require.Equal(t, uint32(99), log.Watermark())

	placed := log.Apply(100, makeRun(100, 3))

	assert.Equal(t, 3, placed)
	assert.Equal(t, uint32(102), log.Watermark())
}

// Delivery order must not matter: any permutation of the same commands ends
// with every piece placed exactly once.
func TestBuildLogPermutedDelivery(t *testing.T) {
	type run struct {
		base uint32
		ps   []protocol.BuildPlacement
	}
	runs := []run{
		{1, makeRun(1, 1)},
		{2, makeRun(2, 4)},
		{6, makeRun(6, 1)},
		{7, makeRun(7, 3)},
	}

	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 20; trial++ {
		log := NewBuildLog()
		for _, i := range rng.Perm(len(runs)) {
			log.Apply(runs[i].base, runs[i].ps)
		}
		assert.Equal(t, 9, log.PieceCount())
		assert.Equal(t, uint32(9), log.Watermark())
	}
}

func makeRun(base uint32, n int) []protocol.BuildPlacement {
	ps := make([]protocol.BuildPlacement, n)
	for i := range ps {
		seq := base + uint32(i)
		ps[i] = placement(uint16(seq%128), uint16(seq/128))
	}
	return ps
}
