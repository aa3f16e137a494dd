package protocol

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAngleQuantizationReversible(t *testing.T) {
	const tolerance = 2 * math.Pi / 65535

	for theta := -math.Pi; theta <= math.Pi; theta += 0.001 {
		q := QuantizeAngle(float32(theta))
		back := DequantizeAngle(q)
		assert.InDelta(t, theta, back, tolerance, "theta=%f", theta)
	}
}

func TestAngleQuantizationBounds(t *testing.T) {
	assert.Equal(t, int16(32767), QuantizeAngle(math.Pi))
	assert.Equal(t, int16(-32767), QuantizeAngle(-math.Pi))
	assert.Equal(t, int16(0), QuantizeAngle(0))

	// Out-of-range inputs clamp instead of wrapping.
	assert.Equal(t, int16(32767), QuantizeAngle(10))
	assert.Equal(t, int16(-32767), QuantizeAngle(-10))
}

func TestCoordQuantization(t *testing.T) {
	assert.Equal(t, int16(125), quantizeCoord(1.25))
	assert.Equal(t, int16(-125), quantizeCoord(-1.25))
	assert.InDelta(t, 1.25, dequantizeCoord(125), 1e-6)

	// Saturates at the i16 range rather than overflowing.
	assert.Equal(t, int16(math.MaxInt16), quantizeCoord(1e6))
	assert.Equal(t, int16(math.MinInt16), quantizeCoord(-1e6))
}
