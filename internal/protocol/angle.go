package protocol

import "math"

// Angles travel as signed 16-bit with ±32767 mapped to ±π radians, positions
// as fixed-point with two decimal digits. Quantization error stays below one
// wire step (2π/65535 for angles, 0.01 world units for coordinates).

const angleScale = 32767.0 / math.Pi

// QuantizeAngle maps an angle in radians to its wire representation. Inputs
// outside [-π, π] are clamped.
func QuantizeAngle(theta float32) int16 {
	t := float64(theta)
	if t > math.Pi {
		t = math.Pi
	} else if t < -math.Pi {
		t = -math.Pi
	}
	return int16(math.Round(t * angleScale))
}

// DequantizeAngle is the inverse mapping back to radians.
func DequantizeAngle(q int16) float32 {
	return float32(float64(q) / angleScale)
}

const coordScale = 100.0

func quantizeCoord(v float32) int16 {
	c := math.Round(float64(v) * coordScale)
	if c > math.MaxInt16 {
		c = math.MaxInt16
	} else if c < math.MinInt16 {
		c = math.MinInt16
	}
	return int16(c)
}

func dequantizeCoord(q int16) float32 {
	return float32(float64(q) / coordScale)
}
