package gguf

import (
	"math"

	"github.com/x448/float16"
)

// F32ToHalf converts a 32-bit float to IEEE binary16, round-to-nearest-even,
// with overflow-to-infinity and subnormal support.
func F32ToHalf(x float32) uint16 {
	return uint16(float16.Fromfloat32(x))
}

// HalfToF32 converts an IEEE binary16 bit pattern back to a 32-bit float.
func HalfToF32(h uint16) float32 {
	return float16.Frombits(h).Float32()
}

// F32ToBrain converts a 32-bit float to bfloat16. NaNs are quieted by
// forcing bit 6 of the high half; subnormals flush to zero preserving
// sign; otherwise the result is rounded to nearest-even by adding
// 0x7FFF plus the low bit of the truncated high half before shifting.
func F32ToBrain(x float32) uint16 {
	bits := math.Float32bits(x)
	if (bits & 0x7fffffff) > 0x7f800000 {
		return uint16(bits>>16) | 64
	}
	if bits&0x7f800000 == 0 {
		return uint16(bits >> 16 & 0x8000)
	}
	return uint16((bits + (0x7fff + ((bits >> 16) & 1))) >> 16)
}

// BrainToF32 converts a bfloat16 bit pattern back to a 32-bit float. This
// is an exact left shift into the mantissa slot; bfloat16 shares float32's
// exponent width so no rounding is needed.
func BrainToF32(h uint16) float32 {
	return math.Float32frombits(uint32(h) << 16)
}
