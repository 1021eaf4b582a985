package dequant

import (
	"encoding/binary"
	"testing"

	"github.com/ollama/gguf/gguf"
)

// TestDecodeQ2_K crafts sub-block 0 with sm[0] = 0x13 (scale factor 3,
// min factor 1), scaleOfScales 2.0 and scaleOfMins 1.0, giving scale=6,
// min=1. q[0] and q[1] carry 2-bit quants 1 and 2 for weights 0 and 1.
func TestDecodeQ2_K(t *testing.T) {
	src := make([]byte, q2kBlockBytes)
	src[0] = 0x13 // sm[0]
	src[16] = 0b01 // q[0]: weight 0's 2-bit quant = 1
	src[17] = 0b10 // q[1]: weight 1's 2-bit quant = 2
	binary.LittleEndian.PutUint16(src[80:], gguf.F32ToHalf(2.0)) // scaleOfScales
	binary.LittleEndian.PutUint16(src[82:], gguf.F32ToHalf(1.0)) // scaleOfMins

	out := make(float32Sink, q2kBlockWeights)
	if err := decodeQ2_K(src, q2kBlockWeights, out); err != nil {
		t.Fatalf("decodeQ2_K: %v", err)
	}
	if out[0] != 5 {
		t.Errorf("out[0] = %v, want 5", out[0])
	}
	if out[1] != 11 {
		t.Errorf("out[1] = %v, want 11", out[1])
	}
}
