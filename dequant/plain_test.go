package dequant

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/ollama/gguf/gguf"
)

func TestDecodeF32(t *testing.T) {
	src := make([]byte, 16)
	for i, v := range []float32{1, 2, 3, 4} {
		binary.LittleEndian.PutUint32(src[i*4:], math.Float32bits(v))
	}
	out := make(float32Sink, 4)
	if err := decodeF32(src, 4, out); err != nil {
		t.Fatalf("decodeF32: %v", err)
	}
	want := []float32{1, 2, 3, 4}
	for i, w := range want {
		if out[i] != w {
			t.Errorf("out[%d] = %v, want %v", i, out[i], w)
		}
	}
}

func TestDecodeF16RoundTrip(t *testing.T) {
	src := make([]byte, 2)
	binary.LittleEndian.PutUint16(src, gguf.F32ToHalf(1.5))
	out := make(float32Sink, 1)
	if err := decodeF16(src, 1, out); err != nil {
		t.Fatalf("decodeF16: %v", err)
	}
	if out[0] != 1.5 {
		t.Errorf("out[0] = %v, want 1.5", out[0])
	}
}

// TestDecodeBF16RoundTrip matches the bfloat16 round-trip scenario.
func TestDecodeBF16RoundTrip(t *testing.T) {
	src := make([]byte, 2)
	binary.LittleEndian.PutUint16(src, gguf.F32ToBrain(1.0))
	out := make(float32Sink, 1)
	if err := decodeBF16(src, 1, out); err != nil {
		t.Fatalf("decodeBF16: %v", err)
	}
	if out[0] != 1.0 {
		t.Errorf("out[0] = %v, want 1.0", out[0])
	}
}

func TestDecodeF32TruncatedSource(t *testing.T) {
	out := make(float32Sink, 4)
	if err := decodeF32([]byte{0, 0, 0}, 4, out); err == nil {
		t.Fatal("expected error for a source shorter than count*4 bytes")
	}
}
