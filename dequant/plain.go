package dequant

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ollama/gguf/gguf"
)

func truncated(need int, have int) error {
	return fmt.Errorf("%w: need %d bytes, have %d", gguf.ErrTruncated, need, have)
}

// decodeF32 copies count IEEE binary32 weights verbatim.
func decodeF32(src []byte, count uint64, sink Sink) error {
	need := int(count) * 4
	if len(src) < need {
		return truncated(need, len(src))
	}
	for i := uint64(0); i < count; i++ {
		bits := binary.LittleEndian.Uint32(src[i*4:])
		sink.Store(i, math.Float32frombits(bits))
	}
	return nil
}

// decodeF16 widens count IEEE binary16 weights.
func decodeF16(src []byte, count uint64, sink Sink) error {
	need := int(count) * 2
	if len(src) < need {
		return truncated(need, len(src))
	}
	for i := uint64(0); i < count; i++ {
		bits := binary.LittleEndian.Uint16(src[i*2:])
		sink.Store(i, gguf.HalfToF32(bits))
	}
	return nil
}

// decodeBF16 widens count bfloat16 weights.
func decodeBF16(src []byte, count uint64, sink Sink) error {
	need := int(count) * 2
	if len(src) < need {
		return truncated(need, len(src))
	}
	for i := uint64(0); i < count; i++ {
		bits := binary.LittleEndian.Uint16(src[i*2:])
		sink.Store(i, gguf.BrainToF32(bits))
	}
	return nil
}
