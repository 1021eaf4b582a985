package dequant

import (
	"encoding/binary"

	"github.com/ollama/gguf/gguf"
)

const (
	q4_1BlockWeights = 32
	q4_1BlockBytes   = 20
)

// decodeQ4_1 decodes { half scale; half bias; uint8 nib[16] } blocks. Low-
// nibble layout matches Q4_0; weight = scale * nibble + bias (no -8
// offset).
func decodeQ4_1(src []byte, count uint64, sink Sink) error {
	var produced uint64
	for blockStart := 0; produced < count; blockStart += q4_1BlockBytes {
		if blockStart+q4_1BlockBytes > len(src) {
			return truncated(blockStart+q4_1BlockBytes, len(src))
		}
		scale := gguf.HalfToF32(binary.LittleEndian.Uint16(src[blockStart:]))
		bias := gguf.HalfToF32(binary.LittleEndian.Uint16(src[blockStart+2:]))
		nib := src[blockStart+4 : blockStart+q4_1BlockBytes]

		n := q4_1BlockWeights
		if remaining := count - produced; remaining < uint64(n) {
			n = int(remaining)
		}
		for j := 0; j < n; j++ {
			var nibble byte
			if j < 16 {
				nibble = nib[j] & 0x0F
			} else {
				nibble = nib[j-16] >> 4
			}
			sink.Store(produced+uint64(j), scale*float32(nibble)+bias)
		}
		produced += uint64(n)
	}
	return nil
}
