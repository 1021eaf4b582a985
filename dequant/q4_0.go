package dequant

import (
	"encoding/binary"

	"github.com/ollama/gguf/gguf"
)

const (
	q4_0BlockWeights = 32
	q4_0BlockBytes   = 18
)

// decodeQ4_0 decodes { half scale; uint8 nib[16] } blocks. Weights 0..15
// are the low nibbles of nib[0..15]; 16..31 are the high nibbles. weight
// = scale * (nibble - 8).
func decodeQ4_0(src []byte, count uint64, sink Sink) error {
	var produced uint64
	for blockStart := 0; produced < count; blockStart += q4_0BlockBytes {
		if blockStart+q4_0BlockBytes > len(src) {
			return truncated(blockStart+q4_0BlockBytes, len(src))
		}
		scale := gguf.HalfToF32(binary.LittleEndian.Uint16(src[blockStart:]))
		nib := src[blockStart+2 : blockStart+q4_0BlockBytes]

		n := q4_0BlockWeights
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
			sink.Store(produced+uint64(j), scale*float32(int(nibble)-8))
		}
		produced += uint64(n)
	}
	return nil
}
