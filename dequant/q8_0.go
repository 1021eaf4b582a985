package dequant

import (
	"encoding/binary"

	"github.com/ollama/gguf/gguf"
)

const (
	q8_0BlockWeights = 32
	q8_0BlockBytes   = 34
)

// decodeQ8_0 decodes { half scale; int8 q[32] } blocks. weight[i] =
// scale * q[i].
func decodeQ8_0(src []byte, count uint64, sink Sink) error {
	var produced uint64
	for blockStart := 0; produced < count; blockStart += q8_0BlockBytes {
		if blockStart+q8_0BlockBytes > len(src) {
			return truncated(blockStart+q8_0BlockBytes, len(src))
		}
		scale := gguf.HalfToF32(binary.LittleEndian.Uint16(src[blockStart:]))
		q := src[blockStart+2 : blockStart+q8_0BlockBytes]

		n := q8_0BlockWeights
		if remaining := count - produced; remaining < uint64(n) {
			n = int(remaining)
		}
		for j := 0; j < n; j++ {
			sink.Store(produced+uint64(j), scale*float32(int8(q[j])))
		}
		produced += uint64(n)
	}
	return nil
}
