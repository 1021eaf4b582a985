package dequant

import (
	"encoding/binary"

	"github.com/ollama/gguf/gguf"
)

const (
	q4kBlockWeights = 256
	q4kBlockBytes   = 144
)

// decodeQ4_K decodes { half sscale; half mscale; uint8 pk[12]; uint8
// q[128] } super-blocks: eight 32-weight sub-blocks with 6-bit sub-scale
// d and 6-bit sub-min m packed across pk. Sub-blocks come in pairs
// sharing 32 payload bytes: the first sub-block's weights are the low
// nibbles, the second's the high nibbles. weight = d*sscale*nibble -
// m*mscale.
func decodeQ4_K(src []byte, count uint64, sink Sink) error {
	var produced uint64
	for blockStart := 0; produced < count; blockStart += q4kBlockBytes {
		if blockStart+q4kBlockBytes > len(src) {
			return truncated(blockStart+q4kBlockBytes, len(src))
		}
		sscale := gguf.HalfToF32(binary.LittleEndian.Uint16(src[blockStart:]))
		mscale := gguf.HalfToF32(binary.LittleEndian.Uint16(src[blockStart+2:]))
		pk := src[blockStart+4 : blockStart+16]
		q := src[blockStart+16 : blockStart+144]

		var d, m [8]byte
		for j := 0; j < 4; j++ {
			d[j] = pk[j] & 63
			m[j] = pk[j+4] & 63
		}
		for j := 4; j < 8; j++ {
			d[j] = (pk[j+4] & 0xF) | ((pk[j-4] >> 6) << 4)
			m[j] = (pk[j+4] >> 4) | ((pk[j] >> 6) << 4)
		}

		n := q4kBlockWeights
		if remaining := count - produced; remaining < uint64(n) {
			n = int(remaining)
		}
		for i := 0; i < n; i++ {
			pairGroup := i / 64
			within := i % 64
			subIdx := within / 32
			byteOff := within % 32
			j := pairGroup*2 + subIdx

			qb := q[pairGroup*32+byteOff]
			var nibble byte
			if subIdx == 0 {
				nibble = qb & 0x0F
			} else {
				nibble = qb >> 4
			}

			weight := float32(d[j])*sscale*float32(nibble) - float32(m[j])*mscale
			sink.Store(produced+uint64(i), weight)
		}
		produced += uint64(n)
	}
	return nil
}
