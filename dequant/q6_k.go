package dequant

import (
	"encoding/binary"

	"github.com/ollama/gguf/gguf"
)

const (
	q6kBlockWeights = 256
	q6kBlockBytes   = 210
)

// decodeQ6_K decodes { uint8 L[128]; uint8 H[64]; int8 scales[16]; half
// superScale } super-blocks: two 128-weight clusters. Within a cluster,
// for j in [0,128): low 4 bits come from L, high 2 bits from H,
// combining into a 6-bit unsigned value; the signed quant is u-32. The
// sub-scale is scales[j/16]. weight = superScale * subScale * q.
func decodeQ6_K(src []byte, count uint64, sink Sink) error {
	var produced uint64
	for blockStart := 0; produced < count; blockStart += q6kBlockBytes {
		if blockStart+q6kBlockBytes > len(src) {
			return truncated(blockStart+q6kBlockBytes, len(src))
		}
		L := src[blockStart : blockStart+128]
		H := src[blockStart+128 : blockStart+192]
		scales := src[blockStart+192 : blockStart+208]
		superScale := gguf.HalfToF32(binary.LittleEndian.Uint16(src[blockStart+208:]))

		n := q6kBlockWeights
		if remaining := count - produced; remaining < uint64(n) {
			n = int(remaining)
		}
		for i := 0; i < n; i++ {
			cluster := i / 128
			j := i % 128

			l := L[cluster*64+j%64]
			low4 := (l >> uint((j/64)*4)) & 0xF
			h := H[cluster*32+j%32]
			high2 := (h >> uint((j/32)*2)) & 0x3

			u := uint32(low4) | uint32(high2)<<4
			q := int32(u) - 32
			subScale := int8(scales[cluster*8+j/16])

			weight := superScale * float32(subScale) * float32(q)
			sink.Store(produced+uint64(i), weight)
		}
		produced += uint64(n)
	}
	return nil
}
