package dequant

import (
	"encoding/binary"

	"github.com/ollama/gguf/gguf"
)

const (
	q2kBlockWeights = 256
	q2kBlockBytes   = 84
)

// decodeQ2_K decodes { uint8 sm[16]; uint8 q[64]; half scaleOfScales;
// half scaleOfMins } super-blocks. The 256 weights split into 16
// sub-blocks of 16. Sub-block b has scale = scaleOfScales*(sm[b]&0xF) and
// min = scaleOfMins*(sm[b]>>4). weight[i] = quant[i]*scale - min.
func decodeQ2_K(src []byte, count uint64, sink Sink) error {
	var produced uint64
	for blockStart := 0; produced < count; blockStart += q2kBlockBytes {
		if blockStart+q2kBlockBytes > len(src) {
			return truncated(blockStart+q2kBlockBytes, len(src))
		}
		sm := src[blockStart : blockStart+16]
		q := src[blockStart+16 : blockStart+80]
		scaleOfScales := gguf.HalfToF32(binary.LittleEndian.Uint16(src[blockStart+80:]))
		scaleOfMins := gguf.HalfToF32(binary.LittleEndian.Uint16(src[blockStart+82:]))

		n := q2kBlockWeights
		if remaining := count - produced; remaining < uint64(n) {
			n = int(remaining)
		}
		for i := 0; i < n; i++ {
			b := i / 16
			scale := scaleOfScales * float32(sm[b]&0x0F)
			min := scaleOfMins * float32(sm[b]>>4)

			byteIdx := (i % 32) + (i/128)*32
			bitPos := uint(2 * ((i % 128) / 32))
			quant := (q[byteIdx] >> bitPos) & 0x3

			sink.Store(produced+uint64(i), float32(quant)*scale-min)
		}
		produced += uint64(n)
	}
	return nil
}
