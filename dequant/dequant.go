// Package dequant decodes GGUF block-quantized tensor payloads into dense
// floating-point arrays. Each decoder shares the shape of the reference
// implementation's visitor: it walks blocks until count weights have been
// produced, terminating cleanly mid-block if count is not a multiple of
// the block's item count.
package dequant

import (
	"fmt"

	"github.com/ollama/gguf/gguf"
)

func init() {
	for t := range decoders {
		gguf.RegisterDecodable(t)
	}
}

// Sink receives one decoded weight at a time. Store performs the
// narrowing conversion appropriate to the destination format (identity
// for F32, gguf.F32ToHalf for F16, gguf.F32ToBrain for BF16).
type Sink interface {
	Store(index uint64, f float32)
}

type float32Sink []float32

func (s float32Sink) Store(i uint64, f float32) { s[i] = f }

type float16Sink []uint16

func (s float16Sink) Store(i uint64, f float32) { s[i] = gguf.F32ToHalf(f) }

type bfloat16Sink []uint16

func (s bfloat16Sink) Store(i uint64, f float32) { s[i] = gguf.F32ToBrain(f) }

type decodeFunc func(src []byte, count uint64, sink Sink) error

var decoders = map[gguf.TensorType]decodeFunc{
	gguf.TensorTypeF32:  decodeF32,
	gguf.TensorTypeF16:  decodeF16,
	gguf.TensorTypeBF16: decodeBF16,
	gguf.TensorTypeQ8_0: decodeQ8_0,
	gguf.TensorTypeQ4_0: decodeQ4_0,
	gguf.TensorTypeQ4_1: decodeQ4_1,
	gguf.TensorTypeQ2_K: decodeQ2_K,
	gguf.TensorTypeQ4_K: decodeQ4_K,
	gguf.TensorTypeQ6_K: decodeQ6_K,
}

// Decode dispatches src (count weights of type t) to the matching
// decoder, storing every weight via sink. Returns gguf.ErrUnsupportedType
// if t has no registered decoder.
func Decode(t gguf.TensorType, src []byte, count uint64, sink Sink) error {
	fn, ok := decoders[t]
	if !ok {
		return fmt.Errorf("%w: %v", gguf.ErrUnsupportedType, t)
	}
	return fn(src, count, sink)
}

// TensorToFloat32 dequantizes info's payload (read from f) into a dense
// []float32 of length info.NumWeights.
func TensorToFloat32(f *gguf.File, info gguf.TensorInfo) ([]float32, error) {
	src, err := f.Bytes(info)
	if err != nil {
		return nil, err
	}
	out := make([]float32, info.NumWeights)
	if err := Decode(info.Type, src, info.NumWeights, float32Sink(out)); err != nil {
		return nil, err
	}
	return out, nil
}

// TensorToFloat16 dequantizes info's payload into IEEE binary16 bit
// patterns.
func TensorToFloat16(f *gguf.File, info gguf.TensorInfo) ([]uint16, error) {
	src, err := f.Bytes(info)
	if err != nil {
		return nil, err
	}
	out := make([]uint16, info.NumWeights)
	if err := Decode(info.Type, src, info.NumWeights, float16Sink(out)); err != nil {
		return nil, err
	}
	return out, nil
}

// TensorToBFloat16 dequantizes info's payload into bfloat16 bit patterns.
func TensorToBFloat16(f *gguf.File, info gguf.TensorInfo) ([]uint16, error) {
	src, err := f.Bytes(info)
	if err != nil {
		return nil, err
	}
	out := make([]uint16, info.NumWeights)
	if err := Decode(info.Type, src, info.NumWeights, bfloat16Sink(out)); err != nil {
		return nil, err
	}
	return out, nil
}
