// Package gguf implements the GGUF container format: a memory-mapped
// reader for the typed key-value metadata section and tensor-descriptor
// section, and an append-only writer that preserves file invariants.
package gguf

import "fmt"

// ValueType is the on-disk tagged-union discriminator for a metadata value.
type ValueType uint32

const (
	TypeUint8 ValueType = iota
	TypeInt8
	TypeUint16
	TypeInt16
	TypeUint32
	TypeInt32
	TypeFloat32
	TypeBool
	TypeString
	TypeArray
	TypeUint64
	TypeInt64
	TypeFloat64
)

var valueTypeNames = [...]string{
	TypeUint8:   "uint8",
	TypeInt8:    "int8",
	TypeUint16:  "uint16",
	TypeInt16:   "int16",
	TypeUint32:  "uint32",
	TypeInt32:   "int32",
	TypeFloat32: "float32",
	TypeBool:    "bool",
	TypeString:  "string",
	TypeArray:   "array",
	TypeUint64:  "uint64",
	TypeInt64:   "int64",
	TypeFloat64: "float64",
}

// Name returns the registry name for t, or "unknown" if t is out of range.
func (t ValueType) Name() string {
	if int(t) < len(valueTypeNames) {
		return valueTypeNames[t]
	}
	return "unknown"
}

func (t ValueType) String() string { return t.Name() }

// TensorType selects a row of the type registry: a quantization or plain
// numeric format identified by its block geometry.
type TensorType uint32

const (
	TensorTypeF32 TensorType = iota
	TensorTypeF16
	TensorTypeQ4_0
	TensorTypeQ4_1
	tensorTypeQ4_2Deprecated
	tensorTypeQ4_3Deprecated
	TensorTypeQ5_0
	TensorTypeQ5_1
	TensorTypeQ8_0
	TensorTypeQ8_1
	TensorTypeQ2_K
	TensorTypeQ3_K
	TensorTypeQ4_K
	TensorTypeQ5_K
	TensorTypeQ6_K
	TensorTypeQ8_K
	TensorTypeIQ2_XXS
	TensorTypeIQ2_XS
	TensorTypeIQ3_XXS
	TensorTypeIQ1_S
	TensorTypeIQ4_NL
	TensorTypeIQ3_S
	TensorTypeIQ2_S
	TensorTypeIQ4_XS
	TensorTypeI8
	TensorTypeI16
	TensorTypeI32
	TensorTypeI64
	TensorTypeF64
	TensorTypeIQ1_M
	TensorTypeBF16
)

type tensorTypeFeatures struct {
	name          string
	itemsPerBlock uint64
	bytesPerBlock uint64
}

// tensorFeatures is the type registry: items-per-block and bytes-per-block
// for every recognised tensor type, including types this package cannot
// dequantize. A zero-value entry (empty name) marks an unrecognised slot.
var tensorFeatures = [...]tensorTypeFeatures{
	TensorTypeF32:      {"f32", 1, 4},
	TensorTypeF16:      {"f16", 1, 2},
	TensorTypeQ4_0:     {"q4_0", 32, 18},
	TensorTypeQ4_1:     {"q4_1", 32, 20},
	TensorTypeQ5_0:     {"q5_0", 32, 22},
	TensorTypeQ5_1:     {"q5_1", 32, 24},
	TensorTypeQ8_0:     {"q8_0", 32, 34},
	TensorTypeQ8_1:     {"q8_1", 32, 40},
	TensorTypeQ2_K:     {"q2_k", 256, 84},
	TensorTypeQ3_K:     {"q3_k", 256, 110},
	TensorTypeQ4_K:     {"q4_k", 256, 144},
	TensorTypeQ5_K:     {"q5_k", 256, 176},
	TensorTypeQ6_K:     {"q6_k", 256, 210},
	TensorTypeQ8_K:     {"q8_k", 256, 292},
	TensorTypeIQ2_XXS:  {"iq2_xxs", 256, 66},
	TensorTypeIQ2_XS:   {"iq2_xs", 256, 74},
	TensorTypeIQ3_XXS:  {"iq3_xxs", 256, 98},
	TensorTypeIQ1_S:    {"iq1_s", 256, 50},
	TensorTypeIQ4_NL:   {"iq4_nl", 32, 18},
	TensorTypeIQ3_S:    {"iq3_s", 256, 110},
	TensorTypeIQ2_S:    {"iq2_s", 256, 82},
	TensorTypeIQ4_XS:   {"iq4_xs", 256, 136},
	TensorTypeI8:       {"i8", 1, 1},
	TensorTypeI16:      {"i16", 1, 2},
	TensorTypeI32:      {"i32", 1, 4},
	TensorTypeI64:      {"i64", 1, 8},
	TensorTypeF64:      {"f64", 1, 8},
	TensorTypeIQ1_M:    {"iq1_m", 256, 56},
	TensorTypeBF16:     {"bf16", 1, 2},
}

// Name returns the registry name for t, or "unknown" if t is unrecognised.
func (t TensorType) Name() string {
	if int(t) < len(tensorFeatures) && tensorFeatures[t].name != "" {
		return tensorFeatures[t].name
	}
	return "unknown"
}

func (t TensorType) String() string { return t.Name() }

// Features returns the block geometry for t and whether t is recognised.
func (t TensorType) Features() (itemsPerBlock, bytesPerBlock uint64, ok bool) {
	if int(t) >= len(tensorFeatures) || tensorFeatures[t].name == "" {
		return 0, 0, false
	}
	f := tensorFeatures[t]
	return f.itemsPerBlock, f.bytesPerBlock, true
}

// quantized reports whether t carries per-block scale/min coefficients
// rather than a direct numeric encoding.
func (t TensorType) quantized() bool {
	b, _, ok := t.Features()
	return ok && b > 1
}

// BlockSize computes ceil(numWeights / itemsPerBlock) * bytesPerBlock, the
// on-disk payload size of a tensor with numWeights elements of type t.
func (t TensorType) BlockSize(numWeights uint64) (uint64, error) {
	itemsPerBlock, bytesPerBlock, ok := t.Features()
	if !ok {
		return 0, fmt.Errorf("%w: tensor type %d", ErrUnsupportedType, t)
	}
	blocks := (numWeights + itemsPerBlock - 1) / itemsPerBlock
	return blocks * bytesPerBlock, nil
}

// decodableTypes records the tensor types dequant has a decoder for.
// Populated by the dequant package via RegisterDecodable to avoid an
// import cycle; gguf itself only needs the registry's geometry.
var decodableTypes = map[TensorType]bool{}

// RegisterDecodable marks t as having a dequantizer implementation.
// Called from dequant's package init.
func RegisterDecodable(t TensorType) { decodableTypes[t] = true }

// Decodable reports whether a dequantizer is registered for t.
func (t TensorType) Decodable() bool { return decodableTypes[t] }
