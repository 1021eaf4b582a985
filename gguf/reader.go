package gguf

import (
	"encoding/binary"
	"math"
)

// maxArrayDepth bounds array-of-array recursion so a malicious or corrupt
// file cannot exhaust the stack.
const maxArrayDepth = 64

// Key holds a metadata entry's name and type; its value has not yet
// been consumed. Pass it to ConsumeValue to advance past the value.
type Key struct {
	Name string
	Type ValueType
}

// EventKind tags a callback invocation fired while consuming a value.
type EventKind int

const (
	EventPrimitive EventKind = iota
	EventArrayStart
	EventArrayEnd
)

// Event is delivered to a ValueVisitor once per primitive encountered,
// plus once before and once after each array's elements.
type Event struct {
	Kind     EventKind
	Type     ValueType
	Value    any
	InArray  int // 1-based index within the immediate enclosing array, 0 otherwise
	ArrayLen uint64
}

// ValueVisitor observes the primitives and array boundaries of a value in
// file order. A nil visitor silently skips the value.
type ValueVisitor func(Event) error

func (f *File) checkBounds(n int) error {
	if f.cursor < 0 || n < 0 || f.cursor+int64(n) > int64(len(f.data)) {
		return newError(ErrTruncated, f.cursor)
	}
	return nil
}

func (f *File) readBytes(n int) ([]byte, error) {
	if err := f.checkBounds(n); err != nil {
		return nil, err
	}
	b := f.data[f.cursor : f.cursor+int64(n)]
	f.cursor += int64(n)
	return b, nil
}

// readString reads an 8-byte length prefix followed by that many bytes,
// returning them as a string copied out of the mapping.
func (f *File) readString() (string, error) {
	lenBytes, err := f.readBytes(8)
	if err != nil {
		return "", err
	}
	n := binary.LittleEndian.Uint64(lenBytes)
	b, err := f.readBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (f *File) readScalar(t ValueType) (any, error) {
	switch t {
	case TypeUint8:
		b, err := f.readBytes(1)
		if err != nil {
			return nil, err
		}
		return b[0], nil
	case TypeInt8:
		b, err := f.readBytes(1)
		if err != nil {
			return nil, err
		}
		return int8(b[0]), nil
	case TypeUint16:
		b, err := f.readBytes(2)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.Uint16(b), nil
	case TypeInt16:
		b, err := f.readBytes(2)
		if err != nil {
			return nil, err
		}
		return int16(binary.LittleEndian.Uint16(b)), nil
	case TypeUint32:
		b, err := f.readBytes(4)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.Uint32(b), nil
	case TypeInt32:
		b, err := f.readBytes(4)
		if err != nil {
			return nil, err
		}
		return int32(binary.LittleEndian.Uint32(b)), nil
	case TypeFloat32:
		b, err := f.readBytes(4)
		if err != nil {
			return nil, err
		}
		return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
	case TypeBool:
		b, err := f.readBytes(1)
		if err != nil {
			return nil, err
		}
		return b[0] != 0, nil
	case TypeUint64:
		b, err := f.readBytes(8)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.Uint64(b), nil
	case TypeInt64:
		b, err := f.readBytes(8)
		if err != nil {
			return nil, err
		}
		return int64(binary.LittleEndian.Uint64(b)), nil
	case TypeFloat64:
		b, err := f.readBytes(8)
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
	case TypeString:
		return f.readString()
	default:
		return nil, newError(ErrUnsupportedType, f.cursor)
	}
}

// NextKey consumes one key-value entry's header at the cursor: name length,
// name bytes, and type tag. The cursor stops on the value bytes; call
// ConsumeValue to advance past them. Returns false once leftKV is zero.
//
// Side effect: if the entry is named "general.alignment" (or the
// tolerated typo "general.alignmnet") and is UINT32, its value updates
// the context's alignment immediately, without otherwise consuming it.
// A zero or non-power-of-two override is corrupt input and fails
// terminally with ErrTruncated rather than being applied.
func (f *File) NextKey() (Key, bool, error) {
	if f.leftKV == 0 {
		return Key{}, false, nil
	}

	name, err := f.readString()
	if err != nil {
		return Key{}, false, err
	}
	typeBytes, err := f.readBytes(4)
	if err != nil {
		return Key{}, false, err
	}
	t := ValueType(binary.LittleEndian.Uint32(typeBytes))
	f.leftKV--

	if t == TypeUint32 && (name == "general.alignment" || name == "general.alignmnet") {
		if err := f.checkBounds(4); err == nil {
			align := uint64(binary.LittleEndian.Uint32(f.data[f.cursor : f.cursor+4]))
			if !validAlignment(align) {
				return Key{}, false, newError(ErrTruncated, f.cursor)
			}
			f.alignment = align
			if name == "general.alignmnet" {
				f.log.Warn("tolerating alignment key typo", "key", name)
			}
		}
	}

	return Key{Name: name, Type: t}, true, nil
}

// ConsumeValue advances the cursor past one value of k.Type, invoking
// visit for each primitive and array boundary encountered, in file order.
func (f *File) ConsumeValue(k Key, visit ValueVisitor) error {
	return f.consumeValue(k.Type, visit, 0, 0)
}

func (f *File) consumeValue(t ValueType, visit ValueVisitor, inArray, depth int) error {
	if depth > maxArrayDepth {
		return newError(ErrTruncated, f.cursor)
	}

	if t == TypeArray {
		elemTypeBytes, err := f.readBytes(4)
		if err != nil {
			return err
		}
		elemType := ValueType(binary.LittleEndian.Uint32(elemTypeBytes))
		nBytes, err := f.readBytes(8)
		if err != nil {
			return err
		}
		n := binary.LittleEndian.Uint64(nBytes)

		if visit != nil {
			if err := visit(Event{Kind: EventArrayStart, Type: elemType, InArray: inArray, ArrayLen: n}); err != nil {
				return err
			}
		}
		for i := uint64(0); i < n; i++ {
			if err := f.consumeValue(elemType, visit, int(i)+1, depth+1); err != nil {
				return err
			}
		}
		if visit != nil {
			if err := visit(Event{Kind: EventArrayEnd, Type: elemType, InArray: inArray, ArrayLen: n}); err != nil {
				return err
			}
		}
		return nil
	}

	v, err := f.readScalar(t)
	if err != nil {
		return err
	}
	if visit != nil {
		if err := visit(Event{Kind: EventPrimitive, Type: t, Value: v, InArray: inArray}); err != nil {
			return err
		}
	}
	return nil
}

// SkipKV consumes every remaining key-value entry without invoking a
// callback.
func (f *File) SkipKV() error {
	for f.leftKV > 0 {
		k, ok, err := f.NextKey()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := f.ConsumeValue(k, nil); err != nil {
			return err
		}
	}
	return nil
}

// TensorInfo describes one tensor's descriptor plus its resolved absolute
// offset and on-disk payload size.
type TensorInfo struct {
	Name           string
	Shape          []uint64
	Type           TensorType
	RelativeOffset uint64
	AbsoluteOffset uint64
	NumWeights     uint64
	NumBytes       uint64
}

// Bytes returns the tensor's raw payload, a borrow into the mapping.
func (f *File) Bytes(t TensorInfo) ([]byte, error) {
	start := int64(t.AbsoluteOffset)
	end := start + int64(t.NumBytes)
	if start < 0 || end > int64(len(f.data)) {
		return nil, newError(ErrTruncated, start)
	}
	return f.data[start:end], nil
}

func readUint64At(data []byte, offset int64) (uint64, error) {
	if offset < 0 || offset+8 > int64(len(data)) {
		return 0, newError(ErrTruncated, offset)
	}
	return binary.LittleEndian.Uint64(data[offset : offset+8]), nil
}

// computeDataOffset scans forward over every remaining tensor descriptor
// without touching the main cursor, then rounds the end-of-descriptors
// offset up to the alignment. Runs once per pass over the descriptors: at
// the first NextTensor call after Open or Rewind.
func (f *File) computeDataOffset() error {
	offset := f.cursor
	for i := uint64(0); i < f.leftTensors; i++ {
		nameLen, err := readUint64At(f.data, offset)
		if err != nil {
			return err
		}
		offset += 8 + int64(nameLen)
		if offset+4 > int64(len(f.data)) {
			return newError(ErrTruncated, offset)
		}
		ndim := binary.LittleEndian.Uint32(f.data[offset : offset+4])
		offset += 4 + int64(ndim)*8 + 4 + 8
		if offset > int64(len(f.data)) {
			return newError(ErrTruncated, offset)
		}
	}
	align := int64(f.alignment)
	padding := (align - offset%align) % align
	f.dataOffset = uint64(offset + padding)
	return nil
}

// NextTensor consumes one tensor descriptor. Precondition: all key-value
// entries have been consumed (leftKV == 0). The first call computes the
// data-section base offset once; every subsequent absolute offset is
// derived from it.
func (f *File) NextTensor() (TensorInfo, bool, error) {
	if f.leftKV != 0 {
		return TensorInfo{}, false, newError(ErrOrder, f.cursor)
	}
	if f.leftTensors == 0 {
		return TensorInfo{}, false, nil
	}
	if f.dataOffset == 0 {
		if err := f.computeDataOffset(); err != nil {
			return TensorInfo{}, false, err
		}
	}

	name, err := f.readString()
	if err != nil {
		return TensorInfo{}, false, err
	}
	ndimBytes, err := f.readBytes(4)
	if err != nil {
		return TensorInfo{}, false, err
	}
	ndim := binary.LittleEndian.Uint32(ndimBytes)
	if ndim == 0 || ndim > 4 {
		return TensorInfo{}, false, newError(ErrTruncated, f.cursor)
	}

	shape := make([]uint64, ndim)
	for i := range shape {
		b, err := f.readBytes(8)
		if err != nil {
			return TensorInfo{}, false, err
		}
		shape[i] = binary.LittleEndian.Uint64(b)
	}

	typeBytes, err := f.readBytes(4)
	if err != nil {
		return TensorInfo{}, false, err
	}
	tt := TensorType(binary.LittleEndian.Uint32(typeBytes))

	offBytes, err := f.readBytes(8)
	if err != nil {
		return TensorInfo{}, false, err
	}
	relOffset := binary.LittleEndian.Uint64(offBytes)

	var numWeights uint64 = 1
	for _, d := range shape {
		numWeights *= d
	}

	bsize, err := tt.BlockSize(numWeights)
	if err != nil {
		f.leftTensors--
		return TensorInfo{}, false, &Error{Kind: ErrUnsupportedType, Offset: f.cursor, Tensor: name}
	}
	f.leftTensors--

	return TensorInfo{
		Name:           name,
		Shape:          shape,
		Type:           tt,
		RelativeOffset: relOffset,
		AbsoluteOffset: f.dataOffset + relOffset,
		NumWeights:     numWeights,
		NumBytes:       bsize,
	}, true, nil
}
