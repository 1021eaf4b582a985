package gguf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// Create refuses to overwrite an existing file unless overwrite is set.
// It writes a fresh 24-byte header (magic, version 3, both counts zero),
// closes the stream, then maps it for appending.
func Create(path string, overwrite bool) (*File, error) {
	flags := os.O_RDWR | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, &Error{Kind: ErrIO}
	}

	var hdr [headerSize]byte
	copy(hdr[0:4], magic[:])
	binary.LittleEndian.PutUint32(hdr[4:8], 3)
	if _, err := f.Write(hdr[:]); err != nil {
		f.Close()
		return nil, &Error{Kind: ErrIO}
	}
	if err := f.Close(); err != nil {
		return nil, &Error{Kind: ErrIO}
	}

	return Open(path)
}

func writeLengthPrefixed(buf *bytes.Buffer, b []byte) {
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(len(b)))
	buf.Write(n[:])
	buf.Write(b)
}

func writeString(buf *bytes.Buffer, s string) {
	writeLengthPrefixed(buf, []byte(s))
}

func writeScalar(buf *bytes.Buffer, t ValueType, scalar any) error {
	switch t {
	case TypeUint8:
		v, ok := scalar.(uint8)
		if !ok {
			return fmt.Errorf("gguf: expected uint8, got %T", scalar)
		}
		buf.WriteByte(v)
	case TypeInt8:
		v, ok := scalar.(int8)
		if !ok {
			return fmt.Errorf("gguf: expected int8, got %T", scalar)
		}
		buf.WriteByte(byte(v))
	case TypeUint16:
		v, ok := scalar.(uint16)
		if !ok {
			return fmt.Errorf("gguf: expected uint16, got %T", scalar)
		}
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], v)
		buf.Write(b[:])
	case TypeInt16:
		v, ok := scalar.(int16)
		if !ok {
			return fmt.Errorf("gguf: expected int16, got %T", scalar)
		}
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(v))
		buf.Write(b[:])
	case TypeUint32:
		v, ok := scalar.(uint32)
		if !ok {
			return fmt.Errorf("gguf: expected uint32, got %T", scalar)
		}
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], v)
		buf.Write(b[:])
	case TypeInt32:
		v, ok := scalar.(int32)
		if !ok {
			return fmt.Errorf("gguf: expected int32, got %T", scalar)
		}
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(v))
		buf.Write(b[:])
	case TypeFloat32:
		v, ok := scalar.(float32)
		if !ok {
			return fmt.Errorf("gguf: expected float32, got %T", scalar)
		}
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(v))
		buf.Write(b[:])
	case TypeBool:
		v, ok := scalar.(bool)
		if !ok {
			return fmt.Errorf("gguf: expected bool, got %T", scalar)
		}
		if v {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case TypeUint64:
		v, ok := scalar.(uint64)
		if !ok {
			return fmt.Errorf("gguf: expected uint64, got %T", scalar)
		}
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], v)
		buf.Write(b[:])
	case TypeInt64:
		v, ok := scalar.(int64)
		if !ok {
			return fmt.Errorf("gguf: expected int64, got %T", scalar)
		}
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(v))
		buf.Write(b[:])
	case TypeFloat64:
		v, ok := scalar.(float64)
		if !ok {
			return fmt.Errorf("gguf: expected float64, got %T", scalar)
		}
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
		buf.Write(b[:])
	case TypeString:
		v, ok := scalar.(string)
		if !ok {
			return fmt.Errorf("gguf: expected string, got %T", scalar)
		}
		writeString(buf, v)
	default:
		return fmt.Errorf("%w: value type %v", ErrUnsupportedType, t)
	}
	return nil
}

func writeValue(buf *bytes.Buffer, t ValueType, v Value) error {
	if t != TypeArray {
		return writeScalar(buf, t, v.Scalar)
	}

	var elemType [4]byte
	binary.LittleEndian.PutUint32(elemType[:], uint32(v.ElemType))
	buf.Write(elemType[:])
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(len(v.Elems)))
	buf.Write(n[:])
	for _, e := range v.Elems {
		if err := writeValue(buf, v.ElemType, e); err != nil {
			return err
		}
	}
	return nil
}

func (f *File) writeHeaderCounts() error {
	var b [16]byte
	binary.LittleEndian.PutUint64(b[0:8], f.header.TensorCount)
	binary.LittleEndian.PutUint64(b[8:16], f.header.MetadataKVCount)
	if _, err := f.f.WriteAt(b[:], 8); err != nil {
		return &Error{Kind: ErrIO}
	}
	return nil
}

func (f *File) appendBytes(b []byte) error {
	if _, err := f.f.Seek(0, io.SeekEnd); err != nil {
		return &Error{Kind: ErrIO}
	}
	if _, err := f.f.Write(b); err != nil {
		return &Error{Kind: ErrIO}
	}
	return nil
}

// AppendKV writes one key-value entry. Precondition: no tensor info has
// been emitted yet (header.TensorCount == 0); violating it fails ErrOrder.
func (f *File) AppendKV(key string, t ValueType, v Value) error {
	if f.header.TensorCount != 0 {
		return &Error{Kind: ErrOrder, Key: key}
	}
	if t == TypeUint32 && (key == "general.alignment" || key == "general.alignmnet") && !validAlignment(v.Uint()) {
		return &Error{Kind: ErrTruncated, Key: key}
	}

	buf := new(bytes.Buffer)
	writeString(buf, key)
	var typeBuf [4]byte
	binary.LittleEndian.PutUint32(typeBuf[:], uint32(t))
	buf.Write(typeBuf[:])
	if err := writeValue(buf, t, v); err != nil {
		return err
	}
	if err := f.appendBytes(buf.Bytes()); err != nil {
		return err
	}

	f.header.MetadataKVCount++
	if err := f.writeHeaderCounts(); err != nil {
		return err
	}

	if t == TypeUint32 && (key == "general.alignment" || key == "general.alignmnet") {
		f.alignment = v.Uint()
	}

	return f.remap()
}

// AppendTensorInfo writes a tensor descriptor and increments the header's
// tensor count. The caller is responsible for computing monotonic,
// alignment-honouring relative offsets before any payloads are written.
func (f *File) AppendTensorInfo(name string, shape []uint64, t TensorType, relativeOffset uint64) error {
	if len(shape) == 0 || len(shape) > 4 {
		return fmt.Errorf("gguf: dimensionality %d out of range", len(shape))
	}

	buf := new(bytes.Buffer)
	writeString(buf, name)
	var ndim [4]byte
	binary.LittleEndian.PutUint32(ndim[:], uint32(len(shape)))
	buf.Write(ndim[:])
	for _, d := range shape {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], d)
		buf.Write(b[:])
	}
	var typeBuf [4]byte
	binary.LittleEndian.PutUint32(typeBuf[:], uint32(t))
	buf.Write(typeBuf[:])
	var offBuf [8]byte
	binary.LittleEndian.PutUint64(offBuf[:], relativeOffset)
	buf.Write(offBuf[:])

	if err := f.appendBytes(buf.Bytes()); err != nil {
		return err
	}

	f.header.TensorCount++
	if err := f.writeHeaderCounts(); err != nil {
		return err
	}
	return f.remap()
}

// AppendTensorData pads the file up to the next alignment multiple of its
// current length with zero bytes, then writes the payload.
func (f *File) AppendTensorData(data []byte) error {
	fi, err := f.f.Stat()
	if err != nil {
		return &Error{Kind: ErrIO}
	}
	size := fi.Size()
	align := int64(f.alignment)
	padding := (align - size%align) % align

	if padding > 0 {
		if _, err := f.f.WriteAt(make([]byte, padding), size); err != nil {
			return &Error{Kind: ErrIO}
		}
	}
	if _, err := f.f.WriteAt(data, size+padding); err != nil {
		return &Error{Kind: ErrIO}
	}
	return f.remap()
}
