package gguf

import (
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// TestMinimalFile matches the header-only scenario: a freshly created
// file has no keys and no tensors.
func TestMinimalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minimal.gguf")
	f, err := Create(path, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer f.Close()

	if _, ok, err := f.NextKey(); ok || err != nil {
		t.Fatalf("NextKey on empty file: ok=%v err=%v", ok, err)
	}
	if _, ok, err := f.NextTensor(); ok || err != nil {
		t.Fatalf("NextTensor on empty file: ok=%v err=%v", ok, err)
	}
}

// TestSingleF32Tensor matches the single-tensor scenario: one alignment
// key, one 2x2 F32 tensor, values 1..4.
func TestSingleF32Tensor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "single.gguf")
	f, err := Create(path, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := f.AppendKV("general.alignment", TypeUint32, Value{Type: TypeUint32, Scalar: uint32(32)}); err != nil {
		t.Fatalf("AppendKV: %v", err)
	}
	if err := f.AppendTensorInfo("weights", []uint64{2, 2}, TensorTypeF32, 0); err != nil {
		t.Fatalf("AppendTensorInfo: %v", err)
	}

	payload := make([]byte, 16)
	for i, v := range []float32{1, 2, 3, 4} {
		bits := math.Float32bits(v)
		payload[i*4] = byte(bits)
		payload[i*4+1] = byte(bits >> 8)
		payload[i*4+2] = byte(bits >> 16)
		payload[i*4+3] = byte(bits >> 24)
	}
	if err := f.AppendTensorData(payload); err != nil {
		t.Fatalf("AppendTensorData: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err = Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	if f.Alignment() != 32 {
		t.Fatalf("Alignment() = %d, want 32", f.Alignment())
	}

	kvs, err := f.ReadAllKV()
	if err != nil {
		t.Fatalf("ReadAllKV: %v", err)
	}
	if len(kvs) != 1 || kvs[0].Key != "general.alignment" || kvs[0].Value.Uint() != 32 {
		t.Fatalf("unexpected kvs: %+v", kvs)
	}

	info, ok, err := f.NextTensor()
	if err != nil || !ok {
		t.Fatalf("NextTensor: ok=%v err=%v", ok, err)
	}
	if info.NumWeights != 4 || info.NumBytes != 16 {
		t.Fatalf("info = %+v, want NumWeights=4 NumBytes=16", info)
	}
	if info.AbsoluteOffset%f.Alignment() != 0 {
		t.Fatalf("AbsoluteOffset %d is not aligned to %d", info.AbsoluteOffset, f.Alignment())
	}

	raw, err := f.Bytes(info)
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if len(raw) != 16 {
		t.Fatalf("Bytes returned %d bytes, want 16", len(raw))
	}

	if _, ok, err := f.NextTensor(); ok || err != nil {
		t.Fatalf("expected no further tensors: ok=%v err=%v", ok, err)
	}
}

func TestAppendKVAfterTensorInfoFailsOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "order.gguf")
	f, err := Create(path, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer f.Close()

	if err := f.AppendTensorInfo("t", []uint64{1}, TensorTypeF32, 0); err != nil {
		t.Fatalf("AppendTensorInfo: %v", err)
	}
	err = f.AppendKV("late", TypeUint32, Value{Type: TypeUint32, Scalar: uint32(1)})
	if err == nil {
		t.Fatal("expected AppendKV after AppendTensorInfo to fail")
	}
	var gerr *Error
	if !errors.As(err, &gerr) || gerr.Kind != ErrOrder {
		t.Fatalf("expected ErrOrder, got %v", err)
	}
}

func TestOverridingAlignmentShiftsOffsets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aligned64.gguf")
	f, err := Create(path, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := f.AppendKV("general.alignment", TypeUint32, Value{Type: TypeUint32, Scalar: uint32(64)}); err != nil {
		t.Fatalf("AppendKV: %v", err)
	}
	if err := f.AppendTensorInfo("a", []uint64{1}, TensorTypeF32, 0); err != nil {
		t.Fatalf("AppendTensorInfo: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err = Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	if _, err := f.ReadAllKV(); err != nil {
		t.Fatalf("ReadAllKV: %v", err)
	}
	info, ok, err := f.NextTensor()
	if err != nil || !ok {
		t.Fatalf("NextTensor: ok=%v err=%v", ok, err)
	}
	if info.AbsoluteOffset%64 != 0 {
		t.Fatalf("AbsoluteOffset %d not a multiple of overridden alignment 64", info.AbsoluteOffset)
	}
}

func TestAppendKVRejectsInvalidAlignment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad-align.gguf")
	f, err := Create(path, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer f.Close()

	for _, bad := range []uint32{0, 3, 100} {
		err := f.AppendKV("general.alignment", TypeUint32, Value{Type: TypeUint32, Scalar: bad})
		var gerr *Error
		if !errors.As(err, &gerr) || gerr.Kind != ErrTruncated {
			t.Errorf("alignment %d: expected ErrTruncated, got %v", bad, err)
		}
	}
}

// TestZeroAlignmentInFileFailsTerminally matches a crafted
// general.alignment=0 file: the reader must fail with a terminal error
// rather than panic on a divide-by-zero when computing the data offset.
func TestZeroAlignmentInFileFailsTerminally(t *testing.T) {
	path := filepath.Join(t.TempDir(), "malicious.gguf")

	var buf []byte
	appendU64 := func(v uint64) { b := make([]byte, 8); binary.LittleEndian.PutUint64(b, v); buf = append(buf, b...) }
	appendU32 := func(v uint32) { b := make([]byte, 4); binary.LittleEndian.PutUint32(b, v); buf = append(buf, b...) }
	appendString := func(s string) { appendU64(uint64(len(s))); buf = append(buf, s...) }

	buf = append(buf, magic[:]...)
	appendU32(3)  // version
	appendU64(0)  // tensor count
	appendU64(1)  // metadata kv count

	appendString("general.alignment")
	appendU32(uint32(TypeUint32))
	appendU32(0) // malicious alignment value

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	_, _, err = f.NextKey()
	var gerr *Error
	if !errors.As(err, &gerr) || gerr.Kind != ErrTruncated {
		t.Fatalf("expected ErrTruncated from a zero alignment override, got %v", err)
	}
}
