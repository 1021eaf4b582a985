package gguf

import (
	"path/filepath"
	"testing"
)

// TestArrayValueCallbackOrder matches the array-value scenario: a
// UINT32[3] array of {10,20,30} must fire ARRAY_START, three primitives
// with 1-based in_array indices, then ARRAY_END, all with in_array 0 at
// the boundaries.
func TestArrayValueCallbackOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "array.gguf")
	f, err := Create(path, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer f.Close()

	arr := Value{
		Type:     TypeArray,
		ElemType: TypeUint32,
		Elems: []Value{
			{Type: TypeUint32, Scalar: uint32(10)},
			{Type: TypeUint32, Scalar: uint32(20)},
			{Type: TypeUint32, Scalar: uint32(30)},
		},
	}
	if err := f.AppendKV("nums", TypeArray, arr); err != nil {
		t.Fatalf("AppendKV: %v", err)
	}
	if err := f.Rewind(); err != nil {
		t.Fatalf("Rewind: %v", err)
	}

	k, ok, err := f.NextKey()
	if err != nil || !ok {
		t.Fatalf("NextKey: ok=%v err=%v", ok, err)
	}

	type event struct {
		kind    EventKind
		value   any
		inArray int
	}
	var got []event
	err = f.ConsumeValue(k, func(e Event) error {
		got = append(got, event{e.Kind, e.Value, e.InArray})
		return nil
	})
	if err != nil {
		t.Fatalf("ConsumeValue: %v", err)
	}

	want := []event{
		{EventArrayStart, nil, 0},
		{EventPrimitive, uint32(10), 1},
		{EventPrimitive, uint32(20), 2},
		{EventPrimitive, uint32(30), 3},
		{EventArrayEnd, nil, 0},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i].kind != want[i].kind || got[i].inArray != want[i].inArray {
			t.Errorf("event %d = %+v, want %+v", i, got[i], want[i])
		}
		if want[i].kind == EventPrimitive && got[i].value != want[i].value {
			t.Errorf("event %d value = %v, want %v", i, got[i].value, want[i].value)
		}
	}
}

func TestReadValueMaterialisesNestedArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested.gguf")
	f, err := Create(path, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer f.Close()

	inner := func(vals ...uint32) Value {
		elems := make([]Value, len(vals))
		for i, v := range vals {
			elems[i] = Value{Type: TypeUint32, Scalar: v}
		}
		return Value{Type: TypeArray, ElemType: TypeUint32, Elems: elems}
	}
	outer := Value{Type: TypeArray, ElemType: TypeArray, Elems: []Value{inner(1, 2), inner(3)}}

	if err := f.AppendKV("matrix", TypeArray, outer); err != nil {
		t.Fatalf("AppendKV: %v", err)
	}

	kvs, err := f.ReadAllKV()
	if err != nil {
		t.Fatalf("ReadAllKV: %v", err)
	}
	if len(kvs) != 1 {
		t.Fatalf("got %d kvs, want 1", len(kvs))
	}
	v := kvs[0].Value
	if v.Type != TypeArray || len(v.Elems) != 2 {
		t.Fatalf("unexpected shape: %+v", v)
	}
	if len(v.Elems[0].Elems) != 2 || v.Elems[0].Elems[1].Uint() != 2 {
		t.Errorf("unexpected first row: %+v", v.Elems[0])
	}
	if len(v.Elems[1].Elems) != 1 || v.Elems[1].Elems[0].Uint() != 3 {
		t.Errorf("unexpected second row: %+v", v.Elems[1])
	}
}
