package db

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"sort"
	"testing"
)

// TestKeyOrder tests that encoded keys sort like their values
func TestKeyOrder(t *testing.T) {
	ordered := []any{
		math.Inf(-1), -1e10, -2.5, -1, 0, 0.5, 1, 2, 10, 1e10, math.Inf(1),
		"", "\x00", "\x00a", "a", "a\x00", "ab", "b", "ä",
		[]byte{}, []byte{0}, []byte{0, 0}, []byte{1}, []byte{0xff},
	}

	keys := make([]Key, len(ordered))
	for i, v := range ordered {
		k, err := EncodeKey(v)
		if err != nil {
			t.Fatalf("EncodeKey(%v) failed: %v", v, err)
		}
		keys[i] = k
	}

	for i := 1; i < len(keys); i++ {
		if bytes.Compare(keys[i-1], keys[i]) >= 0 {
			t.Errorf("Expected %v < %v in key order", ordered[i-1], ordered[i])
		}
	}

	shuffled := make([]Key, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		shuffled = append(shuffled, keys[i])
	}
	sort.Slice(shuffled, func(i, j int) bool { return bytes.Compare(shuffled[i], shuffled[j]) < 0 })
	for i := range keys {
		if !bytes.Equal(keys[i], shuffled[i]) {
			t.Fatalf("Sorting encoded keys changed the order at %d", i)
		}
	}
}

// TestKeyNumericKinds tests that all numeric kinds map onto the same key
func TestKeyNumericKinds(t *testing.T) {
	want := MustEncodeKey(float64(42))
	for _, v := range []any{42, int8(42), int16(42), int32(42), int64(42), uint(42), uint8(42),
		uint16(42), uint32(42), uint64(42), float32(42), json.Number("42")} {
		got, err := EncodeKey(v)
		if err != nil {
			t.Fatalf("EncodeKey(%T) failed: %v", v, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("EncodeKey(%T(42)) = %x, want %x", v, got, want)
		}
	}

	if !bytes.Equal(MustEncodeKey(math.Copysign(0, -1)), MustEncodeKey(0)) {
		t.Error("Expected -0 and +0 to encode to the same key")
	}
}

// TestKeyInvalid tests that invalid key values are rejected with ErrData
func TestKeyInvalid(t *testing.T) {
	for _, v := range []any{nil, true, math.NaN(), map[string]any{}, []any{1}, json.Number("x")} {
		if _, err := EncodeKey(v); !errors.Is(err, ErrData) {
			t.Errorf("EncodeKey(%#v) error = %v, want ErrData", v, err)
		}
	}
}

// TestKeyDecode tests decoding of encoded keys
func TestKeyDecode(t *testing.T) {
	for _, v := range []any{-3.25, 0.0, 7.0, "hello", "with\x00zero", ""} {
		got, err := DecodeKey(MustEncodeKey(v))
		if err != nil {
			t.Fatalf("DecodeKey failed for %v: %v", v, err)
		}
		if got != v {
			t.Errorf("DecodeKey = %#v, want %#v", got, v)
		}
	}

	raw := []byte{0, 1, 0, 2}
	got, err := DecodeKey(MustEncodeKey(raw))
	if err != nil || !bytes.Equal(got.([]byte), raw) {
		t.Errorf("DecodeKey = %v (%v), want %v", got, err, raw)
	}
}

// TestSplitKey tests splitting composite keys
func TestSplitKey(t *testing.T) {
	value := MustEncodeKey("a\x00b")
	pk := MustEncodeKey(12)
	composite := append(append([]byte{}, value...), pk...)

	head, rest, err := SplitKey(composite)
	if err != nil {
		t.Fatalf("SplitKey failed: %v", err)
	}
	if !bytes.Equal(head, value) {
		t.Errorf("Expected head %x, got %x", value, head)
	}
	if !bytes.Equal(rest, pk) {
		t.Errorf("Expected rest %x, got %x", pk, rest)
	}

	if _, _, err := SplitKey([]byte{tagString, 'a'}); !errors.Is(err, ErrData) {
		t.Errorf("Expected ErrData for unterminated key, got %v", err)
	}
	if _, _, err := SplitKey([]byte{0x99}); !errors.Is(err, ErrData) {
		t.Errorf("Expected ErrData for unknown tag, got %v", err)
	}
}

// TestKeyRange tests range bounds
func TestKeyRange(t *testing.T) {
	only, err := Only("b")
	if err != nil {
		t.Fatalf("Only failed: %v", err)
	}
	if !only.Includes(MustEncodeKey("b")) {
		t.Error("Only(b) should include b")
	}
	if only.Includes(MustEncodeKey("a")) || only.Includes(MustEncodeKey("c")) {
		t.Error("Only(b) should exclude a and c")
	}

	r, err := Bound(1, 5, true, false)
	if err != nil {
		t.Fatalf("Bound failed: %v", err)
	}
	if r.Includes(MustEncodeKey(1)) {
		t.Error("Open lower bound should exclude 1")
	}
	if !r.Includes(MustEncodeKey(5)) || !r.Includes(MustEncodeKey(3)) {
		t.Error("Range (1,5] should include 3 and 5")
	}
	if !r.AboveUpper(MustEncodeKey(6)) {
		t.Error("6 should be above (1,5]")
	}

	if _, err := Bound(5, 1, false, false); !errors.Is(err, ErrData) {
		t.Errorf("Expected ErrData for inverted range, got %v", err)
	}

	var all *KeyRange
	if !all.Includes(MustEncodeKey("anything")) || all.Start() != nil {
		t.Error("Nil range should include every key and start at the first")
	}
}

// TestRecordLookup tests key path resolution
func TestRecordLookup(t *testing.T) {
	rec := Record{
		"uuid": "u-1",
		"meta": map[string]any{"owner": map[string]any{"id": 7.0}},
	}

	if v, ok := rec.Lookup("uuid"); !ok || v != "u-1" {
		t.Errorf("Lookup(uuid) = %v, %v", v, ok)
	}
	if v, ok := rec.Lookup("meta.owner.id"); !ok || v != 7.0 {
		t.Errorf("Lookup(meta.owner.id) = %v, %v", v, ok)
	}
	if _, ok := rec.Lookup("meta.missing"); ok {
		t.Error("Lookup of a missing path should fail")
	}
	if _, ok := rec.Lookup("uuid.deeper"); ok {
		t.Error("Lookup through a scalar should fail")
	}

	if _, err := (Record{"x": 1}).KeyOf("uuid"); !errors.Is(err, ErrData) {
		t.Errorf("KeyOf without key should fail with ErrData, got %v", err)
	}
}
