package db

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// Key is the order-preserving binary encoding of a key value. Comparing two
// encoded keys with bytes.Compare gives the same order as comparing the values:
// numbers sort before strings, strings before binary values.
//
// Layout:
//   - number: 0x10, 8 bytes big-endian float64 with the sign bit flipped (negative numbers fully inverted)
//   - string: 0x30, UTF-8 bytes with 0x00 escaped as 0x00 0xFF, terminated by 0x00 0x01
//   - binary: 0x40, same escaping as strings
//
// All encodings are self-delimiting, so a key can be followed by another key
// (index entries are the index value followed by the primary key).
type Key []byte

const (
	tagNumber byte = 0x10
	tagString byte = 0x30
	tagBinary byte = 0x40

	escByte  byte = 0x00
	escZero  byte = 0xFF
	escFinal byte = 0x01
)

// EncodeKey encodes a key value. Valid key values are numbers (any Go integer
// or float kind and json.Number), strings and []byte.
func EncodeKey(v any) (Key, error) {
	switch t := v.(type) {
	case string:
		return appendEscaped([]byte{tagString}, []byte(t)), nil
	case []byte:
		return appendEscaped([]byte{tagBinary}, t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrData, t.String())
		}
		return encodeNumber(f)
	case float64:
		return encodeNumber(t)
	case float32:
		return encodeNumber(float64(t))
	case int:
		return encodeNumber(float64(t))
	case int8:
		return encodeNumber(float64(t))
	case int16:
		return encodeNumber(float64(t))
	case int32:
		return encodeNumber(float64(t))
	case int64:
		return encodeNumber(float64(t))
	case uint:
		return encodeNumber(float64(t))
	case uint8:
		return encodeNumber(float64(t))
	case uint16:
		return encodeNumber(float64(t))
	case uint32:
		return encodeNumber(float64(t))
	case uint64:
		return encodeNumber(float64(t))
	case Key:
		// already encoded
		if _, _, err := SplitKey(t); err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("%w: %T is not a valid key type", ErrData, v)
	}
}

// MustEncodeKey is like EncodeKey but panics on invalid values. Intended for tests and constants.
func MustEncodeKey(v any) Key {
	k, err := EncodeKey(v)
	if err != nil {
		panic(err)
	}
	return k
}

func encodeNumber(f float64) (Key, error) {
	if math.IsNaN(f) {
		return nil, fmt.Errorf("%w: NaN is not a valid key", ErrData)
	}
	if f == 0 {
		f = 0 // -0 and +0 are the same key
	}
	bits := math.Float64bits(f)
	if bits&(1<<63) == 0 {
		bits |= 1 << 63
	} else {
		bits = ^bits
	}
	out := make([]byte, 9)
	out[0] = tagNumber
	binary.BigEndian.PutUint64(out[1:], bits)
	return out, nil
}

func appendEscaped(dst, src []byte) []byte {
	for _, b := range src {
		if b == escByte {
			dst = append(dst, escByte, escZero)
			continue
		}
		dst = append(dst, b)
	}
	return append(dst, escByte, escFinal)
}

// SplitKey splits the first encoded key off b.
func SplitKey(b []byte) (head Key, rest []byte, err error) {
	if len(b) == 0 {
		return nil, nil, fmt.Errorf("%w: empty key", ErrData)
	}
	switch b[0] {
	case tagNumber:
		if len(b) < 9 {
			return nil, nil, fmt.Errorf("%w: truncated number key", ErrData)
		}
		return Key(b[:9]), b[9:], nil
	case tagString, tagBinary:
		for i := 1; i < len(b); i++ {
			if b[i] != escByte {
				continue
			}
			if i+1 >= len(b) {
				break
			}
			if b[i+1] == escFinal {
				return Key(b[:i+2]), b[i+2:], nil
			}
			i++ // skip escaped zero
		}
		return nil, nil, fmt.Errorf("%w: unterminated key", ErrData)
	default:
		return nil, nil, fmt.Errorf("%w: unknown key tag 0x%02x", ErrData, b[0])
	}
}

// DecodeKey decodes an encoded key back into a float64, string or []byte.
func DecodeKey(k Key) (any, error) {
	head, rest, err := SplitKey(k)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: trailing bytes after key", ErrData)
	}
	switch head[0] {
	case tagNumber:
		bits := binary.BigEndian.Uint64(head[1:])
		if bits&(1<<63) != 0 {
			bits &^= 1 << 63
		} else {
			bits = ^bits
		}
		return math.Float64frombits(bits), nil
	default:
		body := head[1 : len(head)-2]
		out := make([]byte, 0, len(body))
		for i := 0; i < len(body); i++ {
			out = append(out, body[i])
			if body[i] == escByte {
				i++
			}
		}
		if head[0] == tagString {
			return string(out), nil
		}
		return out, nil
	}
}

// String returns the decoded key for display.
func (k Key) String() string {
	v, err := DecodeKey(k)
	if err != nil {
		return fmt.Sprintf("<invalid key %x>", []byte(k))
	}
	switch t := v.(type) {
	case string:
		return fmt.Sprintf("%q", t)
	case []byte:
		return fmt.Sprintf("0x%x", t)
	default:
		return fmt.Sprint(t)
	}
}

// Compare compares two keys in key order.
func (k Key) Compare(other Key) int {
	return bytes.Compare(k, other)
}

// --------------------------------------------------------------------------
// Key Ranges
// --------------------------------------------------------------------------

// KeyRange bounds the keys visited by a cursor. A nil bound is unbounded,
// a nil *KeyRange covers everything.
type KeyRange struct {
	Lower     Key
	Upper     Key
	LowerOpen bool
	UpperOpen bool
}

// Only returns the range that contains exactly one key value.
func Only(v any) (*KeyRange, error) {
	k, err := EncodeKey(v)
	if err != nil {
		return nil, err
	}
	return &KeyRange{Lower: k, Upper: k}, nil
}

// Bound returns the range between lower and upper.
func Bound(lower, upper any, lowerOpen, upperOpen bool) (*KeyRange, error) {
	lk, err := EncodeKey(lower)
	if err != nil {
		return nil, err
	}
	uk, err := EncodeKey(upper)
	if err != nil {
		return nil, err
	}
	c := lk.Compare(uk)
	if c > 0 || (c == 0 && (lowerOpen || upperOpen)) {
		return nil, fmt.Errorf("%w: empty key range", ErrData)
	}
	return &KeyRange{Lower: lk, Upper: uk, LowerOpen: lowerOpen, UpperOpen: upperOpen}, nil
}

// LowerBound returns the range of all keys above v.
func LowerBound(v any, open bool) (*KeyRange, error) {
	k, err := EncodeKey(v)
	if err != nil {
		return nil, err
	}
	return &KeyRange{Lower: k, LowerOpen: open}, nil
}

// UpperBound returns the range of all keys below v.
func UpperBound(v any, open bool) (*KeyRange, error) {
	k, err := EncodeKey(v)
	if err != nil {
		return nil, err
	}
	return &KeyRange{Upper: k, UpperOpen: open}, nil
}

// Start returns the key a cursor has to seek to (nil for the first key).
func (r *KeyRange) Start() Key {
	if r == nil {
		return nil
	}
	return r.Lower
}

// BelowLower reports whether k lies before the lower bound.
func (r *KeyRange) BelowLower(k Key) bool {
	if r == nil || r.Lower == nil {
		return false
	}
	c := k.Compare(r.Lower)
	return c < 0 || (c == 0 && r.LowerOpen)
}

// AboveUpper reports whether k lies past the upper bound.
func (r *KeyRange) AboveUpper(k Key) bool {
	if r == nil || r.Upper == nil {
		return false
	}
	c := k.Compare(r.Upper)
	return c > 0 || (c == 0 && r.UpperOpen)
}

// Includes reports whether k lies inside the range.
func (r *KeyRange) Includes(k Key) bool {
	return !r.BelowLower(k) && !r.AboveUpper(k)
}
