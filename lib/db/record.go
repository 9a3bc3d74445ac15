package db

import (
	"fmt"
	"strings"
)

// Record is a single object stored in an object store. Records are decoded
// into fresh maps on every read, callers own what they get back.
type Record map[string]any

// Lookup resolves a key path against the record. Key paths are field names
// separated by dots, "a.b" reads the field b of the nested object a.
func (r Record) Lookup(keyPath string) (any, bool) {
	var cur any = map[string]any(r)
	for _, part := range strings.Split(keyPath, ".") {
		switch m := cur.(type) {
		case map[string]any:
			v, ok := m[part]
			if !ok {
				return nil, false
			}
			cur = v
		case Record:
			v, ok := m[part]
			if !ok {
				return nil, false
			}
			cur = v
		default:
			return nil, false
		}
	}
	return cur, true
}

// KeyOf extracts and encodes the value at keyPath. It fails with ErrData if
// the value is missing or not a valid key.
func (r Record) KeyOf(keyPath string) (Key, error) {
	v, ok := r.Lookup(keyPath)
	if !ok {
		return nil, fmt.Errorf("%w: record has no value at key path %q", ErrData, keyPath)
	}
	k, err := EncodeKey(v)
	if err != nil {
		return nil, fmt.Errorf("key path %q: %w", keyPath, err)
	}
	return k, nil
}
