package db

import (
	"fmt"
	"slices"
)

// IndexSchema describes a secondary index.
type IndexSchema struct {
	Name    string `json:"name"`
	KeyPath string `json:"key_path"`
	Unique  bool   `json:"unique"`
}

// StoreSchema describes an object store and its indexes.
type StoreSchema struct {
	Name    string        `json:"name"`
	KeyPath string        `json:"key_path"`
	Indexes []IndexSchema `json:"indexes"`
}

// Index returns the schema of the named index.
func (s StoreSchema) Index(name string) (IndexSchema, bool) {
	for _, idx := range s.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return IndexSchema{}, false
}

// IndexNames returns the sorted names of the indexes of the store.
func (s StoreSchema) IndexNames() []string {
	names := make([]string, 0, len(s.Indexes))
	for _, idx := range s.Indexes {
		names = append(names, idx.Name)
	}
	slices.Sort(names)
	return names
}

// Clone returns a deep copy of the schema.
func (s StoreSchema) Clone() StoreSchema {
	s.Indexes = slices.Clone(s.Indexes)
	return s
}

// Validate checks that the store and all of its indexes have names and key paths
// and that no index is declared twice.
func (s StoreSchema) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: object store without a name", ErrData)
	}
	if s.KeyPath == "" {
		return fmt.Errorf("%w: object store %q without a key path", ErrData, s.Name)
	}
	seen := make(map[string]struct{}, len(s.Indexes))
	for _, idx := range s.Indexes {
		if idx.Name == "" || idx.KeyPath == "" {
			return fmt.Errorf("%w: index of %q needs a name and a key path", ErrData, s.Name)
		}
		if _, ok := seen[idx.Name]; ok {
			return fmt.Errorf("%w: index %q declared twice on %q", ErrConstraint, idx.Name, s.Name)
		}
		seen[idx.Name] = struct{}{}
	}
	return nil
}
