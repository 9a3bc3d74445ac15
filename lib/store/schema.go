package store

import (
	"fmt"

	"github.com/ValentinKolb/objkv/lib/db"
)

// Names of the default object stores and their indexes.
const (
	StoreUsersMD  = "users_md"
	StoreUsersImg = "users_img"

	KeyPathUUID = "uuid"

	IndexUUID        = "uuid"
	IndexContentText = "contentText"
	IndexImgBase64   = "imgBase64"
)

// Schema is the set of object stores a store adapter declares on open.
type Schema struct {
	Stores []db.StoreSchema `json:"stores"`
}

// DefaultSchema returns the schema of the two user stores: markdown content
// (users_md) and images (users_img), both keyed by uuid.
func DefaultSchema() Schema {
	return Schema{Stores: []db.StoreSchema{
		{
			Name:    StoreUsersMD,
			KeyPath: KeyPathUUID,
			Indexes: []db.IndexSchema{
				{Name: IndexUUID, KeyPath: KeyPathUUID, Unique: true},
				{Name: IndexContentText, KeyPath: IndexContentText},
			},
		},
		{
			Name:    StoreUsersImg,
			KeyPath: KeyPathUUID,
			Indexes: []db.IndexSchema{
				{Name: IndexUUID, KeyPath: KeyPathUUID, Unique: true},
				{Name: IndexImgBase64, KeyPath: IndexImgBase64},
			},
		},
	}}
}

// Store returns the schema of the named store.
func (s Schema) Store(name string) (db.StoreSchema, bool) {
	for _, st := range s.Stores {
		if st.Name == name {
			return st, true
		}
	}
	return db.StoreSchema{}, false
}

// StoreNames returns the store names in declaration order.
func (s Schema) StoreNames() []string {
	names := make([]string, 0, len(s.Stores))
	for _, st := range s.Stores {
		names = append(names, st.Name)
	}
	return names
}

// Validate checks every store of the schema and rejects duplicate store names.
func (s Schema) Validate() error {
	if len(s.Stores) == 0 {
		return fmt.Errorf("%w: schema without object stores", db.ErrData)
	}
	seen := make(map[string]struct{}, len(s.Stores))
	for _, st := range s.Stores {
		if err := st.Validate(); err != nil {
			return err
		}
		if _, ok := seen[st.Name]; ok {
			return fmt.Errorf("%w: object store %q declared twice", db.ErrConstraint, st.Name)
		}
		seen[st.Name] = struct{}{}
	}
	return nil
}

// Upgrade returns the upgrade routine declaring the schema. It only creates
// stores and indexes that do not exist yet and leaves everything else as it
// is, so it can run for every version bump.
func (s Schema) Upgrade() db.UpgradeFunc {
	return func(tx db.UpgradeTx) error {
		for _, st := range s.Stores {
			if !tx.HasObjectStore(st.Name) {
				if _, err := tx.CreateObjectStore(st.Name, st.KeyPath); err != nil {
					return fmt.Errorf("create object store %q: %w", st.Name, err)
				}
			}
			for _, idx := range st.Indexes {
				if tx.HasIndex(st.Name, idx.Name) {
					continue
				}
				if err := tx.CreateIndex(st.Name, idx.Name, idx.KeyPath, idx.Unique); err != nil {
					return fmt.Errorf("create index %q on %q: %w", idx.Name, st.Name, err)
				}
			}
		}
		return nil
	}
}
