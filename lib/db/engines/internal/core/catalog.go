package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/ValentinKolb/objkv/lib/db"
)

var catalogKey = []byte("catalog")

// Catalog is the persisted description of a database. It lives in the meta
// bucket and only changes inside a version-change transaction.
type Catalog struct {
	Version uint64           `json:"version"`
	Codec   string           `json:"codec"`
	Stores  []db.StoreSchema `json:"stores"`
}

func loadCatalog(be Backend) (*Catalog, error) {
	b, err := be.Bucket(metaBucket)
	if errors.Is(err, ErrNoBucket) {
		return &Catalog{}, nil
	} else if err != nil {
		return nil, err
	}
	raw, err := b.Get(catalogKey)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return &Catalog{}, nil
	}
	cat := &Catalog{}
	if err := json.Unmarshal(raw, cat); err != nil {
		return nil, fmt.Errorf("corrupt catalog: %w", err)
	}
	return cat, nil
}

func saveCatalog(be Backend, cat *Catalog) error {
	b, err := be.CreateBucket(metaBucket)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(cat)
	if err != nil {
		return err
	}
	return b.Put(catalogKey, raw)
}

func (c *Catalog) clone() *Catalog {
	out := &Catalog{Version: c.Version, Codec: c.Codec, Stores: make([]db.StoreSchema, len(c.Stores))}
	for i, s := range c.Stores {
		out.Stores[i] = s.Clone()
	}
	return out
}

// store returns a pointer into the catalog, changes to it are changes to the catalog.
func (c *Catalog) store(name string) (*db.StoreSchema, bool) {
	for i := range c.Stores {
		if c.Stores[i].Name == name {
			return &c.Stores[i], true
		}
	}
	return nil, false
}

func (c *Catalog) removeStore(name string) {
	c.Stores = slices.DeleteFunc(c.Stores, func(s db.StoreSchema) bool { return s.Name == name })
}

func (c *Catalog) storeNames() []string {
	names := make([]string, 0, len(c.Stores))
	for _, s := range c.Stores {
		names = append(names, s.Name)
	}
	slices.Sort(names)
	return names
}
