package core

import (
	"context"

	"github.com/ValentinKolb/objkv/lib/db"
	"github.com/ValentinKolb/objkv/lib/db/util"
)

// StoreInfo describes one object store in DatabaseInfo.Metadata.
type StoreInfo struct {
	Name    string           `json:"name"`
	KeyPath string           `json:"key_path"`
	Indexes []db.IndexSchema `json:"indexes"`
	Records int              `json:"records"`
	Sizes   util.Stats       `json:"record_sizes"`
}

// Metadata is the DatabaseInfo.Metadata of every engine built on this package.
type Metadata struct {
	Name    string      `json:"name"`
	Version uint64      `json:"version"`
	Codec   string      `json:"codec"`
	Stores  []StoreInfo `json:"stores"`
}

func (d *Database) metadata() (Metadata, error) {
	cat := d.catalog()
	meta := Metadata{Name: d.name, Version: cat.Version, Codec: d.codec.Name()}
	if d.closed.Load() {
		return meta, db.ErrClosed
	}

	err := d.driver.View(context.Background(), func(be Backend) error {
		for _, s := range cat.Stores {
			data, err := be.Bucket(storeBucket(s.Name))
			if err != nil {
				return err
			}
			sizes := util.NewSizeCollector()
			if err := scan(data, nil, func(_, v []byte) (bool, error) {
				sizes.Add(len(v))
				return true, nil
			}); err != nil {
				return err
			}
			stats := sizes.Stats()
			meta.Stores = append(meta.Stores, StoreInfo{
				Name:    s.Name,
				KeyPath: s.KeyPath,
				Indexes: s.Clone().Indexes,
				Records: stats.Count,
				Sizes:   stats,
			})
		}
		return nil
	})
	return meta, err
}
