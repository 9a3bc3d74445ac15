package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/objkv/lib/db"
	"github.com/ValentinKolb/objkv/lib/db/codec"
	"github.com/lni/dragonboat/v4/logger"
)

// features every engine built on this package supports
const baseFeatures = db.FeatureAdd | db.FeaturePut | db.FeatureGet | db.FeatureDelete |
	db.FeatureCursor | db.FeatureAdvance | db.FeatureIndex | db.FeatureUniqueIndex | db.FeatureVersioning

// Database implements db.ObjectDB on top of a Driver.
type Database struct {
	name   string
	driver Driver
	codec  codec.IRecordCodec
	log    logger.ILogger

	mu  sync.RWMutex
	cat *Catalog

	closed atomic.Bool
}

// Open reads the catalog of the database behind d and runs the upgrade if the
// requested version is higher than the stored one. The driver is closed if
// opening fails.
func Open(ctx context.Context, d Driver, name string, version uint64, upgrade db.UpgradeFunc, c codec.IRecordCodec, log logger.ILogger) (_ *Database, err error) {
	defer func() {
		if err != nil {
			_ = d.Close()
		}
	}()

	if version == 0 {
		return nil, fmt.Errorf("%w: version must be at least 1", db.ErrVersion)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var stored *Catalog
	if err := d.View(ctx, func(be Backend) error {
		var err error
		stored, err = loadCatalog(be)
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to read catalog of %q: %w", name, err)
	}
	if err := checkCatalog(stored, version, c); err != nil {
		return nil, err
	}

	database := &Database{name: name, driver: d, codec: c, log: log, cat: stored}
	if version == stored.Version {
		return database, nil
	}

	var next *Catalog
	err = d.Update(ctx, func(be Backend) error {
		// read again, another handle may have upgraded in between
		current, err := loadCatalog(be)
		if err != nil {
			return err
		}
		if err := checkCatalog(current, version, c); err != nil {
			return err
		}
		next = current.clone()
		if current.Version == version {
			return nil
		}

		log.Infof("upgrading database %q from version %d to %d", name, current.Version, version)
		next.Codec = c.Name()
		tx := &upgradeTxn{
			txn:        newTxn(ctx, database, be, next, db.TxVersionChange, nil),
			oldVersion: current.Version,
			newVersion: version,
		}
		defer tx.finish()

		if upgrade != nil {
			if err := upgrade(tx); err != nil {
				return fmt.Errorf("upgrade of %q to version %d failed: %w", name, version, err)
			}
		}
		next.Version = version
		return saveCatalog(be, next)
	})
	if err != nil {
		return nil, err
	}

	database.cat = next
	return database, nil
}

func checkCatalog(cat *Catalog, version uint64, c codec.IRecordCodec) error {
	if version < cat.Version {
		return fmt.Errorf("%w: requested version %d is lower than the stored version %d", db.ErrVersion, version, cat.Version)
	}
	if cat.Codec != "" && cat.Codec != c.Name() {
		return fmt.Errorf("%w: database was written with %q, opened with %q", db.ErrCodec, cat.Codec, c.Name())
	}
	return nil
}

func (d *Database) catalog() *Catalog {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cat
}

// --------------------------------------------------------------------------
// Interface Methods (docu see db.ObjectDB)
// --------------------------------------------------------------------------

func (d *Database) Name() string {
	return d.name
}

func (d *Database) Version() uint64 {
	return d.catalog().Version
}

func (d *Database) ObjectStoreNames() []string {
	return d.catalog().storeNames()
}

func (d *Database) Schema() []db.StoreSchema {
	return d.catalog().clone().Stores
}

func (d *Database) View(ctx context.Context, scope []string, fn func(tx db.Tx) error) error {
	return d.run(ctx, scope, db.TxReadOnly, fn)
}

func (d *Database) Update(ctx context.Context, scope []string, fn func(tx db.Tx) error) error {
	return d.run(ctx, scope, db.TxReadWrite, fn)
}

func (d *Database) SupportsFeature(feature db.Feature) bool {
	supported := baseFeatures | d.driver.Features()
	return supported&feature == feature
}

func (d *Database) GetInfo() db.DatabaseInfo {
	info := db.DatabaseInfo{
		SizeBytes:         d.driver.SizeBytes(),
		DbType:            d.driver.Impl(),
		SupportedFeatures: (baseFeatures | d.driver.Features()).Features(),
	}
	meta, err := d.metadata()
	if err != nil {
		d.log.Warningf("failed to collect metadata of %q: %v", d.name, err)
		info.Metadata = err.Error()
		return info
	}
	info.Metadata = meta
	return info
}

func (d *Database) Close() error {
	if d.closed.Swap(true) {
		return db.ErrClosed
	}
	return d.driver.Close()
}

// --------------------------------------------------------------------------
// Transactions
// --------------------------------------------------------------------------

func (d *Database) run(ctx context.Context, scope []string, mode db.TxMode, fn func(tx db.Tx) error) error {
	if d.closed.Load() {
		return db.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(scope) == 0 {
		return fmt.Errorf("%w: transaction without object stores", db.ErrData)
	}

	cat := d.catalog()
	for _, name := range scope {
		if _, ok := cat.store(name); !ok {
			return fmt.Errorf("%w: object store %q", db.ErrNotFound, name)
		}
	}

	runner := d.driver.View
	if mode == db.TxReadWrite {
		runner = d.driver.Update
	}
	return runner(ctx, func(be Backend) error {
		tx := newTxn(ctx, d, be, cat, mode, scope)
		defer tx.finish()
		return fn(tx)
	})
}
