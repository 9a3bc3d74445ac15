package oak

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/ValentinKolb/objkv/lib/db"
	"github.com/ValentinKolb/objkv/lib/db/codec"
	"github.com/ValentinKolb/objkv/lib/db/engines/internal/core"
	"github.com/boltdb/bolt"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("engine/oak")

// FileExt is appended to the database name to build the file name.
const FileExt = ".oak"

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// DBOptions configures the oak engine
type DBOptions struct {
	Dir         string             // Directory holding one file per database
	LockTimeout time.Duration      // How long to wait for the file lock of another process (0 = use default)
	NoSync      bool               // Skip fsync after each commit (unsafe, for tests and bulk loads)
	Codec       codec.IRecordCodec // Record codec (nil = gob)
}

// DefaultOptions returns the default oak options for the given directory
func DefaultOptions(dir string) *DBOptions {
	return &DBOptions{
		Dir:         dir,
		LockTimeout: time.Second,
		Codec:       codec.NewGOBCodec(),
	}
}

// NewOpener returns an Opener for databases stored as bolt files in opts.Dir.
// A database file can only be open once at a time, a second open waits for
// the lock until LockTimeout and then fails.
//
// Thread-safety: The returned Opener is safe for concurrent use.
func NewOpener(opts *DBOptions) db.Opener {
	defaults := DefaultOptions(".")
	if opts == nil {
		opts = defaults
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = defaults.LockTimeout
	}
	if opts.Codec == nil {
		opts.Codec = defaults.Codec
	}

	return func(ctx context.Context, name string, version uint64, upgrade db.UpgradeFunc) (db.ObjectDB, error) {
		path, err := Path(opts.Dir, name)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}

		bdb, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: opts.LockTimeout})
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		bdb.NoSync = opts.NoSync
		log.Debugf("opened %s", path)

		database, err := core.Open(ctx, &oakDriver{bolt: bdb}, name, version, upgrade, opts.Codec, log)
		if err != nil {
			return nil, err
		}
		return database, nil
	}
}

// Path returns the file that holds the named database.
func Path(dir, name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: invalid database name %q", db.ErrData, name)
	}
	return filepath.Join(dir, name+FileExt), nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see core.Driver)
// --------------------------------------------------------------------------

// oakDriver implements core.Driver on top of a bolt file
type oakDriver struct {
	bolt *bolt.DB
}

func (d *oakDriver) Impl() db.Implementation {
	return db.ImplOak
}

func (d *oakDriver) Features() db.Feature {
	return db.FeaturePersistence
}

func (d *oakDriver) View(ctx context.Context, fn func(be core.Backend) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapErr(d.bolt.View(func(tx *bolt.Tx) error {
		return fn(&backend{tx: tx})
	}))
}

func (d *oakDriver) Update(ctx context.Context, fn func(be core.Backend) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapErr(d.bolt.Update(func(tx *bolt.Tx) error {
		return fn(&backend{tx: tx})
	}))
}

func (d *oakDriver) SizeBytes() int64 {
	var size int64
	_ = d.bolt.View(func(tx *bolt.Tx) error {
		size = tx.Size()
		return nil
	})
	return size
}

func (d *oakDriver) Close() error {
	return d.bolt.Close()
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, bolt.ErrDatabaseNotOpen):
		return fmt.Errorf("%w: %v", db.ErrClosed, err)
	case errors.Is(err, bolt.ErrTxNotWritable):
		return fmt.Errorf("%w: %v", db.ErrReadOnly, err)
	default:
		return err
	}
}

// --------------------------------------------------------------------------
// Transaction Backend
// --------------------------------------------------------------------------

type backend struct {
	tx *bolt.Tx
}

func (b *backend) Bucket(name []byte) (core.Bucket, error) {
	bb := b.tx.Bucket(name)
	if bb == nil {
		return nil, core.ErrNoBucket
	}
	return &bucket{b: bb}, nil
}

func (b *backend) CreateBucket(name []byte) (core.Bucket, error) {
	if !b.tx.Writable() {
		return nil, db.ErrReadOnly
	}
	bb, err := b.tx.CreateBucketIfNotExists(name)
	if err != nil {
		return nil, err
	}
	return &bucket{b: bb}, nil
}

func (b *backend) DeleteBucket(name []byte) error {
	if !b.tx.Writable() {
		return db.ErrReadOnly
	}
	err := b.tx.DeleteBucket(name)
	if errors.Is(err, bolt.ErrBucketNotFound) {
		return nil
	}
	return err
}

// bucket copies every slice it returns, bolt slices are only valid until the
// next write in the transaction.
type bucket struct {
	b *bolt.Bucket
}

func (b *bucket) Get(k []byte) ([]byte, error) {
	return slices.Clone(b.b.Get(k)), nil
}

func (b *bucket) Seek(k []byte) ([]byte, []byte, error) {
	c := b.b.Cursor()
	var key, value []byte
	if len(k) == 0 {
		key, value = c.First()
	} else {
		key, value = c.Seek(k)
	}
	if key == nil {
		return nil, nil, nil
	}
	return slices.Clone(key), slices.Clone(value), nil
}

func (b *bucket) Put(k, v []byte) error {
	return mapErr(b.b.Put(k, v))
}

func (b *bucket) Delete(k []byte) error {
	return mapErr(b.b.Delete(k))
}
