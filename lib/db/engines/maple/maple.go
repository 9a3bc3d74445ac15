package maple

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/objkv/lib/db"
	"github.com/ValentinKolb/objkv/lib/db/codec"
	"github.com/ValentinKolb/objkv/lib/db/engines/internal/core"
	"github.com/google/btree"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var log = logger.GetLogger("engine/maple")

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// DBOptions configures the maple engine
type DBOptions struct {
	Degree int                // Degree of the btrees (0 = use default)
	Codec  codec.IRecordCodec // Record codec (nil = gob)
}

// DefaultOptions returns the default maple options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		Degree: 32,
		Codec:  codec.NewGOBCodec(),
	}
}

// NewOpener returns an Opener for in-memory databases with the specified options (optional).
// Databases opened through the same Opener under the same name share their
// data, so closing and reopening a database keeps its records and version.
//
// Thread-safety: The returned Opener is safe for concurrent use.
func NewOpener(opts *DBOptions) db.Opener {
	defaults := DefaultOptions()
	if opts == nil {
		opts = defaults
	}
	if opts.Degree < 2 {
		opts.Degree = defaults.Degree
	}
	if opts.Codec == nil {
		opts.Codec = defaults.Codec
	}

	registry := xsync.NewMapOf[string, *memStore]()
	return func(ctx context.Context, name string, version uint64, upgrade db.UpgradeFunc) (db.ObjectDB, error) {
		if name == "" {
			return nil, fmt.Errorf("%w: database name must not be empty", db.ErrData)
		}
		store, loaded := registry.LoadOrCompute(name, func() *memStore {
			return &memStore{degree: opts.Degree, buckets: map[string]*btree.BTree{}}
		})
		if !loaded {
			log.Debugf("created in-memory database %q", name)
		}
		database, err := core.Open(ctx, &mapleDriver{store: store}, name, version, upgrade, opts.Codec, log)
		if err != nil {
			return nil, err
		}
		return database, nil
	}
}

// --------------------------------------------------------------------------
// Storage
// --------------------------------------------------------------------------

// memStore holds the buckets of one named database. Write transactions work
// on lazily cloned trees that replace the originals on commit.
type memStore struct {
	degree  int
	mu      sync.RWMutex
	buckets map[string]*btree.BTree
}

// entry is a single key/value pair in a bucket tree
type entry struct {
	key   []byte
	value []byte
}

func (e entry) Less(than btree.Item) bool {
	return bytes.Compare(e.key, than.(entry).key) < 0
}

// mapleDriver implements core.Driver for a single open handle
type mapleDriver struct {
	store  *memStore
	closed atomic.Bool
}

// --------------------------------------------------------------------------
// Interface Methods (docu see core.Driver)
// --------------------------------------------------------------------------

func (d *mapleDriver) Impl() db.Implementation {
	return db.ImplMaple
}

func (d *mapleDriver) Features() db.Feature {
	return 0
}

func (d *mapleDriver) View(ctx context.Context, fn func(be core.Backend) error) error {
	if d.closed.Load() {
		return db.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	d.store.mu.RLock()
	defer d.store.mu.RUnlock()
	return fn(&backend{store: d.store, buckets: d.store.buckets})
}

func (d *mapleDriver) Update(ctx context.Context, fn func(be core.Backend) error) error {
	if d.closed.Load() {
		return db.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	d.store.mu.Lock()
	defer d.store.mu.Unlock()

	staged := make(map[string]*btree.BTree, len(d.store.buckets))
	for name, tree := range d.store.buckets {
		staged[name] = tree.Clone()
	}
	if err := fn(&backend{store: d.store, buckets: staged, writable: true}); err != nil {
		return err
	}
	d.store.buckets = staged
	return nil
}

func (d *mapleDriver) SizeBytes() int64 {
	d.store.mu.RLock()
	defer d.store.mu.RUnlock()
	var size int64
	for name, tree := range d.store.buckets {
		size += int64(len(name))
		tree.Ascend(func(i btree.Item) bool {
			e := i.(entry)
			size += int64(len(e.key) + len(e.value))
			return true
		})
	}
	return size
}

func (d *mapleDriver) Close() error {
	d.closed.Store(true)
	return nil
}

// --------------------------------------------------------------------------
// Transaction Backend
// --------------------------------------------------------------------------

type backend struct {
	store    *memStore
	buckets  map[string]*btree.BTree
	writable bool
}

func (b *backend) Bucket(name []byte) (core.Bucket, error) {
	tree, ok := b.buckets[string(name)]
	if !ok {
		return nil, core.ErrNoBucket
	}
	return &bucket{tree: tree, writable: b.writable}, nil
}

func (b *backend) CreateBucket(name []byte) (core.Bucket, error) {
	if !b.writable {
		return nil, db.ErrReadOnly
	}
	tree, ok := b.buckets[string(name)]
	if !ok {
		tree = btree.New(b.store.degree)
		b.buckets[string(name)] = tree
	}
	return &bucket{tree: tree, writable: true}, nil
}

func (b *backend) DeleteBucket(name []byte) error {
	if !b.writable {
		return db.ErrReadOnly
	}
	delete(b.buckets, string(name))
	return nil
}

type bucket struct {
	tree     *btree.BTree
	writable bool
}

func (b *bucket) Get(k []byte) ([]byte, error) {
	item := b.tree.Get(entry{key: k})
	if item == nil {
		return nil, nil
	}
	return slices.Clone(item.(entry).value), nil
}

func (b *bucket) Seek(k []byte) ([]byte, []byte, error) {
	var found *entry
	b.tree.AscendGreaterOrEqual(entry{key: k}, func(i btree.Item) bool {
		e := i.(entry)
		found = &e
		return false
	})
	if found == nil {
		return nil, nil, nil
	}
	return slices.Clone(found.key), slices.Clone(found.value), nil
}

func (b *bucket) Put(k, v []byte) error {
	if !b.writable {
		return db.ErrReadOnly
	}
	b.tree.ReplaceOrInsert(entry{key: slices.Clone(k), value: slices.Clone(v)})
	return nil
}

func (b *bucket) Delete(k []byte) error {
	if !b.writable {
		return db.ErrReadOnly
	}
	b.tree.Delete(entry{key: k})
	return nil
}
