package elm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ValentinKolb/objkv/lib/db"
	"github.com/ValentinKolb/objkv/lib/db/codec"
	"github.com/ValentinKolb/objkv/lib/db/engines/internal/core"
	"github.com/lni/dragonboat/v4/logger"
	_ "modernc.org/sqlite"
)

var log = logger.GetLogger("engine/elm")

// FileExt is appended to the database name to build the file name.
const FileExt = ".elm"

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS buckets (
		name BLOB PRIMARY KEY
	) WITHOUT ROWID;
	CREATE TABLE IF NOT EXISTS entries (
		bucket BLOB NOT NULL,
		k      BLOB NOT NULL,
		v      BLOB NOT NULL,
		PRIMARY KEY (bucket, k)
	) WITHOUT ROWID;`

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// DBOptions configures the elm engine
type DBOptions struct {
	Dir         string             // Directory holding one file per database
	BusyTimeout time.Duration      // How long sqlite waits for locks held by other processes (0 = use default)
	Codec       codec.IRecordCodec // Record codec (nil = gob)
}

// DefaultOptions returns the default elm options for the given directory
func DefaultOptions(dir string) *DBOptions {
	return &DBOptions{
		Dir:         dir,
		BusyTimeout: 5 * time.Second,
		Codec:       codec.NewGOBCodec(),
	}
}

// NewOpener returns an Opener for databases stored as sqlite files in opts.Dir.
//
// Thread-safety: The returned Opener is safe for concurrent use.
func NewOpener(opts *DBOptions) db.Opener {
	defaults := DefaultOptions(".")
	if opts == nil {
		opts = defaults
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = defaults.BusyTimeout
	}
	if opts.Codec == nil {
		opts.Codec = defaults.Codec
	}

	return func(ctx context.Context, name string, version uint64, upgrade db.UpgradeFunc) (db.ObjectDB, error) {
		if name == "" || strings.ContainsAny(name, `/\?`) || name == "." || name == ".." {
			return nil, fmt.Errorf("%w: invalid database name %q", db.ErrData, name)
		}
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		path := filepath.Join(opts.Dir, name+FileExt)

		dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)", path, opts.BusyTimeout.Milliseconds())
		sqlDB, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %q: %w", path, err)
		}
		if _, err := sqlDB.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
		if _, err := sqlDB.ExecContext(ctx, schemaSQL); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
		log.Debugf("opened %s", path)

		database, err := core.Open(ctx, &elmDriver{sql: sqlDB}, name, version, upgrade, opts.Codec, log)
		if err != nil {
			return nil, err
		}
		return database, nil
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see core.Driver)
// --------------------------------------------------------------------------

// elmDriver implements core.Driver on top of a sqlite file. Writers hold the
// lock exclusively so sqlite never reports SQLITE_BUSY inside this process.
type elmDriver struct {
	mu  sync.RWMutex
	sql *sql.DB
}

func (d *elmDriver) Impl() db.Implementation {
	return db.ImplElm
}

func (d *elmDriver) Features() db.Feature {
	return db.FeaturePersistence
}

func (d *elmDriver) View(ctx context.Context, fn func(be core.Backend) error) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return fn(&backend{ctx: ctx, tx: tx})
}

func (d *elmDriver) Update(ctx context.Context, fn func(be core.Backend) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(&backend{ctx: ctx, tx: tx, writable: true}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (d *elmDriver) SizeBytes() int64 {
	var size int64
	err := d.sql.QueryRow("SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()").Scan(&size)
	if err != nil {
		log.Warningf("failed to read database size: %v", err)
	}
	return size
}

func (d *elmDriver) Close() error {
	return d.sql.Close()
}

// --------------------------------------------------------------------------
// Transaction Backend
// --------------------------------------------------------------------------

type backend struct {
	ctx      context.Context
	tx       *sql.Tx
	writable bool
}

func (b *backend) Bucket(name []byte) (core.Bucket, error) {
	var one int
	err := b.tx.QueryRowContext(b.ctx, "SELECT 1 FROM buckets WHERE name = ?", name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNoBucket
	} else if err != nil {
		return nil, err
	}
	return &bucket{be: b, name: name}, nil
}

func (b *backend) CreateBucket(name []byte) (core.Bucket, error) {
	if !b.writable {
		return nil, db.ErrReadOnly
	}
	if _, err := b.tx.ExecContext(b.ctx, "INSERT INTO buckets (name) VALUES (?) ON CONFLICT (name) DO NOTHING", name); err != nil {
		return nil, err
	}
	return &bucket{be: b, name: name}, nil
}

func (b *backend) DeleteBucket(name []byte) error {
	if !b.writable {
		return db.ErrReadOnly
	}
	if _, err := b.tx.ExecContext(b.ctx, "DELETE FROM entries WHERE bucket = ?", name); err != nil {
		return err
	}
	_, err := b.tx.ExecContext(b.ctx, "DELETE FROM buckets WHERE name = ?", name)
	return err
}

// bucket is a key range of the entries table. Blobs compare with memcmp, so
// ORDER BY k matches the byte order of the other engines.
type bucket struct {
	be   *backend
	name []byte
}

func (b *bucket) Get(k []byte) ([]byte, error) {
	var v []byte
	err := b.be.tx.QueryRowContext(b.be.ctx, "SELECT v FROM entries WHERE bucket = ? AND k = ?", b.name, k).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return v, err
}

func (b *bucket) Seek(k []byte) ([]byte, []byte, error) {
	var row *sql.Row
	if len(k) == 0 {
		row = b.be.tx.QueryRowContext(b.be.ctx, "SELECT k, v FROM entries WHERE bucket = ? ORDER BY k LIMIT 1", b.name)
	} else {
		row = b.be.tx.QueryRowContext(b.be.ctx, "SELECT k, v FROM entries WHERE bucket = ? AND k >= ? ORDER BY k LIMIT 1", b.name, k)
	}
	var key, value []byte
	if err := row.Scan(&key, &value); errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	} else if err != nil {
		return nil, nil, err
	}
	return key, value, nil
}

func (b *bucket) Put(k, v []byte) error {
	if !b.be.writable {
		return db.ErrReadOnly
	}
	_, err := b.be.tx.ExecContext(b.be.ctx,
		"INSERT INTO entries (bucket, k, v) VALUES (?, ?, ?) ON CONFLICT (bucket, k) DO UPDATE SET v = excluded.v",
		b.name, k, v)
	return err
}

func (b *bucket) Delete(k []byte) error {
	if !b.be.writable {
		return db.ErrReadOnly
	}
	_, err := b.be.tx.ExecContext(b.be.ctx, "DELETE FROM entries WHERE bucket = ? AND k = ?", b.name, k)
	return err
}
