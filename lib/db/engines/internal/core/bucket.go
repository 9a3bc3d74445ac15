package core

import (
	"context"
	"errors"

	"github.com/ValentinKolb/objkv/lib/db"
)

// ErrNoBucket is returned by Backend.Bucket for buckets that were never created.
var ErrNoBucket = errors.New("bucket does not exist")

// Bucket is an ordered byte map that lives inside one driver transaction.
// Returned slices are owned by the caller.
type Bucket interface {
	// Get returns the value stored under k, or nil.
	Get(k []byte) ([]byte, error)
	// Seek returns the first entry whose key is >= k (the first entry for an
	// empty k). key is nil when there is no such entry.
	Seek(k []byte) (key, value []byte, err error)
	// Put stores v under k.
	Put(k, v []byte) error
	// Delete removes k. Deleting a missing key is a no-op.
	Delete(k []byte) error
}

// Backend gives access to the buckets of one driver transaction.
type Backend interface {
	// Bucket returns an existing bucket or ErrNoBucket.
	Bucket(name []byte) (Bucket, error)
	// CreateBucket creates a bucket or returns the existing one.
	CreateBucket(name []byte) (Bucket, error)
	// DeleteBucket removes a bucket and its content. Missing buckets are ignored.
	DeleteBucket(name []byte) error
}

// Driver is what an engine has to provide: transactions over named ordered
// buckets. Everything else (records, indexes, cursors, schema) is built on
// top of it by this package.
type Driver interface {
	Impl() db.Implementation
	// Features returns the engine specific flags (for example persistence).
	Features() db.Feature
	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn func(be Backend) error) error
	// Update runs fn in a read-write transaction that commits if fn returns nil.
	Update(ctx context.Context, fn func(be Backend) error) error
	// SizeBytes returns the (estimated) storage size.
	SizeBytes() int64
	Close() error
}

// --------------------------------------------------------------------------
// Bucket Layout
// --------------------------------------------------------------------------

var metaBucket = []byte("m")

// storeBucket maps primary keys to encoded records.
func storeBucket(store string) []byte {
	return append([]byte("s\x00"), store...)
}

// refsBucket maps a primary key to the index entries written for its record.
func refsBucket(store string) []byte {
	return append([]byte("r\x00"), store...)
}

// indexBucket maps index value + primary key to the primary key.
func indexBucket(store, index string) []byte {
	b := append([]byte("i\x00"), store...)
	b = append(b, 0x00)
	return append(b, index...)
}

// successor returns the smallest key greater than k.
func successor(k []byte) []byte {
	out := make([]byte, len(k)+1)
	copy(out, k)
	return out
}

// concat joins an index value and a primary key into a fresh slice.
func concat(a, b []byte) []byte {
	out := make([]byte, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

// scan calls fn for every entry of b with a key >= from, in key order, until
// fn returns false. fn may modify the bucket.
func scan(b Bucket, from []byte, fn func(k, v []byte) (bool, error)) error {
	for {
		k, v, err := b.Seek(from)
		if err != nil || k == nil {
			return err
		}
		more, err := fn(k, v)
		if err != nil || !more {
			return err
		}
		from = successor(k)
	}
}
