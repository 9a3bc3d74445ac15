package core

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/ValentinKolb/objkv/lib/db"
)

// objectStore implements db.ObjectStore. Its schema is looked up in the
// transaction catalog on every call, so stores returned by CreateObjectStore
// see indexes created later in the same upgrade.
type objectStore struct {
	tx   *txn
	name string
}

func (s *objectStore) schema() (db.StoreSchema, error) {
	sc, ok := s.tx.cat.store(s.name)
	if !ok {
		return db.StoreSchema{}, fmt.Errorf("%w: object store %q", db.ErrNotFound, s.name)
	}
	return *sc, nil
}

func (s *objectStore) data() (Bucket, error) {
	return s.tx.be.Bucket(storeBucket(s.name))
}

// indexKey returns the encoded index value of record. Records without a valid
// value at the index key path are not part of the index.
func indexKey(idx db.IndexSchema, record db.Record) (db.Key, bool) {
	v, ok := record.Lookup(idx.KeyPath)
	if !ok {
		return nil, false
	}
	k, err := db.EncodeKey(v)
	if err != nil {
		return nil, false
	}
	return k, true
}

// checkUnique fails if an entry with value ik that belongs to another primary key exists.
func checkUnique(ib Bucket, idx db.IndexSchema, store string, ik, pk []byte) error {
	from := []byte(ik)
	for {
		k, v, err := ib.Seek(from)
		if err != nil {
			return err
		}
		if k == nil || !bytes.HasPrefix(k, ik) {
			return nil
		}
		if !bytes.Equal(v, pk) {
			return fmt.Errorf("%w: value %s of unique index %q on %q is already used by %s",
				db.ErrConstraint, db.Key(ik), idx.Name, store, db.Key(v))
		}
		from = successor(k)
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see db.ObjectStore)
// --------------------------------------------------------------------------

func (s *objectStore) Name() string {
	return s.name
}

func (s *objectStore) KeyPath() string {
	sc, _ := s.schema()
	return sc.KeyPath
}

func (s *objectStore) IndexNames() []string {
	sc, _ := s.schema()
	return sc.IndexNames()
}

func (s *objectStore) Index(name string) (db.Index, error) {
	if err := s.tx.active(); err != nil {
		return nil, err
	}
	sc, err := s.schema()
	if err != nil {
		return nil, err
	}
	idx, ok := sc.Index(name)
	if !ok {
		return nil, fmt.Errorf("%w: index %q on object store %q", db.ErrNotFound, name, s.name)
	}
	return &index{store: s, schema: idx}, nil
}

func (s *objectStore) Add(record db.Record) (db.Key, error) {
	return s.write(record, false)
}

func (s *objectStore) Put(record db.Record) (db.Key, error) {
	return s.write(record, true)
}

func (s *objectStore) Get(key any) (db.Record, bool, error) {
	if err := s.tx.active(); err != nil {
		return nil, false, err
	}
	pk, err := db.EncodeKey(key)
	if err != nil {
		return nil, false, err
	}
	data, err := s.data()
	if err != nil {
		return nil, false, err
	}
	raw, err := data.Get(pk)
	if err != nil || raw == nil {
		return nil, false, err
	}
	record, err := s.tx.db.codec.Decode(raw)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode record %s: %w", pk, err)
	}
	return record, true, nil
}

func (s *objectStore) Delete(key any) error {
	if err := s.tx.writable(); err != nil {
		return err
	}
	pk, err := db.EncodeKey(key)
	if err != nil {
		return err
	}
	return s.deleteKey(pk)
}

func (s *objectStore) Count() (int, error) {
	if err := s.tx.active(); err != nil {
		return 0, err
	}
	data, err := s.data()
	if err != nil {
		return 0, err
	}
	n := 0
	err = scan(data, nil, func(_, _ []byte) (bool, error) {
		n++
		return true, nil
	})
	return n, err
}

func (s *objectStore) OpenCursor(r *db.KeyRange) (db.Cursor, error) {
	if err := s.tx.active(); err != nil {
		return nil, err
	}
	data, err := s.data()
	if err != nil {
		return nil, err
	}
	return newCursor(s, data, false, r)
}

// --------------------------------------------------------------------------
// Write Helpers
// --------------------------------------------------------------------------

func (s *objectStore) write(record db.Record, overwrite bool) (db.Key, error) {
	if err := s.tx.writable(); err != nil {
		return nil, err
	}
	sc, err := s.schema()
	if err != nil {
		return nil, err
	}
	pk, err := record.KeyOf(sc.KeyPath)
	if err != nil {
		return nil, err
	}
	data, err := s.data()
	if err != nil {
		return nil, err
	}
	old, err := data.Get(pk)
	if err != nil {
		return nil, err
	}
	if old != nil && !overwrite {
		return nil, fmt.Errorf("%w: key %s already exists in %q", db.ErrConstraint, pk, s.name)
	}
	value, err := s.tx.db.codec.Encode(record)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode record %s: %v", db.ErrData, pk, err)
	}

	// resolve all index entries and check uniqueness before the first write
	type entry struct {
		bucket Bucket
		key    []byte
	}
	entries := make([]entry, 0, len(sc.Indexes))
	refs := make([]ref, 0, len(sc.Indexes))
	for _, idx := range sc.Indexes {
		ik, ok := indexKey(idx, record)
		if !ok {
			continue
		}
		ib, err := s.tx.be.Bucket(indexBucket(s.name, idx.Name))
		if err != nil {
			return nil, err
		}
		if idx.Unique {
			if err := checkUnique(ib, idx, s.name, ik, pk); err != nil {
				return nil, err
			}
		}
		entries = append(entries, entry{bucket: ib, key: concat(ik, pk)})
		refs = append(refs, ref{index: idx.Name, key: ik})
	}

	if old != nil {
		if err := s.removeIndexEntries(sc, pk); err != nil {
			return nil, err
		}
	}
	for _, e := range entries {
		if err := e.bucket.Put(e.key, slices.Clone(pk)); err != nil {
			return nil, err
		}
	}
	if err := s.putRefs(pk, refs); err != nil {
		return nil, err
	}
	if err := data.Put(slices.Clone(pk), value); err != nil {
		return nil, err
	}
	return pk, nil
}

// deleteKey removes the record stored under pk together with its index
// entries. Index entries are removed even if the record itself is gone.
func (s *objectStore) deleteKey(pk db.Key) error {
	sc, err := s.schema()
	if err != nil {
		return err
	}
	data, err := s.data()
	if err != nil {
		return err
	}
	if err := s.removeIndexEntries(sc, pk); err != nil {
		return err
	}
	return data.Delete(pk)
}

// removeIndexEntries deletes the index entries recorded for pk. The entries
// are taken from the refs bucket and not recomputed from the stored record,
// since a codec may not give back the exact values that were indexed.
func (s *objectStore) removeIndexEntries(sc db.StoreSchema, pk db.Key) error {
	rb, err := s.tx.be.Bucket(refsBucket(s.name))
	if err != nil {
		return err
	}
	raw, err := rb.Get(pk)
	if err != nil || raw == nil {
		return err
	}
	refs, err := decodeRefs(raw)
	if err != nil {
		return fmt.Errorf("corrupt index references of %s in %q: %w", pk, s.name, err)
	}
	for _, r := range refs {
		if _, ok := sc.Index(r.index); !ok {
			continue
		}
		ib, err := s.tx.be.Bucket(indexBucket(s.name, r.index))
		if err != nil {
			return err
		}
		if err := ib.Delete(concat(r.key, pk)); err != nil {
			return err
		}
	}
	return rb.Delete(pk)
}

func (s *objectStore) putRefs(pk db.Key, refs []ref) error {
	rb, err := s.tx.be.Bucket(refsBucket(s.name))
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		return rb.Delete(pk)
	}
	return rb.Put(slices.Clone(pk), encodeRefs(refs))
}

// --------------------------------------------------------------------------
// Index References
// --------------------------------------------------------------------------

// ref is one index entry of a record: the index name and the encoded value.
type ref struct {
	index string
	key   db.Key
}

// encodeRefs writes refs as a sequence of (encoded name, encoded value) keys.
func encodeRefs(refs []ref) []byte {
	var out []byte
	for _, r := range refs {
		out = append(out, db.MustEncodeKey(r.index)...)
		out = append(out, r.key...)
	}
	return out
}

func decodeRefs(b []byte) ([]ref, error) {
	var refs []ref
	for len(b) > 0 {
		head, rest, err := db.SplitKey(b)
		if err != nil {
			return nil, err
		}
		name, err := db.DecodeKey(head)
		if err != nil {
			return nil, err
		}
		index, ok := name.(string)
		if !ok {
			return nil, fmt.Errorf("%w: index name %v is not a string", db.ErrData, name)
		}
		key, rest, err := db.SplitKey(rest)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref{index: index, key: slices.Clone(key)})
		b = rest
	}
	return refs, nil
}

// --------------------------------------------------------------------------
// Index
// --------------------------------------------------------------------------

// index implements db.Index.
type index struct {
	store  *objectStore
	schema db.IndexSchema
}

func (i *index) Name() string {
	return i.schema.Name
}

func (i *index) KeyPath() string {
	return i.schema.KeyPath
}

func (i *index) Unique() bool {
	return i.schema.Unique
}

func (i *index) Get(value any) (db.Record, bool, error) {
	r, err := db.Only(value)
	if err != nil {
		return nil, false, err
	}
	c, err := i.OpenCursor(r)
	if err != nil || !c.Valid() {
		return nil, false, err
	}
	record, err := c.Value()
	if err != nil {
		return nil, false, err
	}
	return record, true, nil
}

func (i *index) Count(r *db.KeyRange) (int, error) {
	c, err := i.OpenCursor(r)
	if err != nil {
		return 0, err
	}
	n := 0
	for c.Valid() {
		n++
		if err := c.Continue(); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (i *index) OpenCursor(r *db.KeyRange) (db.Cursor, error) {
	if err := i.store.tx.active(); err != nil {
		return nil, err
	}
	ib, err := i.store.tx.be.Bucket(indexBucket(i.store.name, i.schema.Name))
	if err != nil {
		return nil, err
	}
	return newCursor(i.store, ib, true, r)
}
