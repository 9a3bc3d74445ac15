package core

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/ValentinKolb/objkv/lib/db"
)

// txn implements db.Tx for a single driver transaction.
type txn struct {
	ctx   context.Context
	db    *Database
	be    Backend
	cat   *Catalog
	mode  db.TxMode
	scope map[string]struct{} // nil means every store
	done  bool
}

func newTxn(ctx context.Context, d *Database, be Backend, cat *Catalog, mode db.TxMode, scope []string) *txn {
	t := &txn{ctx: ctx, db: d, be: be, cat: cat, mode: mode}
	if scope != nil {
		t.scope = make(map[string]struct{}, len(scope))
		for _, name := range scope {
			t.scope[name] = struct{}{}
		}
	}
	return t
}

// finish marks the transaction as done, handles obtained from it stop working.
func (t *txn) finish() {
	t.done = true
}

func (t *txn) active() error {
	if t.done {
		return db.ErrTxInactive
	}
	return t.ctx.Err()
}

func (t *txn) writable() error {
	if err := t.active(); err != nil {
		return err
	}
	if t.mode == db.TxReadOnly {
		return db.ErrReadOnly
	}
	return nil
}

func (t *txn) Mode() db.TxMode {
	return t.mode
}

func (t *txn) ObjectStore(name string) (db.ObjectStore, error) {
	if err := t.active(); err != nil {
		return nil, err
	}
	if t.scope != nil {
		if _, ok := t.scope[name]; !ok {
			return nil, fmt.Errorf("%w: object store %q is not in the transaction scope", db.ErrNotFound, name)
		}
	}
	if _, ok := t.cat.store(name); !ok {
		return nil, fmt.Errorf("%w: object store %q", db.ErrNotFound, name)
	}
	return &objectStore{tx: t, name: name}, nil
}

// --------------------------------------------------------------------------
// Version Change Transaction
// --------------------------------------------------------------------------

// upgradeTxn implements db.UpgradeTx. It works on a private copy of the
// catalog that is only published when the transaction commits.
type upgradeTxn struct {
	*txn
	oldVersion uint64
	newVersion uint64
}

func (t *upgradeTxn) OldVersion() uint64 {
	return t.oldVersion
}

func (t *upgradeTxn) NewVersion() uint64 {
	return t.newVersion
}

func (t *upgradeTxn) HasObjectStore(name string) bool {
	_, ok := t.cat.store(name)
	return ok
}

func (t *upgradeTxn) HasIndex(store, name string) bool {
	s, ok := t.cat.store(store)
	if !ok {
		return false
	}
	_, ok = s.Index(name)
	return ok
}

func (t *upgradeTxn) CreateObjectStore(name, keyPath string) (db.ObjectStore, error) {
	if err := t.active(); err != nil {
		return nil, err
	}
	if t.HasObjectStore(name) {
		return nil, fmt.Errorf("%w: object store %q already exists", db.ErrConstraint, name)
	}
	schema := db.StoreSchema{Name: name, KeyPath: keyPath}
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	for _, b := range [][]byte{storeBucket(name), refsBucket(name)} {
		if _, err := t.be.CreateBucket(b); err != nil {
			return nil, err
		}
	}
	t.cat.Stores = append(t.cat.Stores, schema)
	return &objectStore{tx: t.txn, name: name}, nil
}

func (t *upgradeTxn) DeleteObjectStore(name string) error {
	if err := t.active(); err != nil {
		return err
	}
	s, ok := t.cat.store(name)
	if !ok {
		return fmt.Errorf("%w: object store %q", db.ErrNotFound, name)
	}
	for _, idx := range s.Indexes {
		if err := t.be.DeleteBucket(indexBucket(name, idx.Name)); err != nil {
			return err
		}
	}
	for _, b := range [][]byte{storeBucket(name), refsBucket(name)} {
		if err := t.be.DeleteBucket(b); err != nil {
			return err
		}
	}
	t.cat.removeStore(name)
	return nil
}

func (t *upgradeTxn) CreateIndex(store, name, keyPath string, unique bool) error {
	if err := t.active(); err != nil {
		return err
	}
	s, ok := t.cat.store(store)
	if !ok {
		return fmt.Errorf("%w: object store %q", db.ErrNotFound, store)
	}
	if _, ok := s.Index(name); ok {
		return fmt.Errorf("%w: index %q already exists on %q", db.ErrConstraint, name, store)
	}
	schema := db.IndexSchema{Name: name, KeyPath: keyPath, Unique: unique}
	candidate := s.Clone()
	candidate.Indexes = append(candidate.Indexes, schema)
	if err := candidate.Validate(); err != nil {
		return err
	}

	ib, err := t.be.CreateBucket(indexBucket(store, name))
	if err != nil {
		return err
	}
	data, err := t.be.Bucket(storeBucket(store))
	if err != nil {
		return err
	}
	rb, err := t.be.Bucket(refsBucket(store))
	if err != nil {
		return err
	}

	// fill the index from the records already in the store
	err = scan(data, nil, func(pk, raw []byte) (bool, error) {
		record, err := t.db.codec.Decode(raw)
		if err != nil {
			return false, fmt.Errorf("failed to decode record %s: %w", db.Key(pk), err)
		}
		ik, ok := indexKey(schema, record)
		if !ok {
			return true, nil
		}
		if unique {
			if err := checkUnique(ib, schema, store, ik, pk); err != nil {
				return false, err
			}
		}
		if err := ib.Put(concat(ik, pk), slices.Clone(pk)); err != nil {
			return false, err
		}
		refs, err := rb.Get(pk)
		if err != nil {
			return false, err
		}
		refs = append(refs, encodeRefs([]ref{{index: name, key: ik}})...)
		return true, rb.Put(slices.Clone(pk), refs)
	})
	if err != nil {
		return err
	}

	s.Indexes = append(s.Indexes, schema)
	return nil
}

func (t *upgradeTxn) DeleteIndex(store, name string) error {
	if err := t.active(); err != nil {
		return err
	}
	s, ok := t.cat.store(store)
	if !ok {
		return fmt.Errorf("%w: object store %q", db.ErrNotFound, store)
	}
	if _, ok := s.Index(name); !ok {
		return fmt.Errorf("%w: index %q on %q", db.ErrNotFound, name, store)
	}
	if err := t.be.DeleteBucket(indexBucket(store, name)); err != nil && !errors.Is(err, ErrNoBucket) {
		return err
	}
	if err := t.dropRefs(store, name); err != nil {
		return err
	}
	s.Indexes = slices.DeleteFunc(s.Indexes, func(idx db.IndexSchema) bool { return idx.Name == name })
	return nil
}

// dropRefs removes the references to index from every record of store.
func (t *upgradeTxn) dropRefs(store, index string) error {
	rb, err := t.be.Bucket(refsBucket(store))
	if err != nil {
		return err
	}
	return scan(rb, nil, func(pk, raw []byte) (bool, error) {
		refs, err := decodeRefs(raw)
		if err != nil {
			return false, fmt.Errorf("corrupt index references of %s in %q: %w", db.Key(pk), store, err)
		}
		kept := slices.DeleteFunc(refs, func(r ref) bool { return r.index == index })
		if len(kept) == 0 {
			return true, rb.Delete(pk)
		}
		return true, rb.Put(slices.Clone(pk), encodeRefs(kept))
	})
}
