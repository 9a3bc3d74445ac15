package lstore

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/ValentinKolb/objkv/lib/db"
	"github.com/ValentinKolb/objkv/lib/db/seq"
	"github.com/ValentinKolb/objkv/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	gometrics "github.com/rcrowley/go-metrics"
)

var log = logger.GetLogger("store")

// Option configures a store opened with Open.
type Option func(*storeImpl)

// WithRegistry records the per-operation timers and error meters in r
// instead of a private registry.
func WithRegistry(r gometrics.Registry) Option {
	return func(s *storeImpl) {
		s.metrics.registry = r
	}
}

type storeImpl struct {
	db      db.ObjectDB
	schema  store.Schema
	metrics *opMetrics
}

// Open opens the named database through opener and returns a store for it.
// The upgrade routine of schema runs whenever version is higher than the
// stored version. After opening, every store of schema must exist, otherwise
// the database is closed again and the open fails.
func Open(ctx context.Context, opener db.Opener, name string, version uint64, schema store.Schema, opts ...Option) (_ store.IStore, err error) {
	start := time.Now()
	m := newOpMetrics(name)
	defer func() {
		m.observe("open", "", start, err)
	}()

	if opener == nil {
		return nil, &store.Error{Code: store.RetCInvalidOperation, Op: "open", Msg: "no database opener"}
	}
	if err := schema.Validate(); err != nil {
		return nil, &store.Error{Code: store.RetCInvalidOperation, Op: "open", Msg: "invalid schema", Err: err}
	}

	database, err := opener(ctx, name, version, schema.Upgrade())
	if err != nil {
		code := store.RetCOpenFailed
		if errors.Is(err, db.ErrVersion) {
			code = store.RetCVersionError
		}
		log.Errorf("Failed to open database %q at version %d: %v", name, version, err)
		return nil, &store.Error{Code: code, Op: "open", Msg: fmt.Sprintf("database %q", name), Err: err}
	}

	if err := checkCatalog(ctx, database, schema, version); err != nil {
		_ = database.Close()
		log.Errorf("Database %q does not match the schema at version %d: %v", name, version, err)
		return nil, err
	}

	s := &storeImpl{db: database, schema: schema, metrics: m}
	for _, opt := range opts {
		opt(s)
	}
	log.Infof("Opened database %q at version %d with stores %v", name, database.Version(), database.ObjectStoreNames())
	return s, nil
}

// checkCatalog verifies that every store and index of schema exists in
// database. Both only appear through an upgrade, so a schema that grew
// without a version bump is reported as RetCOpenFailed.
func checkCatalog(ctx context.Context, database db.ObjectDB, schema store.Schema, version uint64) error {
	missing := func(st, what string) error {
		return &store.Error{
			Code:  store.RetCOpenFailed,
			Op:    "open",
			Store: st,
			Msg:   fmt.Sprintf("%s missing at version %d, the schema changed without a version bump", what, version),
		}
	}

	have := database.ObjectStoreNames()
	for _, st := range schema.Stores {
		if !slices.Contains(have, st.Name) {
			return missing(st.Name, "object store")
		}
	}

	err := database.View(ctx, schema.StoreNames(), func(tx db.Tx) error {
		for _, st := range schema.Stores {
			ost, err := tx.ObjectStore(st.Name)
			if err != nil {
				return err
			}
			indexes := ost.IndexNames()
			for _, idx := range st.Indexes {
				if !slices.Contains(indexes, idx.Name) {
					return missing(st.Name, fmt.Sprintf("index %q", idx.Name))
				}
			}
		}
		return nil
	})
	if err == nil {
		return nil
	}
	var se *store.Error
	if errors.As(err, &se) {
		return se
	}
	return &store.Error{Code: store.RetCOpenFailed, Op: "open", Msg: "failed to read the catalog", Err: err}
}

// --------------------------------------------------------------------------
// Transaction helpers
// --------------------------------------------------------------------------

// view runs fn in a read-only transaction over the named store.
func (s *storeImpl) view(ctx context.Context, name string, fn func(st db.ObjectStore) error) error {
	return s.db.View(ctx, []string{name}, func(tx db.Tx) error {
		st, err := tx.ObjectStore(name)
		if err != nil {
			return err
		}
		return fn(st)
	})
}

// update runs fn in a read-write transaction over the named store.
func (s *storeImpl) update(ctx context.Context, name string, fn func(st db.ObjectStore) error) error {
	return s.db.Update(ctx, []string{name}, func(tx db.Tx) error {
		st, err := tx.ObjectStore(name)
		if err != nil {
			return err
		}
		return fn(st)
	})
}

// index returns the named index of st or a RetCUnknownIndex error.
func index(st db.ObjectStore, name string) (db.Index, error) {
	idx, err := st.Index(name)
	if err != nil {
		return nil, &store.Error{Code: store.RetCUnknownIndex, Msg: fmt.Sprintf("index %q", name), Err: err}
	}
	return idx, nil
}

// exact opens a cursor over the entries of idx equal to value.
func exact(idx db.Index, value any) (db.Cursor, error) {
	r, err := db.Only(value)
	if err != nil {
		return nil, err
	}
	return idx.OpenCursor(r)
}

// collect drains a record sequence into res. Records that fail to load are
// counted and skipped.
func collect(op, name string, records iter.Seq2[db.Record, error], res *store.BulkResult) error {
	for record, err := range records {
		if err != nil {
			var ie *seq.ItemError
			if !errors.As(err, &ie) {
				return err
			}
			res.Visited++
			res.Failed++
			log.Warningf("%s %s: skipping %v", op, name, ie)
			continue
		}
		res.Visited++
		res.Processed++
		res.Records = append(res.Records, record)
	}
	return nil
}

// partial turns skipped records of a successful walk into RetCPartialFailure.
func partial(res store.BulkResult) error {
	if res.Failed == 0 {
		return nil
	}
	return &store.Error{
		Code: store.RetCPartialFailure,
		Msg:  fmt.Sprintf("%d of %d records could not be read", res.Failed, res.Visited),
	}
}

// toError converts an engine error into a *store.Error. It is the single
// place where the engine's error kinds are mapped onto return codes.
func toError(op, name string, err error) error {
	if err == nil {
		return nil
	}

	var se *store.Error
	if errors.As(err, &se) {
		if se.Op == "" {
			se.Op = op
		}
		if se.Store == "" {
			se.Store = name
		}
		return se
	}

	code := store.RetCInternalError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code = store.RetCCanceled
	case errors.Is(err, db.ErrConstraint):
		code = store.RetCDuplicateKey
	case errors.Is(err, db.ErrData):
		code = store.RetCInvalidKey
	case errors.Is(err, db.ErrNotFound):
		code = store.RetCUnknownStore
	case errors.Is(err, db.ErrReadOnly), errors.Is(err, db.ErrClosed):
		code = store.RetCInvalidOperation
	case errors.Is(err, db.ErrTxInactive):
		code = store.RetCTransactionFailed
	case errors.Is(err, db.ErrVersion):
		code = store.RetCVersionError
	case errors.Is(err, db.ErrCodec):
		code = store.RetCOpenFailed
	}
	return &store.Error{Code: code, Op: op, Store: name, Err: err}
}

// done maps err, records metrics and logs the outcome of an operation.
func (s *storeImpl) done(op, name string, start time.Time, err error) error {
	err = toError(op, name, err)
	s.metrics.observe(op, name, start, err)
	switch store.CodeOf(err) {
	case store.RetCSuccess:
		log.Debugf("%s %s: ok (%s)", op, name, time.Since(start))
	case store.RetCPartialFailure:
		log.Warningf("%s %s: %v", op, name, err)
	default:
		log.Errorf("%s %s: %v", op, name, err)
	}
	return err
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Insert(ctx context.Context, name string, record db.Record) error {
	start := time.Now()
	err := s.update(ctx, name, func(st db.ObjectStore) error {
		_, err := st.Add(record)
		return err
	})
	return s.done("insert", name, start, err)
}

func (s *storeImpl) Upsert(ctx context.Context, name string, record db.Record) error {
	start := time.Now()
	err := s.update(ctx, name, func(st db.ObjectStore) error {
		_, err := st.Put(record)
		return err
	})
	return s.done("upsert", name, start, err)
}

func (s *storeImpl) GetByKey(ctx context.Context, name string, key any) (db.Record, bool, error) {
	start := time.Now()
	var (
		record db.Record
		loaded bool
	)
	err := s.view(ctx, name, func(st db.ObjectStore) (err error) {
		record, loaded, err = st.Get(key)
		return err
	})
	return record, loaded, s.done("getByKey", name, start, err)
}

func (s *storeImpl) FullScan(ctx context.Context, name string) (store.BulkResult, error) {
	start := time.Now()
	res := store.BulkResult{Records: []db.Record{}}
	err := s.view(ctx, name, func(st db.ObjectStore) error {
		c, err := st.OpenCursor(nil)
		if err != nil {
			return err
		}
		if err := collect("fullScan", name, seq.All(ctx, c), &res); err != nil {
			return err
		}
		return partial(res)
	})
	return res, s.done("fullScan", name, start, err)
}

func (s *storeImpl) GetByIndex(ctx context.Context, name, indexName string, value any) (db.Record, bool, error) {
	start := time.Now()
	var (
		record db.Record
		loaded bool
	)
	err := s.view(ctx, name, func(st db.ObjectStore) error {
		idx, err := index(st, indexName)
		if err != nil {
			return err
		}
		record, loaded, err = idx.Get(value)
		return err
	})
	return record, loaded, s.done("getByIndex", name, start, err)
}

func (s *storeImpl) IndexedScan(ctx context.Context, name, indexName string, value any) (store.BulkResult, error) {
	start := time.Now()
	res := store.BulkResult{Records: []db.Record{}}
	err := s.view(ctx, name, func(st db.ObjectStore) error {
		idx, err := index(st, indexName)
		if err != nil {
			return err
		}
		c, err := exact(idx, value)
		if err != nil {
			return err
		}
		if err := collect("indexedScan", name, seq.All(ctx, c), &res); err != nil {
			return err
		}
		return partial(res)
	})
	return res, s.done("indexedScan", name, start, err)
}

func (s *storeImpl) IndexedScanPage(ctx context.Context, name, indexName string, value any, page, pageSize int) (store.BulkResult, error) {
	start := time.Now()
	res := store.BulkResult{Records: []db.Record{}}
	if pageSize < 1 {
		err := &store.Error{Code: store.RetCInvalidOperation, Msg: fmt.Sprintf("page size must be positive, got %d", pageSize)}
		return res, s.done("indexedScanPage", name, start, err)
	}
	err := s.view(ctx, name, func(st db.ObjectStore) error {
		idx, err := index(st, indexName)
		if err != nil {
			return err
		}
		c, err := exact(idx, value)
		if err != nil {
			return err
		}
		if err := collect("indexedScanPage", name, seq.Walk(ctx, c, seq.NewPage(page, pageSize)), &res); err != nil {
			return err
		}
		return partial(res)
	})
	return res, s.done("indexedScanPage", name, start, err)
}

func (s *storeImpl) DeleteByKey(ctx context.Context, name string, key any) error {
	start := time.Now()
	err := s.update(ctx, name, func(st db.ObjectStore) error {
		return st.Delete(key)
	})
	return s.done("deleteByKey", name, start, err)
}

// deleter deletes every record the cursor visits and counts the outcome.
type deleter struct {
	res *store.BulkResult
}

func (d *deleter) Step(c db.Cursor) (bool, seq.Move, error) {
	d.res.Visited++
	if err := c.Delete(); err != nil {
		d.res.Failed++
		return false, seq.Stop, &seq.ItemError{PrimaryKey: c.PrimaryKey(), Err: err}
	}
	d.res.Processed++
	return false, seq.Continue, nil
}

func (s *storeImpl) DeleteByIndex(ctx context.Context, name, indexName string, value any) (store.BulkResult, error) {
	start := time.Now()
	var res store.BulkResult
	err := s.update(ctx, name, func(st db.ObjectStore) error {
		idx, err := index(st, indexName)
		if err != nil {
			return err
		}
		c, err := exact(idx, value)
		if err != nil {
			return err
		}
		for _, err := range seq.Walk(ctx, c, &deleter{res: &res}) {
			if err != nil {
				return err
			}
		}
		return nil
	})
	var ie *seq.ItemError
	if errors.As(err, &ie) {
		err = &store.Error{
			Code: store.RetCTransactionFailed,
			Msg:  fmt.Sprintf("rolled back after %d of %d deletes", res.Processed, res.Visited),
			Err:  err,
		}
	}
	return res, s.done("deleteByIndex", name, start, err)
}

func (s *storeImpl) Schema() store.Schema {
	return s.schema
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	info := s.db.GetInfo()
	info.Metadata = Metadata{
		Database:   info.Metadata,
		Operations: s.metrics.snapshot(),
	}
	return info, nil
}

func (s *storeImpl) Close() error {
	start := time.Now()
	return s.done("close", "", start, s.db.Close())
}
