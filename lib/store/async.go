package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/ValentinKolb/objkv/lib/db"
)

// --------------------------------------------------------------------------
// Result and Future
// --------------------------------------------------------------------------

// Status is the outcome class of a settled operation.
type Status uint8

const (
	StatusSuccess  Status = iota // the operation succeeded
	StatusNotFound               // the operation succeeded, but the record does not exist
	StatusFailure                // the operation failed, Err holds the cause
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusNotFound:
		return "not found"
	case StatusFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Result is the settled value of a Future. Err is a *Error iff Status is
// StatusFailure. Bulk operations keep their counts in Value on failure.
type Result[T any] struct {
	Value  T
	Status Status
	Err    error
}

// Ok reports whether the operation did not fail.
func (r Result[T]) Ok() bool {
	return r.Status != StatusFailure
}

// Future is the pending result of an operation running on its own goroutine.
// A Future settles exactly once; every reader sees the same Result.
//
// Thread-safety: all methods are safe for concurrent use.
type Future[T any] struct {
	once sync.Once
	done chan struct{}
	res  Result[T]
}

// Go runs fn on a new goroutine and returns the Future of its result. fn
// returns the value, whether it was found and the error. A panic in fn
// settles the Future with RetCInternalError.
func Go[T any](fn func() (T, bool, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				f.settle(Result[T]{Status: StatusFailure, Err: &Error{
					Code: RetCInternalError,
					Op:   "async",
					Msg:  fmt.Sprintf("panic: %v", r),
				}})
			}
		}()
		value, loaded, err := fn()
		f.settle(resultOf(value, loaded, err))
	}()
	return f
}

func resultOf[T any](value T, loaded bool, err error) Result[T] {
	switch {
	case err != nil:
		return Result[T]{Value: value, Status: StatusFailure, Err: err}
	case !loaded:
		return Result[T]{Value: value, Status: StatusNotFound}
	default:
		return Result[T]{Value: value, Status: StatusSuccess}
	}
}

// settle stores the result. Only the first call has an effect.
func (f *Future[T]) settle(r Result[T]) bool {
	settled := false
	f.once.Do(func() {
		f.res = r
		settled = true
		close(f.done)
	})
	return settled
}

// Done returns a channel that is closed once the Future settled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the Future settled or ctx is done. If ctx ends first
// the returned Result fails with RetCCanceled; the Future itself keeps
// running and settles later.
func (f *Future[T]) Await(ctx context.Context) Result[T] {
	select {
	case <-f.done:
		return f.res
	case <-ctx.Done():
		return Result[T]{Status: StatusFailure, Err: &Error{
			Code: RetCCanceled,
			Op:   "await",
			Err:  ctx.Err(),
		}}
	}
}

// Then calls fn with the Result once the Future settled, on a goroutine of
// its own.
func (f *Future[T]) Then(fn func(Result[T])) {
	go func() {
		<-f.done
		fn(f.res)
	}()
}

// --------------------------------------------------------------------------
// Async Store
// --------------------------------------------------------------------------

// AsyncStore runs the operations of an IStore on their own goroutines and
// returns a Future for each of them.
type AsyncStore struct {
	s IStore
}

// NewAsyncStore wraps s.
func NewAsyncStore(s IStore) *AsyncStore {
	return &AsyncStore{s: s}
}

// Store returns the wrapped store.
func (a *AsyncStore) Store() IStore {
	return a.s
}

func (a *AsyncStore) Insert(ctx context.Context, store string, record db.Record) *Future[struct{}] {
	return Go(func() (struct{}, bool, error) {
		return struct{}{}, true, a.s.Insert(ctx, store, record)
	})
}

func (a *AsyncStore) Upsert(ctx context.Context, store string, record db.Record) *Future[struct{}] {
	return Go(func() (struct{}, bool, error) {
		return struct{}{}, true, a.s.Upsert(ctx, store, record)
	})
}

func (a *AsyncStore) GetByKey(ctx context.Context, store string, key any) *Future[db.Record] {
	return Go(func() (db.Record, bool, error) {
		return a.s.GetByKey(ctx, store, key)
	})
}

// FullScan returns the Future of the scan. Use Then to pass the records on
// to a continuation.
func (a *AsyncStore) FullScan(ctx context.Context, store string) *Future[BulkResult] {
	return Go(func() (BulkResult, bool, error) {
		res, err := a.s.FullScan(ctx, store)
		return res, true, err
	})
}

func (a *AsyncStore) GetByIndex(ctx context.Context, store, index string, value any) *Future[db.Record] {
	return Go(func() (db.Record, bool, error) {
		return a.s.GetByIndex(ctx, store, index, value)
	})
}

func (a *AsyncStore) IndexedScan(ctx context.Context, store, index string, value any) *Future[BulkResult] {
	return Go(func() (BulkResult, bool, error) {
		res, err := a.s.IndexedScan(ctx, store, index, value)
		return res, true, err
	})
}

func (a *AsyncStore) IndexedScanPage(ctx context.Context, store, index string, value any, page, pageSize int) *Future[BulkResult] {
	return Go(func() (BulkResult, bool, error) {
		res, err := a.s.IndexedScanPage(ctx, store, index, value, page, pageSize)
		return res, true, err
	})
}

func (a *AsyncStore) DeleteByKey(ctx context.Context, store string, key any) *Future[struct{}] {
	return Go(func() (struct{}, bool, error) {
		return struct{}{}, true, a.s.DeleteByKey(ctx, store, key)
	})
}

func (a *AsyncStore) DeleteByIndex(ctx context.Context, store, index string, value any) *Future[BulkResult] {
	return Go(func() (BulkResult, bool, error) {
		res, err := a.s.DeleteByIndex(ctx, store, index, value)
		return res, true, err
	})
}
