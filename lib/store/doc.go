// Package store defines the store adapter: a small, fixed set of operations
// on the object stores of one embedded object database (lib/db), with
// explicit results instead of silent failures.
//
// The package focuses on:
//   - A unified interface (IStore) for inserts, lookups, scans, paged scans and deletes
//   - Typed errors that separate failures from misses
//   - A Future based asynchronous form of every operation
//
// Key Components:
//
//   - IStore Interface: Every operation runs in its own transaction scoped to
//     one object store. Single record reads report a miss with loaded == false
//     and a nil error, deletes of missing records are no-ops. Operations that
//     walk a cursor return a BulkResult with the records and the number of
//     visited, processed and failed entries.
//
//   - Error System: Every error returned by an IStore is a *Error carrying a
//     RetCode, the operation, the store and the cause (errors.Unwrap). Use
//     CodeOf, IsDuplicateKey and IsNotFound to branch on the kind of failure.
//
//   - Schema: The object stores and indexes a store declares. DefaultSchema
//     describes the users_md and users_img stores, both keyed by uuid.
//     Schema.Upgrade only adds what is missing and can run on every version bump.
//
//   - AsyncStore and Future: NewAsyncStore runs each operation on its own
//     goroutine. The returned Future settles exactly once with a Result whose
//     Status is StatusSuccess, StatusNotFound or StatusFailure. Await blocks,
//     Then registers a continuation.
//
// Implementations:
//
//	- Local Store (lstore): Opens a database through any db.Opener (maple, oak
//	  or elm) and implements IStore on top of it, with logging and metrics.
//	  Available in the "github.com/ValentinKolb/objkv/lib/store/lstore" package.
package store
