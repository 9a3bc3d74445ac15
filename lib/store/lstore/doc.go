// Package lstore implements store.IStore on a local object database opened
// through a db.Opener. It works with every engine of lib/db/engines.
//
// Key Features:
//   - Schema upgrade on open, safe to run on every version bump
//   - One transaction per operation, scoped to the one object store it touches
//   - Cursor walks built from lib/db/seq (All for scans, Page for paged scans)
//   - Engine errors mapped onto store.RetCode in one place
//   - Debug logging of every successful operation, error logging of failures
//   - Prometheus metrics (WritePrometheus) and per-store timers in GetDBInfo
//
// Implementation Details:
//
//   - Paged Scans: IndexedScanPage opens a cursor over the entries equal to the
//     requested value, skips the earlier pages with a single Advance and stops
//     after pageSize records without moving the cursor any further.
//
//   - Bulk Results: Scans skip records that cannot be decoded, count them as
//     failed and return the rest together with a RetCPartialFailure error.
//     DeleteByIndex deletes through the cursor inside one read-write
//     transaction, so either every match is removed or none is.
//
// Thread Safety:
//
//	All operations are safe for concurrent use. Ordering of concurrent writes
//	is left to the engine, which serializes read-write transactions.
//
// Usage Example:
//
//	opener := oak.NewOpener(oak.DefaultOptions("./data"))
//	s, err := lstore.Open(ctx, opener, "users", 1, store.DefaultSchema())
//
//	err = s.Insert(ctx, store.StoreUsersMD, db.Record{"uuid": "u-1", "contentText": "# hi"})
//	page, err := s.IndexedScanPage(ctx, store.StoreUsersMD, store.IndexContentText, "# hi", 2, 20)
package lstore
