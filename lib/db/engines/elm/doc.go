// Package elm implements a persistent object database engine on top of
// SQLite (modernc.org/sqlite, no cgo). Every database is one sqlite file
// (<dir>/<name>.elm) in WAL mode. Buckets are rows of a single
// (bucket, key) -> value table, so stores and indexes created during an
// upgrade need no DDL and roll back with the surrounding transaction.
//
// Read transactions run concurrently, write transactions are serialized
// inside the process and wait up to DBOptions.BusyTimeout for other processes.
package elm
