// Package oak implements a persistent object database engine on top of
// github.com/boltdb/bolt. Every database is a single bolt file
// (<dir>/<name>.oak) and every store and index is a bolt bucket, the catalog
// lives in a meta bucket of the same file.
//
// Transactions map one to one onto bolt transactions: readers run
// concurrently on a consistent snapshot, writers are serialized by bolt and
// commit atomically (a returned error rolls everything back).
//
// A file can be open by a single handle at a time. Opening it a second time,
// from this or another process, waits up to DBOptions.LockTimeout.
package oak
