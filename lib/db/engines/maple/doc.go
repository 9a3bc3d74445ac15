// Package maple implements an in-memory object database engine on top of
// github.com/google/btree. It provides the db.ObjectDB interface through the
// shared engine core and is meant for tests, caches and short-lived processes.
//
// Key Components:
//
//   - NewOpener: Returns a db.Opener with its own namespace of databases.
//     Databases opened twice under the same name share their content, which
//     mirrors reopening a file and keeps schema versions across handles.
//
//   - memStore: One btree per bucket. Read transactions share the trees under
//     a read lock. Write transactions run exclusively on copy-on-write clones
//     (btree.Clone) that replace the originals only when the transaction
//     commits, so a failed transaction leaves no trace.
//
// Data does not survive the process, the engine does not report
// db.FeaturePersistence.
package maple
