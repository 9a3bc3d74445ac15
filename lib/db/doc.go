// Package db defines the contract of an embedded, transactional object database.
// It is the host engine the store adapter in lib/store is built on, and it
// allows the adapter to run unchanged on different storage backends.
//
// The package focuses on:
//   - A versioned schema of named object stores with primary key paths and secondary indexes
//   - Transactions scoped to a set of stores that commit or roll back as a whole
//   - Forward cursors over stores and indexes, including a bulk skip (Advance)
//   - Feature discovery through capability flags
//
// Key Components:
//
//   - Opener: Opens a database by name and version. If the requested version
//     is higher than the stored one, the UpgradeFunc runs exactly once in a
//     version-change transaction (UpgradeTx) and may declare stores and
//     indexes. A lower version fails with ErrVersion, the same version opens
//     without an upgrade.
//
//   - ObjectDB: The open handle. View and Update run a function in a read-only
//     or read-write transaction (Tx). An error returned from the function rolls
//     the transaction back.
//
//   - ObjectStore, Index, Cursor: Record level access inside a transaction.
//     Records (Record) are maps; the primary key and index values are read
//     from them through key paths ("uuid", "meta.owner").
//
//   - Keys: Key values (numbers, strings, []byte) are stored in an
//     order-preserving encoding (EncodeKey), so engines only need an ordered
//     byte map. KeyRange bounds cursors, Only(v) selects a single value.
//
//   - Errors: ErrConstraint, ErrNotFound, ErrData, ErrVersion, ErrCodec,
//     ErrReadOnly, ErrTxInactive and ErrClosed are returned wrapped and are
//     matched with errors.Is.
//
//   - Feature Flags and DatabaseInfo: Implementations advertise what they
//     support and report size, type and per-store statistics.
//
// Note on Misses: Get on a store or an index reports a missing record with
// loaded == false and a nil error. Delete of a missing key is a no-op.
//
// Note on Transactions: Stores, indexes and cursors are only valid inside the
// function passed to View or Update. Using them afterwards fails with
// ErrTxInactive.
package db
