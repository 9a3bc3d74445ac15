package db

import "errors"

// Sentinel errors returned (wrapped) by every engine. Callers match them with errors.Is.
var (
	// ErrConstraint is returned when a primary key or unique index value already
	// exists, or when a store or index is declared twice.
	ErrConstraint = errors.New("constraint violated")

	// ErrNotFound is returned for unknown object stores and indexes, and for
	// stores that are not part of the transaction scope.
	ErrNotFound = errors.New("not found")

	// ErrData is returned for records without a valid primary key and for
	// invalid keys or arguments.
	ErrData = errors.New("invalid data")

	// ErrVersion is returned when a database is opened with version 0 or with a
	// version lower than the stored one.
	ErrVersion = errors.New("invalid version")

	// ErrCodec is returned when a database is opened with a codec different from
	// the one its records were written with.
	ErrCodec = errors.New("codec mismatch")

	// ErrReadOnly is returned for writes in a read-only transaction and for
	// schema changes outside of an upgrade.
	ErrReadOnly = errors.New("read-only transaction")

	// ErrTxInactive is returned when a store, index or cursor is used after its
	// transaction has finished.
	ErrTxInactive = errors.New("transaction inactive")

	// ErrClosed is returned by every operation on a closed database.
	ErrClosed = errors.New("database closed")
)
