package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/ValentinKolb/objkv/lib/db"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IStore is the adapter interface for the object stores of one database.
// Every operation runs in its own transaction scoped to the named store.
//
// Errors are always of type *Error (nil on success). A record that does not
// exist is never an error: lookups report it with loaded == false and deletes
// of missing keys are no-ops.
//
// Records read back the way the database codec decodes them. With the default
// gob codec they equal the written record, the json codec returns numbers as
// float64 and []byte values as base64 strings (see package codec).
type IStore interface {
	// Insert adds a record. If a record with the same primary key exists the
	// call fails with RetCDuplicateKey and the stored record is left untouched.
	Insert(ctx context.Context, store string, record db.Record) (err error)

	// Upsert inserts a record or replaces the record with the same primary key.
	Upsert(ctx context.Context, store string, record db.Record) (err error)

	// GetByKey returns the record stored under the primary key.
	GetByKey(ctx context.Context, store string, key any) (record db.Record, loaded bool, err error)

	// FullScan returns every record of the store in primary key order.
	FullScan(ctx context.Context, store string) (result BulkResult, err error)

	// GetByIndex returns the first record whose index value equals value, in
	// index order (primary key order among equal values).
	GetByIndex(ctx context.Context, store, index string, value any) (record db.Record, loaded bool, err error)

	// IndexedScan returns every record whose index value equals value.
	IndexedScan(ctx context.Context, store, index string, value any) (result BulkResult, err error)

	// IndexedScanPage returns the 1-based page of the records IndexedScan would
	// return. The records of earlier pages are skipped in one step, pages <= 1
	// skip nothing. pageSize must be positive.
	IndexedScanPage(ctx context.Context, store, index string, value any, page, pageSize int) (result BulkResult, err error)

	// DeleteByKey removes the record stored under the primary key. Deleting a
	// missing key is a no-op.
	DeleteByKey(ctx context.Context, store string, key any) (err error)

	// DeleteByIndex removes every record whose index value equals value. No
	// match is a no-op. The deletes are atomic: on failure nothing is removed
	// and the counts show how far the walk got.
	DeleteByIndex(ctx context.Context, store, index string, value any) (result BulkResult, err error)

	// Schema returns the schema the store was opened with.
	Schema() Schema

	// GetDBInfo returns metadata about the database underlying the store.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetDBInfo() (info db.DatabaseInfo, err error)

	// Close closes the underlying database.
	Close() error
}

// BulkResult is the outcome of an operation that walks a cursor.
type BulkResult struct {
	Records   []db.Record `json:"records,omitempty"` // records returned by scans
	Visited   int         `json:"visited"`           // cursor entries looked at
	Processed int         `json:"processed"`         // entries handled successfully
	Failed    int         `json:"failed"`            // entries that could not be handled
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error wraps a return code (of type RetCode), the operation and store it
// belongs to and the underlying cause.
type Error struct {
	Code  RetCode // The return code
	Op    string  // The operation that failed
	Store string  // The object store, if any
	Msg   string  // The error message
	Err   error   // The cause, reachable through errors.Unwrap
}

// Error implements the error interface.
func (e *Error) Error() string {
	where := e.Op
	if e.Store != "" {
		where = fmt.Sprintf("%s %s", e.Op, e.Store)
	}
	msg := e.Msg
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = fmt.Sprintf("%s: %v", msg, e.Err)
		}
	}
	return fmt.Sprintf("StoreError (code %s, %s): %s", e.Code, where, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new *Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// CodeOf returns the code of the first *Error in err's chain. A nil error
// is RetCSuccess, any other error RetCInternalError.
func CodeOf(err error) RetCode {
	if err == nil {
		return RetCSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return RetCInternalError
}

// IsDuplicateKey reports whether err was caused by an existing primary key
// or a unique index violation.
func IsDuplicateKey(err error) bool {
	return CodeOf(err) == RetCDuplicateKey
}

// IsNotFound reports whether err names a store or index that does not exist.
// Missing records are not errors and never match.
func IsNotFound(err error) bool {
	code := CodeOf(err)
	return code == RetCUnknownStore || code == RetCUnknownIndex
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying database.
	RetCInvalidOperation                    // 3: Invalid operation.
	RetCOpenFailed                          // 4: The database could not be opened or upgraded.
	RetCVersionError                        // 5: The requested version is lower than the stored one.
	RetCTransactionFailed                   // 6: The transaction was aborted.
	RetCDuplicateKey                        // 7: Primary key or unique index value already exists.
	RetCUnknownStore                        // 8: The object store does not exist.
	RetCUnknownIndex                        // 9: The index does not exist.
	RetCInvalidKey                          // 10: The record has no valid key, or the key is invalid.
	RetCPartialFailure                      // 11: Some records of a bulk operation failed.
	RetCCanceled                            // 12: The context was canceled or timed out.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCOpenFailed:
		return "OpenFailed"
	case RetCVersionError:
		return "VersionError"
	case RetCTransactionFailed:
		return "TransactionFailed"
	case RetCDuplicateKey:
		return "DuplicateKey"
	case RetCUnknownStore:
		return "UnknownStore"
	case RetCUnknownIndex:
		return "UnknownIndex"
	case RetCInvalidKey:
		return "InvalidKey"
	case RetCPartialFailure:
		return "PartialFailure"
	case RetCCanceled:
		return "Canceled"
	default:
		return "Unknown"
	}
}
