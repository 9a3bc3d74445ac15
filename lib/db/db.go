package db

import "context"

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMaple Implementation = "maple" // in-memory btree engine
	ImplOak   Implementation = "oak"   // boltdb file engine
	ImplElm   Implementation = "elm"   // sqlite file engine
)

// Feature represents database features as bit flags
type Feature uint64

const (
	FeatureAdd         Feature = 1 << iota // Support for ObjectStore.Add
	FeaturePut                             // Support for ObjectStore.Put
	FeatureGet                             // Support for ObjectStore.Get
	FeatureDelete                          // Support for ObjectStore.Delete
	FeatureCursor                          // Support for forward cursors
	FeatureAdvance                         // Support for Cursor.Advance as a single bulk skip
	FeatureIndex                           // Support for secondary indexes
	FeatureUniqueIndex                     // Support for unique secondary indexes
	FeatureVersioning                      // Support for versioned schema upgrades
	FeaturePersistence                     // Data survives closing the database
)

// FeatureAll lists every feature flag in declaration order.
var FeatureAll = []Feature{
	FeatureAdd, FeaturePut, FeatureGet, FeatureDelete, FeatureCursor,
	FeatureAdvance, FeatureIndex, FeatureUniqueIndex, FeatureVersioning, FeaturePersistence,
}

func (f Feature) String() string {
	switch f {
	case FeatureAdd:
		return "Add"
	case FeaturePut:
		return "Put"
	case FeatureGet:
		return "Get"
	case FeatureDelete:
		return "Delete"
	case FeatureCursor:
		return "Cursor"
	case FeatureAdvance:
		return "Advance"
	case FeatureIndex:
		return "Index"
	case FeatureUniqueIndex:
		return "UniqueIndex"
	case FeatureVersioning:
		return "Versioning"
	case FeaturePersistence:
		return "Persistence"
	default:
		return "Unknown"
	}
}

// Features expands a bit set into the single flags it contains.
func (f Feature) Features() []Feature {
	var out []Feature
	for _, feature := range FeatureAll {
		if f&feature != 0 {
			out = append(out, feature)
		}
	}
	return out
}

type DatabaseInfo struct {
	SizeBytes         int64          `json:"size_bytes"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// TxMode is the access mode of a transaction.
type TxMode uint8

const (
	TxReadOnly TxMode = iota
	TxReadWrite
	TxVersionChange
)

func (m TxMode) String() string {
	switch m {
	case TxReadOnly:
		return "readonly"
	case TxReadWrite:
		return "readwrite"
	case TxVersionChange:
		return "versionchange"
	default:
		return "unknown"
	}
}

// UpgradeFunc declares the schema of a database. It is called by an Opener
// inside the version-change transaction whenever the requested version is
// higher than the stored one (a database that does not exist yet has version 0).
type UpgradeFunc func(tx UpgradeTx) error

// Opener opens (and if needed creates and upgrades) the named database.
// All engines expose their configuration through a constructor that returns an Opener.
type Opener func(ctx context.Context, name string, version uint64, upgrade UpgradeFunc) (ObjectDB, error)

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// ObjectDB is an open handle on a versioned object database made of named
// object stores. All reads and writes go through transactions that are scoped
// to a set of stores. A transaction commits when its function returns nil and
// rolls back otherwise.
//
// Thread-safety: all methods are safe for concurrent use. Implementations
// serialize read-write transactions.
type ObjectDB interface {
	// Name returns the name the database was opened with.
	Name() string

	// Version returns the schema version of the database.
	Version() uint64

	// ObjectStoreNames returns the sorted names of all object stores.
	ObjectStoreNames() []string

	// Schema returns a copy of the current schema of all object stores.
	Schema() []StoreSchema

	// --------------------------------------------------------------------------
	// Transactions
	// --------------------------------------------------------------------------

	// View runs fn in a read-only transaction over the given stores.
	// Unknown store names are rejected with ErrNotFound before fn is called.
	View(ctx context.Context, scope []string, fn func(tx Tx) error) error

	// Update runs fn in a read-write transaction over the given stores.
	// If fn returns an error, every change made in the transaction is discarded.
	Update(ctx context.Context, scope []string, fn func(tx Tx) error) error

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// Close closes the database. Further calls return ErrClosed.
	Close() error
}

// Tx is a transaction handed to the function passed to View or Update.
// It must not be used after that function returned.
type Tx interface {
	// Mode reports the access mode of the transaction.
	Mode() TxMode

	// ObjectStore returns the named store. The store must be part of the transaction scope.
	ObjectStore(name string) (ObjectStore, error)
}

// UpgradeTx is the version-change transaction passed to an UpgradeFunc.
// It spans every store and is the only place where the schema can change.
type UpgradeTx interface {
	Tx

	// OldVersion is the version stored before the upgrade (0 for a new database).
	OldVersion() uint64

	// NewVersion is the version requested by the caller.
	NewVersion() uint64

	HasObjectStore(name string) bool
	HasIndex(store, name string) bool

	// CreateObjectStore declares a store whose primary key is read from keyPath.
	// Creating a store that already exists fails with ErrConstraint.
	CreateObjectStore(name, keyPath string) (ObjectStore, error)

	// DeleteObjectStore removes the store, its records and its indexes.
	DeleteObjectStore(name string) error

	// CreateIndex declares a secondary index and fills it from the records
	// already in the store. If unique is set and two records share a value the
	// call fails with ErrConstraint.
	CreateIndex(store, name, keyPath string, unique bool) error

	// DeleteIndex removes a secondary index.
	DeleteIndex(store, name string) error
}

// ObjectStore is a set of records ordered by their primary key.
type ObjectStore interface {
	Name() string
	KeyPath() string
	IndexNames() []string

	// Index returns the named index of the store, or ErrNotFound.
	Index(name string) (Index, error)

	// Add inserts a record. It fails with ErrConstraint if a record with the
	// same primary key exists or a unique index would be violated.
	Add(record Record) (Key, error)

	// Put inserts or replaces a record.
	Put(record Record) (Key, error)

	// Get returns the record stored under key. A miss is not an error.
	Get(key any) (record Record, loaded bool, err error)

	// Delete removes the record stored under key. Deleting a missing key is a no-op.
	Delete(key any) error

	// Count returns the number of records in the store.
	Count() (int, error)

	// OpenCursor opens a cursor over the primary keys in r (nil for all records).
	OpenCursor(r *KeyRange) (Cursor, error)
}

// Index is a secondary index of an object store. Entries are ordered by the
// index value and then by primary key.
type Index interface {
	Name() string
	KeyPath() string
	Unique() bool

	// Get returns the first record whose index value equals value.
	Get(value any) (record Record, loaded bool, err error)

	// Count returns the number of index entries in r (nil for all entries).
	Count(r *KeyRange) (int, error)

	// OpenCursor opens a cursor over the index entries in r (nil for all entries).
	OpenCursor(r *KeyRange) (Cursor, error)
}

// Cursor is a forward cursor over a store or an index. A freshly opened cursor
// is positioned on the first entry of its range.
type Cursor interface {
	// Valid reports whether the cursor is positioned on an entry.
	Valid() bool

	// Key returns the encoded key of the current entry (the index value for index cursors).
	Key() Key

	// PrimaryKey returns the encoded primary key of the current record.
	PrimaryKey() Key

	// Value loads and decodes the current record.
	Value() (Record, error)

	// Continue moves the cursor to the next entry.
	Continue() error

	// Advance moves the cursor n entries forward in one step. n must be positive.
	Advance(n int) error

	// Delete removes the current record from the store. The cursor keeps its
	// position, Continue moves on to the entry after the deleted one.
	Delete() error
}
