package testing

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/ValentinKolb/objkv/lib/db"
)

// OpenerFactory returns a fresh Opener for one test. Openers must not share
// databases between calls (use tb.TempDir() for file based engines).
type OpenerFactory func(tb testing.TB) db.Opener

const (
	dbName      = "conformance"
	itemsStore  = "items"
	othersStore = "others"
)

// RunObjectDBTests runs a comprehensive test suite for an ObjectDB implementation.
func RunObjectDBTests(t *testing.T, name string, factory OpenerFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("OpenUpgrade", func(t *testing.T) {
			testOpenUpgrade(t, factory(t))
		})

		t.Run("VersionRules", func(t *testing.T) {
			testVersionRules(t, factory(t))
		})

		t.Run("Add&Get", func(t *testing.T) {
			testAddGet(t, open(t, factory(t)))
		})

		t.Run("AddDuplicate", func(t *testing.T) {
			testAddDuplicate(t, open(t, factory(t)))
		})

		t.Run("PutReplace", func(t *testing.T) {
			testPutReplace(t, open(t, factory(t)))
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, open(t, factory(t)))
		})

		t.Run("KeyOrder", func(t *testing.T) {
			testKeyOrder(t, open(t, factory(t)))
		})

		t.Run("CursorRange", func(t *testing.T) {
			testCursorRange(t, open(t, factory(t)))
		})

		t.Run("CursorAdvance", func(t *testing.T) {
			testCursorAdvance(t, open(t, factory(t)))
		})

		t.Run("CursorDelete", func(t *testing.T) {
			testCursorDelete(t, open(t, factory(t)))
		})

		t.Run("IndexLookup", func(t *testing.T) {
			testIndexLookup(t, open(t, factory(t)))
		})

		t.Run("UniqueIndex", func(t *testing.T) {
			testUniqueIndex(t, open(t, factory(t)))
		})

		t.Run("IndexMaintenance", func(t *testing.T) {
			testIndexMaintenance(t, open(t, factory(t)))
		})

		t.Run("BinaryIndexValues", func(t *testing.T) {
			testBinaryIndexValues(t, open(t, factory(t)))
		})

		t.Run("Rollback", func(t *testing.T) {
			testRollback(t, open(t, factory(t)))
		})

		t.Run("ReadOnly", func(t *testing.T) {
			testReadOnly(t, open(t, factory(t)))
		})

		t.Run("Scope", func(t *testing.T) {
			testScope(t, open(t, factory(t)))
		})

		t.Run("TxInactive", func(t *testing.T) {
			testTxInactive(t, open(t, factory(t)))
		})

		t.Run("Canceled", func(t *testing.T) {
			testCanceled(t, open(t, factory(t)))
		})

		t.Run("Closed", func(t *testing.T) {
			testClosed(t, open(t, factory(t)))
		})

		t.Run("ConcurrentWriters", func(t *testing.T) {
			testConcurrentWriters(t, open(t, factory(t)))
		})

		t.Run("Info", func(t *testing.T) {
			testInfo(t, open(t, factory(t)))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.ObjectDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

// upgrade declares the schema used by all tests. It only creates what is missing.
func upgrade(tx db.UpgradeTx) error {
	if !tx.HasObjectStore(itemsStore) {
		if _, err := tx.CreateObjectStore(itemsStore, "id"); err != nil {
			return err
		}
	}
	if !tx.HasObjectStore(othersStore) {
		if _, err := tx.CreateObjectStore(othersStore, "id"); err != nil {
			return err
		}
	}
	if !tx.HasIndex(itemsStore, "name") {
		if err := tx.CreateIndex(itemsStore, "name", "name", true); err != nil {
			return err
		}
	}
	if !tx.HasIndex(itemsStore, "group") {
		if err := tx.CreateIndex(itemsStore, "group", "group", false); err != nil {
			return err
		}
	}
	return nil
}

// open opens the test database at version 1 and closes it when the test ends.
func open(t testing.TB, opener db.Opener) db.ObjectDB {
	t.Helper()
	database, err := opener(context.Background(), dbName, 1, upgrade)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})
	return database
}

func item(id any, name, group string) db.Record {
	r := db.Record{"id": id, "group": group, "size": float64(len(name))}
	if name != "" {
		r["name"] = name
	}
	return r
}

// update runs fn on the items store in a read-write transaction.
func update(database db.ObjectDB, fn func(s db.ObjectStore) error) error {
	return database.Update(context.Background(), []string{itemsStore}, func(tx db.Tx) error {
		s, err := tx.ObjectStore(itemsStore)
		if err != nil {
			return err
		}
		return fn(s)
	})
}

// view runs fn on the items store in a read-only transaction.
func view(database db.ObjectDB, fn func(s db.ObjectStore) error) error {
	return database.View(context.Background(), []string{itemsStore}, func(tx db.Tx) error {
		s, err := tx.ObjectStore(itemsStore)
		if err != nil {
			return err
		}
		return fn(s)
	})
}

func mustAdd(t testing.TB, database db.ObjectDB, records ...db.Record) {
	t.Helper()
	err := update(database, func(s db.ObjectStore) error {
		for _, r := range records {
			if _, err := s.Add(r); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to add records: %v", err)
	}
}

func mustGet(t testing.TB, database db.ObjectDB, key any) (record db.Record, loaded bool) {
	t.Helper()
	err := view(database, func(s db.ObjectStore) error {
		var err error
		record, loaded, err = s.Get(key)
		return err
	})
	if err != nil {
		t.Fatalf("Failed to get %v: %v", key, err)
	}
	return record, loaded
}

// ids walks the cursor to its end and returns the ids of all records.
func ids(c db.Cursor) ([]any, error) {
	var out []any
	for c.Valid() {
		r, err := c.Value()
		if err != nil {
			return out, err
		}
		out = append(out, r["id"])
		if err := c.Continue(); err != nil {
			return out, err
		}
	}
	return out, nil
}

func indexCount(t testing.TB, database db.ObjectDB, index string, value any) int {
	t.Helper()
	var n int
	err := view(database, func(s db.ObjectStore) error {
		idx, err := s.Index(index)
		if err != nil {
			return err
		}
		r, err := db.Only(value)
		if err != nil {
			return err
		}
		n, err = idx.Count(r)
		return err
	})
	if err != nil {
		t.Fatalf("Failed to count index %s: %v", index, err)
	}
	return n
}

func storeCount(t testing.TB, database db.ObjectDB) int {
	t.Helper()
	var n int
	err := view(database, func(s db.ObjectStore) error {
		var err error
		n, err = s.Count()
		return err
	})
	if err != nil {
		t.Fatalf("Failed to count records: %v", err)
	}
	return n
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testOpenUpgrade(t *testing.T, opener db.Opener) {
	ctx := context.Background()
	calls := 0
	var oldVersion, newVersion uint64
	counting := func(tx db.UpgradeTx) error {
		calls++
		oldVersion, newVersion = tx.OldVersion(), tx.NewVersion()
		return upgrade(tx)
	}

	database, err := opener(ctx, dbName, 1, counting)
	if err != nil {
		t.Fatalf("Failed to open new database: %v", err)
	}
	if calls != 1 || oldVersion != 0 || newVersion != 1 {
		t.Errorf("Expected one upgrade 0->1, got %d calls (%d->%d)", calls, oldVersion, newVersion)
	}
	if database.Version() != 1 {
		t.Errorf("Expected version 1, got %d", database.Version())
	}
	if names := database.ObjectStoreNames(); !reflect.DeepEqual(names, []string{itemsStore, othersStore}) {
		t.Errorf("Expected stores %v, got %v", []string{itemsStore, othersStore}, names)
	}
	mustAdd(t, database, item("a", "alpha", "g1"))
	if err := database.Close(); err != nil {
		t.Fatalf("Failed to close database: %v", err)
	}

	// same version: no upgrade, data still there
	database, err = opener(ctx, dbName, 1, counting)
	if err != nil {
		t.Fatalf("Failed to reopen database: %v", err)
	}
	if calls != 1 {
		t.Errorf("Reopening at the same version should not upgrade, got %d calls", calls)
	}
	if _, ok := mustGet(t, database, "a"); !ok {
		t.Errorf("Expected record to survive reopening")
	}
	_ = database.Close()

	// higher version: upgrade again, new index gets filled from existing records
	database, err = opener(ctx, dbName, 2, func(tx db.UpgradeTx) error {
		if err := counting(tx); err != nil {
			return err
		}
		return tx.CreateIndex(itemsStore, "size", "size", false)
	})
	if err != nil {
		t.Fatalf("Failed to open database at version 2: %v", err)
	}
	defer database.Close()

	if calls != 2 || oldVersion != 1 || newVersion != 2 {
		t.Errorf("Expected second upgrade 1->2, got %d calls (%d->%d)", calls, oldVersion, newVersion)
	}
	if _, ok := mustGet(t, database, "a"); !ok {
		t.Errorf("Expected record to survive the upgrade")
	}
	if n := indexCount(t, database, "size", float64(len("alpha"))); n != 1 {
		t.Errorf("Expected new index to contain the existing record, got %d entries", n)
	}
	schema := database.Schema()
	for _, s := range schema {
		if s.Name == itemsStore && len(s.Indexes) != 3 {
			t.Errorf("Expected 3 indexes on %s, got %d", itemsStore, len(s.Indexes))
		}
	}
}

func testVersionRules(t *testing.T, opener db.Opener) {
	ctx := context.Background()

	if _, err := opener(ctx, dbName, 0, upgrade); !errors.Is(err, db.ErrVersion) {
		t.Errorf("Expected ErrVersion for version 0, got %v", err)
	}

	// a failing upgrade leaves nothing behind
	boom := errors.New("boom")
	_, err := opener(ctx, dbName, 1, func(tx db.UpgradeTx) error {
		if _, err := tx.CreateObjectStore("leftover", "id"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected the upgrade error to be returned, got %v", err)
	}

	database, err := opener(ctx, dbName, 2, func(tx db.UpgradeTx) error {
		if tx.OldVersion() != 0 {
			t.Errorf("Expected failed upgrade to keep version 0, got %d", tx.OldVersion())
		}
		if tx.HasObjectStore("leftover") {
			t.Errorf("Store of the failed upgrade should not exist")
		}
		if _, err := tx.CreateObjectStore(itemsStore, "id"); err != nil {
			return err
		}
		if _, err := tx.CreateObjectStore(itemsStore, "id"); !errors.Is(err, db.ErrConstraint) {
			t.Errorf("Expected ErrConstraint for a duplicate store, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	_ = database.Close()

	if _, err := opener(ctx, dbName, 1, upgrade); !errors.Is(err, db.ErrVersion) {
		t.Errorf("Expected ErrVersion when opening with a lower version, got %v", err)
	}
}

func testAddGet(t *testing.T, database db.ObjectDB) {
	requireFeature(t, database, db.FeatureAdd|db.FeatureGet)

	want := item("a", "alpha", "g1")
	want["nested"] = map[string]any{"list": []any{"x", "y"}}
	mustAdd(t, database, want)

	got, ok := mustGet(t, database, "a")
	if !ok {
		t.Fatalf("Expected record to exist after Add")
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}

	// Get returns a copy
	got["group"] = "changed"
	again, _ := mustGet(t, database, "a")
	if again["group"] != "g1" {
		t.Errorf("Get should return a copy, not a reference to the stored record")
	}

	if _, ok := mustGet(t, database, "missing"); ok {
		t.Errorf("Expected missing key to return loaded=false")
	}

	err := update(database, func(s db.ObjectStore) error {
		_, err := s.Add(db.Record{"name": "no key"})
		return err
	})
	if !errors.Is(err, db.ErrData) {
		t.Errorf("Expected ErrData for a record without key, got %v", err)
	}

	err = update(database, func(s db.ObjectStore) error {
		_, err := s.Add(db.Record{"id": true})
		return err
	})
	if !errors.Is(err, db.ErrData) {
		t.Errorf("Expected ErrData for an invalid key, got %v", err)
	}
}

func testAddDuplicate(t *testing.T, database db.ObjectDB) {
	requireFeature(t, database, db.FeatureAdd)

	mustAdd(t, database, item("a", "alpha", "g1"))
	err := update(database, func(s db.ObjectStore) error {
		_, err := s.Add(item("a", "other", "g2"))
		return err
	})
	if !errors.Is(err, db.ErrConstraint) {
		t.Errorf("Expected ErrConstraint for a duplicate key, got %v", err)
	}

	got, _ := mustGet(t, database, "a")
	if got["name"] != "alpha" {
		t.Errorf("Failed Add should leave the record unchanged, got %v", got)
	}
}

func testPutReplace(t *testing.T, database db.ObjectDB) {
	requireFeature(t, database, db.FeaturePut)

	err := update(database, func(s db.ObjectStore) error {
		if _, err := s.Put(item("a", "alpha", "g1")); err != nil {
			return err
		}
		_, err := s.Put(item("a", "beta", "g2"))
		return err
	})
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, ok := mustGet(t, database, "a")
	if !ok || got["name"] != "beta" || got["group"] != "g2" {
		t.Errorf("Expected Put to replace the record, got %v", got)
	}
	if n := storeCount(t, database); n != 1 {
		t.Errorf("Expected 1 record, got %d", n)
	}
}

func testDelete(t *testing.T, database db.ObjectDB) {
	requireFeature(t, database, db.FeatureDelete)

	mustAdd(t, database, item("a", "alpha", "g1"), item("b", "beta", "g1"))
	err := update(database, func(s db.ObjectStore) error {
		if err := s.Delete("a"); err != nil {
			return err
		}
		return s.Delete("never-existed")
	})
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, ok := mustGet(t, database, "a"); ok {
		t.Errorf("Expected key to be gone after Delete")
	}
	if _, ok := mustGet(t, database, "b"); !ok {
		t.Errorf("Delete should not touch other records")
	}
	if n := indexCount(t, database, "group", "g1"); n != 1 {
		t.Errorf("Expected 1 index entry after Delete, got %d", n)
	}
}

func testKeyOrder(t *testing.T, database db.ObjectDB) {
	requireFeature(t, database, db.FeatureCursor)

	mustAdd(t, database,
		db.Record{"id": "b"}, db.Record{"id": 10.0}, db.Record{"id": "a"},
		db.Record{"id": -1.5}, db.Record{"id": 2.0}, db.Record{"id": "a\x00"})

	var got []any
	err := view(database, func(s db.ObjectStore) error {
		c, err := s.OpenCursor(nil)
		if err != nil {
			return err
		}
		got, err = ids(c)
		return err
	})
	if err != nil {
		t.Fatalf("Cursor failed: %v", err)
	}
	want := []any{-1.5, 2.0, 10.0, "a", "a\x00", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected order %v, got %v", want, got)
	}
}

func testCursorRange(t *testing.T, database db.ObjectDB) {
	requireFeature(t, database, db.FeatureCursor)

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		mustAdd(t, database, db.Record{"id": id})
	}

	cases := []struct {
		name string
		r    func() (*db.KeyRange, error)
		want []any
	}{
		{"[b,d)", func() (*db.KeyRange, error) { return db.Bound("b", "d", false, true) }, []any{"b", "c"}},
		{"(c,", func() (*db.KeyRange, error) { return db.LowerBound("c", true) }, []any{"d", "e"}},
		{",b]", func() (*db.KeyRange, error) { return db.UpperBound("b", false) }, []any{"a", "b"}},
		{"only c", func() (*db.KeyRange, error) { return db.Only("c") }, []any{"c"}},
		{"only x", func() (*db.KeyRange, error) { return db.Only("x") }, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := tc.r()
			if err != nil {
				t.Fatalf("Invalid range: %v", err)
			}
			var got []any
			err = view(database, func(s db.ObjectStore) error {
				c, err := s.OpenCursor(r)
				if err != nil {
					return err
				}
				got, err = ids(c)
				return err
			})
			if err != nil {
				t.Fatalf("Cursor failed: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Expected %v, got %v", tc.want, got)
			}
		})
	}
}

func testCursorAdvance(t *testing.T, database db.ObjectDB) {
	requireFeature(t, database, db.FeatureAdvance)

	for i := 0; i < 10; i++ {
		mustAdd(t, database, db.Record{"id": fmt.Sprintf("k%d", i)})
	}

	err := view(database, func(s db.ObjectStore) error {
		c, err := s.OpenCursor(nil)
		if err != nil {
			return err
		}
		if err := c.Advance(0); !errors.Is(err, db.ErrData) {
			t.Errorf("Expected ErrData for Advance(0), got %v", err)
		}
		if err := c.Advance(3); err != nil {
			return err
		}
		r, err := c.Value()
		if err != nil {
			return err
		}
		if r["id"] != "k3" {
			t.Errorf("Expected k3 after Advance(3), got %v", r["id"])
		}
		if err := c.Advance(100); err != nil {
			return err
		}
		if c.Valid() {
			t.Errorf("Expected cursor to be exhausted after advancing past the end")
		}
		if _, err := c.Value(); err == nil {
			t.Errorf("Expected an error for Value on an exhausted cursor")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Cursor failed: %v", err)
	}
}

func testCursorDelete(t *testing.T, database db.ObjectDB) {
	requireFeature(t, database, db.FeatureCursor|db.FeatureIndex|db.FeatureDelete)

	for i := 0; i < 5; i++ {
		mustAdd(t, database, item(fmt.Sprintf("a%d", i), "", "g1"))
	}
	for i := 0; i < 3; i++ {
		mustAdd(t, database, item(fmt.Sprintf("b%d", i), "", "g2"))
	}

	err := view(database, func(s db.ObjectStore) error {
		c, err := s.OpenCursor(nil)
		if err != nil {
			return err
		}
		if err := c.Delete(); !errors.Is(err, db.ErrReadOnly) {
			t.Errorf("Expected ErrReadOnly for a cursor delete in a read-only transaction, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}

	deleted := 0
	err = update(database, func(s db.ObjectStore) error {
		idx, err := s.Index("group")
		if err != nil {
			return err
		}
		r, _ := db.Only("g1")
		c, err := idx.OpenCursor(r)
		if err != nil {
			return err
		}
		for c.Valid() {
			if err := c.Delete(); err != nil {
				return err
			}
			deleted++
			if err := c.Continue(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Cursor delete failed: %v", err)
	}

	if deleted != 5 {
		t.Errorf("Expected 5 deletions, got %d", deleted)
	}
	if n := storeCount(t, database); n != 3 {
		t.Errorf("Expected 3 remaining records, got %d", n)
	}
	if n := indexCount(t, database, "group", "g1"); n != 0 {
		t.Errorf("Expected no g1 entries, got %d", n)
	}
	if n := indexCount(t, database, "group", "g2"); n != 3 {
		t.Errorf("Expected 3 g2 entries, got %d", n)
	}
}

func testIndexLookup(t *testing.T, database db.ObjectDB) {
	requireFeature(t, database, db.FeatureIndex)

	mustAdd(t, database, item("c", "gamma", "g2"), item("a", "alpha", "g1"), item("b", "beta", "g2"))

	err := view(database, func(s db.ObjectStore) error {
		if _, err := s.Index("missing"); !errors.Is(err, db.ErrNotFound) {
			t.Errorf("Expected ErrNotFound for an unknown index, got %v", err)
		}

		idx, err := s.Index("group")
		if err != nil {
			return err
		}
		if idx.Unique() || idx.KeyPath() != "group" {
			t.Errorf("Unexpected index schema: unique=%v keyPath=%s", idx.Unique(), idx.KeyPath())
		}

		// first match in primary key order
		r, ok, err := idx.Get("g2")
		if err != nil {
			return err
		}
		if !ok || r["id"] != "b" {
			t.Errorf("Expected first g2 record to be b, got %v (%v)", r, ok)
		}

		if _, ok, err := idx.Get("g9"); err != nil || ok {
			t.Errorf("Expected miss for an unknown index value, got ok=%v err=%v", ok, err)
		}

		byName, err := s.Index("name")
		if err != nil {
			return err
		}
		r, ok, err = byName.Get("alpha")
		if err != nil || !ok || r["id"] != "a" {
			t.Errorf("Expected alpha -> a, got %v %v %v", r, ok, err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
}

func testUniqueIndex(t *testing.T, database db.ObjectDB) {
	requireFeature(t, database, db.FeatureUniqueIndex)

	mustAdd(t, database, item("a", "same", "g1"))

	err := update(database, func(s db.ObjectStore) error {
		_, err := s.Add(item("b", "same", "g1"))
		return err
	})
	if !errors.Is(err, db.ErrConstraint) {
		t.Errorf("Expected ErrConstraint for a duplicate unique value, got %v", err)
	}
	if _, ok := mustGet(t, database, "b"); ok {
		t.Errorf("Record violating a unique index should not be stored")
	}

	err = update(database, func(s db.ObjectStore) error {
		// rewriting the owner keeps the value
		if _, err := s.Put(item("a", "same", "g2")); err != nil {
			return err
		}
		// freeing the value allows another record to take it
		if _, err := s.Put(item("a", "renamed", "g2")); err != nil {
			return err
		}
		_, err := s.Add(item("b", "same", "g1"))
		return err
	})
	if err != nil {
		t.Fatalf("Expected unique value to be reusable after it was freed: %v", err)
	}
}

func testIndexMaintenance(t *testing.T, database db.ObjectDB) {
	requireFeature(t, database, db.FeatureIndex|db.FeaturePut)

	mustAdd(t, database, item("a", "alpha", "g1"), item("b", "beta", "g1"))
	err := update(database, func(s db.ObjectStore) error {
		_, err := s.Put(item("a", "alpha", "g2"))
		return err
	})
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if n := indexCount(t, database, "group", "g1"); n != 1 {
		t.Errorf("Expected 1 g1 entry after moving a record, got %d", n)
	}
	if n := indexCount(t, database, "group", "g2"); n != 1 {
		t.Errorf("Expected 1 g2 entry after moving a record, got %d", n)
	}

	// records without the indexed field are not part of the index
	mustAdd(t, database, db.Record{"id": "c"})
	if n := indexCount(t, database, "group", ""); n != 0 {
		t.Errorf("Expected records without group to be unindexed, got %d", n)
	}
}

// testBinaryIndexValues tests that index entries of []byte values are removed
// on replace and delete, whatever the codec gives back for them
func testBinaryIndexValues(t *testing.T, database db.ObjectDB) {
	requireFeature(t, database, db.FeatureIndex|db.FeaturePut|db.FeatureDelete)

	blob := []byte{1, 2, 3}
	mustAdd(t, database,
		db.Record{"id": "a", "group": blob},
		db.Record{"id": "b", "group": blob},
		db.Record{"id": "c", "group": blob})
	if n := indexCount(t, database, "group", blob); n != 3 {
		t.Fatalf("Expected 3 entries for %v, got %d", blob, n)
	}

	err := update(database, func(s db.ObjectStore) error {
		if _, err := s.Put(db.Record{"id": "a", "group": []byte{4}}); err != nil {
			return err
		}
		return s.Delete("b")
	})
	if err != nil {
		t.Fatalf("Put and Delete failed: %v", err)
	}
	if n := indexCount(t, database, "group", blob); n != 1 {
		t.Errorf("Expected 1 entry for %v after replace and delete, got %d", blob, n)
	}
	if n := indexCount(t, database, "group", []byte{4}); n != 1 {
		t.Errorf("Expected 1 entry for [4] after replace, got %d", n)
	}

	// delete the rest through the index cursor
	err = update(database, func(s db.ObjectStore) error {
		idx, err := s.Index("group")
		if err != nil {
			return err
		}
		r, err := db.Only(blob)
		if err != nil {
			return err
		}
		c, err := idx.OpenCursor(r)
		if err != nil {
			return err
		}
		for c.Valid() {
			if err := c.Delete(); err != nil {
				return err
			}
			if err := c.Continue(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Cursor delete failed: %v", err)
	}
	if n := indexCount(t, database, "group", blob); n != 0 {
		t.Errorf("Expected no entries for %v after cursor delete, got %d", blob, n)
	}
	if _, loaded := mustGet(t, database, "c"); loaded {
		t.Error("Expected record c to be deleted")
	}
}

func testRollback(t *testing.T, database db.ObjectDB) {
	mustAdd(t, database, item("a", "alpha", "g1"))

	boom := errors.New("boom")
	err := update(database, func(s db.ObjectStore) error {
		if _, err := s.Add(item("b", "beta", "g1")); err != nil {
			return err
		}
		if err := s.Delete("a"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected the callback error, got %v", err)
	}

	if _, ok := mustGet(t, database, "b"); ok {
		t.Errorf("Add of a rolled back transaction should not be visible")
	}
	if _, ok := mustGet(t, database, "a"); !ok {
		t.Errorf("Delete of a rolled back transaction should not be visible")
	}
	if n := indexCount(t, database, "group", "g1"); n != 1 {
		t.Errorf("Expected index to be rolled back too, got %d entries", n)
	}
}

func testReadOnly(t *testing.T, database db.ObjectDB) {
	mustAdd(t, database, item("a", "alpha", "g1"))

	err := view(database, func(s db.ObjectStore) error {
		if _, err := s.Add(item("b", "beta", "g1")); !errors.Is(err, db.ErrReadOnly) {
			t.Errorf("Expected ErrReadOnly for Add, got %v", err)
		}
		if _, err := s.Put(item("a", "beta", "g1")); !errors.Is(err, db.ErrReadOnly) {
			t.Errorf("Expected ErrReadOnly for Put, got %v", err)
		}
		if err := s.Delete("a"); !errors.Is(err, db.ErrReadOnly) {
			t.Errorf("Expected ErrReadOnly for Delete, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
}

func testScope(t *testing.T, database db.ObjectDB) {
	ctx := context.Background()
	noop := func(tx db.Tx) error { return nil }

	if err := database.View(ctx, []string{"missing"}, noop); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for an unknown store, got %v", err)
	}
	if err := database.View(ctx, nil, noop); !errors.Is(err, db.ErrData) {
		t.Errorf("Expected ErrData for an empty scope, got %v", err)
	}

	err := database.Update(ctx, []string{itemsStore}, func(tx db.Tx) error {
		if tx.Mode() != db.TxReadWrite {
			t.Errorf("Expected readwrite mode, got %s", tx.Mode())
		}
		_, err := tx.ObjectStore(othersStore)
		return err
	})
	if !errors.Is(err, db.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for a store outside the scope, got %v", err)
	}
}

func testTxInactive(t *testing.T, database db.ObjectDB) {
	mustAdd(t, database, item("a", "alpha", "g1"))

	var store db.ObjectStore
	var cursor db.Cursor
	err := view(database, func(s db.ObjectStore) error {
		store = s
		var err error
		cursor, err = s.OpenCursor(nil)
		return err
	})
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}

	if _, _, err := store.Get("a"); !errors.Is(err, db.ErrTxInactive) {
		t.Errorf("Expected ErrTxInactive after the transaction finished, got %v", err)
	}
	if cursor.Valid() {
		t.Errorf("Cursor should not be valid after the transaction finished")
	}
	if err := cursor.Continue(); !errors.Is(err, db.ErrTxInactive) {
		t.Errorf("Expected ErrTxInactive for Continue, got %v", err)
	}
}

func testCanceled(t *testing.T, database db.ObjectDB) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := database.View(ctx, []string{itemsStore}, func(tx db.Tx) error {
		t.Errorf("Callback should not run with a canceled context")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func testClosed(t *testing.T, database db.ObjectDB) {
	if err := database.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := view(database, func(s db.ObjectStore) error { return nil }); !errors.Is(err, db.ErrClosed) {
		t.Errorf("Expected ErrClosed after Close, got %v", err)
	}
	if err := database.Close(); !errors.Is(err, db.ErrClosed) {
		t.Errorf("Expected ErrClosed for a second Close, got %v", err)
	}
}

func testConcurrentWriters(t *testing.T, database db.ObjectDB) {
	requireFeature(t, database, db.FeatureAdd)

	numWorkers := 8
	perWorker := 25
	var wg sync.WaitGroup
	errs := make(chan error, numWorkers)

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				err := update(database, func(s db.ObjectStore) error {
					_, err := s.Add(item(fmt.Sprintf("w%d-%d", w, i), fmt.Sprintf("n%d-%d", w, i), fmt.Sprintf("g%d", w)))
					return err
				})
				if err != nil {
					errs <- err
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Concurrent Add failed: %v", err)
	}
	if n := storeCount(t, database); n != numWorkers*perWorker {
		t.Errorf("Expected %d records, got %d", numWorkers*perWorker, n)
	}
	if n := indexCount(t, database, "group", "g3"); n != perWorker {
		t.Errorf("Expected %d records in g3, got %d", perWorker, n)
	}
}

func testInfo(t *testing.T, database db.ObjectDB) {
	mustAdd(t, database, item("a", "alpha", "g1"))

	info := database.GetInfo()
	if info.DbType == "" {
		t.Errorf("Expected an implementation name")
	}
	if len(info.SupportedFeatures) == 0 {
		t.Errorf("Expected supported features")
	}
	for _, f := range info.SupportedFeatures {
		if !database.SupportsFeature(f) {
			t.Errorf("Feature %s listed but not supported", f)
		}
	}
	if info.Metadata == nil {
		t.Errorf("Expected metadata")
	}
}
