package lstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/ValentinKolb/objkv/lib/db"
	"github.com/ValentinKolb/objkv/lib/db/codec"
	"github.com/ValentinKolb/objkv/lib/db/engines/elm"
	"github.com/ValentinKolb/objkv/lib/db/engines/maple"
	"github.com/ValentinKolb/objkv/lib/db/engines/oak"
	"github.com/ValentinKolb/objkv/lib/db/seq"
	"github.com/ValentinKolb/objkv/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	md  = store.StoreUsersMD
	img = store.StoreUsersImg
)

var engines = map[string]func(t *testing.T) db.Opener{
	"maple": func(t *testing.T) db.Opener {
		return maple.NewOpener(nil)
	},
	"oak": func(t *testing.T) db.Opener {
		return oak.NewOpener(&oak.DBOptions{Dir: t.TempDir(), NoSync: true})
	},
	"elm": func(t *testing.T) db.Opener {
		return elm.NewOpener(elm.DefaultOptions(t.TempDir()))
	},
}

// forEachEngine runs fn once per engine with a fresh opener
func forEachEngine(t *testing.T, fn func(t *testing.T, opener db.Opener)) {
	for name, factory := range engines {
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

func openStore(t *testing.T, opener db.Opener, version uint64) store.IStore {
	t.Helper()
	s, err := Open(context.Background(), opener, "users", version, store.DefaultSchema())
	require.NoError(t, err, "Open should succeed")
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// countUpgrades wraps opener and counts how often the upgrade routine runs
func countUpgrades(opener db.Opener, n *int) db.Opener {
	return func(ctx context.Context, name string, version uint64, upgrade db.UpgradeFunc) (db.ObjectDB, error) {
		return opener(ctx, name, version, func(tx db.UpgradeTx) error {
			*n++
			return upgrade(tx)
		})
	}
}

func mdRecord(uuid, text string) db.Record {
	return db.Record{"uuid": uuid, "contentText": text}
}

func uuids(records []db.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r["uuid"].(string))
	}
	return out
}

// --------------------------------------------------------------------------
// Open
// --------------------------------------------------------------------------

// TestOpenCreatesSchema tests that a fresh database gets both stores with their indexes
func TestOpenCreatesSchema(t *testing.T) {
	forEachEngine(t, func(t *testing.T, opener db.Opener) {
		ctx := context.Background()
		s, err := Open(ctx, opener, "users", 1, store.DefaultSchema())
		require.NoError(t, err)
		require.NoError(t, s.Close())

		database, err := opener(ctx, "users", 1, func(db.UpgradeTx) error {
			t.Error("upgrade must not run for the same version")
			return nil
		})
		require.NoError(t, err)
		defer database.Close()

		assert.Equal(t, []string{img, md}, database.ObjectStoreNames())
		for _, want := range store.DefaultSchema().Stores {
			var got db.StoreSchema
			for _, st := range database.Schema() {
				if st.Name == want.Name {
					got = st
				}
			}
			assert.Equal(t, want.KeyPath, got.KeyPath, "key path of %s", want.Name)
			assert.ElementsMatch(t, want.Indexes, got.Indexes, "indexes of %s", want.Name)
		}
	})
}

// TestOpenUpgradeOnce tests that the upgrade only runs for higher versions and keeps data
func TestOpenUpgradeOnce(t *testing.T) {
	forEachEngine(t, func(t *testing.T, opener db.Opener) {
		ctx := context.Background()
		upgrades := 0
		counted := countUpgrades(opener, &upgrades)

		s, err := Open(ctx, counted, "users", 1, store.DefaultSchema())
		require.NoError(t, err)
		require.NoError(t, s.Insert(ctx, md, mdRecord("u-1", "hello")))
		require.NoError(t, s.Insert(ctx, img, db.Record{"uuid": "i-1", "imgBase64": "aGk="}))
		require.NoError(t, s.Close())
		assert.Equal(t, 1, upgrades)

		s, err = Open(ctx, counted, "users", 1, store.DefaultSchema())
		require.NoError(t, err)
		require.NoError(t, s.Close())
		assert.Equal(t, 1, upgrades, "same version must not upgrade")

		s, err = Open(ctx, counted, "users", 2, store.DefaultSchema())
		require.NoError(t, err)
		assert.Equal(t, 2, upgrades, "higher version must upgrade")

		_, loaded, err := s.GetByKey(ctx, md, "u-1")
		assert.NoError(t, err)
		assert.True(t, loaded, "records survive the upgrade")
		_, loaded, err = s.GetByKey(ctx, img, "i-1")
		assert.NoError(t, err)
		assert.True(t, loaded, "records survive the upgrade")
		require.NoError(t, s.Close())

		_, err = Open(ctx, counted, "users", 1, store.DefaultSchema())
		assert.Equal(t, store.RetCVersionError, store.CodeOf(err))
	})
}

// TestOpenFailures tests the errors of Open
func TestOpenFailures(t *testing.T) {
	ctx := context.Background()
	opener := maple.NewOpener(nil)

	_, err := Open(ctx, nil, "users", 1, store.DefaultSchema())
	assert.Equal(t, store.RetCInvalidOperation, store.CodeOf(err))

	_, err = Open(ctx, opener, "users", 1, store.Schema{})
	assert.Equal(t, store.RetCInvalidOperation, store.CodeOf(err))

	_, err = Open(ctx, opener, "users", 0, store.DefaultSchema())
	assert.Equal(t, store.RetCVersionError, store.CodeOf(err))

	_, err = Open(ctx, opener, "", 1, store.DefaultSchema())
	assert.Equal(t, store.RetCOpenFailed, store.CodeOf(err))

	s, err := Open(ctx, opener, "grow", 1, store.DefaultSchema())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	grown := store.DefaultSchema()
	grown.Stores = append(grown.Stores, db.StoreSchema{Name: "extra", KeyPath: "uuid"})
	_, err = Open(ctx, opener, "grow", 1, grown)
	assert.Equal(t, store.RetCOpenFailed, store.CodeOf(err), "a new store needs a version bump")

	s, err = Open(ctx, opener, "grow", 2, grown)
	require.NoError(t, err)
	assert.NoError(t, s.Insert(ctx, "extra", db.Record{"uuid": "x"}))
	require.NoError(t, s.Close())
}

// TestOpenMissingIndex tests that an index added without a version bump fails the open
func TestOpenMissingIndex(t *testing.T) {
	ctx := context.Background()
	opener := maple.NewOpener(nil)

	s, err := Open(ctx, opener, "idx", 1, store.DefaultSchema())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	grown := store.DefaultSchema()
	for i := range grown.Stores {
		if grown.Stores[i].Name == md {
			grown.Stores[i].Indexes = append(grown.Stores[i].Indexes, db.IndexSchema{Name: "title", KeyPath: "title"})
		}
	}
	_, err = Open(ctx, opener, "idx", 1, grown)
	assert.Equal(t, store.RetCOpenFailed, store.CodeOf(err), "a new index needs a version bump")
	assert.Contains(t, err.Error(), `index "title"`)

	s, err = Open(ctx, opener, "idx", 2, grown)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Insert(ctx, md, db.Record{"uuid": "u-1", "title": "t"}))
	_, loaded, err := s.GetByIndex(ctx, md, "title", "t")
	require.NoError(t, err)
	assert.True(t, loaded)
}

// --------------------------------------------------------------------------
// Single record operations
// --------------------------------------------------------------------------

// TestInsertGet tests that an inserted record reads back unchanged
func TestInsertGet(t *testing.T) {
	forEachEngine(t, func(t *testing.T, opener db.Opener) {
		ctx := context.Background()
		s := openStore(t, opener, 1)

		r := db.Record{
			"uuid":        "u-1",
			"contentText": "# Title",
			"meta":        map[string]any{"tags": []any{"a", "b"}, "rank": 2.5},
		}
		require.NoError(t, s.Insert(ctx, md, r))

		got, loaded, err := s.GetByKey(ctx, md, "u-1")
		require.NoError(t, err)
		require.True(t, loaded)
		assert.Equal(t, r, got)

		_, loaded, err = s.GetByKey(ctx, img, "u-1")
		assert.NoError(t, err)
		assert.False(t, loaded, "stores are independent")
	})
}

// TestInsertGetKeepsTypes tests that integers and byte slices read back with
// their Go types under the default codec
func TestInsertGetKeepsTypes(t *testing.T) {
	forEachEngine(t, func(t *testing.T, opener db.Opener) {
		ctx := context.Background()
		s := openStore(t, opener, 1)

		r := db.Record{
			"uuid":      "i-1",
			"imgBase64": []byte{1, 2, 3},
			"width":     640,
			"meta":      map[string]any{"bytes": int64(1) << 33},
		}
		require.NoError(t, s.Insert(ctx, img, r))

		got, loaded, err := s.GetByKey(ctx, img, "i-1")
		require.NoError(t, err)
		require.True(t, loaded)
		assert.Equal(t, r, got)
	})
}

// TestBinaryIndexDelete tests that deleting records indexed by a []byte value
// leaves no index entries behind
func TestBinaryIndexDelete(t *testing.T) {
	forEachEngine(t, func(t *testing.T, opener db.Opener) {
		ctx := context.Background()
		s := openStore(t, opener, 1)
		blob := []byte{1, 2, 3}

		require.NoError(t, s.Insert(ctx, img, db.Record{"uuid": "i-1", "imgBase64": blob}))
		require.NoError(t, s.DeleteByKey(ctx, img, "i-1"))

		_, loaded, err := s.GetByIndex(ctx, img, store.IndexImgBase64, blob)
		require.NoError(t, err)
		assert.False(t, loaded)

		res, err := s.IndexedScan(ctx, img, store.IndexImgBase64, blob)
		require.NoError(t, err)
		assert.Equal(t, 0, res.Visited)

		for _, id := range []string{"i-2", "i-3"} {
			require.NoError(t, s.Insert(ctx, img, db.Record{"uuid": id, "imgBase64": blob}))
		}
		require.NoError(t, s.Upsert(ctx, img, db.Record{"uuid": "i-3", "imgBase64": []byte{9}}))

		res, err = s.DeleteByIndex(ctx, img, store.IndexImgBase64, blob)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Processed)

		res, err = s.IndexedScan(ctx, img, store.IndexImgBase64, blob)
		require.NoError(t, err)
		assert.Equal(t, 0, res.Visited)

		res, err = s.IndexedScan(ctx, img, store.IndexImgBase64, []byte{9})
		require.NoError(t, err)
		assert.Equal(t, []string{"i-3"}, uuids(res.Records))
	})
}

// TestBinaryIndexJSON tests index maintenance for []byte values with the
// json codec, which reads them back as strings
func TestBinaryIndexJSON(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, maple.NewOpener(&maple.DBOptions{Codec: codec.NewJSONCodec()}), 1)
	blob := []byte{1, 2, 3}

	require.NoError(t, s.Insert(ctx, img, db.Record{"uuid": "i-1", "imgBase64": blob}))
	got, loaded, err := s.GetByKey(ctx, img, "i-1")
	require.NoError(t, err)
	require.True(t, loaded)
	assert.Equal(t, "AQID", got["imgBase64"])

	require.NoError(t, s.Upsert(ctx, img, db.Record{"uuid": "i-1", "imgBase64": []byte{4}}))
	res, err := s.IndexedScan(ctx, img, store.IndexImgBase64, blob)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Visited, "replace removes the old entry")

	require.NoError(t, s.DeleteByKey(ctx, img, "i-1"))
	res, err = s.IndexedScan(ctx, img, store.IndexImgBase64, []byte{4})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Visited, "delete removes the entry")
}

// TestInsertDuplicate tests that Insert keeps an existing record and Upsert replaces it
func TestInsertDuplicate(t *testing.T) {
	forEachEngine(t, func(t *testing.T, opener db.Opener) {
		ctx := context.Background()
		s := openStore(t, opener, 1)

		require.NoError(t, s.Insert(ctx, md, mdRecord("u-1", "first")))

		err := s.Insert(ctx, md, mdRecord("u-1", "second"))
		require.Error(t, err)
		assert.True(t, store.IsDuplicateKey(err), "expected a duplicate key error, got %v", err)
		assert.True(t, errors.Is(err, db.ErrConstraint), "cause should stay reachable")

		got, _, err := s.GetByKey(ctx, md, "u-1")
		require.NoError(t, err)
		assert.Equal(t, "first", got["contentText"])

		require.NoError(t, s.Upsert(ctx, md, mdRecord("u-1", "second")))
		got, _, err = s.GetByKey(ctx, md, "u-1")
		require.NoError(t, err)
		assert.Equal(t, "second", got["contentText"])

		res, err := s.IndexedScan(ctx, md, store.IndexContentText, "first")
		require.NoError(t, err)
		assert.Empty(t, res.Records, "replaced index values are gone")
	})
}

// TestDeleteByKey tests deletes of present and missing keys
func TestDeleteByKey(t *testing.T) {
	forEachEngine(t, func(t *testing.T, opener db.Opener) {
		ctx := context.Background()
		s := openStore(t, opener, 1)

		require.NoError(t, s.Insert(ctx, md, mdRecord("u-1", "x")))
		require.NoError(t, s.Insert(ctx, md, mdRecord("u-2", "x")))

		for _, key := range []any{"u-1", "never-existed", 42} {
			require.NoError(t, s.DeleteByKey(ctx, md, key), "delete %v", key)
			_, loaded, err := s.GetByKey(ctx, md, key)
			assert.NoError(t, err)
			assert.False(t, loaded, "%v should be gone", key)
		}

		_, loaded, _ := s.GetByKey(ctx, md, "u-2")
		assert.True(t, loaded, "other records stay")
	})
}

// TestGetByIndex tests that index lookups return the first match in key order
func TestGetByIndex(t *testing.T) {
	forEachEngine(t, func(t *testing.T, opener db.Opener) {
		ctx := context.Background()
		s := openStore(t, opener, 1)

		for _, id := range []string{"u-3", "u-1", "u-2"} {
			require.NoError(t, s.Insert(ctx, md, mdRecord(id, "shared")))
		}

		got, loaded, err := s.GetByIndex(ctx, md, store.IndexContentText, "shared")
		require.NoError(t, err)
		require.True(t, loaded)
		assert.Equal(t, "u-1", got["uuid"])

		got, loaded, err = s.GetByIndex(ctx, md, store.IndexUUID, "u-2")
		require.NoError(t, err)
		require.True(t, loaded)
		assert.Equal(t, "u-2", got["uuid"])

		_, loaded, err = s.GetByIndex(ctx, md, store.IndexContentText, "missing")
		assert.NoError(t, err)
		assert.False(t, loaded)
	})
}

// --------------------------------------------------------------------------
// Bulk operations
// --------------------------------------------------------------------------

// TestFullScan tests scans of an empty and a filled store
func TestFullScan(t *testing.T) {
	forEachEngine(t, func(t *testing.T, opener db.Opener) {
		ctx := context.Background()
		s := openStore(t, opener, 1)

		res, err := s.FullScan(ctx, md)
		require.NoError(t, err, "an empty store is not an error")
		assert.NotNil(t, res.Records)
		assert.Empty(t, res.Records)
		assert.Zero(t, res.Visited)

		for _, id := range []string{"c", "a", "b"} {
			require.NoError(t, s.Insert(ctx, md, mdRecord(id, "x")))
		}
		res, err = s.FullScan(ctx, md)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, uuids(res.Records))
		assert.Equal(t, store.BulkResult{Records: res.Records, Visited: 3, Processed: 3}, res)
	})
}

// TestIndexedScanPages tests that pages cover every match without overlap
func TestIndexedScanPages(t *testing.T) {
	forEachEngine(t, func(t *testing.T, opener db.Opener) {
		ctx := context.Background()
		s := openStore(t, opener, 1)

		const n, size = 23, 5
		for i := 0; i < n; i++ {
			require.NoError(t, s.Insert(ctx, md, mdRecord(fmt.Sprintf("u-%02d", i), "match")))
		}
		for i := 0; i < 4; i++ {
			require.NoError(t, s.Insert(ctx, md, mdRecord(fmt.Sprintf("o-%02d", i), "other")))
		}

		all, err := s.IndexedScan(ctx, md, store.IndexContentText, "match")
		require.NoError(t, err)
		assert.Len(t, all.Records, n)
		assert.Equal(t, n, all.Processed)

		var seen []string
		for page := 1; page <= n/size+1; page++ {
			res, err := s.IndexedScanPage(ctx, md, store.IndexContentText, "match", page, size)
			require.NoError(t, err)
			if page <= n/size {
				assert.Len(t, res.Records, size, "page %d", page)
			} else {
				assert.Len(t, res.Records, n%size, "last page")
			}
			seen = append(seen, uuids(res.Records)...)
		}
		assert.Equal(t, uuids(all.Records), seen, "pages concatenate to the full scan")

		beyond, err := s.IndexedScanPage(ctx, md, store.IndexContentText, "match", 99, size)
		require.NoError(t, err)
		assert.Empty(t, beyond.Records)

		first, err := s.IndexedScanPage(ctx, md, store.IndexContentText, "match", 0, size)
		require.NoError(t, err)
		assert.Equal(t, seen[:size], uuids(first.Records), "page 0 is the first page")

		huge, err := s.IndexedScanPage(ctx, md, store.IndexContentText, "match", math.MaxInt/2+2, 2)
		require.NoError(t, err)
		assert.Empty(t, huge.Records, "a page whose offset overflows is past the end")

		_, err = s.IndexedScanPage(ctx, md, store.IndexContentText, "match", 1, 0)
		assert.Equal(t, store.RetCInvalidOperation, store.CodeOf(err))
	})
}

// TestDeleteByIndex tests that every match is removed and nothing else
func TestDeleteByIndex(t *testing.T) {
	forEachEngine(t, func(t *testing.T, opener db.Opener) {
		ctx := context.Background()
		s := openStore(t, opener, 1)

		for i := 0; i < 6; i++ {
			text := "keep"
			if i%2 == 0 {
				text = "drop"
			}
			require.NoError(t, s.Insert(ctx, md, mdRecord(fmt.Sprintf("u-%d", i), text)))
		}

		res, err := s.DeleteByIndex(ctx, md, store.IndexContentText, "drop")
		require.NoError(t, err)
		assert.Equal(t, store.BulkResult{Visited: 3, Processed: 3}, res)

		rest, err := s.FullScan(ctx, md)
		require.NoError(t, err)
		assert.Equal(t, []string{"u-1", "u-3", "u-5"}, uuids(rest.Records))

		res, err = s.DeleteByIndex(ctx, md, store.IndexContentText, "drop")
		require.NoError(t, err, "no match is a no-op")
		assert.Equal(t, store.BulkResult{}, res)
	})
}

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

// TestErrorCodes tests the mapping of engine errors onto return codes
func TestErrorCodes(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, maple.NewOpener(nil), 1)

	err := s.Insert(ctx, "nope", mdRecord("u-1", "x"))
	assert.Equal(t, store.RetCUnknownStore, store.CodeOf(err))
	assert.True(t, store.IsNotFound(err))

	_, err = s.IndexedScan(ctx, md, "nope", "x")
	assert.Equal(t, store.RetCUnknownIndex, store.CodeOf(err))
	assert.True(t, store.IsNotFound(err))

	err = s.Insert(ctx, md, db.Record{"contentText": "no key"})
	assert.Equal(t, store.RetCInvalidKey, store.CodeOf(err))

	_, _, err = s.GetByKey(ctx, md, true)
	assert.Equal(t, store.RetCInvalidKey, store.CodeOf(err))

	var se *store.Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "getByKey", se.Op)
	assert.Equal(t, md, se.Store)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.FullScan(canceled, md)
	assert.Equal(t, store.RetCCanceled, store.CodeOf(err))

	require.NoError(t, s.Close())
	err = s.Insert(ctx, md, mdRecord("u-2", "x"))
	assert.Equal(t, store.RetCInvalidOperation, store.CodeOf(err))
}

// brittleCodec is the json codec, except that it fails to decode records
// containing "corrupt"
type brittleCodec struct {
	codec.IRecordCodec
}

func (c brittleCodec) Decode(b []byte) (db.Record, error) {
	if bytes.Contains(b, []byte("corrupt")) {
		return nil, errors.New("corrupt record")
	}
	return c.IRecordCodec.Decode(b)
}

// TestPartialFailure tests that undecodable records are counted and skipped
// by scans and roll back index deletes
func TestPartialFailure(t *testing.T) {
	ctx := context.Background()
	opener := maple.NewOpener(&maple.DBOptions{Codec: brittleCodec{codec.NewJSONCodec()}})
	s := openStore(t, opener, 1)

	require.NoError(t, s.Insert(ctx, md, mdRecord("a", "x")))
	require.NoError(t, s.Insert(ctx, md, db.Record{"uuid": "b", "contentText": "x", "note": "corrupt"}))
	require.NoError(t, s.Insert(ctx, md, mdRecord("c", "x")))

	res, err := s.FullScan(ctx, md)
	assert.Equal(t, store.RetCPartialFailure, store.CodeOf(err))
	assert.Equal(t, []string{"a", "c"}, uuids(res.Records))
	assert.Equal(t, 3, res.Visited)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 1, res.Failed)

	res, err = s.IndexedScan(ctx, md, store.IndexContentText, "x")
	assert.Equal(t, store.RetCPartialFailure, store.CodeOf(err))
	assert.Len(t, res.Records, 2)

	// deletes do not decode records, so broken records can be removed
	res, err = s.DeleteByIndex(ctx, md, store.IndexContentText, "x")
	require.NoError(t, err)
	assert.Equal(t, store.BulkResult{Visited: 3, Processed: 3}, res)

	res, err = s.FullScan(ctx, md)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Visited)
}

// failingCursor visits n entries and fails to delete the one at fail
type failingCursor struct {
	n, pos, fail int
}

func (c *failingCursor) Valid() bool               { return c.pos < c.n }
func (c *failingCursor) Key() db.Key               { return db.MustEncodeKey(c.pos) }
func (c *failingCursor) PrimaryKey() db.Key        { return db.MustEncodeKey(c.pos) }
func (c *failingCursor) Value() (db.Record, error) { return db.Record{"uuid": c.pos}, nil }

func (c *failingCursor) Advance(n int) error {
	c.pos += n
	return nil
}

func (c *failingCursor) Continue() error {
	c.pos++
	return nil
}

func (c *failingCursor) Delete() error {
	if c.pos == c.fail {
		return errors.New("delete failed")
	}
	return nil
}

// TestDeleterStopsOnFailure tests that index deletes stop at the first failure
// and report the counts up to it
func TestDeleterStopsOnFailure(t *testing.T) {
	var res store.BulkResult
	var failed error
	for _, err := range seq.Walk(context.Background(), &failingCursor{n: 5, fail: 2}, &deleter{res: &res}) {
		if err != nil {
			failed = err
			break
		}
	}

	var ie *seq.ItemError
	require.ErrorAs(t, failed, &ie)
	assert.Equal(t, db.MustEncodeKey(2), ie.PrimaryKey)
	assert.Equal(t, store.BulkResult{Visited: 3, Processed: 2, Failed: 1}, res)
}

// --------------------------------------------------------------------------
// Info and metrics
// --------------------------------------------------------------------------

// TestGetDBInfo tests that the info carries the operation timers
func TestGetDBInfo(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, maple.NewOpener(nil), 1)

	require.NoError(t, s.Insert(ctx, md, mdRecord("u-1", "x")))
	require.NoError(t, s.Insert(ctx, md, mdRecord("u-2", "x")))
	require.Error(t, s.Insert(ctx, md, mdRecord("u-1", "x")))

	info, err := s.GetDBInfo()
	require.NoError(t, err)
	assert.Equal(t, db.ImplMaple, info.DbType)

	meta, ok := info.Metadata.(Metadata)
	require.True(t, ok, "unexpected metadata type %T", info.Metadata)
	assert.NotNil(t, meta.Database)

	ins := meta.Operations["insert "+md]
	assert.Equal(t, int64(3), ins.Count)
	assert.Equal(t, int64(1), ins.Errors)
}

// TestWritePrometheus tests that operations show up in the Prometheus output
func TestWritePrometheus(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, maple.NewOpener(nil), "prom", 1, store.DefaultSchema())
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Upsert(ctx, img, db.Record{"uuid": "i-1", "imgBase64": "aGk="}))

	var buf bytes.Buffer
	WritePrometheus(&buf)
	assert.Contains(t, buf.String(), `objkv_store_ops_total{db="prom",op="upsert",store="users_img",result="Success"}`)
	assert.Contains(t, buf.String(), `objkv_store_op_duration_seconds_bucket{db="prom",op="upsert",store="users_img"`)
}

// --------------------------------------------------------------------------
// Async
// --------------------------------------------------------------------------

// TestAsyncStore tests the Future form of the operations
func TestAsyncStore(t *testing.T) {
	ctx := context.Background()
	a := store.NewAsyncStore(openStore(t, maple.NewOpener(nil), 1))

	assert.Equal(t, store.StatusSuccess, a.Insert(ctx, md, mdRecord("u-1", "x")).Await(ctx).Status)

	dup := a.Insert(ctx, md, mdRecord("u-1", "y")).Await(ctx)
	assert.Equal(t, store.StatusFailure, dup.Status)
	assert.True(t, store.IsDuplicateKey(dup.Err))

	miss := a.GetByKey(ctx, md, "u-2").Await(ctx)
	assert.Equal(t, store.StatusNotFound, miss.Status)
	assert.NoError(t, miss.Err)

	hit := a.GetByIndex(ctx, md, store.IndexContentText, "x").Await(ctx)
	assert.Equal(t, store.StatusSuccess, hit.Status)
	assert.Equal(t, "u-1", hit.Value["uuid"])

	scanned := make(chan store.Result[store.BulkResult], 1)
	a.FullScan(ctx, md).Then(func(r store.Result[store.BulkResult]) {
		scanned <- r
	})
	r := <-scanned
	assert.True(t, r.Ok())
	assert.Equal(t, []string{"u-1"}, uuids(r.Value.Records))

	page := a.IndexedScanPage(ctx, md, store.IndexContentText, "x", 1, 10).Await(ctx)
	assert.Len(t, page.Value.Records, 1)

	del := a.DeleteByIndex(ctx, md, store.IndexContentText, "x").Await(ctx)
	assert.Equal(t, 1, del.Value.Processed)
	assert.Equal(t, store.StatusSuccess, a.DeleteByKey(ctx, md, "u-1").Await(ctx).Status)
}
