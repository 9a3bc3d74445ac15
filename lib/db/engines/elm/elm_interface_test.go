package elm

import (
	"context"
	"testing"

	"github.com/ValentinKolb/objkv/lib/db"
	"github.com/ValentinKolb/objkv/lib/db/codec"
	dbtesting "github.com/ValentinKolb/objkv/lib/db/testing"
)

func Test(t *testing.T) {
	dbtesting.RunObjectDBTests(t, "ElmDB", func(tb testing.TB) db.Opener {
		return NewOpener(&DBOptions{Dir: tb.TempDir()})
	})
	// json reads []byte values back as strings, index upkeep must not depend on it
	dbtesting.RunObjectDBTests(t, "ElmDB-json", func(tb testing.TB) db.Opener {
		return NewOpener(&DBOptions{Dir: tb.TempDir(), Codec: codec.NewJSONCodec()})
	})
}

func Benchmark(b *testing.B) {
	dbtesting.RunObjectDBBenchmarks(b, "ElmDB", func(tb testing.TB) db.Opener {
		return NewOpener(&DBOptions{Dir: tb.TempDir()})
	})
}

// TestPersistence tests that records survive a new opener on the same directory
func TestPersistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	upgrade := func(tx db.UpgradeTx) error {
		_, err := tx.CreateObjectStore("docs", "id")
		return err
	}

	database, err := NewOpener(&DBOptions{Dir: dir})(ctx, "persist", 1, upgrade)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	err = database.Update(ctx, []string{"docs"}, func(tx db.Tx) error {
		s, err := tx.ObjectStore("docs")
		if err != nil {
			return err
		}
		_, err = s.Add(db.Record{"id": 1.0, "text": "hello"})
		return err
	})
	if err != nil {
		t.Fatalf("Failed to add record: %v", err)
	}
	_ = database.Close()

	database, err = NewOpener(&DBOptions{Dir: dir})(ctx, "persist", 1, upgrade)
	if err != nil {
		t.Fatalf("Failed to reopen database: %v", err)
	}
	defer database.Close()

	err = database.View(ctx, []string{"docs"}, func(tx db.Tx) error {
		s, err := tx.ObjectStore("docs")
		if err != nil {
			return err
		}
		r, ok, err := s.Get(1)
		if err != nil {
			return err
		}
		if !ok || r["text"] != "hello" {
			t.Errorf("Expected persisted record, got %v (%v)", r, ok)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
	if info := database.GetInfo(); info.DbType != db.ImplElm || info.SizeBytes <= 0 {
		t.Errorf("Unexpected info %+v", info)
	}
}
