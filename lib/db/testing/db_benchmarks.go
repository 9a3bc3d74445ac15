package testing

import (
	"context"
	"fmt"
	"testing"

	"github.com/ValentinKolb/objkv/lib/db"
)

// RunObjectDBBenchmarks runs all benchmarks for an object database implementation
func RunObjectDBBenchmarks(b *testing.B, name string, factory OpenerFactory) {

	b.Run("Add", func(b *testing.B) {
		benchmarkAdd(b, open(b, factory(b)))
	})

	b.Run("PutExisting", func(b *testing.B) {
		benchmarkPutExisting(b, open(b, factory(b)))
	})

	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, open(b, factory(b)))
	})

	b.Run("IndexGet", func(b *testing.B) {
		benchmarkIndexGet(b, open(b, factory(b)))
	})

	b.Run("PageScan", func(b *testing.B) {
		benchmarkPageScan(b, open(b, factory(b)))
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// fill adds n records with ids key-0..key-(n-1) spread over 10 groups
func fill(b *testing.B, database db.ObjectDB, n int) {
	b.Helper()
	err := update(database, func(s db.ObjectStore) error {
		for i := 0; i < n; i++ {
			if _, err := s.Add(item(fmt.Sprintf("key-%d", i), fmt.Sprintf("name-%d", i), fmt.Sprintf("g%d", i%10))); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		b.Fatalf("Failed to prepare data: %v", err)
	}
}

// Benchmark for Add operation, one transaction per record
func benchmarkAdd(b *testing.B, database db.ObjectDB) {
	requireFeature(b, database, db.FeatureAdd)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		err := update(database, func(s db.ObjectStore) error {
			_, err := s.Add(item(fmt.Sprintf("key-%d", i), fmt.Sprintf("name-%d", i), "g"))
			return err
		})
		if err != nil {
			b.Fatal(err)
		}
	}
}

// Benchmark for Put operation on existing keys
func benchmarkPutExisting(b *testing.B, database db.ObjectDB) {
	requireFeature(b, database, db.FeaturePut)

	numKeys := 1000
	fill(b, database, numKeys)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		err := update(database, func(s db.ObjectStore) error {
			k := i % numKeys
			_, err := s.Put(item(fmt.Sprintf("key-%d", k), fmt.Sprintf("name-%d", k), fmt.Sprintf("g%d", i%7)))
			return err
		})
		if err != nil {
			b.Fatal(err)
		}
	}
}

// Parallel benchmarking for Get operation
func benchmarkGet(b *testing.B, database db.ObjectDB) {
	requireFeature(b, database, db.FeatureGet)

	numKeys := 1000
	fill(b, database, numKeys)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			_ = view(database, func(s db.ObjectStore) error {
				_, _, err := s.Get(fmt.Sprintf("key-%d", counter%numKeys))
				return err
			})
			counter++
		}
	})
}

// Parallel benchmarking for lookups through a unique index
func benchmarkIndexGet(b *testing.B, database db.ObjectDB) {
	requireFeature(b, database, db.FeatureIndex)

	numKeys := 1000
	fill(b, database, numKeys)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			_ = view(database, func(s db.ObjectStore) error {
				idx, err := s.Index("name")
				if err != nil {
					return err
				}
				_, _, err = idx.Get(fmt.Sprintf("name-%d", counter%numKeys))
				return err
			})
			counter++
		}
	})
}

// Benchmark for reading the 5th page of 10 records of one group
func benchmarkPageScan(b *testing.B, database db.ObjectDB) {
	requireFeature(b, database, db.FeatureIndex|db.FeatureAdvance)

	fill(b, database, 1000)
	r, _ := db.Only("g3")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		err := database.View(context.Background(), []string{itemsStore}, func(tx db.Tx) error {
			s, err := tx.ObjectStore(itemsStore)
			if err != nil {
				return err
			}
			idx, err := s.Index("group")
			if err != nil {
				return err
			}
			c, err := idx.OpenCursor(r)
			if err != nil {
				return err
			}
			if err := c.Advance(40); err != nil {
				return err
			}
			for n := 0; n < 10 && c.Valid(); n++ {
				if _, err := c.Value(); err != nil {
					return err
				}
				if err := c.Continue(); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			b.Fatal(err)
		}
	}
}
