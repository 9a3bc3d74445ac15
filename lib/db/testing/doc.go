// Package testing provides standardised tests and benchmarks for
// engines that satisfy the db.ObjectDB contract.
//
// The package contains:
//   - testing: A conformance suite for the ObjectDB contract (versioned open and
//     upgrade, Add/Put/Get/Delete, key order, ranges, Advance, cursor deletes,
//     unique and non-unique indexes, rollback, read-only and scope checks)
//   - benchmark: Performance tests for the common record and cursor operations
//
// Example usage:
//
//	// Creating a factory function for your engine
//	factory := func(tb testing.TB) db.Opener {
//		return myengine.NewOpener(tb.TempDir())
//	}
//
//	// Running the standard test suite
//	dbtesting.RunObjectDBTests(t, "MyEngine", factory)
//
//	// Running performance benchmarks
//	dbtesting.RunObjectDBBenchmarks(b, "MyEngine", factory)
package testing
