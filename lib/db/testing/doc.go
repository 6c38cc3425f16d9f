// Package testing provides standardised tests and benchmarks for
// storage engines that satisfy the db.KVDB interface.
//
// The package contains:
//   - testing: a conformance suite for the KVDB contract (old values, explicit found
//     flags, empty values, hostile keys, concurrency)
//   - benchmark: throughput measurements of the common engine operations
//
// Operations an engine does not support (see db.KVDB.SupportsFeature) are skipped.
//
// Example usage:
//
//	factory := func() db.KVDB {
//		return memory.NewMemoryDB()
//	}
//
//	dbtesting.RunKVDBTests(t, "MemoryDB", factory)
//	dbtesting.RunKVDBBenchmarks(b, "MemoryDB", factory)
package testing
