// Package db provides a standardized interface for the local storage engines behind the
// leaf stores of a stacKV chain. It defines the KVDB interface that allows for consistent
// interaction with various backends while abstracting implementation details.
//
// The package focuses on:
//   - A unified interface for key-value operations (Set, Get, Has, Delete, Clear, Keys)
//   - Feature discovery through capability flags
//   - Metadata reporting
//
// Key Components:
//
//   - KVDB Interface: The core interface that all engines must satisfy. Write operations
//     report the previous value so that the layers above can detect real no-ops.
//     Every method takes a context since most engines touch the filesystem.
//
//   - Feature Flags: The Feature type defines capability flags that implementations
//     advertise through SupportsFeature. Read-only engines (e.g. the remote sheet engine)
//     only advertise FeaturesReadOnly; the lstore layer turns calls to missing features
//     into unsupported operation errors.
//
//   - Implementation Identifiers: The Implementation type provides string constants
//     for the engines shipped with this module.
//
// Engines:
//   - engines/memory: xsync based concurrent map
//   - engines/file: one file per key on an afero filesystem
//   - engines/archive: zip archive with buffered deltas and threshold based rewrite
//   - engines/bolt: embedded bbolt database
//
// An engine never consults another store. Caching and fallback are the job of the
// lstore layer, which wraps exactly one engine.
package db
