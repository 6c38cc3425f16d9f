// Package store defines the contract shared by every layer of a stacKV store chain:
// leaves that persist values and decorators that wrap exactly one fallback store and add
// a cross-cutting behavior (retry, error isolation, change notification, ...).
//
// The package focuses on:
//   - A unified interface (IStore) implemented by leaves and decorators alike
//   - A shared Base that implements the fallback slot and idempotent, transitive Close
//   - A structured error type with return codes
//
// Key Components:
//
//   - IStore Interface: Get/Set/Remove/RemoveAll/ContainsKey/ListKeys plus the fallback slot
//     and Close. Every method takes a context.Context; concurrency is up to the caller
//     (run operations in goroutines to have several in flight at once).
//
//   - Absence: Get reports absence with an explicit found flag and Set reports the previous
//     value together with an existed flag. A stored value is never treated as missing because
//     it equals some default, typed defaults live in the typedstore package.
//
//   - Error System: *Error carries a RetCode. errors.Is(err, ErrUnsupported) matches every
//     unsupported operation error, independent of the message. Unsupported operations are
//     configuration errors and are never retried or absorbed by decorators.
//
// Implementations:
//
//	Leaves (all built on the lstore layer over a db.KVDB engine):
//	- lstore.NewMemoryStore, lstore.NewFileStore, lstore.NewArchiveStore, lstore.NewBoltStore
//	- rstore.NewRemoteStore (read-only, debounced background refresh)
//
//	Decorators:
//	- retrystore (retry with exponential backoff)
//	- safestore (exception wrapper with rethrow list)
//	- obsstore (change events), hookstore (mutation hooks)
//	- dualstore (races two stores), typedstore (typed access), metricstore (metrics)
//
// A pipeline is built by nesting: the chain package does that from a layer list,
// application code can also do it by hand:
//
//	remote := retrystore.New(flaky, retrystore.Options{MaxAttempts: 5})
//	guarded := safestore.New(remote, safestore.Options{})
//	s := lstore.NewMemoryStore(guarded)
//	defer s.Close()
package store
