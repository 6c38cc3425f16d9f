// Package lstore implements the local layer of a store chain: a store.IStore on top of any
// db.KVDB engine (memory, file, archive, bolt) with an optional fallback store beneath it.
//
// Key Features:
//   - Self-healing read-through: a value found only in the fallback is written to the engine
//     before it is returned. A failing cache write is logged and does not fail the read.
//   - Write-through: Set writes the engine first and then the fallback. The reported old value
//     is the engine's own prior value if it had one, otherwise the one reported by the fallback.
//   - Remove is true if the key was removed in the engine or anywhere in the fallback chain.
//   - ContainsKey and ListKeys look at the engine and the fallback chain (sorted union).
//   - Feature Detection: operations the engine does not support (see db.KVDB.SupportsFeature)
//     return a store.Error with code RetCUnsupportedOperation.
//
// Thread Safety:
//
//	The layer itself holds no state besides the fallback slot, concurrent operations are as
//	safe as the engine they run on. All engines shipped with stacKV are safe for concurrent use.
//
// Usage Example:
//
//	backend := lstore.NewFileStore(file.DBOptions{Dir: "/var/lib/app/prefs"}, nil)
//	cache := lstore.NewMemoryStore(backend)
//	defer cache.Close() // closes the backend as well
//
//	old, existed, err := cache.Set(ctx, "theme", []byte("dark"))
//	value, found, err := cache.Get(ctx, "theme")
package lstore
