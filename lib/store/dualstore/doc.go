// Package dualstore implements a decorator over two stores of equal standing that race
// each other for the fastest answer.
//
// Semantics:
//   - Get and ContainsKey run on both stores at once. The first hit is returned without
//     waiting for the other store, whose call is canceled. A miss is only reported when
//     both stores missed. An error is only reported when no store had a hit (the errors of
//     both stores are aggregated).
//   - Set writes to the primary store only.
//   - Remove and RemoveAll run on both stores. Remove is true if either store removed the key.
//   - ListKeys is the union of both stores.
package dualstore
