// Package obsstore implements an observable decorator. After a successful mutation of the
// fallback it emits a change event to all subscribed listeners:
//
//   - Set emits EventAdd for a new key and EventReplace if the old value differs. A write
//     that stores the value the key already had emits nothing.
//   - Remove emits EventRemove if the key was removed somewhere in the chain.
//   - RemoveAll emits EventReset.
//
// Listeners are kept in a concurrent map (xsync) and can subscribe and unsubscribe at any
// time, independent of the store lifecycle.
package obsstore
