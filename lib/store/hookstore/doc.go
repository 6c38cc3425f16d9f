// Package hookstore implements a decorator that runs optional callbacks after successful
// mutations of its fallback (OnSet, OnRemove, OnRemoveAll). It is meant for side effects
// like re-indexing or audit logging. A failing hook is reported as *HookError, the mutation
// itself is not rolled back.
package hookstore
