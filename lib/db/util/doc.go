// Package util provides utility functions for the engines that satisfy the db.KVDB interface.
//
// The package contains:
//   - HashString: the seeded FNV-1a string hash
//   - SanitizeFileName / FileName: mapping of arbitrary keys to legal, collision free file names
//     (used by the file and archive engines)
package util
