package util

import (
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Hash Functions
// --------------------------------------------------------------------------

// UintKey is an efficient key type based on uint64 for internal hash representation
type UintKey uint64

// HashString generates a hash value for a string with a seed
// This function uses the FNV-1a hash algorithm, which is fast and has good distribution
func HashString(s string, seed uint64) UintKey {

	// FNV-1a hash with seed incorporation
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)

	hash := uint64(offset64) ^ seed

	for i := 0; i < len(s); i++ {
		hash ^= uint64(s[i])
		hash *= prime64
	}

	return UintKey(hash)
}

// --------------------------------------------------------------------------
// File Names
// --------------------------------------------------------------------------

const (
	// maxNameLen keeps file names below the common 255 byte limit (leaving room for the hash suffix)
	maxNameLen = 200
	// replacement for characters that are not allowed in file names
	replacement = '_'
	// TempSuffix marks temporary files of in-flight writes, no key ever maps to a name with this suffix
	TempSuffix = ".~tmp"
)

// reserved names on windows (case-insensitive, with or without extension)
var reservedNames = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {}, "COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {}, "LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// SanitizeFileName turns an arbitrary string into a name that is legal on all common filesystems.
// Illegal characters are replaced, trailing dots and spaces are trimmed and reserved names are prefixed.
// The result is never empty.
func SanitizeFileName(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r < 0x20, r == 0x7f:
			sb.WriteRune(replacement)
		case strings.ContainsRune(`<>:"/\|?*`, r):
			sb.WriteRune(replacement)
		default:
			sb.WriteRune(r)
		}
	}
	name := strings.TrimRight(sb.String(), ". ")
	if len(name) > maxNameLen {
		name = strings.TrimRight(truncateUTF8(name, maxNameLen), ". ")
	}
	if name == "" {
		name = string(replacement)
	}
	base := name
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	if _, ok := reservedNames[strings.ToUpper(base)]; ok {
		name = string(replacement) + name
	}
	return name
}

// hashSeparator starts the hash suffix. Names without a suffix never contain it.
const hashSeparator = "~"

// FileName returns the sanitized file name for a key. If sanitizing changed the key or the
// key contains the hash separator, a hash of the original key is appended. A key that looks
// like a suffixed name therefore gets a suffix of its own.
func FileName(key string) string {
	name := SanitizeFileName(key)
	if name == key && !strings.Contains(name, hashSeparator) {
		return name
	}
	return name + hashSeparator + strconv.FormatUint(uint64(HashString(key, 0)), 36)
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
