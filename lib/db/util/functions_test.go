package util

import (
	"strings"
	"testing"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"simple", "simple"},
		{"with space", "with space"},
		{"a/b\\c", "a_b_c"},
		{"what?*", "what__"},
		{"trailing...", "trailing"},
		{"trailing . .", "trailing"},
		{"", "_"},
		{"...", "_"},
		{"con", "_con"},
		{"LPT1.txt", "_LPT1.txt"},
		{"tab\there", "tab_here"},
	}
	for _, tt := range tests {
		if got := SanitizeFileName(tt.in); got != tt.want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeFileNameLength(t *testing.T) {
	long := strings.Repeat("ä", 300)
	got := SanitizeFileName(long)
	if len(got) > maxNameLen {
		t.Errorf("expected at most %d bytes, got %d", maxNameLen, len(got))
	}
	if !strings.HasPrefix(long, got) {
		t.Errorf("truncation split a rune: %q", got)
	}
}

func TestFileName(t *testing.T) {
	if got := FileName("plain-key"); got != "plain-key" {
		t.Errorf("legal keys should be kept, got %q", got)
	}

	a, b := FileName("a/b"), FileName("a\\b")
	if a == b {
		t.Errorf("keys that sanitize to the same name must not collide: %q", a)
	}
	if !strings.HasPrefix(a, "a_b~") {
		t.Errorf("expected sanitized prefix, got %q", a)
	}
	if FileName("a/b") != a {
		t.Errorf("FileName must be deterministic")
	}
}

func TestFileNameOfSuffixedLookingKey(t *testing.T) {
	sanitized := FileName("a/b")
	if got := FileName(sanitized); got == sanitized {
		t.Errorf("a key equal to the file name of another key must get its own name, got %q", got)
	}
	if got := FileName("tilde~key"); !strings.HasPrefix(got, "tilde~key~") {
		t.Errorf("keys containing the separator must be suffixed, got %q", got)
	}
}

func TestHashString(t *testing.T) {
	if HashString("key", 1) == HashString("key", 2) {
		t.Errorf("seed should change the hash")
	}
	if HashString("key", 1) != HashString("key", 1) {
		t.Errorf("hash must be deterministic")
	}
}

func TestFileNameNeverTemp(t *testing.T) {
	if got := FileName("x" + TempSuffix); strings.HasSuffix(got, TempSuffix) {
		t.Errorf("file names must not end with the temp suffix, got %q", got)
	}
}
