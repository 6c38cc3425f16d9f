package common

import (
	"bytes"
	"github.com/lni/dragonboat/v4/logger"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    logger.LogLevel
		wantErr bool
	}{
		{"debug", logger.DEBUG, false},
		{"INFO", logger.INFO, false},
		{"warn", logger.WARNING, false},
		{"", logger.WARNING, false},
		{"error", logger.ERROR, false},
		{"verbose", logger.WARNING, true},
	}
	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(nil)

	l := CreateLogger("store")
	l.SetLevel(logger.INFO)
	l.Debugf("hidden")
	l.Infof("hello %s", "world")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug output must be filtered at level info")
	}
	if !strings.Contains(out, "INFO  | store    | hello world") {
		t.Errorf("unexpected log line: %q", out)
	}
}

func TestChainConfig(t *testing.T) {
	cfg := ChainConfig{
		Layers:    []string{"memory", "retry", "file"},
		DataDir:   "/var/lib/stackv",
		Retries:   5,
		RemoteURL: "https://example.org/sheet.csv",
		Codec:     "json",
		LogLevel:  "info",
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if cfg.ResolvedArchivePath() != "/var/lib/stackv/store.zip" || cfg.ResolvedBoltPath() != "/var/lib/stackv/store.db" {
		t.Errorf("unexpected default paths %s, %s", cfg.ResolvedArchivePath(), cfg.ResolvedBoltPath())
	}

	out := cfg.String()
	for _, want := range []string{"CHAIN", "REMOTE", "https://example.org/sheet.csv", "memory"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in:\n%s", want, out)
		}
	}

	cfg.RemoteFormat = "xml"
	if err := cfg.Validate(); err == nil {
		t.Errorf("expected an error for an unknown remote format")
	}
	if err := (&ChainConfig{}).Validate(); err == nil {
		t.Errorf("expected an error without layers")
	}
}
