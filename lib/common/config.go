package common

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Chain configuration struct
// --------------------------------------------------------------------------

// RemoteFormat is the format of the remote dataset
type RemoteFormat string

const (
	RemoteFormatCSV  RemoteFormat = "csv"
	RemoteFormatJSON RemoteFormat = "json"
)

// ChainConfig holds all parameters needed to assemble a store chain.
type ChainConfig struct {
	// Layers lists the layers from top (called first) to bottom, e.g. "memory,safe,retry,file"
	Layers []string

	// Storage
	DataDir      string
	ArchivePath  string // empty = <DataDir>/store.zip
	ArchiveFlush int
	BoltPath     string // empty = <DataDir>/store.db

	// Remote leaf
	RemoteURL      string
	RemoteFormat   RemoteFormat
	RemoteInterval time.Duration

	// Retry layer
	Retries       int
	RetryDelay    time.Duration
	RetryMaxDelay time.Duration

	// Value codec of typed access ("json" or "gob")
	Codec string

	// Logging configuration
	LogLevel string

	// Metrics enables the metrics layer output
	Metrics bool
}

// ResolvedFileDir returns the directory of the file-per-key layer
func (c *ChainConfig) ResolvedFileDir() string {
	return filepath.Join(c.DataDir, "files")
}

// ResolvedArchivePath returns the archive path, defaulting to a file in the data directory
func (c *ChainConfig) ResolvedArchivePath() string {
	if c.ArchivePath != "" {
		return c.ArchivePath
	}
	return filepath.Join(c.DataDir, "store.zip")
}

// ResolvedBoltPath returns the bolt path, defaulting to a file in the data directory
func (c *ChainConfig) ResolvedBoltPath() string {
	if c.BoltPath != "" {
		return c.BoltPath
	}
	return filepath.Join(c.DataDir, "store.db")
}

// Validate checks the parameters that do not depend on the layer list
func (c *ChainConfig) Validate() error {
	if len(c.Layers) == 0 {
		return fmt.Errorf("no layers configured")
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries must not be negative")
	}
	switch c.RemoteFormat {
	case "", RemoteFormatCSV, RemoteFormatJSON:
	default:
		return fmt.Errorf("unknown remote format %q (supported: csv, json)", c.RemoteFormat)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *ChainConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Chain")
	for i, layer := range c.Layers {
		addField(fmt.Sprintf("%d", i), layer)
	}

	addSection("Storage")
	addField("Data Directory", c.DataDir)
	addField("Files", c.ResolvedFileDir())
	addField("Archive", c.ResolvedArchivePath())
	addField("Archive Flush", fmt.Sprintf("%d changes", c.ArchiveFlush))
	addField("Bolt Database", c.ResolvedBoltPath())

	if c.RemoteURL != "" {
		addSection("Remote")
		addField("URL", c.RemoteURL)
		addField("Format", string(c.RemoteFormat))
		addField("Refresh Interval", c.RemoteInterval.String())
	}

	addSection("Retry")
	addField("Attempts", fmt.Sprintf("%d", c.Retries))
	addField("Initial Delay", c.RetryDelay.String())
	addField("Max Delay", c.RetryMaxDelay.String())

	addSection("Misc")
	addField("Codec", c.Codec)
	addField("Log Level", c.LogLevel)
	addField("Metrics", fmt.Sprintf("%t", c.Metrics))

	return sb.String()
}
