package util

import (
	"github.com/ValentinKolb/stacKV/lib/common"
	"github.com/ValentinKolb/stacKV/lib/store/chain"
	"github.com/ValentinKolb/stacKV/lib/store/codec"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"strings"
	"time"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupChainFlags adds the flags describing a store chain to a command
func SetupChainFlags(cmd *cobra.Command) {
	key := "layers"
	cmd.PersistentFlags().String(key, "memory,file", WrapString("Comma separated layers from top to bottom. Leaves: memory, file, archive, bolt, remote, dual(a|b). Decorators: safe, retry, observe, metrics"))

	key = "data-dir"
	cmd.PersistentFlags().String(key, "./data", WrapString("Directory of the file, archive and bolt layers"))

	key = "archive-path"
	cmd.PersistentFlags().String(key, "", WrapString("Path of the zip archive (default: <data-dir>/store.zip)"))

	key = "archive-flush"
	cmd.PersistentFlags().Int(key, 64, WrapString("Number of changes after which the archive is rewritten"))

	key = "bolt-path"
	cmd.PersistentFlags().String(key, "", WrapString("Path of the bolt database (default: <data-dir>/store.db)"))

	key = "remote-url"
	cmd.PersistentFlags().String(key, "", WrapString("URL of the remote dataset of the remote layer"))

	key = "remote-format"
	cmd.PersistentFlags().String(key, "csv", WrapString("Format of the remote dataset (csv, json)"))

	key = "remote-interval"
	cmd.PersistentFlags().Duration(key, 5*time.Minute, WrapString("Minimum time between two refreshes of the remote dataset"))

	key = "retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("Attempts of the retry layer"))

	key = "retry-delay"
	cmd.PersistentFlags().Duration(key, 100*time.Millisecond, WrapString("Delay before the second attempt of the retry layer, doubled after each attempt"))

	key = "retry-max-delay"
	cmd.PersistentFlags().Duration(key, 0, WrapString("Upper bound of the retry delay (0 = unbounded)"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "warning", WrapString("Log level (debug, info, warning, error)"))

	key = "metrics"
	cmd.PersistentFlags().Bool(key, false, WrapString("Print the metrics of all metrics layers after the command"))
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("stackv")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetChainConfig reads the chain configuration from viper
func GetChainConfig() (*common.ChainConfig, error) {
	layers, err := chain.ParseLayers(viper.GetString("layers"))
	if err != nil {
		return nil, err
	}

	conf := &common.ChainConfig{
		Layers:         layers,
		DataDir:        viper.GetString("data-dir"),
		ArchivePath:    viper.GetString("archive-path"),
		ArchiveFlush:   viper.GetInt("archive-flush"),
		BoltPath:       viper.GetString("bolt-path"),
		RemoteURL:      viper.GetString("remote-url"),
		RemoteFormat:   common.RemoteFormat(strings.ToLower(viper.GetString("remote-format"))),
		RemoteInterval: viper.GetDuration("remote-interval"),
		Retries:        viper.GetInt("retries"),
		RetryDelay:     viper.GetDuration("retry-delay"),
		RetryMaxDelay:  viper.GetDuration("retry-max-delay"),
		Codec:          viper.GetString("codec"),
		LogLevel:       viper.GetString("log-level"),
		Metrics:        viper.GetBool("metrics"),
	}

	return conf, conf.Validate()
}

// GetCodec creates the value codec based on configuration
func GetCodec() (codec.IValueCodec, error) {
	return codec.ByName(viper.GetString("codec"))
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
