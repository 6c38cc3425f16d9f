package cmd

import (
	"fmt"
	"github.com/ValentinKolb/stacKV/cmd/kv"
	"github.com/ValentinKolb/stacKV/cmd/util"
	"github.com/spf13/cobra"
	"os"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "stackv",
		Short: "layered key-value store",
		Long: fmt.Sprintf(`stacKV (v%s)

A composable key-value store written in Go. Stores are stacked into a chain
(e.g. memory -> safe -> retry -> remote), reads fall through the chain and
are cached on the way back, writes go through every layer.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of stacKV",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("stacKV v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "codec"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("codec of the stored values (json, gob)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
