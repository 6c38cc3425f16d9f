package kv

import (
	"github.com/ValentinKolb/stacKV/cmd/util"
	"github.com/ValentinKolb/stacKV/lib/common"
	"github.com/ValentinKolb/stacKV/lib/store/chain"
	"github.com/ValentinKolb/stacKV/lib/store/codec"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"os"
)

var (
	log = logger.GetLogger("cli")

	kvChain *chain.Chain
	kvCodec codec.IValueCodec
	kvConf  *common.ChainConfig

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:                "kv",
		Short:              "Perform key-value store operations",
		PersistentPreRunE:  setupChain,
		PersistentPostRunE: closeChain,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add chain flags to the KV command
	util.SetupChainFlags(KeyValueCommands)

	// Add subcommands
	KeyValueCommands.AddCommand(setCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(hasCmd)
	KeyValueCommands.AddCommand(keysCmd)
	KeyValueCommands.AddCommand(clearCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}

// setupChain assembles the store chain from the configuration
func setupChain(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	conf, err := util.GetChainConfig()
	if err != nil {
		return err
	}
	if err := common.InitLoggers(conf.LogLevel); err != nil {
		return err
	}

	c, err := util.GetCodec()
	if err != nil {
		return err
	}

	log.Debugf("configuration:%s", conf.String())

	kvChain, err = chain.Build(*conf, chain.Options{})
	if err != nil {
		return err
	}
	kvConf, kvCodec = conf, c
	return nil
}

// closeChain closes the chain and prints the collected metrics if requested
func closeChain(_ *cobra.Command, _ []string) error {
	if kvChain == nil {
		return nil
	}
	if kvConf.Metrics && kvChain.Metrics != nil {
		kvChain.Metrics.WritePrometheus(os.Stdout)
	}
	err := kvChain.Close()
	kvChain = nil
	return err
}
