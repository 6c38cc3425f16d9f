package kv

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/stacKV/lib/store/typedstore"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"sort"
)

var (
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: withChain(func(ctx context.Context, args []string) error {
			key, value := args[0], args[1]
			if viper.GetBool("raw") {
				old, existed, err := kvChain.Store.Set(ctx, key, []byte(value))
				if err != nil {
					return err
				}
				printSet(existed, string(old))
				return nil
			}
			old, existed, err := typedstore.Set[string](ctx, kvChain.Store, kvCodec, key, value)
			if err != nil {
				return err
			}
			printSet(existed, old)
			return nil
		}),
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: withChain(func(ctx context.Context, args []string) error {
			key := args[0]
			if viper.GetBool("raw") {
				resp, ok, err := kvChain.Store.Get(ctx, key)
				if err != nil {
					return err
				}
				fmt.Printf("key=%s, found=%v, resp=%s\n", key, ok, resp)
				return nil
			}
			resp, ok, err := typedstore.Lookup[string](ctx, kvChain.Store, kvCodec, key)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%v, resp=%s\n", key, ok, resp)
			return nil
		}),
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key value pair",
		Args:  cobra.ExactArgs(1),
		RunE: withChain(func(ctx context.Context, args []string) error {
			removed, err := kvChain.Store.Remove(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, removed=%v\n", args[0], removed)
			return nil
		}),
	}
	hasCmd = &cobra.Command{
		Use:   "has [key]",
		Short: "Checks if a key exists",
		Args:  cobra.ExactArgs(1),
		RunE: withChain(func(ctx context.Context, args []string) error {
			found, err := kvChain.Store.ContainsKey(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%v\n", args[0], found)
			return nil
		}),
	}
	keysCmd = &cobra.Command{
		Use:   "keys",
		Short: "Lists all keys of the chain",
		Args:  cobra.NoArgs,
		RunE: withChain(func(ctx context.Context, _ []string) error {
			keys, err := kvChain.Store.ListKeys(ctx)
			if err != nil {
				return err
			}
			sort.Strings(keys)
			for _, key := range keys {
				fmt.Println(key)
			}
			return nil
		}),
	}
	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Removes all keys from every layer",
		Args:  cobra.NoArgs,
		RunE: withChain(func(ctx context.Context, _ []string) error {
			if err := kvChain.Store.RemoveAll(ctx); err != nil {
				return err
			}
			fmt.Println("clear successfully")
			return nil
		}),
	}
)

func init() {
	for _, cmd := range []*cobra.Command{setCmd, getCmd} {
		cmd.Flags().Bool("raw", false, "store and print the value bytes without the codec")
	}
}

// withChain runs fn with the command context and closes the chain if fn fails,
// cobra skips the post run hooks in that case
func withChain(fn func(ctx context.Context, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd.Context(), args); err != nil {
			if closeErr := closeChain(cmd, args); closeErr != nil {
				log.Warningf("closing chain: %v", closeErr)
			}
			return err
		}
		return nil
	}
}

func printSet(existed bool, old string) {
	if existed {
		fmt.Printf("set successfully (old=%s)\n", old)
		return
	}
	fmt.Println("set successfully")
}
