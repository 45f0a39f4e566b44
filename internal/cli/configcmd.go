package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/asad/bluectl/internal/config"
)

// settableKeys are the keys `config set` accepts.
var settableKeys = map[string]bool{
	config.KeyConcurrency: true,
	config.KeyTimeout:     true,
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and write the bluectl key/value store",
		Long: `Read and write the persistent settings consulted by the dispatcher.

Keys:
  storage.concurrency  maximum concurrent storage calls
  storage.timeout      default per-call timeout in milliseconds

BLUECTL_STORAGE_CONCURRENCY and BLUECTL_STORAGE_TIMEOUT override stored values.`,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print a stored value",
			Args:  cobra.ExactArgs(1),
			RunE: withStore(func(cmd *cobra.Command, store *config.FileStore, args []string) error {
				v, ok := store.Lookup(args[0])
				if !ok {
					return fmt.Errorf("%s is not set", args[0])
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Store a value",
			Args:  cobra.ExactArgs(2),
			RunE: withStore(func(cmd *cobra.Command, store *config.FileStore, args []string) error {
				key, value := args[0], args[1]
				if !settableKeys[key] {
					return fmt.Errorf("unknown key %q", key)
				}
				if _, err := strconv.Atoi(value); err != nil {
					return fmt.Errorf("%s must be an integer: %q", key, value)
				}
				store.Set(key, value)
				return store.Save()
			}),
		},
		&cobra.Command{
			Use:   "unset <key>",
			Short: "Remove a stored value",
			Args:  cobra.ExactArgs(1),
			RunE: withStore(func(cmd *cobra.Command, store *config.FileStore, args []string) error {
				if !store.Unset(args[0]) {
					return nil
				}
				return store.Save()
			}),
		},
		&cobra.Command{
			Use:   "list",
			Short: "Print every stored key and value",
			Args:  cobra.NoArgs,
			RunE: withStore(func(cmd *cobra.Command, store *config.FileStore, args []string) error {
				for _, key := range store.Keys() {
					v, _ := store.Lookup(key)
					fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", key, v)
				}
				return nil
			}),
		},
	)
	return cmd
}

// withStore opens the key/value store named by the configuration before running fn.
func withStore(fn func(cmd *cobra.Command, store *config.FileStore, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		store, err := config.OpenFileStore(cfg.StorePath)
		if err != nil {
			return err
		}
		return fn(cmd, store, args)
	}
}
