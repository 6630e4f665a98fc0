package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lunasherpa/luna/internal/config"
	"github.com/lunasherpa/luna/internal/llm"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the stored xAI API key",
	}

	cmd.AddCommand(newKeySetCmd())
	cmd.AddCommand(newKeyClearCmd())
	cmd.AddCommand(newKeyStatusCmd())
	return cmd
}

func newKeySetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set [key]",
		Short: "Store an xAI API key (read from stdin when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var key string
			if len(args) == 1 {
				key = args[0]
			} else {
				fmt.Fprint(cmd.ErrOrStderr(), "Enter your xAI API key: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("reading key: %w", err)
				}
				key = line
			}
			key = strings.TrimSpace(key)

			if strings.EqualFold(key, llm.DemoCredential) {
				return fmt.Errorf("%q is not a key; use `luna ask --demo` for showcase mode", key)
			}
			if err := creds.StoreAPIKey(key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored xAI API key %s\n", config.MaskKey(key))
			return nil
		},
	}
}

func newKeyClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored xAI API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := creds.ClearAPIKey(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cleared stored xAI API key")
			return nil
		},
	}
}

func newKeyStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which xAI API key will be used",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, source, err := config.LocateAPIKey(cfg, creds)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if source == "" {
				fmt.Fprintln(out, "xAI API key: not set (run `luna key set` or use --demo)")
				return nil
			}
			fmt.Fprintf(out, "xAI API key: %s (source: %s)\n", config.MaskKey(key), source)
			return nil
		},
	}
}
