package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// macroFlowPhases are the stages Luna walks a task through, in order.
var macroFlowPhases = []struct{ Name, Focus string }{
	{"Constitution", "guardrails"},
	{"Clarify", "questions"},
	{"Specify", "specs"},
	{"Plan", "architecture"},
	{"Tasks", "decomposition"},
	{"Implement", "code"},
}

func newMacroFlowCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "macroflow",
		Short: "Start the MacroFlow ritual in the current workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				wd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("no workspace folder: %w", err)
				}
				dir = wd
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s, starting MacroFlow Ritual. Let's begin with Constitution.\n", cfg.UserAddress)

			agentsDir := filepath.Join(dir, ".github", "agents")
			if ok, _ := afero.DirExists(fsys, agentsDir); !ok {
				return fmt.Errorf("agents directory not found; ensure .github/agents/ exists (try `luna setup-workspace --target workspace`)")
			}

			files, err := doublestar.Glob(afero.NewIOFS(afero.NewBasePathFs(fsys, agentsDir)), "**/*.md")
			if err != nil {
				return fmt.Errorf("scanning %s: %w", agentsDir, err)
			}
			fmt.Fprintf(out, "Agents located (%d definitions). Switching to Constitution agent for setup.\n", len(files))
			for _, f := range files {
				fmt.Fprintf(out, "  - %s\n", f)
			}

			fmt.Fprintln(out, "Phases:")
			for i, p := range macroFlowPhases {
				fmt.Fprintf(out, "  %d. %s (%s)\n", i+1, p.Name, p.Focus)
			}
			fmt.Fprintln(out, "Constitution phase: Loading Acornsoft manifesto, patterns, and constraints...")
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "workspace root (default: current directory)")
	return cmd
}

func newVoiceQueryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "voice-query",
		Short: "Ask the team by voice (not available yet)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), "Voice input is not available yet. Use `luna voice analyze <file>` to analyze a recording.")
			return nil
		},
	}
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Sync with grok.com (not available yet)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), "Syncing with grok.com is still in development.")
			return nil
		},
	}
}
