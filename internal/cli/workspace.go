package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/lunasherpa/luna/internal/workspace"
)

func newSetupWorkspaceCmd() *cobra.Command {
	var (
		target string
		source string
		yes    bool
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "setup-workspace",
		Short: "Install Luna's agent files, skills and configuration into a .github directory",
		Long: "setup-workspace copies the bundled .github tree into ~/.github (--target home)\n" +
			"or ./.github (--target workspace). Existing files are never overwritten unless\n" +
			"the bundled copy is newer.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadedConfig()
			if err != nil {
				return err
			}

			src, err := bundledSource(source, cfg.Workspace.Source)
			if err != nil {
				return err
			}
			if ok, _ := afero.DirExists(fsys, src); !ok {
				return fmt.Errorf("bundled .github directory not found: %s", src)
			}

			home, _ := os.UserHomeDir()
			cwd, _ := os.Getwd()
			dst, err := workspace.ResolveTarget(target, home, cwd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			display := workspace.DisplayTarget(target)
			exists, _ := afero.DirExists(fsys, dst)
			var prompt string
			if exists {
				n, err := workspace.CountFiles(fsys, dst)
				if err != nil {
					return err
				}
				prompt = fmt.Sprintf("Found %d existing files in %s. This will add/update Luna's agent files, "+
					"skills, and configuration. Existing files will not be overwritten.", n, display)
			} else {
				prompt = fmt.Sprintf("This will create your %s directory with Luna's agent files, skills, and configuration.", display)
			}
			fmt.Fprintf(out, "Luna workspace setup: %s\n", prompt)

			if !yes && !dryRun && !confirm(cmd.InOrStdin(), out) {
				fmt.Fprintln(out, "Aborted.")
				return nil
			}

			log.Debug().Str("source", src).Str("target", dst).Bool("dryRun", dryRun).Msg("setting up workspace")
			res, err := workspace.CopyDir(fsys, src, dst, workspace.Options{
				Exclude: cfg.Workspace.Exclude,
				DryRun:  dryRun,
			})
			if err != nil {
				return fmt.Errorf("failed to setup workspace: %w", err)
			}

			if dryRun {
				fmt.Fprintf(out, "Dry run: %d files would be added/updated, %d already up-to-date.\n", res.Copied, res.Skipped)
				return nil
			}
			fmt.Fprintf(out, "✅ %s\n", res.Message())
			return nil
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", workspace.TargetHome, "where to install: home (~/.github) or workspace (./.github)")
	cmd.Flags().StringVar(&source, "source", "", "bundled .github directory (default: next to the luna binary)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be copied without writing")

	return cmd
}

// bundledSource picks the .github tree to install: flag, then config, then
// the directory next to the executable.
func bundledSource(flag, configured string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if configured != "" {
		return configured, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locating bundled files: %w", err)
	}
	return filepath.Join(filepath.Dir(exe), ".github"), nil
}

// confirm asks a yes/no question on in and reports whether the answer was yes.
func confirm(in io.Reader, out io.Writer) bool {
	fmt.Fprint(out, "Continue? [y/N] ")
	line, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
