package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/lunasherpa/luna/internal/config"
	"github.com/lunasherpa/luna/internal/hooks"
	"github.com/lunasherpa/luna/internal/logging"
	"github.com/lunasherpa/luna/internal/telemetry"
)

var (
	cfgFile  string
	logLevel string
	noColor  bool

	// loaded at init time
	paths    config.Paths
	cfg      config.Config
	cfgErr   error
	log      *logging.Logger
	logClose io.Closer
	hookMgr  *hooks.Manager
	tel      *telemetry.Service
	creds    *config.CredentialStore
	command  string

	// fsys backs every file the commands read or copy.
	fsys afero.Fs = afero.NewOsFs()
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "luna",
		Short: "Luna Sherpa, a multi-agent team for xAI development",
		Long: "Luna Sherpa puts one question to a team of four xAI agents in parallel " +
			"and has Luna synthesize their answers into a final recommendation.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return shutdown()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.luna/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newAgentsCmd())
	cmd.AddCommand(newKeyCmd())
	cmd.AddCommand(newSetupWorkspaceCmd())
	cmd.AddCommand(newMacroFlowCmd())
	cmd.AddCommand(newVoiceQueryCmd())
	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newVideoCmd())
	cmd.AddCommand(newVoiceCmd())
	cmd.AddCommand(newBuildCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newTelemetryCmd())

	return cmd
}

// setup resolves paths, loads config and opens logging and telemetry.
// A broken config file does not stop commands that only inspect it; those
// that act on it call loadedConfig.
func setup(cmd *cobra.Command) error {
	var err error
	paths, err = config.ResolvePaths()
	if err != nil {
		return err
	}
	if cfgFile != "" {
		paths.Config = cfgFile
	}
	config.LoadDotEnv(paths.EnvFile, ".env")

	cfg, cfgErr = config.Load(paths.Config)
	if cfgErr != nil {
		cfg = config.Defaults()
	}

	level := logLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	log, logClose, err = logging.Open(logging.Options{
		Level: level,
		Style: cfg.Logging.ConsoleStyle,
		File:  cfg.Logging.File,
	})
	if err != nil {
		return err
	}
	if cfgErr != nil {
		log.Debug().Err(cfgErr).Msg("using default config")
	}

	creds = config.NewCredentialStore(paths.Credentials)
	hookMgr = hooks.NewManager(log)
	tel, err = telemetry.Open(paths.TelemetryDB(cfg.Telemetry), cfg.Telemetry.Enabled, log)
	if err != nil {
		log.Warn().Err(err).Msg("telemetry unavailable")
		tel = telemetry.Disabled()
	}
	tel.Subscribe(hookMgr)

	command = commandName(cmd)
	hookMgr.Emit(cmd.Context(), hooks.EventCommandExecuted, map[string]any{"command": command})
	return nil
}

// shutdown flushes telemetry and releases the log file. It is safe to call
// more than once.
func shutdown() error {
	var err error
	if tel != nil {
		err = tel.Close()
		tel = nil
	}
	if logClose != nil {
		logClose.Close()
		logClose = nil
	}
	return err
}

// loadedConfig returns the config, or the error that prevented loading it.
func loadedConfig() (config.Config, error) {
	if cfgErr != nil {
		return cfg, fmt.Errorf("loading %s: %w", paths.Config, cfgErr)
	}
	return cfg, nil
}

// commandName is the command path without the binary name, e.g. "video analyze".
func commandName(cmd *cobra.Command) string {
	return strings.TrimPrefix(cmd.CommandPath(), cmd.Root().Name()+" ")
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return execute(ctx, newRootCmd(), os.Stderr)
}

func execute(ctx context.Context, root *cobra.Command, stderr io.Writer) error {
	err := root.ExecuteContext(ctx)
	if err != nil {
		// PersistentPostRunE is skipped when the command fails.
		if tel != nil {
			tel.TrackException(err, map[string]string{"command": command})
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
	}
	shutdown()
	return err
}
