package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lunasherpa/luna/internal/config"
	"github.com/lunasherpa/luna/internal/gateway"
	"github.com/lunasherpa/luna/internal/store"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the Luna panel over HTTP and WebSocket",
		Long: "serve starts the local gateway. Panels POST /api/ask or connect to /ws and\n" +
			"receive the same status, complete and error messages the terminal shows.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadedConfig()
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			credential, err := config.ResolveAPIKey(cfg, creds)
			if err != nil {
				return fmt.Errorf("reading stored key: %w", err)
			}
			if credential == "" {
				log.Warn().Msg("no xAI API key configured; only demo rounds will be served")
			}

			db, err := store.Open(paths.HistoryDB(), log)
			if err != nil {
				return fmt.Errorf("opening round history: %w", err)
			}
			defer db.Close()

			srv := gateway.New(cfg, gateway.Options{
				Credential: credential,
				Hooks:      hookMgr,
				Rounds:     store.NewRoundStore(db),
			}, log)

			return srv.Start(cmd.Context())
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan)")

	return cmd
}
