package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/lunasherpa/luna/internal/agent"
	"github.com/lunasherpa/luna/internal/config"
	"github.com/lunasherpa/luna/internal/domain"
	"github.com/lunasherpa/luna/internal/llm"
	"github.com/lunasherpa/luna/internal/panel"
	"github.com/lunasherpa/luna/internal/store"
)

const demoNotice = "🎭 Demo Mode: Showing pseudo 4-agent workflow with sample responses"

func newAskCmd() *cobra.Command {
	var (
		demo      bool
		file      string
		fromStdin bool
		model     string
		jsonOut   bool
		quiet     bool
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the agent team a question",
		Long: "Ask sends the question, plus optional code context, to every agent in parallel\n" +
			"and prints each answer followed by Luna's synthesized final answer.\n\n" +
			"Try: luna ask \"Design a simple REST API for a Golf Scoring Application\"",
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadedConfig()
			if err != nil {
				return err
			}

			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				return fmt.Errorf("a question is required")
			}

			codeContext, err := readCodeContext(cmd.InOrStdin(), file, fromStdin)
			if err != nil {
				return err
			}

			credential := llm.DemoCredential
			if !demo {
				credential, err = requireCredential()
				if err != nil {
					return err
				}
			}
			if model == "" {
				model = cfg.Model
			}

			p := openPanel(cmd, jsonOut, quiet)
			if demo {
				p.Update(panel.KindStatus, panel.Status{Message: demoNotice})
			}

			registry := llm.NewRegistryFromConfig(cfg, nil, log)
			client, err := registry.Select(credential, cfg.Features.ExtendedEnabled())
			if err != nil {
				return err
			}
			mgr := agent.NewManager(agent.Agents(), client, agent.Options{
				CallTimeout: cfg.CallTimeout(),
				Hooks:       hookMgr,
			}, log)

			res, err := mgr.Ask(cmd.Context(), agent.Request{
				Query:       query,
				CodeContext: codeContext,
				Credential:  credential,
				Model:       model,
				Progress: func(message string) {
					p.Update(panel.KindStatus, panel.Status{Message: message})
				},
			})
			if err != nil {
				if jsonOut {
					p.Update(panel.KindError, panel.Error{Message: err.Error()})
				}
				return err
			}

			recordRound(store.Round{
				ID:          res.RoundID,
				Query:       query,
				Backend:     res.Backend,
				Model:       model,
				FinalAnswer: res.FinalAnswer,
				Duration:    res.Duration,
				Responses:   append([]domain.AgentResponse(nil), res.Responses...),
			})

			return p.Update(panel.KindComplete, panel.Complete{Responses: res.Responses, FinalAnswer: res.FinalAnswer})
		},
	}

	cmd.Flags().BoolVar(&demo, "demo", false, "use canned offline responses instead of the xAI API")
	cmd.Flags().StringVarP(&file, "file", "f", "", "file to send as code context")
	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "read code context from standard input")
	cmd.Flags().StringVarP(&model, "model", "m", "", "override the configured model")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print panel messages as JSON lines")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "hide progress messages")
	cmd.MarkFlagsMutuallyExclusive("file", "stdin")

	return cmd
}

// readCodeContext loads the optional code context from a file or stdin.
func readCodeContext(stdin io.Reader, file string, fromStdin bool) (string, error) {
	switch {
	case file != "":
		data, err := afero.ReadFile(fsys, file)
		if err != nil {
			return "", fmt.Errorf("reading code context: %w", err)
		}
		return string(data), nil
	case fromStdin:
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading code context from stdin: %w", err)
		}
		return string(data), nil
	default:
		return "", nil
	}
}

// requireCredential returns the configured xAI key or a MissingCredentialError.
func requireCredential() (string, error) {
	key, err := config.ResolveAPIKey(cfg, creds)
	if err != nil {
		return "", fmt.Errorf("reading stored key: %w", err)
	}
	if key == "" || strings.EqualFold(key, llm.DemoCredential) {
		return "", &llm.MissingCredentialError{Hint: "run `luna key set`, set XAI_API_KEY, or pass --demo"}
	}
	return key, nil
}

// openPanel returns the panel a command renders to.
func openPanel(cmd *cobra.Command, jsonOut, quiet bool) panel.Panel {
	if jsonOut {
		return panel.NewJSON(cmd.OutOrStdout())
	}
	return panel.NewConsole(cmd.OutOrStdout(), panel.ConsoleOptions{NoColor: noColor, Quiet: quiet})
}

// recordRound adds a completed round to the local history. Failures are
// logged and otherwise ignored.
func recordRound(r store.Round) {
	db, err := store.Open(paths.HistoryDB(), log)
	if err != nil {
		log.Warn().Err(err).Msg("round history unavailable")
		return
	}
	defer db.Close()
	if err := store.NewRoundStore(db).Save(r); err != nil {
		log.Warn().Err(err).Str("roundId", r.ID).Msg("failed to record round")
	}
}
