package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lunasherpa/luna/internal/agent"
	"github.com/lunasherpa/luna/internal/config"
	"github.com/lunasherpa/luna/internal/llm"
	"github.com/lunasherpa/luna/internal/version"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show Luna status and configuration summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Luna Sherpa %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Fprintf(out, "Config:    %s\n", paths.Config)
			fmt.Fprintf(out, "Data:      %s\n", paths.Data)
			fmt.Fprintf(out, "Logs:      %s\n", paths.Logs)
			fmt.Fprintln(out)

			if cfgErr != nil {
				fmt.Fprintf(out, "Config:    error loading: %v\n", cfgErr)
				return nil
			}
			if _, err := os.Stat(paths.Config); os.IsNotExist(err) {
				fmt.Fprintln(out, "Config:    not found (using defaults)")
			}

			fmt.Fprintf(out, "Model:     %s\n", cfg.Model)
			fmt.Fprintf(out, "Endpoint:  %s\n", cfg.BaseURL)

			key, source, err := config.LocateAPIKey(cfg, creds)
			switch {
			case err != nil:
				fmt.Fprintf(out, "API key:   error: %v\n", err)
			case source == "":
				fmt.Fprintln(out, "API key:   not set (demo mode only)")
			default:
				fmt.Fprintf(out, "API key:   %s (%s)\n", config.MaskKey(key), source)
			}

			registry := llm.NewRegistryFromConfig(cfg, nil, log)
			fmt.Fprintf(out, "Backends:  %s\n", strings.Join(registry.List(), ", "))
			fmt.Fprintf(out, "Features:  video=%s voice=%s build=%s extended=%s\n",
				onOff(cfg.Features.VideoEnabled), onOff(cfg.Features.VoiceEnabled),
				onOff(cfg.Features.BuildEnabled), onOff(cfg.Features.ExtendedEnabled()))

			ids := make([]string, 0, len(agent.Agents()))
			for _, a := range agent.Agents() {
				ids = append(ids, a.ID)
			}
			fmt.Fprintf(out, "Agents:    %s (timeout %s)\n", strings.Join(ids, ", "), cfg.CallTimeout())
			fmt.Fprintf(out, "Gateway:   port=%d bind=%s\n", cfg.Gateway.Port, cfg.Gateway.Bind)
			fmt.Fprintf(out, "Telemetry: %s\n", onOff(cfg.Telemetry.Enabled))

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}

	return cmd
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
