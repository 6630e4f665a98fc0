package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lunasherpa/luna/internal/agent"
	"github.com/lunasherpa/luna/internal/domain"
)

func newAgentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "List the agent team",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, a := range agent.Agents() {
				role := ""
				if a.ID == agent.SynthesizerID {
					role = " (synthesizer)"
				}
				fmt.Fprintf(out, "  %s %-12s %-16s %s%s\n", a.Emoji, a.ID, a.Name, a.Color, role)
			}
			return nil
		},
	}

	cmd.AddCommand(newAgentInfoCmd())
	return cmd
}

func newAgentInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <agent-id>",
		Short: "Show details about an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ok := agent.Find(args[0])
			if !ok {
				return fmt.Errorf("agent not found: %s", args[0])
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Agent: %s (%s %s)\n", a.ID, a.Emoji, a.Name)
			fmt.Fprintf(out, "  Color:        %s\n", a.Color)
			fmt.Fprintf(out, "  Capabilities: %s\n", capabilityList(a.Capabilities))
			fmt.Fprintf(out, "  System:       %s\n", a.SystemPrompt)
			return nil
		},
	}
}

func capabilityList(caps []domain.AgentCapability) string {
	if len(caps) == 0 {
		return "text"
	}
	names := make([]string, len(caps))
	for i, c := range caps {
		names[i] = string(c.Kind)
	}
	return strings.Join(names, ", ")
}
