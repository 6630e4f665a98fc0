package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lunasherpa/luna/internal/panel"
	"github.com/lunasherpa/luna/internal/store"
)

// openExisting opens a database only if its file already exists, so that
// read-only commands never create one.
func openExisting(path string) (*store.DB, bool, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	db, err := store.Open(path, log)
	if err != nil {
		return nil, false, err
	}
	return db, true, nil
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse past rounds",
	}
	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryShowCmd())
	cmd.AddCommand(newHistoryDeleteCmd())
	return cmd
}

func newHistoryListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent rounds, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, ok, err := openExisting(paths.HistoryDB())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !ok {
				fmt.Fprintln(out, "No rounds recorded yet.")
				return nil
			}
			defer db.Close()

			rounds, err := store.NewRoundStore(db).List(limit)
			if err != nil {
				return err
			}
			if len(rounds) == 0 {
				fmt.Fprintln(out, "No rounds recorded yet.")
				return nil
			}
			for _, r := range rounds {
				fmt.Fprintf(out, "%s  %s  %-8s %s\n",
					r.ID, r.CreatedAt.Local().Format(time.DateTime), r.Backend, truncateLine(r.Query, 60))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of rounds to list")
	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "show <round-id>",
		Short: "Show a past round with every agent's answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, ok, err := openExisting(paths.HistoryDB())
			if err != nil {
				return err
			}
			if !ok {
				return store.ErrRoundNotFound
			}
			defer db.Close()

			r, err := store.NewRoundStore(db).Get(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(r)
			}
			fmt.Fprintf(out, "Round %s (%s, %s, %s)\n", r.ID, r.Backend, r.Model, r.Duration.Round(time.Millisecond))
			fmt.Fprintf(out, "Asked %s: %s\n\n", r.CreatedAt.Local().Format(time.DateTime), r.Query)
			return openPanel(cmd, false, true).Update(panel.KindComplete, panel.Complete{
				Responses:   r.Responses,
				FinalAnswer: r.FinalAnswer,
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the round as JSON")
	return cmd
}

func newHistoryDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <round-id>",
		Short: "Delete a past round",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, ok, err := openExisting(paths.HistoryDB())
			if err != nil {
				return err
			}
			if !ok {
				return store.ErrRoundNotFound
			}
			defer db.Close()

			if err := store.NewRoundStore(db).Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted round %s\n", args[0])
			return nil
		},
	}
}

func newTelemetryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "telemetry",
		Short: "Inspect locally recorded usage events",
	}
	cmd.AddCommand(newTelemetryRecentCmd())
	cmd.AddCommand(newTelemetryPruneCmd())
	return cmd
}

func newTelemetryRecentCmd() *cobra.Command {
	var (
		limit int
		name  string
	)
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List recent telemetry events, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, ok, err := openExisting(paths.TelemetryDB(cfg.Telemetry))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !ok {
				fmt.Fprintln(out, "No telemetry recorded (enable with `luna config set telemetry.enabled true`).")
				return nil
			}
			defer db.Close()

			events, err := store.NewEventStore(db).Recent(limit, name)
			if err != nil {
				return err
			}
			for _, e := range events {
				props, _ := json.Marshal(e.Properties)
				fmt.Fprintf(out, "%s  %-9s %-20s %s\n",
					e.CreatedAt.Local().Format(time.DateTime), e.Kind, e.Name, props)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of events")
	cmd.Flags().StringVar(&name, "name", "", "only show events with this name")
	return cmd
}

func newTelemetryPruneCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old telemetry events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, ok, err := openExisting(paths.TelemetryDB(cfg.Telemetry))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to prune.")
				return nil
			}
			defer db.Close()

			n, err := store.NewEventStore(db).Prune(time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d event(s)\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "delete events older than this")
	return cmd
}

func truncateLine(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
