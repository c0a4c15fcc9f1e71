package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/griffinclark/Dan-at-Dawn/internal/config"
	"github.com/griffinclark/Dan-at-Dawn/internal/history"
)

var (
	flagHistoryLimit int
	flagHistoryJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List recent report runs, or show one run",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(nil)
		if err != nil {
			return err
		}
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		if len(args) == 1 {
			run, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(run, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}

		runs, err := store.List(cmd.Context(), flagHistoryLimit)
		if err != nil {
			return err
		}
		if flagHistoryJSON {
			if runs == nil {
				runs = []history.Run{}
			}
			data, err := json.MarshalIndent(runs, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSTARTED\tPROVIDER\tMODEL\tPRINCIPLES\tSNIPPETS\tCALLS\tDURATION\tSTATUS")
		for _, r := range runs {
			status := r.Status
			if r.Failures > 0 {
				status = fmt.Sprintf("%s (%d failed)", status, r.Failures)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
				r.ID, r.StartedAt.Local().Format(time.DateTime), r.Provider, r.Model,
				strings.Join(r.Principles, ","), r.Snippets, r.Invocations,
				r.Duration().Round(time.Millisecond), status)
		}
		return tw.Flush()
	},
}

func init() {
	historyCmd.Flags().IntVar(&flagHistoryLimit, "limit", 20, "Maximum runs to list (0 for all)")
	historyCmd.Flags().BoolVar(&flagHistoryJSON, "json", false, "Print runs as JSON")
}
