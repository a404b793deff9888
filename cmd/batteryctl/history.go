package main

import (
	"context"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"batteryctl/internal/config"
	"batteryctl/internal/store"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent control evaluations",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	runs, err := store.NewRunStore(cfg.State.DBPath)
	if err != nil {
		return fmt.Errorf("open run store: %w", err)
	}
	defer runs.Close()

	history, err := runs.Recent(context.Background(), historyLimit)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Println("no runs recorded yet")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("When", "Action", "Target", "SOC", "Applied", "Cost EUR", "Source", "Reason")
	for _, run := range history {
		soc := "-"
		if run.CurrentSoc != nil {
			soc = fmt.Sprintf("%.1f%%", *run.CurrentSoc)
		}
		table.Append(
			run.EvaluatedAt.Local().Format("2006-01-02 15:04"),
			string(run.Action),
			fmt.Sprintf("%d%%", run.TargetSoc),
			soc,
			fmt.Sprintf("%v", run.Applied),
			fmt.Sprintf("%.4f", run.ProjectedCost),
			run.Source,
			run.Reason,
		)
	}
	table.Render()
	return nil
}
