package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"batteryctl/internal/config"
	"batteryctl/internal/controller"
)

var (
	evalDryRun bool
	evalPretty bool
	evalTable  bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Run one control cycle and print the plan",
	RunE:  runEvaluate,
}

func init() {
	evaluateCmd.Flags().BoolVar(&evalDryRun, "dry-run", true, "compute the plan without writing to the inverter")
	evaluateCmd.Flags().BoolVar(&evalPretty, "pretty", false, "indent the JSON output")
	evaluateCmd.Flags().BoolVar(&evalTable, "table", false, "print the trajectory as a table instead of JSON")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	c, cleanup, err := buildController(cfg, nil, !evalDryRun)
	if err != nil {
		return err
	}
	defer cleanup()

	eval, err := c.EvaluateOnce(ctx, evalDryRun)
	if err != nil {
		return err
	}

	if evalTable {
		printEvaluation(eval)
		return nil
	}

	enc := json.NewEncoder(os.Stdout)
	if evalPretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(eval)
}

func printEvaluation(eval *controller.Evaluation) {
	fmt.Printf("action: %s  target soc: %d%%  applied: %v\n", eval.Action, eval.TargetSoc, eval.Applied)
	if eval.Reason != "" {
		fmt.Printf("reason: %s\n", eval.Reason)
	}
	fmt.Printf("projected cost: %.4f EUR  average price: %.4f EUR/kWh  horizon: %.1fh\n\n",
		eval.Plan.ProjectedCostEUR, eval.Plan.AveragePriceEURPerKWh, eval.Plan.ForecastHours)

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Slot", "Start", "Price", "SOC", "Grid kWh")
	for _, p := range eval.Plan.Trajectory {
		table.Append(
			fmt.Sprintf("%d", p.SlotIndex),
			p.Start.Local().Format("Mon 15:04"),
			fmt.Sprintf("%.4f", p.PriceEURPerKWh),
			fmt.Sprintf("%.0f%% -> %.0f%%", p.SocStartPercent, p.SocEndPercent),
			fmt.Sprintf("%.2f", p.GridEnergyKWh),
		)
	}
	table.Render()

	for _, w := range eval.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
}
