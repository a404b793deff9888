package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"batteryctl/internal/config"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Evaluate continuously on the configured interval",
	RunE:  runLoop,
}

func runLoop(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	c, cleanup, err := buildController(cfg, prometheus.NewRegistry(), true)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
