package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"batteryctl/internal/api"
	"batteryctl/internal/config"
	"batteryctl/internal/logger"
	"batteryctl/internal/store"
)

var serveNoLoop bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and run the control loop",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveNoLoop, "no-loop", false, "serve the API without the background control loop")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	registry := prometheus.NewRegistry()
	c, cleanup, err := buildController(cfg, registry, true)
	if err != nil {
		return err
	}
	defer cleanup()

	runs, _ := c.Runs.(*store.RunStore)
	router := api.NewRouter(api.Options{
		Market:      c.Market,
		Runs:        runs,
		Registry:    registry,
		GridFee:     cfg.Price.GridFee(),
		SourceLabel: cfg.MarketData.SourceLabel,
		MaxHours:    float64(cfg.MarketData.MaxHours),
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.API.Port),
		Handler: router,
	}

	log := logger.New("serve")
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info().Int("port", cfg.API.Port).Msg("api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if !serveNoLoop {
		group.Go(func() error { return c.Run(ctx) })
	}

	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
