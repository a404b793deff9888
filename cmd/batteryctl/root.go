package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"batteryctl/internal/config"
	"batteryctl/internal/controller"
	"batteryctl/internal/forecast"
	"batteryctl/internal/inverter"
	"batteryctl/internal/metrics"
	"batteryctl/internal/mqtt"
	"batteryctl/internal/store"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "batteryctl",
	Short:         "Price-aware grid charge scheduler for home battery storage",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
	rootCmd.AddCommand(evaluateCmd, runCmd, serveCmd, historyCmd)
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

// buildController wires a controller from the configuration. The returned
// cleanup closes whatever was opened and is safe to call on a partial build.
func buildController(cfg *config.Config, registry *prometheus.Registry, withStores bool) (*controller.Controller, func(), error) {
	profile, err := cfg.BatteryProfile()
	if err != nil {
		return nil, func() {}, err
	}
	c := controller.New(cfg, profile)

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.MarketData.IsEnabled() {
		c.Market = forecast.NewMarketClient(cfg.MarketData.URL)
	}
	if cfg.Evcc.Enabled {
		c.Evcc = forecast.NewEvccClient(cfg.Evcc.BaseURL)
	}
	if cfg.Fronius.Host != "" {
		c.Inverter = inverter.NewFroniusClient(
			cfg.Fronius.Host, cfg.Fronius.BatteriesPath,
			cfg.Fronius.User, cfg.Fronius.Password,
			cfg.Fronius.Timeout(), cfg.Fronius.VerifyTLS,
		)
	}

	if withStores {
		runs, err := store.NewRunStore(cfg.State.DBPath)
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("open run store: %w", err)
		}
		closers = append(closers, func() { runs.Close() })
		c.Runs = runs

		if cfg.MQTT.Enabled {
			pub, err := mqtt.NewPahoPublisher(mqtt.Config{
				Broker:   cfg.MQTT.Broker,
				ClientID: cfg.MQTT.ClientID,
				Topic:    cfg.MQTT.Topic,
				Username: cfg.MQTT.Username,
				Password: cfg.MQTT.Password,
			})
			if err != nil {
				cleanup()
				return nil, func() {}, err
			}
			closers = append(closers, pub.Close)
			c.Publisher = pub
		}
	}

	if registry != nil {
		sink, err := metrics.NewSink(registry)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		c.Metrics = sink
	}

	return c, cleanup, nil
}
