package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
battery:
  capacity_kwh: 10.0
  max_charge_power_w: 5000
  auto_mode_floor_soc: 10
price:
  grid_fee_eur_per_kwh: 0.02
fronius:
  host: https://inverter.local
  user: service
  password: secret
`)

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, c.Logic.Interval())
	assert.Equal(t, 30*time.Minute, c.Logic.MinHold())
	assert.Equal(t, 100, c.Logic.SocSteps)
	assert.Equal(t, "https://api.awattar.de/v1/marketdata", c.MarketData.URL)
	assert.Equal(t, 36, c.MarketData.MaxHours)
	assert.True(t, c.MarketData.IsEnabled())
	assert.True(t, c.MarketData.PrefersMarket())
	assert.Equal(t, "/config/batteries", c.Fronius.BatteriesPath)
	assert.Equal(t, 6*time.Second, c.Fronius.Timeout())
	assert.Equal(t, "state/ledger.csv", c.State.Path)
	assert.Equal(t, "state/runs.db", c.State.DBPath)
	assert.Equal(t, "batteryctl/plan", c.MQTT.Topic)
	assert.Equal(t, 8080, c.API.Port)

	profile, err := c.BatteryProfile()
	require.NoError(t, err)
	assert.InDelta(t, 10.0, profile.CapacityKWh, 1e-9)
}

func TestLoadExplicitValuesWin(t *testing.T) {
	path := writeConfig(t, `
battery:
  capacity_kwh: 7.7
  max_charge_power_w: 3000
logic:
  interval_seconds: 300
  min_hold_minutes: 15
  house_load_w: 450
  soc_steps: 50
market_data:
  enabled: false
  prefer_market: false
  max_hours: 12
evcc:
  enabled: true
  base_url: http://evcc.local:7070
`)

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, c.Logic.Interval())
	assert.InDelta(t, 450.0, c.Logic.HouseLoadW, 1e-9)
	assert.Equal(t, 50, c.Logic.SocSteps)
	assert.False(t, c.MarketData.IsEnabled())
	assert.False(t, c.MarketData.PrefersMarket())
	assert.Equal(t, 12, c.MarketData.MaxHours)
}

func TestGridFeeLegacyFallback(t *testing.T) {
	p := PriceConfig{NetworkTariffEURPerKWh: 0.15}
	assert.InDelta(t, 0.15, p.GridFee(), 1e-9)

	p.GridFeeEURPerKWh = 0.02
	assert.InDelta(t, 0.02, p.GridFee(), 1e-9)
}

func TestLoadRejectsInvalidBattery(t *testing.T) {
	path := writeConfig(t, `
battery:
  capacity_kwh: 0
  max_charge_power_w: 5000
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "battery config invalid")
}

func TestLoadRejectsEnabledEvccWithoutURL(t *testing.T) {
	path := writeConfig(t, `
battery:
  capacity_kwh: 10
  max_charge_power_w: 5000
evcc:
  enabled: true
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "evcc.base_url")
}
