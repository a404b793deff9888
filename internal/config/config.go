package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"batteryctl/internal/model"
)

// Config is the on-disk configuration shape (YAML).
type Config struct {
	Battery    BatteryConfig    `yaml:"battery"`
	Price      PriceConfig      `yaml:"price"`
	Logic      LogicConfig      `yaml:"logic"`
	Evcc       EvccConfig       `yaml:"evcc"`
	MarketData MarketDataConfig `yaml:"market_data"`
	Fronius    FroniusConfig    `yaml:"fronius"`
	State      StateConfig      `yaml:"state"`
	Public     PublicConfig     `yaml:"public"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	API        APIConfig        `yaml:"api"`
}

type BatteryConfig struct {
	CapacityKWh      float64 `yaml:"capacity_kwh"`
	MaxChargePowerW  float64 `yaml:"max_charge_power_w"`
	AutoModeFloorSoc int     `yaml:"auto_mode_floor_soc"`
}

type PriceConfig struct {
	GridFeeEURPerKWh float64 `yaml:"grid_fee_eur_per_kwh"`
	// Legacy key, kept so older config files still load.
	NetworkTariffEURPerKWh float64 `yaml:"network_tariff_eur_per_kwh"`
}

// GridFee prefers grid_fee_eur_per_kwh and falls back to the legacy key.
func (p PriceConfig) GridFee() float64 {
	if p.GridFeeEURPerKWh != 0 {
		return p.GridFeeEURPerKWh
	}
	return p.NetworkTariffEURPerKWh
}

type LogicConfig struct {
	IntervalSeconds int     `yaml:"interval_seconds"`
	MinHoldMinutes  int     `yaml:"min_hold_minutes"`
	HouseLoadW      float64 `yaml:"house_load_w"`
	SocSteps        int     `yaml:"soc_steps"`
}

func (l LogicConfig) Interval() time.Duration {
	return time.Duration(l.IntervalSeconds) * time.Second
}

func (l LogicConfig) MinHold() time.Duration {
	return time.Duration(l.MinHoldMinutes) * time.Minute
}

type EvccConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
}

type MarketDataConfig struct {
	// Pointer so an absent key defaults to true.
	Enabled      *bool  `yaml:"enabled"`
	URL          string `yaml:"url"`
	PreferMarket *bool  `yaml:"prefer_market"`
	MaxHours     int    `yaml:"max_hours"`
	SourceLabel  string `yaml:"source_label"`
}

func (m MarketDataConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

func (m MarketDataConfig) PrefersMarket() bool {
	return m.PreferMarket == nil || *m.PreferMarket
}

type FroniusConfig struct {
	Host          string `yaml:"host"`
	BatteriesPath string `yaml:"batteries_path"`
	User          string `yaml:"user"`
	Password      string `yaml:"password"`
	TimeoutS      int    `yaml:"timeout_s"`
	VerifyTLS     bool   `yaml:"verify_tls"`
}

func (f FroniusConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutS) * time.Second
}

type StateConfig struct {
	Path   string `yaml:"path"`
	DBPath string `yaml:"db_path"`
}

type PublicConfig struct {
	SnapshotPath string `yaml:"snapshot_path"`
}

type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type APIConfig struct {
	Port int `yaml:"port"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Logic.IntervalSeconds == 0 {
		c.Logic.IntervalSeconds = 900
	}
	if c.Logic.MinHoldMinutes == 0 {
		c.Logic.MinHoldMinutes = 30
	}
	if c.Logic.SocSteps == 0 {
		c.Logic.SocSteps = 100
	}
	if c.MarketData.URL == "" {
		c.MarketData.URL = "https://api.awattar.de/v1/marketdata"
	}
	if c.MarketData.MaxHours == 0 {
		c.MarketData.MaxHours = 36
	}
	if c.MarketData.SourceLabel == "" {
		c.MarketData.SourceLabel = "awattar"
	}
	if c.Fronius.BatteriesPath == "" {
		c.Fronius.BatteriesPath = "/config/batteries"
	}
	if c.Fronius.TimeoutS == 0 {
		c.Fronius.TimeoutS = 6
	}
	if c.State.Path == "" {
		c.State.Path = "state/ledger.csv"
	}
	if c.State.DBPath == "" {
		c.State.DBPath = "state/runs.db"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "batteryctl"
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = "batteryctl/plan"
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	// Battery parameters are validated by constructing the model profile.
	if _, err := c.BatteryProfile(); err != nil {
		return fmt.Errorf("battery config invalid: %w", err)
	}
	if c.Battery.AutoModeFloorSoc < 0 || c.Battery.AutoModeFloorSoc > 100 {
		return errors.New("battery.auto_mode_floor_soc must be between 0 and 100")
	}
	if c.Price.GridFee() < 0 {
		return errors.New("price.grid_fee_eur_per_kwh must not be negative")
	}
	if c.Logic.IntervalSeconds < 0 {
		return errors.New("logic.interval_seconds must not be negative")
	}
	if c.Evcc.Enabled && c.Evcc.BaseURL == "" {
		return errors.New("evcc.base_url is required when evcc is enabled")
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return errors.New("mqtt.broker is required when mqtt is enabled")
	}
	return nil
}

// BatteryProfile builds the validated battery profile from the config.
func (c *Config) BatteryProfile() (model.BatteryProfile, error) {
	profile := model.BatteryProfile{
		CapacityKWh:     c.Battery.CapacityKWh,
		MaxChargePowerW: c.Battery.MaxChargePowerW,
	}
	if err := profile.Validate(); err != nil {
		return model.BatteryProfile{}, err
	}
	return profile, nil
}
