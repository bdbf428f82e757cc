package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the top-level daemon configuration.
type Config struct {
	RPCAddress   string `toml:"RPCAddress"`
	LogLevel     string `toml:"LogLevel"`
	LogPath      string `toml:"LogPath"`
	OTLPEndpoint string `toml:"OTLPEndpoint,omitempty"`

	Database Database `toml:"database"`
	Game     Game     `toml:"game"`
	Verify   Verify   `toml:"verify"`
}

// Database selects the persistence backend.
type Database struct {
	Driver string `toml:"Driver"`
	DSN    string `toml:"DSN"`
}

// Game tunes the crash round lifecycle and the committed hash-to-outcome
// mapping. The edge and cap are published alongside every commitment, so they
// must match what the verification surface reports.
type Game struct {
	HouseEdgeBps      int     `toml:"HouseEdgeBps"`
	MaxMultiplier     float64 `toml:"MaxMultiplier"`
	WaitingDurationMs int     `toml:"WaitingDurationMs"`
	TickIntervalMs    int     `toml:"TickIntervalMs"`
	GrowthRate        float64 `toml:"GrowthRate"`
	MinStake          int64   `toml:"MinStake"`
	MaxStake          int64   `toml:"MaxStake"`
}

// Verify rate-limits the public verification endpoint per source address.
type Verify struct {
	RatePerSecond float64 `toml:"RatePerSecond"`
	Burst         int     `toml:"Burst"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := defaultConfig()
	if c.RPCAddress == "" {
		c.RPCAddress = def.RPCAddress
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.Database.Driver == "" {
		c.Database = def.Database
	}
	if c.Game.HouseEdgeBps == 0 {
		c.Game.HouseEdgeBps = def.Game.HouseEdgeBps
	}
	if c.Game.MaxMultiplier == 0 {
		c.Game.MaxMultiplier = def.Game.MaxMultiplier
	}
	if c.Game.WaitingDurationMs == 0 {
		c.Game.WaitingDurationMs = def.Game.WaitingDurationMs
	}
	if c.Game.TickIntervalMs == 0 {
		c.Game.TickIntervalMs = def.Game.TickIntervalMs
	}
	if c.Game.GrowthRate == 0 {
		c.Game.GrowthRate = def.Game.GrowthRate
	}
	if c.Game.MinStake == 0 {
		c.Game.MinStake = def.Game.MinStake
	}
	if c.Verify.RatePerSecond == 0 {
		c.Verify.RatePerSecond = def.Verify.RatePerSecond
	}
	if c.Verify.Burst == 0 {
		c.Verify.Burst = def.Verify.Burst
	}
}

func defaultConfig() *Config {
	return &Config{
		RPCAddress: ":8080",
		LogLevel:   "info",
		Database: Database{
			Driver: "sqlite",
			DSN:    "./fairbet.db",
		},
		Game: Game{
			HouseEdgeBps:      100,
			MaxMultiplier:     10000,
			WaitingDurationMs: 5000,
			TickIntervalMs:    100,
			GrowthRate:        0.06,
			MinStake:          100,
			MaxStake:          1_000_000,
		},
		Verify: Verify{
			RatePerSecond: 5,
			Burst:         10,
		},
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := defaultConfig()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
