package config

import "fmt"

// Validate rejects configurations that would produce unverifiable outcomes or
// a degenerate round loop.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unsupported database driver %q", c.Database.Driver)
	}
	if c.Game.HouseEdgeBps < 0 || c.Game.HouseEdgeBps >= 10_000 {
		return fmt.Errorf("config: house edge %d bps out of range [0, 10000)", c.Game.HouseEdgeBps)
	}
	if c.Game.MaxMultiplier < 1 {
		return fmt.Errorf("config: max multiplier %.2f must be at least 1", c.Game.MaxMultiplier)
	}
	if c.Game.GrowthRate <= 0 {
		return fmt.Errorf("config: growth rate %.4f must be positive", c.Game.GrowthRate)
	}
	if c.Game.TickIntervalMs <= 0 {
		return fmt.Errorf("config: tick interval %dms must be positive", c.Game.TickIntervalMs)
	}
	if c.Game.MinStake <= 0 {
		return fmt.Errorf("config: min stake %d must be positive", c.Game.MinStake)
	}
	if c.Game.MaxStake != 0 && c.Game.MaxStake < c.Game.MinStake {
		return fmt.Errorf("config: max stake %d below min stake %d", c.Game.MaxStake, c.Game.MinStake)
	}
	if c.Verify.RatePerSecond <= 0 || c.Verify.Burst <= 0 {
		return fmt.Errorf("config: verify rate limit must be positive")
	}
	return nil
}
