package config

import (
	"fmt"
	"strings"
)

var (
	// MinBlockIntervalMs keeps the height clock from spinning.
	MinBlockIntervalMs = uint64(100)
)

// Validate checks the ranges and cross-field constraints of the configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddress) == "" {
		return fmt.Errorf("config: ListenAddress required")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir required")
	}
	if c.BlockIntervalMs < MinBlockIntervalMs {
		return fmt.Errorf("config: BlockIntervalMs must be at least %d", MinBlockIntervalMs)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Auth.Enabled && strings.TrimSpace(c.Auth.Secret) == "" {
		return fmt.Errorf("config: auth.Secret required when auth is enabled (or set %s)", envAuthSecret)
	}
	if c.RateLimit.RequestsPerMinute < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("config: rate_limit values must not be negative")
	}
	switch c.Index.Driver {
	case "none", "":
	case "postgres", "sqlite":
		if strings.TrimSpace(c.Index.DSN) == "" {
			return fmt.Errorf("config: index.DSN required for driver %s", c.Index.Driver)
		}
	default:
		return fmt.Errorf("config: unsupported index driver %q", c.Index.Driver)
	}
	switch c.Tipping.HistoryPolicy {
	case "", "evict", "reject":
	default:
		return fmt.Errorf("config: unsupported tipping.HistoryPolicy %q", c.Tipping.HistoryPolicy)
	}
	q := c.Tipping.Quota
	if (q.MaxTipsPerEpoch > 0 || q.MaxAmountPerEpoch > 0) && q.EpochHeights == 0 {
		return fmt.Errorf("config: tipping.quota.EpochHeights required when a quota limit is set")
	}
	if c.Telemetry.Enabled && !c.Telemetry.Metrics && !c.Telemetry.Traces {
		return fmt.Errorf("config: telemetry enabled without metrics or traces")
	}
	return nil
}
