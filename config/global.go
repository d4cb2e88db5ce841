package config

import (
	"fmt"
	"log/slog"
	"strings"

	"tipchain/native/common"
	"tipchain/native/tipping"
)

// ParseLogLevel maps the configured level name onto slog.
func ParseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("config: unknown LogLevel %q", raw)
	}
}

// QuotaLimits converts the configured tipper quota into runtime values.
func (t Tipping) QuotaLimits() common.Quota {
	return common.Quota{
		MaxCountPerEpoch:  t.Quota.MaxTipsPerEpoch,
		MaxAmountPerEpoch: t.Quota.MaxAmountPerEpoch,
		EpochHeights:      t.Quota.EpochHeights,
	}
}

// Policy parses the configured history overflow policy.
func (t Tipping) Policy() (tipping.HistoryPolicy, error) {
	return tipping.ParseHistoryPolicy(t.HistoryPolicy)
}
