package config

// Auth configures bearer-token authentication on the HTTP API.
type Auth struct {
	Enabled          bool   `toml:"Enabled"`
	Secret           string `toml:"Secret"`
	Issuer           string `toml:"Issuer"`
	Audience         string `toml:"Audience"`
	ClockSkewSeconds uint32 `toml:"ClockSkewSeconds"`
}

// RateLimit bounds per-client request rates on the HTTP API.
type RateLimit struct {
	RequestsPerMinute float64 `toml:"RequestsPerMinute"`
	Burst             int     `toml:"Burst"`
}

// Index selects the SQL backend of the tip history read model.
type Index struct {
	Driver string `toml:"Driver"` // postgres, sqlite or none
	DSN    string `toml:"DSN"`
}

// Quota defines per-tipper limits enforced within one epoch of heights.
type Quota struct {
	MaxTipsPerEpoch   uint64 `toml:"MaxTipsPerEpoch"`
	MaxAmountPerEpoch uint64 `toml:"MaxAmountPerEpoch"`
	EpochHeights      uint64 `toml:"EpochHeights"`
}

// Tipping carries the engine knobs that are node-local rather than on-ledger.
type Tipping struct {
	HistoryPolicy string `toml:"HistoryPolicy"` // evict or reject
	Quota         Quota  `toml:"quota"`
}

// Telemetry configures the OpenTelemetry exporters.
type Telemetry struct {
	Enabled  bool   `toml:"Enabled"`
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Metrics  bool   `toml:"Metrics"`
	Traces   bool   `toml:"Traces"`
}
