package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	envName       = "TIP_ENV"
	envAuthSecret = "TIP_AUTH_SECRET"
)

// Config is the node configuration persisted as TOML.
type Config struct {
	ListenAddress   string    `toml:"ListenAddress"`
	DataDir         string    `toml:"DataDir"`
	GenesisFile     string    `toml:"GenesisFile"`
	Env             string    `toml:"Env"`
	LogLevel        string    `toml:"LogLevel"`
	BlockIntervalMs uint64    `toml:"BlockIntervalMs"`
	ShutdownSeconds uint32    `toml:"ShutdownSeconds"`
	EventBuffer     int       `toml:"EventBuffer"`
	Auth            Auth      `toml:"auth"`
	RateLimit       RateLimit `toml:"rate_limit"`
	Index           Index     `toml:"index"`
	Tipping         Tipping   `toml:"tipping"`
	Telemetry       Telemetry `toml:"telemetry"`
}

// Default returns the configuration written for a fresh node.
func Default() *Config {
	return &Config{
		ListenAddress:   ":8080",
		DataDir:         "./tip-data",
		GenesisFile:     "",
		Env:             "local",
		LogLevel:        "info",
		BlockIntervalMs: 5000,
		ShutdownSeconds: 10,
		EventBuffer:     256,
		Auth: Auth{
			Enabled:          false,
			Issuer:           "tipchain",
			ClockSkewSeconds: 120,
		},
		RateLimit: RateLimit{RequestsPerMinute: 600, Burst: 60},
		Index:     Index{Driver: "none"},
		Tipping:   Tipping{HistoryPolicy: "evict"},
		Telemetry: Telemetry{Endpoint: "localhost:4318", Metrics: true, Traces: true},
	}
}

// Load loads the configuration from the given path, writing a default file
// when none exists. Environment overrides are applied after decoding.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg, err := createDefault(path)
		if err != nil {
			return nil, err
		}
		applyEnv(cfg)
		return cfg, cfg.Validate()
	} else if err != nil {
		return nil, err
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown field %s", path, undecoded[0].String())
	}
	applyEnv(cfg)
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if env := strings.TrimSpace(os.Getenv(envName)); env != "" {
		cfg.Env = env
	}
	if secret := os.Getenv(envAuthSecret); secret != "" {
		cfg.Auth.Secret = secret
	}
}

func (c *Config) normalize() {
	c.Index.Driver = strings.ToLower(strings.TrimSpace(c.Index.Driver))
	if c.Index.Driver == "" {
		c.Index.Driver = "none"
	}
	c.Tipping.HistoryPolicy = strings.ToLower(strings.TrimSpace(c.Tipping.HistoryPolicy))
	if c.EventBuffer <= 0 {
		c.EventBuffer = 256
	}
	if c.ShutdownSeconds == 0 {
		c.ShutdownSeconds = 10
	}
}

// BlockInterval returns the height clock period.
func (c *Config) BlockInterval() time.Duration {
	return time.Duration(c.BlockIntervalMs) * time.Millisecond
}

// ShutdownTimeout bounds graceful shutdown of the HTTP server.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownSeconds) * time.Second
}

// StoragePath is the LevelDB directory under DataDir.
func (c *Config) StoragePath() string {
	return filepath.Join(c.DataDir, "state")
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
