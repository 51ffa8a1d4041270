package vistream

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// fileConfig mirrors Config with durations as strings, the way they appear
// in a TOML file ("30s", "1m").
type fileConfig struct {
	BaseURL        string  `toml:"base_url"`
	RequestTimeout string  `toml:"request_timeout"`
	RefreshTimeout string  `toml:"refresh_timeout"`
	TokenSkew      string  `toml:"token_skew"`
	TokenStorePath string  `toml:"token_store_path"`
	RateLimit      float64 `toml:"rate_limit"`
	RateBurst      int     `toml:"rate_burst"`
	MetricsEnabled bool    `toml:"metrics_enabled"`
}

// LoadConfig reads and parses a TOML configuration file. Absent fields keep
// their zero value and pick up defaults in NewClient.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("vistream: read config file: %w", err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("vistream: parse config file: %w", err)
	}

	cfg := &Config{
		BaseURL:        fc.BaseURL,
		TokenStorePath: fc.TokenStorePath,
		RateLimit:      fc.RateLimit,
		RateBurst:      fc.RateBurst,
		MetricsEnabled: fc.MetricsEnabled,
	}

	for _, d := range []struct {
		raw  string
		name string
		dst  *time.Duration
	}{
		{fc.RequestTimeout, "request_timeout", &cfg.RequestTimeout},
		{fc.RefreshTimeout, "refresh_timeout", &cfg.RefreshTimeout},
		{fc.TokenSkew, "token_skew", &cfg.TokenSkew},
	} {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return nil, fmt.Errorf("vistream: config field %s: %w", d.name, err)
		}
		*d.dst = v
	}

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("vistream: config field base_url is required")
	}

	return cfg, nil
}
