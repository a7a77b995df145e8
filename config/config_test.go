package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "bad_asset", mutate: func(c *Config) { c.Asset = "doge" }},
		{name: "bad_window", mutate: func(c *Config) { c.WindowMins = 7 }},
		{name: "zero_amount", mutate: func(c *Config) { c.TradeAmount = 0 }},
		{name: "zero_limit", mutate: func(c *Config) { c.PositionLimit = 0 }},
		{name: "zero_weights", mutate: func(c *Config) {
			c.WeightMomentum = 0
			c.WeightDivergence = 0
			c.WeightSR = 0
			c.WeightMACD = 0
			c.WeightVWAP = 0
			c.WeightBB = 0
		}},
		{name: "inverted_bounds", mutate: func(c *Config) {
			c.MinTokenPrice = 0.99
			c.MaxTokenPrice = 0.01
		}},
		{name: "no_endpoints", mutate: func(c *Config) { c.StreamEndpoints = nil }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte("asset: eth\nwindow_mins: 5\ntrade_amount: 25\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Asset != "eth" {
		t.Fatalf("asset got %q want eth", cfg.Asset)
	}
	if cfg.WindowMins != 5 {
		t.Fatalf("window got %d want 5", cfg.WindowMins)
	}
	if cfg.TradeAmount != 25 {
		t.Fatalf("amount got %f want 25", cfg.TradeAmount)
	}
	// Untouched fields keep defaults.
	if cfg.RSIPeriod != 7 {
		t.Fatalf("rsi period got %d want 7", cfg.RSIPeriod)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("asset: eth\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("RADAR_ASSET", "sol")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Asset != "sol" {
		t.Fatalf("asset got %q want sol", cfg.Asset)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/config.yaml")
	if err != nil {
		t.Fatalf("missing file should not fail: %v", err)
	}
	if cfg.Asset != "btc" {
		t.Fatalf("asset got %q want btc", cfg.Asset)
	}
}
