package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
chain: Mainnet
reservoir:
  api_key: key
collections:
  alert_contract: "0x8A90CAB2B38DBA80C64B7734E58EE1DB38B8992E"
  tracked:
    - "0x9690b63eb85467be5267a3603f770589ab12dc95"
    - "0x9690B63EB85467BE5267A3603F770589AB12DC95"
    - "0xda5cf3a42ebacd2d8fcb53830b1025e01d37832d"
streams:
  floor:
    channel: "100"
  bid:
    channel: "100"
  listings:
    channel: "200"
  sales:
    channel: "300"
alerting:
  cooldown: 45m
  discord:
    bot_token: secret
state:
  driver: memory
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsAndNormalisation(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Chain != "mainnet" {
		t.Fatalf("chain should be lower-cased, got %q", cfg.Chain)
	}
	if cfg.Alerting.Cooldown != 45*time.Minute {
		t.Fatalf("cooldown not parsed: %s", cfg.Alerting.Cooldown)
	}
	if cfg.Alerting.PriceChangeOverride != 0.1 {
		t.Fatalf("default override should be 0.1, got %v", cfg.Alerting.PriceChangeOverride)
	}
	if cfg.Scheduler.Interval != time.Minute {
		t.Fatalf("default interval should be 60s, got %s", cfg.Scheduler.Interval)
	}
	if len(cfg.Collections.Tracked) != 2 {
		t.Fatalf("tracked contracts should be deduplicated, got %v", cfg.Collections.Tracked)
	}
	if cfg.Collections.AlertContract != strings.ToLower(cfg.Collections.AlertContract) {
		t.Fatalf("alert contract should be lower-cased: %s", cfg.Collections.AlertContract)
	}
	if !cfg.Streams.Sales.Enabled || cfg.Streams.Sales.Channel != "300" {
		t.Fatalf("sales stream misconfigured: %+v", cfg.Streams.Sales)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("NFTALERTS_ALERTING_PRICE_CHANGE_OVERRIDE", "0.25")
	t.Setenv("NFTALERTS_SCHEDULER_INTERVAL", "5s")

	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Alerting.PriceChangeOverride != 0.25 {
		t.Fatalf("env override not applied: %v", cfg.Alerting.PriceChangeOverride)
	}
	if cfg.Scheduler.Interval != 5*time.Second {
		t.Fatalf("env interval not applied: %s", cfg.Scheduler.Interval)
	}
}

func TestValidate(t *testing.T) {
	base, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cases := map[string]func(c *Config){
		"bad interval":       func(c *Config) { c.Scheduler.Interval = 0 },
		"override too large": func(c *Config) { c.Alerting.PriceChangeOverride = 1 },
		"bad alert contract": func(c *Config) { c.Collections.AlertContract = "not-an-address" },
		"bad tracked":        func(c *Config) { c.Collections.Tracked = []string{"0x123"} },
		"missing channel":    func(c *Config) { c.Streams.Listings.Channel = "" },
		"missing token":      func(c *Config) { c.Alerting.Discord.BotToken = "" },
		"unknown driver":     func(c *Config) { c.State.Driver = "etcd" },
		"postgres no dsn":    func(c *Config) { c.State.Driver = "postgres" },
		"telegram no chat": func(c *Config) {
			c.Alerting.Telegram.Enabled = true
			c.Alerting.Telegram.BotToken = "t"
		},
	}

	for name, mutate := range cases {
		cfg := *base
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}

	disabled := *base
	disabled.Streams.Floor.Enabled = false
	disabled.Streams.Bid.Enabled = false
	disabled.Collections.AlertContract = ""
	if err := disabled.Validate(); err != nil {
		t.Fatalf("alert contract is optional when floor and bid are off: %v", err)
	}
}

func TestResolveMaxPoints(t *testing.T) {
	cfg := &Config{Export: ExportConfig{MaxDataPoints: 10}}
	if cfg.ResolveMaxPoints(0) != 10 || cfg.ResolveMaxPoints(3) != 3 {
		t.Fatal("ResolveMaxPoints should prefer a positive override")
	}
}
