package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"nft-alerts/internal/logging"
	"nft-alerts/internal/market"
)

// Config materialises application configuration.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Logging     logging.Config    `mapstructure:"logging"`
	Chain       string            `mapstructure:"chain"`
	Reservoir   ReservoirConfig   `mapstructure:"reservoir"`
	Collections CollectionsConfig `mapstructure:"collections"`
	Streams     StreamsConfig     `mapstructure:"streams"`
	Alerting    AlertingConfig    `mapstructure:"alerting"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	State       StateConfig       `mapstructure:"state"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Export      ExportConfig      `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// ReservoirConfig captures marketplace data API connectivity.
type ReservoirConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
	UserAgent      string        `mapstructure:"user_agent"`
	MarketplaceURL string        `mapstructure:"marketplace_url"`
	IconURL        string        `mapstructure:"icon_url"`
	ExplorerURL    string        `mapstructure:"explorer_url"`
}

// CollectionsConfig selects which contracts are watched.
type CollectionsConfig struct {
	// AlertContract is the collection whose floor and top bid are tracked.
	AlertContract string `mapstructure:"alert_contract"`
	// Tracked contracts feed the listings and sales streams.
	Tracked []string `mapstructure:"tracked"`
}

// StreamConfig toggles and routes one stream.
type StreamConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Channel string `mapstructure:"channel"`
}

// StreamsConfig groups the per-stream settings.
type StreamsConfig struct {
	Floor    StreamConfig `mapstructure:"floor"`
	Bid      StreamConfig `mapstructure:"bid"`
	Listings StreamConfig `mapstructure:"listings"`
	Sales    StreamConfig `mapstructure:"sales"`
}

// For returns the settings of a stream.
func (s StreamsConfig) For(stream market.Stream) StreamConfig {
	switch stream {
	case market.StreamFloor:
		return s.Floor
	case market.StreamBid:
		return s.Bid
	case market.StreamListings:
		return s.Listings
	case market.StreamSales:
		return s.Sales
	}
	return StreamConfig{}
}

// AlertingConfig defines cooldown behaviour and routing.
type AlertingConfig struct {
	Cooldown            time.Duration  `mapstructure:"cooldown"`
	PriceChangeOverride float64        `mapstructure:"price_change_override"`
	NotifyGaps          bool           `mapstructure:"notify_gaps"`
	Discord             DiscordConfig  `mapstructure:"discord"`
	Telegram            TelegramConfig `mapstructure:"telegram"`
}

// DiscordConfig describes the Discord bot used for alerts.
type DiscordConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	APIBase  string `mapstructure:"api_base"`
}

// TelegramConfig describes the optional Telegram mirror.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// SchedulerConfig governs polling cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
}

// StateConfig selects the cursor store backend.
type StateConfig struct {
	// Driver is one of memory, redis or postgres.
	Driver       string        `mapstructure:"driver"`
	RedisURL     string        `mapstructure:"redis_url"`
	WaitTimeout  time.Duration `mapstructure:"wait_timeout"`
	WaitAttempts int           `mapstructure:"wait_attempts"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, .env, environment, and defaults.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("NFTALERTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func loadDotEnv() error {
	if err := godotenv.Load(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "nftalerts")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("chain", "mainnet")

	v.SetDefault("reservoir.base_url", "https://api.reservoir.tools")
	v.SetDefault("reservoir.request_timeout", "15s")
	v.SetDefault("reservoir.max_retries", 2)
	v.SetDefault("reservoir.retry_backoff", "1s")
	v.SetDefault("reservoir.user_agent", "nftalerts/1.0")
	v.SetDefault("reservoir.marketplace_url", "https://www.reservoir.market")
	v.SetDefault("reservoir.icon_url", "https://cdn.discordapp.com/icons/872790973309153280/0dc1b70867aeeb2ee32563f575c191c6.webp?size=4096")
	v.SetDefault("reservoir.explorer_url", "https://etherscan.io")

	v.SetDefault("collections.tracked", []string{})

	for _, stream := range market.Streams {
		v.SetDefault("streams."+stream.String()+".enabled", true)
	}

	v.SetDefault("alerting.cooldown", "30m")
	v.SetDefault("alerting.price_change_override", 0.1)
	v.SetDefault("alerting.notify_gaps", false)
	v.SetDefault("alerting.discord.enabled", true)
	v.SetDefault("alerting.discord.api_base", "https://discord.com/api/v10")
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("scheduler.interval", "60s")
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.advisory_lock_key", int64(0x6e667461))

	v.SetDefault("state.driver", "redis")
	v.SetDefault("state.redis_url", "redis://127.0.0.1:6379/0")
	v.SetDefault("state.wait_timeout", "2s")
	v.SetDefault("state.wait_attempts", 15)

	v.SetDefault("database.max_open_conns", 5)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("export.max_data_points", 5000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

func (c *Config) normalize() {
	c.Chain = strings.ToLower(strings.TrimSpace(c.Chain))
	c.State.Driver = strings.ToLower(strings.TrimSpace(c.State.Driver))
	c.Collections.AlertContract = normalizeAddress(c.Collections.AlertContract)

	tracked := make([]string, 0, len(c.Collections.Tracked))
	seen := make(map[string]struct{}, len(c.Collections.Tracked))
	for _, addr := range c.Collections.Tracked {
		addr = normalizeAddress(addr)
		if addr == "" {
			continue
		}
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		tracked = append(tracked, addr)
	}
	c.Collections.Tracked = tracked
}

// normalizeAddress lower-cases contract addresses; the API keys collections by the
// lower-case hex form.
func normalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Alerting.Cooldown < 0 {
		return fmt.Errorf("alerting.cooldown cannot be negative")
	}
	if c.Alerting.PriceChangeOverride < 0 || c.Alerting.PriceChangeOverride >= 1 {
		return fmt.Errorf("alerting.price_change_override must be within [0, 1)")
	}
	if c.Chain == "" {
		return fmt.Errorf("chain must be configured")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}

	if c.Streams.Floor.Enabled || c.Streams.Bid.Enabled {
		if !common.IsHexAddress(c.Collections.AlertContract) {
			return fmt.Errorf("collections.alert_contract %q is not a valid address", c.Collections.AlertContract)
		}
	}
	if c.Streams.Listings.Enabled || c.Streams.Sales.Enabled {
		for _, addr := range c.Collections.Tracked {
			if !common.IsHexAddress(addr) {
				return fmt.Errorf("collections.tracked entry %q is not a valid address", addr)
			}
		}
	}

	for _, stream := range market.Streams {
		sc := c.Streams.For(stream)
		if sc.Enabled && sc.Channel == "" && c.Alerting.Discord.Enabled {
			return fmt.Errorf("streams.%s.channel must be configured", stream)
		}
	}

	if c.Alerting.Discord.Enabled && c.Alerting.Discord.BotToken == "" {
		return fmt.Errorf("alerting.discord.bot_token must be configured")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token must be configured")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id must be configured")
		}
	}

	switch c.State.Driver {
	case "memory":
	case "redis":
		if c.State.RedisURL == "" {
			return fmt.Errorf("state.redis_url must be configured for the redis driver")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn must be configured for the postgres driver")
		}
	default:
		return fmt.Errorf("state.driver %q is not supported", c.State.Driver)
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
