package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Process is the process-level configuration: storage DSNs, external API
// endpoints and scheduler tuning. Loaded from a YAML file with TEL_*
// environment overrides.
type Process struct {
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	Clickhouse ClickhouseConfig `mapstructure:"clickhouse"`
	APIs       APIConfig        `mapstructure:"apis"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Verbose    bool             `mapstructure:"verbose"`
}

// PostgresConfig holds the relational store connection.
type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

// ClickhouseConfig holds the time-series store connection.
type ClickhouseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// APIConfig holds the external collaborator endpoints.
type APIConfig struct {
	MarketDataURL  string `mapstructure:"market_data_url"`
	MarketDataKey  string `mapstructure:"market_data_key"`
	ListingURL     string `mapstructure:"listing_url"`
	ListingWSURL   string `mapstructure:"listing_ws_url"`
	WalletInfoURL  string `mapstructure:"wallet_info_url"`
	WalletInfoKey  string `mapstructure:"wallet_info_key"`
	DenylistURL    string `mapstructure:"denylist_url"`
	ChainRPCURL    string `mapstructure:"chain_rpc_url"`
	PrimaryTrader  string `mapstructure:"primary_trader_url"`
	FallbackTrader string `mapstructure:"fallback_trader_url"`
}

// EngineConfig tunes the scheduler.
type EngineConfig struct {
	TickInterval    time.Duration `mapstructure:"tick_interval"`
	TokenTTL        time.Duration `mapstructure:"token_ttl"`
	InactiveTimeout time.Duration `mapstructure:"inactive_timeout"`
}

// MetricsConfig controls the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LoadProcess reads process config from a YAML file with env overrides.
// Sensitive fields use env vars: TEL_POSTGRES_DSN, TEL_CLICKHOUSE_DSN,
// TEL_MARKET_DATA_KEY, TEL_WALLET_INFO_KEY.
func LoadProcess(path string) (*Process, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("TEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("engine.tick_interval", 10*time.Second)
	v.SetDefault("engine.token_ttl", 24*time.Hour)
	v.SetDefault("engine.inactive_timeout", 2*time.Hour)
	v.SetDefault("metrics.addr", ":9090")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Process
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Override sensitive fields from env
	if dsn := os.Getenv("TEL_POSTGRES_DSN"); dsn != "" {
		cfg.Postgres.DSN = dsn
	}
	if dsn := os.Getenv("TEL_CLICKHOUSE_DSN"); dsn != "" {
		cfg.Clickhouse.DSN = dsn
	}
	if key := os.Getenv("TEL_MARKET_DATA_KEY"); key != "" {
		cfg.APIs.MarketDataKey = key
	}
	if key := os.Getenv("TEL_WALLET_INFO_KEY"); key != "" {
		cfg.APIs.WalletInfoKey = key
	}

	return &cfg, nil
}

// Validate checks required fields for the selected mode.
func (c *Process) Validate(live bool) error {
	if c.Engine.TickInterval <= 0 {
		return fmt.Errorf("engine.tick_interval must be > 0")
	}
	if c.APIs.MarketDataURL == "" {
		return fmt.Errorf("apis.market_data_url is required")
	}
	if live {
		if c.APIs.WalletInfoURL == "" {
			return fmt.Errorf("apis.wallet_info_url is required in live mode")
		}
		if c.APIs.PrimaryTrader == "" {
			return fmt.Errorf("apis.primary_trader_url is required in live mode")
		}
	}
	return nil
}
