// Package config provides HCL configuration handling for the daemon.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"grimm.is/warden/internal/brand"
	"grimm.is/warden/internal/logging"
	"grimm.is/warden/internal/validation"
)

// Defaults for anything the config file leaves unset.
const (
	DefaultPort            = 51820
	DefaultTableName       = "warden"
	DefaultWhitelistSet    = "whitelist"
	DefaultVIPSet          = "vip"
	DefaultIntervalSeconds = 10
	DefaultVIPEvery        = 6
	DefaultWhitelistTTLSec = 60
	DefaultFreeQuotaBytes  = 128 << 20 // 128 MiB
	DefaultRecencySeconds  = 3600
)

// DefaultPricePerByte is the overage price per byte beyond the free quota,
// equivalent to 50 currency units per GiB.
const DefaultPricePerByte = 50.0 / (1 << 30)

// Config is the root configuration.
type Config struct {
	Store   *StoreConfig   `hcl:"store,block"`
	Service *ServiceConfig `hcl:"service,block"`
	Sync    *SyncConfig    `hcl:"sync,block"`
	Billing *BillingConfig `hcl:"billing,block"`
	Log     *LogConfig     `hcl:"log,block"`
	Metrics *MetricsConfig `hcl:"metrics,block"`
}

// StoreConfig locates the user database.
type StoreConfig struct {
	Path string `hcl:"path,optional"`
}

// ServiceConfig describes the protected service and filter objects.
type ServiceConfig struct {
	Port         int    `hcl:"port,optional"`
	Table        string `hcl:"table,optional"`
	WhitelistSet string `hcl:"whitelist_set,optional"`
	VIPSet       string `hcl:"vip_set,optional"`
}

// SyncConfig controls reconciliation cadence.
type SyncConfig struct {
	IntervalSeconds     int `hcl:"interval_seconds,optional"`
	VIPEvery            int `hcl:"vip_every,optional"`
	WhitelistTTLSeconds int `hcl:"whitelist_ttl_seconds,optional"`
}

// BillingConfig holds the entitlement policy knobs.
type BillingConfig struct {
	FreeQuotaBytes       int64   `hcl:"free_quota_bytes,optional"`
	PricePerByte         float64 `hcl:"price_per_byte,optional"`
	RecencyWindowSeconds int     `hcl:"recency_window_seconds,optional"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level string `hcl:"level,optional"`
	JSON  bool   `hcl:"json,optional"`
}

// MetricsConfig enables the Prometheus endpoint when Listen is set.
type MetricsConfig struct {
	Listen string `hcl:"listen,optional"`
}

// Default returns a fully-populated configuration with default values.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and validates an HCL configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return LoadBytes(path, data)
}

// LoadBytes parses configuration from raw bytes. The filename is used for
// diagnostics only.
func LoadBytes(filename string, data []byte) (*Config, error) {
	var cfg Config
	if err := hclsimple.Decode(filename, data, nil, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills every unset field.
func (c *Config) applyDefaults() {
	if c.Store == nil {
		c.Store = &StoreConfig{}
	}
	if c.Store.Path == "" {
		c.Store.Path = brand.DefaultStorePath
	}

	if c.Service == nil {
		c.Service = &ServiceConfig{}
	}
	if c.Service.Port == 0 {
		c.Service.Port = DefaultPort
	}
	if c.Service.Table == "" {
		c.Service.Table = DefaultTableName
	}
	if c.Service.WhitelistSet == "" {
		c.Service.WhitelistSet = DefaultWhitelistSet
	}
	if c.Service.VIPSet == "" {
		c.Service.VIPSet = DefaultVIPSet
	}

	if c.Sync == nil {
		c.Sync = &SyncConfig{}
	}
	if c.Sync.IntervalSeconds == 0 {
		c.Sync.IntervalSeconds = DefaultIntervalSeconds
	}
	if c.Sync.VIPEvery == 0 {
		c.Sync.VIPEvery = DefaultVIPEvery
	}
	if c.Sync.WhitelistTTLSeconds == 0 {
		c.Sync.WhitelistTTLSeconds = DefaultWhitelistTTLSec
	}

	if c.Billing == nil {
		c.Billing = &BillingConfig{}
	}
	if c.Billing.FreeQuotaBytes == 0 {
		c.Billing.FreeQuotaBytes = DefaultFreeQuotaBytes
	}
	if c.Billing.PricePerByte == 0 {
		c.Billing.PricePerByte = DefaultPricePerByte
	}
	if c.Billing.RecencyWindowSeconds == 0 {
		c.Billing.RecencyWindowSeconds = DefaultRecencySeconds
	}

	if c.Log == nil {
		c.Log = &LogConfig{}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.Metrics == nil {
		c.Metrics = &MetricsConfig{}
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store: path is required")
	}

	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("service: invalid port %d", c.Service.Port)
	}
	if err := validation.ValidateSetName(c.Service.Table); err != nil {
		return fmt.Errorf("service: table: %w", err)
	}
	if err := validation.ValidateSetName(c.Service.WhitelistSet); err != nil {
		return fmt.Errorf("service: whitelist_set: %w", err)
	}
	if err := validation.ValidateSetName(c.Service.VIPSet); err != nil {
		return fmt.Errorf("service: vip_set: %w", err)
	}
	if c.Service.WhitelistSet == c.Service.VIPSet {
		return fmt.Errorf("service: whitelist_set and vip_set must differ")
	}

	if c.Sync.IntervalSeconds < 1 {
		return fmt.Errorf("sync: interval_seconds must be positive")
	}
	if c.Sync.VIPEvery < 1 {
		return fmt.Errorf("sync: vip_every must be positive")
	}
	if c.Sync.WhitelistTTLSeconds < 1 {
		return fmt.Errorf("sync: whitelist_ttl_seconds must be positive")
	}

	if c.Billing.FreeQuotaBytes < 0 {
		return fmt.Errorf("billing: free_quota_bytes cannot be negative")
	}
	if c.Billing.PricePerByte < 0 {
		return fmt.Errorf("billing: price_per_byte cannot be negative")
	}
	if c.Billing.RecencyWindowSeconds < 1 {
		return fmt.Errorf("billing: recency_window_seconds must be positive")
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log: %w", err)
	}

	return nil
}

// Interval returns the standard sync cadence.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Sync.IntervalSeconds) * time.Second
}

// WhitelistTTL returns the per-element lifetime of the timed whitelist set.
func (c *Config) WhitelistTTL() time.Duration {
	return time.Duration(c.Sync.WhitelistTTLSeconds) * time.Second
}

// RecencyWindow returns how far back a client's activity may lie for
// standard entitlement.
func (c *Config) RecencyWindow() time.Duration {
	return time.Duration(c.Billing.RecencyWindowSeconds) * time.Second
}
