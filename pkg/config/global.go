package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileProviderConfig configures the filesystem watcher (spec.md §6).
type FileProviderConfig struct {
	ProxiesPath []string `mapstructure:"proxies_path"`
	FileType    string   `mapstructure:"file_type"`
	Watch       bool     `mapstructure:"watch"`
}

// DockerProviderConfig configures the container-introspection provider
// (spec.md §4.I #2, §6).
type DockerProviderConfig struct {
	DockerHost      string   `mapstructure:"docker_host"`
	LabelPrefix     string   `mapstructure:"label_prefix"`
	PollingInterval int      `mapstructure:"polling_interval"`
	Watch           bool     `mapstructure:"watch"`
	DefaultDomains  []string `mapstructure:"default_domains"`
}

// CacheConfig configures the global status cache defaults (spec.md §4.J).
type CacheConfig struct {
	StatusTTLSeconds int `mapstructure:"status_ttl_seconds"`
	MaxStatusEntries int `mapstructure:"max_status_entries"`
}

// ProxyProtocolConfig configures both legs of PROXY protocol handling
// (spec.md §4.L, §6).
type ProxyProtocolConfig struct {
	Enabled               bool     `mapstructure:"enabled"`
	Version               int      `mapstructure:"version"`
	ReceiveEnabled        bool     `mapstructure:"receive_enabled"`
	ReceiveTimeoutSecs    int      `mapstructure:"receive_timeout_secs"`
	ReceiveAllowedVersions []int   `mapstructure:"receive_allowed_versions"`
}

// Global is the top-level configuration document (spec.md §6).
type Global struct {
	Bind              string               `mapstructure:"bind"`
	KeepaliveTimeout  time.Duration        `mapstructure:"keepalive_timeout"`
	FileProvider      FileProviderConfig   `mapstructure:"file_provider"`
	DockerProvider    DockerProviderConfig `mapstructure:"docker_provider"`
	Cache             CacheConfig          `mapstructure:"cache"`
	Filters           Filters              `mapstructure:"filters"`
	MOTDs             MOTDSet              `mapstructure:"motds"`
	ProxyProtocol     ProxyProtocolConfig  `mapstructure:"proxy_protocol"`
	Debug             bool                 `mapstructure:"debug"`
}

// DefaultGlobal returns sane defaults, overlaid by viper before
// LoadGlobal returns, matching the teacher's viper.Unmarshal pattern in
// cmd/gate/gate.go.
func DefaultGlobal() Global {
	return Global{
		Bind:             ":25565",
		KeepaliveTimeout: 30 * time.Second,
		Cache: CacheConfig{
			StatusTTLSeconds: 30,
			MaxStatusEntries: 1000,
		},
		ProxyProtocol: ProxyProtocolConfig{
			Version:            1,
			ReceiveTimeoutSecs: 5,
		},
	}
}

// LoadGlobal reads the global configuration file via viper.
func LoadGlobal(path string) (*Global, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("bind", ":25565")
	v.SetDefault("cache.status_ttl_seconds", 30)
	v.SetDefault("cache.max_status_entries", 1000)
	v.SetDefault("proxy_protocol.version", 1)
	v.SetDefault("proxy_protocol.receive_timeout_secs", 5)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading global config: %w", err)
	}

	cfg := DefaultGlobal()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling global config: %w", err)
	}
	return &cfg, nil
}

// Validate enforces the invariants spec.md §3/§6 assume hold before
// the proxy starts accepting connections.
func Validate(cfg *Global) error {
	if cfg.Bind == "" {
		return fmt.Errorf("config: bind address must not be empty")
	}
	if cfg.Cache.MaxStatusEntries <= 0 {
		return fmt.Errorf("config: cache.max_status_entries must be positive")
	}
	if cfg.ProxyProtocol.Version != 1 && cfg.ProxyProtocol.Version != 2 {
		return fmt.Errorf("config: proxy_protocol.version must be 1 or 2")
	}
	return nil
}
