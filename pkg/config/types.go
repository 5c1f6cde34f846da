// Package config implements the routing table (spec.md §3, §4.H):
// ServerConfig entries keyed by config_id, with wildcard domain
// lookup behind a reader-writer lock.
package config

import "time"

// ProxyMode selects how a session is mediated (spec.md §3).
type ProxyMode string

const (
	ModePassthrough ProxyMode = "passthrough"
	ModeOffline     ProxyMode = "offline"
	ModeClientOnly  ProxyMode = "client_only"
	ModeServerOnly  ProxyMode = "server_only"
	ModeStatus      ProxyMode = "status"
)

// RateLimit configures the per-server admission limiter (SPEC_FULL §7).
type RateLimit struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

// AccessLists are the allow/block filters named in spec.md §3.
type AccessLists struct {
	AllowedIPs    []string `yaml:"allowed_ips" mapstructure:"allowed_ips"`
	BlockedIPs    []string `yaml:"blocked_ips" mapstructure:"blocked_ips"`
	AllowedUUIDs  []string `yaml:"allowed_uuids" mapstructure:"allowed_uuids"`
	BlockedUUIDs  []string `yaml:"blocked_uuids" mapstructure:"blocked_uuids"`
	AllowedNames  []string `yaml:"allowed_names" mapstructure:"allowed_names"`
	BlockedNames  []string `yaml:"blocked_names" mapstructure:"blocked_names"`
	BanListRef    string   `yaml:"ban_list_ref" mapstructure:"ban_list_ref"`
}

// Filters bundles the rate limiter and access lists for a server.
type Filters struct {
	RateLimit RateLimit   `yaml:"rate_limit" mapstructure:"rate_limit"`
	Lists     AccessLists `yaml:"access" mapstructure:"access"`
}

// CacheOverride lets a server override the gateway's global status
// cache TTL (spec.md §3).
type CacheOverride struct {
	StatusTTLSeconds int `yaml:"status_ttl_seconds" mapstructure:"status_ttl_seconds"`
}

// MOTDTheme is one themed status response body (spec.md §3, §6).
type MOTDTheme struct {
	Description string `yaml:"description" mapstructure:"description"`
	Favicon     string `yaml:"favicon" mapstructure:"favicon"` // data URI, optional
	MaxPlayers  int    `yaml:"max_players" mapstructure:"max_players"`
}

// MOTDSet holds the per-state themes named in spec.md §6.
type MOTDSet struct {
	Online         *MOTDTheme `yaml:"online,omitempty" mapstructure:"online"`
	Offline        *MOTDTheme `yaml:"offline,omitempty" mapstructure:"offline"`
	Starting       *MOTDTheme `yaml:"starting,omitempty" mapstructure:"starting"`
	Stopping       *MOTDTheme `yaml:"stopping,omitempty" mapstructure:"stopping"`
	Crashed        *MOTDTheme `yaml:"crashed,omitempty" mapstructure:"crashed"`
	Unreachable    *MOTDTheme `yaml:"unreachable,omitempty" mapstructure:"unreachable"`
	Unknown        *MOTDTheme `yaml:"unknown,omitempty" mapstructure:"unknown"`
	UnableStatus   *MOTDTheme `yaml:"unable_status,omitempty" mapstructure:"unable_status"`
	ShuttingDown   *MOTDTheme `yaml:"shutting_down,omitempty" mapstructure:"shutting_down"`
}

// ServerManagerRef is an opaque handle to the external process
// controller collaborator (spec.md §1, §6) — never dereferenced by
// the core beyond emptiness bookkeeping (spec.md §4.F).
type ServerManagerRef struct {
	Name              string        `yaml:"name" mapstructure:"name"`
	EmptyShutdownTime time.Duration `yaml:"empty_shutdown_time" mapstructure:"empty_shutdown_time"`
}

// ServerConfig is one routing entry (spec.md §3).
type ServerConfig struct {
	ConfigID          string            `yaml:"-" mapstructure:"-"`
	Domains           []string          `yaml:"domains" mapstructure:"domains"`
	Addresses         []string          `yaml:"addresses" mapstructure:"addresses"`
	ProxyMode         ProxyMode         `yaml:"proxy_mode" mapstructure:"proxy_mode"`
	SendProxyProtocol bool              `yaml:"send_proxy_protocol" mapstructure:"send_proxy_protocol"`
	ProxyProtoVersion int               `yaml:"proxy_protocol_version" mapstructure:"proxy_protocol_version"`
	Version           int               `yaml:"version" mapstructure:"version"`
	Filters           Filters           `yaml:"filters" mapstructure:"filters"`
	Caches            CacheOverride     `yaml:"caches" mapstructure:"caches"`
	MOTDs             MOTDSet           `yaml:"motds" mapstructure:"motds"`
	ServerManager     *ServerManagerRef `yaml:"server_manager,omitempty" mapstructure:"server_manager"`
}

// Valid enforces the non-empty-domains-or-addresses invariant
// (spec.md §3).
func (s *ServerConfig) Valid() bool {
	return len(s.Domains) > 0 || len(s.Addresses) > 0
}

// PrimaryAddress returns the first configured backend address, which
// is authoritative for the status cache key (spec.md §4.J).
func (s *ServerConfig) PrimaryAddress() (string, bool) {
	if len(s.Addresses) == 0 {
		return "", false
	}
	return s.Addresses[0], true
}
