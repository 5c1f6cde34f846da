// Package filter implements the connection admission checks described
// in SPEC_FULL.md §7: access lists (allow/block by IP, UUID, or
// username) and a per-server token-bucket rate limiter.
package filter

import (
	"net"
	"sync"

	"golang.org/x/time/rate"

	"go.emberproxy.dev/ember/pkg/config"
)

// Decision is the outcome of an admission check.
type Decision int

const (
	Allow Decision = iota
	Deny
)

// CheckIP applies a ServerConfig's access list to a connecting
// address, blocked list taking precedence over an empty allow list
// (an empty allow list means "allow everyone not blocked").
func CheckIP(lists config.AccessLists, ip string) Decision {
	for _, blocked := range lists.BlockedIPs {
		if ipOrCIDRMatches(blocked, ip) {
			return Deny
		}
	}
	if len(lists.AllowedIPs) == 0 {
		return Allow
	}
	for _, allowed := range lists.AllowedIPs {
		if ipOrCIDRMatches(allowed, ip) {
			return Allow
		}
	}
	return Deny
}

// CheckUUID applies the UUID allow/block list, same precedence rules
// as CheckIP.
func CheckUUID(lists config.AccessLists, uuid string) Decision {
	return checkList(lists.BlockedUUIDs, lists.AllowedUUIDs, uuid)
}

// CheckName applies the username allow/block list, same precedence
// rules as CheckIP. Usernames are compared case-insensitively.
func CheckName(lists config.AccessLists, name string) Decision {
	return checkList(lists.BlockedNames, lists.AllowedNames, name)
}

func checkList(blocked, allowed []string, value string) Decision {
	for _, b := range blocked {
		if equalFold(b, value) {
			return Deny
		}
	}
	if len(allowed) == 0 {
		return Allow
	}
	for _, a := range allowed {
		if equalFold(a, value) {
			return Allow
		}
	}
	return Deny
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func ipOrCIDRMatches(pattern, ip string) bool {
	target := net.ParseIP(ip)
	if target == nil {
		return false
	}
	if _, cidr, err := net.ParseCIDR(pattern); err == nil {
		return cidr.Contains(target)
	}
	return net.ParseIP(pattern).Equal(target)
}

// Limiters holds one rate.Limiter per config_id, created lazily from
// that server's RateLimit configuration (spec.md §8 names "the rate
// limiter admits/denies according to its configured rate and burst"
// as a testable property).
type Limiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewLimiters returns an empty limiter registry.
func NewLimiters() *Limiters {
	return &Limiters{limiters: make(map[string]*rate.Limiter)}
}

// Allow reports whether a new connection for configID is admitted
// under cfg's configured rate, creating the limiter on first use and
// reusing it afterward so the token bucket state persists across
// connections for the same server. A zero RequestsPerSecond disables
// rate limiting for that server.
func (l *Limiters) Allow(configID string, cfg config.RateLimit) bool {
	if cfg.RequestsPerSecond <= 0 {
		return true
	}

	l.mu.Lock()
	lim, ok := l.limiters[configID]
	if !ok {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
		l.limiters[configID] = lim
	}
	l.mu.Unlock()

	return lim.Allow()
}
