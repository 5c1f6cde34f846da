package proxy

import (
	"fmt"

	"go.emberproxy.dev/ember/pkg/config"
	"go.emberproxy.dev/ember/pkg/gateway/statuscache"
)

// HandlerFor resolves the Handler implementing a server's configured
// ProxyMode (spec.md §3).
func HandlerFor(mode config.ProxyMode, statusCache *statuscache.Cache) (Handler, error) {
	switch mode {
	case config.ModePassthrough:
		return PassthroughHandler{}, nil
	case config.ModeOffline:
		return OfflineHandler{}, nil
	case config.ModeClientOnly:
		return ClientOnlyHandler{}, nil
	case config.ModeServerOnly:
		return ServerOnlyHandler{}, nil
	case config.ModeStatus:
		return &StatusHandler{Cache: statusCache}, nil
	default:
		return nil, fmt.Errorf("proxy: unknown proxy mode %q", mode)
	}
}
