// Package motd builds synthetic status-response JSON for the cases
// where the proxy answers a status ping itself instead of a backend
// (spec.md §3, §6: domain unknown, server unreachable, or any other
// MOTDSet-themed state), and relays a backend's own response for the
// ordinary case.
package motd

import (
	"encoding/json"
	"fmt"

	"go.emberproxy.dev/ember/pkg/config"
)

// State names one themed response to render, matching config.MOTDSet's
// fields.
type State int

const (
	StateOnline State = iota
	StateOffline
	StateStarting
	StateStopping
	StateCrashed
	StateUnreachable
	StateUnknown
	StateUnableStatus
	StateShuttingDown
)

// description is the subset of the vanilla status JSON's "description"
// object the proxy needs: a plain legacy-formatted text field.
type description struct {
	Text string `json:"text"`
}

type versionInfo struct {
	Name     string `json:"name"`
	Protocol int    `json:"protocol"`
}

type players struct {
	Max    int `json:"max"`
	Online int `json:"online"`
}

type statusDocument struct {
	Version     versionInfo `json:"version"`
	Players     players     `json:"players"`
	Description description `json:"description"`
	Favicon     string      `json:"favicon,omitempty"`
}

// DefaultVersionName/Protocol are used when a synthetic response has
// no backend handshake to borrow a protocol version from.
const (
	DefaultVersionName = "Ember"
	DefaultProtocol    = -1
)

// themeFor picks the MOTDTheme for a given state, falling back to
// nil when the operator configured nothing for it.
func themeFor(set config.MOTDSet, state State) *config.MOTDTheme {
	switch state {
	case StateOnline:
		return set.Online
	case StateOffline:
		return set.Offline
	case StateStarting:
		return set.Starting
	case StateStopping:
		return set.Stopping
	case StateCrashed:
		return set.Crashed
	case StateUnreachable:
		return set.Unreachable
	case StateUnknown:
		return set.Unknown
	case StateUnableStatus:
		return set.UnableStatus
	case StateShuttingDown:
		return set.ShuttingDown
	default:
		return nil
	}
}

// Render builds the JSON document for a synthetic status response.
// protocolVersion is the client's requested protocol, echoed back so
// clients don't render an "outdated" banner.
func Render(set config.MOTDSet, state State, protocolVersion int) (string, error) {
	theme := themeFor(set, state)

	doc := statusDocument{
		Version: versionInfo{Name: DefaultVersionName, Protocol: protocolVersion},
	}

	if theme != nil {
		doc.Description = description{Text: theme.Description}
		doc.Players = players{Max: theme.MaxPlayers}
		doc.Favicon = theme.Favicon
	} else {
		doc.Description = description{Text: defaultMessage(state)}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("motd: encoding status document: %w", err)
	}
	return string(data), nil
}

func defaultMessage(state State) string {
	switch state {
	case StateUnknown:
		return "§cUnknown server"
	case StateUnreachable:
		return "§cServer unreachable"
	case StateStarting:
		return "§eServer is starting..."
	case StateStopping:
		return "§eServer is stopping..."
	case StateCrashed:
		return "§4Server crashed"
	case StateShuttingDown:
		return "§eProxy is shutting down"
	case StateUnableStatus:
		return "§cUnable to fetch status"
	default:
		return "§7Offline"
	}
}
