// Package provider implements the provider protocol of spec.md §4.I:
// typed config events delivered to the configuration service over a
// bounded channel, independent of where the config actually lives.
package provider

import (
	"context"

	"go.emberproxy.dev/ember/pkg/config"
)

// Kind tags a Message's variant.
type Kind int

const (
	KindFirstInit Kind = iota
	KindUpdate
	KindError
	KindShutdown
)

// Message is one event a provider emits (spec.md §4.I).
type Message struct {
	Kind Kind

	// KindFirstInit
	Snapshot map[string]*config.ServerConfig

	// KindUpdate
	Key           string
	Configuration *config.ServerConfig // nil means remove

	// KindError
	Err error
}

// Provider produces config events until ctx is canceled, at which
// point it must emit a final KindShutdown message and return.
type Provider interface {
	Name() string
	Run(ctx context.Context, out chan<- Message) error
}

// ChannelCapacity is the bounded channel size providers are fed
// through, matching the actor-pair channel sizing convention used
// elsewhere in the core (spec.md §4.E uses 64/100; providers are
// lower-frequency so a smaller buffer suffices).
const ChannelCapacity = 32

// Apply applies one provider message to the configuration service:
// FirstInit replaces the configurations with the snapshot, Update adds,
// replaces or (with a nil Configuration) removes one entry, and Error
// and Shutdown change nothing. It does not read from any channel.
func Apply(svc *config.Service, msg Message) {
	switch msg.Kind {
	case KindFirstInit:
		list := make([]*config.ServerConfig, 0, len(msg.Snapshot))
		for id, cfg := range msg.Snapshot {
			cfg.ConfigID = id
			list = append(list, cfg)
		}
		svc.UpdateConfigurations(list)
	case KindUpdate:
		if msg.Configuration == nil {
			svc.RemoveConfiguration(msg.Key)
			return
		}
		msg.Configuration.ConfigID = msg.Key
		svc.UpdateConfigurations([]*config.ServerConfig{msg.Configuration})
	case KindError, KindShutdown:
		// Handled by the caller's logging; no config mutation.
	}
}
