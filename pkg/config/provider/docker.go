package provider

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"go.uber.org/zap"

	"go.emberproxy.dev/ember/pkg/config"
)

// DockerProvider derives routing entries from running containers,
// one config per container carrying "<prefix>enable=true" among its
// labels (spec.md §4.I #2, §7).
type DockerProvider struct {
	LabelPrefix     string
	PollingInterval time.Duration
	DefaultDomains  []string

	cli *client.Client
}

// NewDockerProvider constructs a DockerProvider from its config
// section, dialing the daemon at host (empty uses the environment's
// DOCKER_HOST / default socket, matching client.NewClientWithOpts'
// FromEnv convention).
func NewDockerProvider(cfg config.DockerProviderConfig) (*DockerProvider, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if cfg.DockerHost != "" {
		opts = append(opts, client.WithHost(cfg.DockerHost))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("docker provider: %w", err)
	}

	prefix := cfg.LabelPrefix
	if prefix == "" {
		prefix = "ember."
	}
	interval := time.Duration(cfg.PollingInterval) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}

	return &DockerProvider{
		LabelPrefix:     prefix,
		PollingInterval: interval,
		DefaultDomains:  cfg.DefaultDomains,
		cli:             cli,
	}, nil
}

func (p *DockerProvider) Name() string { return "DockerProvider" }

// Run polls the daemon on PollingInterval, diffing against the
// previously observed configs so only genuine adds/changes/removals
// produce KindUpdate messages (spec.md §4.I #2: "diffing against
// previous_configs").
func (p *DockerProvider) Run(ctx context.Context, out chan<- Message) error {
	defer p.cli.Close()

	previous, err := p.introspect(ctx)
	if err != nil {
		return fmt.Errorf("docker provider initial introspection: %w", err)
	}
	select {
	case out <- Message{Kind: KindFirstInit, Snapshot: previous}:
	case <-ctx.Done():
		out <- Message{Kind: KindShutdown}
		return ctx.Err()
	}

	ticker := time.NewTicker(p.PollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			out <- Message{Kind: KindShutdown}
			return ctx.Err()

		case <-ticker.C:
			current, err := p.introspect(ctx)
			if err != nil {
				select {
				case out <- Message{Kind: KindError, Err: err}:
				case <-ctx.Done():
				}
				continue
			}
			p.emitDiff(previous, current, out, ctx)
			previous = current
		}
	}
}

func (p *DockerProvider) emitDiff(previous, current map[string]*config.ServerConfig, out chan<- Message, ctx context.Context) {
	for key, cfg := range current {
		old, existed := previous[key]
		if !existed || !sameConfig(old, cfg) {
			select {
			case out <- Message{Kind: KindUpdate, Key: key, Configuration: cfg}:
			case <-ctx.Done():
				return
			}
		}
	}
	for key := range previous {
		if _, stillPresent := current[key]; !stillPresent {
			select {
			case out <- Message{Kind: KindUpdate, Key: key, Configuration: nil}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func sameConfig(a, b *config.ServerConfig) bool {
	if len(a.Domains) != len(b.Domains) || len(a.Addresses) != len(b.Addresses) {
		return false
	}
	for i := range a.Domains {
		if a.Domains[i] != b.Domains[i] {
			return false
		}
	}
	for i := range a.Addresses {
		if a.Addresses[i] != b.Addresses[i] {
			return false
		}
	}
	return a.ProxyMode == b.ProxyMode
}

// introspect lists running containers carrying "<prefix>enable=true"
// and builds one ServerConfig per container from its labels.
func (p *DockerProvider) introspect(ctx context.Context) (map[string]*config.ServerConfig, error) {
	f := filters.NewArgs()
	f.Add("label", p.LabelPrefix+"enable=true")
	f.Add("status", "running")

	containers, err := p.cli.ContainerList(ctx, container.ListOptions{Filters: f})
	if err != nil {
		return nil, fmt.Errorf("listing containers: %w", err)
	}

	out := make(map[string]*config.ServerConfig, len(containers))
	for _, c := range containers {
		cfg, key, err := p.fromContainer(c)
		if err != nil {
			zap.S().Warnw("skipping container with invalid labels", "container_id", c.ID[:12], "error", err)
			continue
		}
		out[key] = cfg
	}
	return out, nil
}

func (p *DockerProvider) fromContainer(c types.Container) (*config.ServerConfig, string, error) {
	labels := c.Labels

	name := strings.TrimPrefix(firstName(c.Names), "/")
	key := name + "@DockerProvider"

	domains := splitCSV(labels[p.LabelPrefix+"domains"])
	if len(domains) == 0 {
		domains = p.DefaultDomains
	}

	addr, err := p.containerAddress(c, labels)
	if err != nil {
		return nil, "", err
	}

	mode := config.ModePassthrough
	if m := labels[p.LabelPrefix+"proxy_mode"]; m != "" {
		mode = config.ProxyMode(m)
	}

	cfg := &config.ServerConfig{
		Domains:   domains,
		Addresses: []string{addr},
		ProxyMode: mode,
	}
	if !cfg.Valid() {
		return nil, "", fmt.Errorf("container %s has no domains and no default_domains configured", key)
	}
	return cfg, key, nil
}

func (p *DockerProvider) containerAddress(c types.Container, labels map[string]string) (string, error) {
	port := labels[p.LabelPrefix+"port"]
	if port == "" {
		port = "25565"
	}
	if _, err := strconv.Atoi(port); err != nil {
		return "", fmt.Errorf("invalid %sport label: %q", p.LabelPrefix, port)
	}

	for _, net := range c.NetworkSettings.Networks {
		if net.IPAddress != "" {
			return net.IPAddress + ":" + port, nil
		}
	}
	return "", fmt.Errorf("container has no attached network IP")
}

func firstName(names []string) string {
	if len(names) == 0 {
		return "unknown"
	}
	return names[0]
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
