package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gookit/color"
	"go.uber.org/zap"

	"go.emberproxy.dev/ember/pkg/auth"
	"go.emberproxy.dev/ember/pkg/config"
	"go.emberproxy.dev/ember/pkg/config/provider"
	"go.emberproxy.dev/ember/pkg/gateway"
	"go.emberproxy.dev/ember/pkg/proxy"
	"go.emberproxy.dev/ember/pkg/supervisor"
)

// app bundles the long-lived collaborators wired together at startup.
type app struct {
	global     *config.Global
	services   *config.Service
	supervisor *supervisor.Supervisor
	gateway    *gateway.Gateway
	providers  []provider.Provider
}

func newApp(configPath string, debug bool) (*app, error) {
	global, err := config.LoadGlobal(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if debug {
		global.Debug = true
	}
	if err := initLogger(global.Debug); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	if err := config.Validate(global); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	services := config.NewService()

	keyPair, err := auth.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("generating session keypair: %w", err)
	}

	sup := supervisor.New(nil)
	deps := proxy.Deps{
		KeyPair:   keyPair,
		Sessions:  auth.NewSessionClient(),
		ProxyProt: global.ProxyProtocol,
	}
	gw := gateway.New(global, services, sup, deps)
	if err := gw.Listen(); err != nil {
		return nil, err
	}

	a := &app{global: global, services: services, supervisor: sup, gateway: gw}

	if len(global.FileProvider.ProxiesPath) > 0 {
		a.providers = append(a.providers, provider.NewFileProvider(global.FileProvider))
	}
	if global.DockerProvider.Watch || global.DockerProvider.LabelPrefix != "" {
		dp, err := provider.NewDockerProvider(global.DockerProvider)
		if err != nil {
			zap.S().Warnw("docker provider unavailable", "error", err)
		} else {
			a.providers = append(a.providers, dp)
		}
	}

	return a, nil
}

// runProviders starts every configured provider, pumping its messages
// into the configuration service until ctx is canceled.
func (a *app) runProviders(ctx context.Context) {
	var wg sync.WaitGroup
	for _, p := range a.providers {
		p := p
		out := make(chan provider.Message, provider.ChannelCapacity)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Run(ctx, out); err != nil && ctx.Err() == nil {
				zap.S().Errorw("config provider stopped", "provider", p.Name(), "error", err)
			}
		}()
		go func() {
			for msg := range out {
				switch msg.Kind {
				case provider.KindError:
					zap.S().Warnw("config provider error", "provider", p.Name(), "error", msg.Err)
				case provider.KindShutdown:
					return
				default:
					provider.Apply(a.services, msg)
				}
			}
		}()
	}
}

func (a *app) watchSignals(cancel context.CancelFunc) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		s, ok := <-sig
		if !ok {
			return
		}
		zap.S().Infof("received %s, shutting down", s)
		color.Yellow.Println("ember proxy is shutting down, please reconnect in a moment")
		cancel()
	}()
}
