// Command ember runs the proxy: load configuration, start the config
// providers, bind the gateway, and serve an interactive console for
// the kick/list/configs/debug/tasks operator commands (spec.md §6).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var debug bool

	root := &cobra.Command{
		Use:   "ember",
		Short: "Minecraft Java Edition protocol-aware reverse proxy",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, debug)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "ember.yaml", "path to the global configuration file")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable development-mode console logging")
	return root
}

func initLogger(debug bool) error {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := cfg.Build()
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(l)
	return nil
}

func run(configPath string, debug bool) error {
	app, err := newApp(configPath, debug)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app.watchSignals(cancel)

	errCh := make(chan error, 1)
	go func() { errCh <- app.gateway.Serve(ctx) }()
	app.runProviders(ctx)

	go app.console(ctx)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		app.supervisor.ShutdownAllActors()
		return nil
	}
}
