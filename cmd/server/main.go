package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/espressif/esp-bist/pkg/lib/config"
	"github.com/espressif/esp-bist/pkg/lib/logging"
	"github.com/espressif/esp-bist/pkg/lib/scenario"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configPath := os.Getenv(config.EnvConfig)
	if configPath == "" {
		configPath = config.DefaultConfigPath
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg.Remote.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, closer, err := logging.NewFromConfig(cfg, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	if closer != nil {
		defer closer.Close()
	}

	catalogPath := os.Getenv(config.EnvCatalog)
	if catalogPath == "" {
		catalogPath = cfg.Catalog
	}
	catalog, err := scenario.Load(catalogPath)
	if err != nil {
		return err
	}

	runner := &scenario.Runner{Config: cfg, Logger: logger}
	srv, err := NewGRPCServer(NewHarnessServiceServer(catalog, runner, logger), cfg.Remote)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		logger.Info("Shutting down")
		srv.Stop()
	}()

	logger.Info("Server (TLS) listening", "address", srv.Addr().String())
	return srv.Serve()
}
