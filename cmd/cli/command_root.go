package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/espressif/esp-bist/pkg/lib/config"
	"github.com/espressif/esp-bist/pkg/lib/logging"
	"github.com/espressif/esp-bist/pkg/lib/scenario"
)

// app holds what every subcommand loads from the persistent flags.
type app struct {
	configPath  string
	catalogPath string
	logLevel    string

	cfg    *config.Config
	logger *slog.Logger
	closer io.Closer
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = config.LogLevel(a.logLevel)
	}
	cfg.Remote.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", a.configPath, err)
	}
	logger, closer, err := logging.NewFromConfig(cfg, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	a.cfg, a.logger, a.closer = cfg, logger, closer
	return nil
}

func (a *app) catalog() (*scenario.Catalog, error) {
	path := a.catalogPath
	if path == "" {
		path = a.cfg.Catalog
	}
	return scenario.Load(path)
}

func (a *app) close() {
	if a.closer != nil {
		_ = a.closer.Close()
	}
}

func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "bistctl",
		Short:         "Run BIST firmware scenarios under QEMU",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}

	defaultConfig := os.Getenv(config.EnvConfig)
	if defaultConfig == "" {
		defaultConfig = config.DefaultConfigPath
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", defaultConfig, "harness config file")
	root.PersistentFlags().StringVar(&a.catalogPath, "catalog", "", "scenario catalog (default: built-in)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	root.AddCommand(newRunCmd(a))
	root.AddCommand(newListCmd(a))
	root.AddCommand(newRenderCmd(a))
	root.AddCommand(newSimCmd(a))
	root.AddCommand(newRemoteCmd(a))

	return root
}
