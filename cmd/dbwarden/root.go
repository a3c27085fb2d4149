package main

import (
	"context"
	"fmt"

	"dbwarden/internal/config"
	"dbwarden/internal/logger"
	"dbwarden/internal/server"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// app holds state shared by all commands.
type app struct {
	configFile string
	logLevel   string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "dbwarden",
		Short:         "Hierarchical storage thresholds for monitored databases",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.loadConfig()
		},
	}

	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "config file (default: ./dbwarden.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log.level")

	root.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newImportCmd(a),
		newResolveCmd(a),
		newEvaluateCmd(a),
	)
	return root
}

// loadConfig loads configuration and initializes the logger.
func (a *app) loadConfig() error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	logger.Init(cfg.Log)
	a.cfg = cfg

	log.Debug().
		Str("version", Version).
		Str("commit", GitCommit).
		Msg("Configuration loaded")
	return nil
}

// open initializes storage and the engine without serving HTTP.
func (a *app) open(ctx context.Context) (*server.Server, error) {
	srv := server.New(a.cfg, Version)
	if err := srv.Init(ctx); err != nil {
		return nil, err
	}
	return srv, nil
}
