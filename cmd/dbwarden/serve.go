package main

import (
	"os"
	"os/signal"
	"syscall"

	"dbwarden/internal/server"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log.Info().
				Str("version", Version).
				Str("addr", a.cfg.Server.Addr).
				Msg("Starting dbwarden")

			return server.New(a.cfg, Version).Start(ctx)
		},
	}
}
