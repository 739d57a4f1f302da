package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/foxzi/alumnet/internal/app"
	"github.com/foxzi/alumnet/internal/config"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	logger := app.SetupLogger(cfg.Logging, os.Stdout)
	slog.SetDefault(logger)

	ctx := context.Background()
	application, err := app.New(ctx, cfg, logger, version)
	if err != nil {
		return err
	}

	return application.Run(ctx)
}
