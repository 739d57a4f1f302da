package main

import (
	"context"
	"os"

	"github.com/foxzi/alumnet/internal/app"
	"github.com/foxzi/alumnet/internal/config"
)

// openEngine loads the config and builds the engine for one-shot commands.
// Logs go to stderr so command output stays clean.
func openEngine(ctx context.Context) (*app.Engine, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	return app.NewEngine(ctx, cfg, app.SetupLogger(cfg.Logging, os.Stderr))
}
