package main

import (
	"fmt"
	"io"

	"github.com/foxzi/alumnet/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE:  runConfigValidate,
}

func init() {
	configCmd.AddCommand(configValidateCmd)
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	printConfigSummary(cmd.OutOrStdout(), cfg)
	return nil
}

func printConfigSummary(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "Configuration is valid")
	fmt.Fprintf(w, "  Listen address: %s\n", cfg.Server.ListenAddr)
	fmt.Fprintf(w, "  Database: %s\n", cfg.Database.Driver)
	fmt.Fprintf(w, "  Admins: %d\n", len(cfg.Auth.Admins))
	fmt.Fprintf(w, "  Mail transport: %s\n", cfg.Mailer.Transport)
	fmt.Fprintf(w, "  From: %s\n", cfg.Mailer.FromEmail)
	fmt.Fprintf(w, "  DKIM: %v\n", cfg.Mailer.DKIM.Enabled)
	fmt.Fprintf(w, "  Batch size: %d, concurrency: %d\n", cfg.Dispatch.BatchSize, cfg.Dispatch.Concurrency)
	fmt.Fprintf(w, "  Composite expansion: %v\n", cfg.Audience.ExpandComposite)
	fmt.Fprintf(w, "  Metrics: %v\n", cfg.Metrics.Enabled)
}
