package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "alumnet",
	Short: "Alumnet - audience resolution and notification dispatch",
	Long: `Alumnet resolves which members of the alumni network should hear about a
listing and delivers the rendered notification to each of them.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "alumnet %s (built %s)\n", version, buildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/alumnet/config.yaml", "Path to configuration file")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(audienceCmd)
	rootCmd.AddCommand(notifyCmd)
	rootCmd.AddCommand(peopleCmd)
	rootCmd.AddCommand(adminCmd)
	rootCmd.AddCommand(dkimCmd)
	rootCmd.AddCommand(sandboxCmd)
}

func main() {
	// Secrets may live in a local .env; a missing file is fine
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
