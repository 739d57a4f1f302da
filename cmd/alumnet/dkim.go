package main

import (
	"fmt"
	"path/filepath"

	"github.com/foxzi/alumnet/internal/mailer"
	"github.com/spf13/cobra"
)

var (
	dkimDomain   string
	dkimSelector string
	dkimOutDir   string
)

var dkimCmd = &cobra.Command{
	Use:   "dkim",
	Short: "DKIM key management commands",
}

var dkimKeygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a DKIM signing key",
	Long:  `Generate an RSA 2048-bit DKIM key and print the DNS record to publish.`,
	RunE:  runDKIMKeygen,
}

func init() {
	dkimKeygenCmd.Flags().StringVar(&dkimDomain, "domain", "", "Signing domain (required)")
	dkimKeygenCmd.Flags().StringVar(&dkimSelector, "selector", "alumnet", "DKIM selector")
	dkimKeygenCmd.Flags().StringVar(&dkimOutDir, "out", ".", "Output directory for the key file")
	dkimKeygenCmd.MarkFlagRequired("domain")

	dkimCmd.AddCommand(dkimKeygenCmd)
}

func runDKIMKeygen(cmd *cobra.Command, args []string) error {
	keyPath := filepath.Join(dkimOutDir, dkimDomain+".key")
	record, err := mailer.GenerateKey(keyPath)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Private key saved to: %s\n\n", keyPath)
	fmt.Fprintln(w, "DNS Record:")
	fmt.Fprintf(w, "  Name: %s._domainkey.%s\n", dkimSelector, dkimDomain)
	fmt.Fprintln(w, "  Type: TXT")
	fmt.Fprintf(w, "  Value: %s\n\n", record)
	fmt.Fprintln(w, "Config:")
	fmt.Fprintln(w, "  mailer:")
	fmt.Fprintln(w, "    dkim:")
	fmt.Fprintln(w, "      enabled: true")
	fmt.Fprintf(w, "      domain: %q\n", dkimDomain)
	fmt.Fprintf(w, "      selector: %q\n", dkimSelector)
	fmt.Fprintf(w, "      key_file: %q\n", keyPath)
	return nil
}
