package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/foxzi/alumnet/internal/config"
	"github.com/foxzi/alumnet/internal/mailer"
	"github.com/spf13/cobra"
)

var (
	sandboxTo        string
	sandboxLimit     int
	sandboxRaw       bool
	sandboxOlderDays int
)

var sandboxCmd = &cobra.Command{
	Use:   "sandbox",
	Short: "Inspect messages captured by the sandbox transport",
	Long: `Inspect messages captured by the sandbox transport. The capture file is
locked by a running server, so stop "alumnet serve" first or use the
/api/v1/sandbox endpoints instead.`,
}

var sandboxListCmd = &cobra.Command{
	Use:   "list",
	Short: "List captured messages",
	RunE:  runSandboxList,
}

var sandboxShowCmd = &cobra.Command{
	Use:   "show <message_id>",
	Short: "Show a captured message",
	Args:  cobra.ExactArgs(1),
	RunE:  runSandboxShow,
}

var sandboxClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete captured messages",
	RunE:  runSandboxClear,
}

func init() {
	sandboxListCmd.Flags().StringVar(&sandboxTo, "to", "", "Filter by recipient")
	sandboxListCmd.Flags().IntVar(&sandboxLimit, "limit", 50, "Maximum number of messages")

	sandboxShowCmd.Flags().BoolVar(&sandboxRaw, "raw", false, "Print the raw RFC 5322 message")

	sandboxClearCmd.Flags().IntVar(&sandboxOlderDays, "older-than", 0, "Only clear messages older than N days")

	sandboxCmd.AddCommand(sandboxListCmd, sandboxShowCmd, sandboxClearCmd)
}

func openCaptureStore() (*mailer.CaptureStore, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return mailer.OpenCaptureStore(cfg.Mailer.Sandbox.Path)
}

func runSandboxList(cmd *cobra.Command, args []string) error {
	store, err := openCaptureStore()
	if err != nil {
		return err
	}
	defer store.Close()

	caps, err := store.List(cmd.Context(), mailer.CaptureFilter{To: sandboxTo, Limit: sandboxLimit})
	if err != nil {
		return err
	}
	if len(caps) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No messages in sandbox")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTO\tSUBJECT\tCAPTURED\tSIMULATED ERROR")
	for _, c := range caps {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			c.ID, c.To, truncate(c.Subject, 50), c.CapturedAt.Format(time.DateTime), c.SimulatedErr)
	}
	return w.Flush()
}

func runSandboxShow(cmd *cobra.Command, args []string) error {
	store, err := openCaptureStore()
	if err != nil {
		return err
	}
	defer store.Close()

	c, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("message not found: %s", args[0])
	}

	if sandboxRaw {
		_, err := cmd.OutOrStdout().Write(c.Data)
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "ID:       %s\n", c.ID)
	fmt.Fprintf(w, "From:     %s\n", c.From)
	fmt.Fprintf(w, "To:       %s\n", c.To)
	if c.ReplyTo != "" {
		fmt.Fprintf(w, "Reply-To: %s\n", c.ReplyTo)
	}
	fmt.Fprintf(w, "Subject:  %s\n", c.Subject)
	fmt.Fprintf(w, "Captured: %s\n", c.CapturedAt.Format(time.RFC3339))
	if c.SimulatedErr != "" {
		fmt.Fprintf(w, "Error:    %s\n", c.SimulatedErr)
	}
	fmt.Fprintf(w, "Size:     %d bytes\n", len(c.Data))
	return nil
}

func runSandboxClear(cmd *cobra.Command, args []string) error {
	store, err := openCaptureStore()
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.Clear(cmd.Context(), time.Duration(sandboxOlderDays)*24*time.Hour)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d messages\n", n)
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
