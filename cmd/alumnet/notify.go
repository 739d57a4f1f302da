package main

import (
	"fmt"
	"io"

	"github.com/foxzi/alumnet/internal/models"
	"github.com/foxzi/alumnet/internal/notify"
	"github.com/spf13/cobra"
)

var (
	notifyType       string
	notifyID         string
	notifyTest       bool
	notifyWhich      string
	notifyTypes      []string
	notifyAdmin      string
	notifyCampaignID string
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Send a listing notification to its audience",
	Long: `Render a listing and deliver it to every resolved recipient, or with --test
deliver a single copy to the admin address only.`,
	RunE: runNotify,
}

func init() {
	notifyCmd.Flags().StringVar(&notifyType, "type", "", "Listing type: JOB_POSTING, EVENT, OPPORTUNITY or POST (required)")
	notifyCmd.Flags().StringVar(&notifyID, "id", "", "Listing ID (required)")
	notifyCmd.Flags().BoolVar(&notifyTest, "test", false, "Send one test copy to --admin")
	notifyCmd.Flags().StringVar(&notifyWhich, "which", "email1", "Address field: email1, email2 or both")
	notifyCmd.Flags().StringSliceVar(&notifyTypes, "types", nil, "Person types (empty = everyone)")
	notifyCmd.Flags().StringVar(&notifyAdmin, "admin", "", "Administrator email (test destination)")
	notifyCmd.Flags().StringVar(&notifyCampaignID, "campaign-id", "", "Campaign ID (generated when empty)")
	notifyCmd.MarkFlagRequired("type")
	notifyCmd.MarkFlagRequired("id")
}

func runNotify(cmd *cobra.Command, args []string) error {
	listingType, err := models.ParseListingType(notifyType)
	if err != nil {
		return err
	}
	if notifyTest && notifyAdmin == "" {
		return fmt.Errorf("--admin is required with --test")
	}

	engine, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer engine.Close()

	out, err := engine.Notify.Notify(cmd.Context(), notify.Request{
		Listing:     models.ListingRef{Type: listingType, ID: notifyID},
		Test:        notifyTest,
		Which:       notifyWhich,
		PersonTypes: notifyTypes,
		CampaignID:  notifyCampaignID,
		Admin:       models.Admin{Email: notifyAdmin},
	})
	if out != nil {
		printOutcome(cmd.OutOrStdout(), out)
	}
	if err != nil && out != nil {
		return fmt.Errorf("%s: %w", out.State, err)
	}
	return err
}

func printOutcome(w io.Writer, out *notify.Outcome) {
	fmt.Fprintf(w, "Campaign: %s\n", out.CampaignID)
	fmt.Fprintf(w, "State: %s\n", out.State)

	if out.Test != nil {
		if out.Test.Success {
			fmt.Fprintln(w, "Test message sent")
		} else {
			fmt.Fprintf(w, "Test message failed: %s\n", out.Test.Reason)
		}
		return
	}

	r := out.Report
	if r == nil {
		return
	}
	fmt.Fprintf(w, "Recipients: %d\n", r.Total)
	fmt.Fprintf(w, "Attempted: %d\n", r.TotalAttempted)
	fmt.Fprintf(w, "Sent: %d\n", r.Sent)
	fmt.Fprintf(w, "Failed: %d\n", len(r.Failed))
	if r.Aborted {
		fmt.Fprintln(w, "Aborted: yes")
	}
	for _, f := range r.Failed {
		fmt.Fprintf(w, "  %s: %s\n", f.Address, f.Reason)
	}
}
