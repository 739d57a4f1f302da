package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/foxzi/alumnet/internal/audience"
	"github.com/spf13/cobra"
)

var (
	audienceTypes []string
	audienceWhich string
	audienceList  bool
)

var audienceCmd = &cobra.Command{
	Use:   "audience",
	Short: "Audience commands",
}

var audienceCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Count the recipients an audience resolves to",
	RunE:  runAudienceCount,
}

func init() {
	audienceCountCmd.Flags().StringSliceVar(&audienceTypes, "types", nil, "Person types (empty = everyone)")
	audienceCountCmd.Flags().StringVar(&audienceWhich, "which", "email1", "Address field: email1, email2 or both")
	audienceCountCmd.Flags().BoolVar(&audienceList, "list", false, "List contributing people")
	audienceCmd.AddCommand(audienceCountCmd)
}

func runAudienceCount(cmd *cobra.Command, args []string) error {
	engine, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer engine.Close()

	preview, err := engine.Notify.Preview(cmd.Context(), audienceWhich, audienceTypes)
	if err != nil {
		return err
	}
	printPreview(cmd.OutOrStdout(), preview, audienceList)
	return nil
}

func printPreview(out io.Writer, p *audience.Preview, list bool) {
	fmt.Fprintf(out, "Recipients: %d\n", p.Count)
	fmt.Fprintf(out, "People: %d\n", len(p.Users))
	if !list || len(p.Users) == 0 {
		return
	}

	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tEMAIL1\tEMAIL2")
	for _, u := range p.Users {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Type, u.Email1, u.Email2)
	}
	w.Flush()
}
