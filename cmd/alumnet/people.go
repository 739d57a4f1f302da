package main

import (
	"fmt"
	"io"
	"os"

	"github.com/foxzi/alumnet/internal/repository"
	"github.com/spf13/cobra"
)

var peopleCmd = &cobra.Command{
	Use:   "people",
	Short: "People directory commands",
}

var peopleImportCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Import or update people from a CSV file",
	Long: `Import people from a CSV file with a header row. Recognised columns are
id, name, type, email1 and email2; type and at least one email column are
required. Rows with an existing id are updated.`,
	Args: cobra.ExactArgs(1),
	RunE: runPeopleImport,
}

var peopleCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of people in the directory",
	RunE:  runPeopleCount,
}

func init() {
	peopleCmd.AddCommand(peopleImportCmd, peopleCountCmd)
}

func runPeopleImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open CSV: %w", err)
	}
	defer f.Close()

	engine, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer engine.Close()

	res, err := engine.People.ImportCSV(cmd.Context(), f)
	if err != nil {
		return err
	}
	printImportResult(cmd.OutOrStdout(), res)
	return nil
}

func printImportResult(w io.Writer, res *repository.ImportResult) {
	fmt.Fprintf(w, "Rows: %d\n", res.Total)
	fmt.Fprintf(w, "Imported: %d\n", res.Imported)
	fmt.Fprintf(w, "Skipped: %d\n", res.Skipped)
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

func runPeopleCount(cmd *cobra.Command, args []string) error {
	engine, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer engine.Close()

	n, err := engine.People.Count(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "People: %d\n", n)
	return nil
}
