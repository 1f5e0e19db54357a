package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List discovered mods",
	Long: `List scans the mods root and prints every discovered mod with its
state, content types, and any resolution problems.

Examples:
  modkit list
  modkit list --root ./mods
  modkit list --json`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output as JSON")
}

func runList(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	a, err := newApp(ctx)
	if err != nil {
		printError(err)
		return err
	}
	defer a.Close(ctx)

	resolution, err := a.service.Scan(ctx)
	if err != nil {
		printError(err)
		return err
	}

	if listJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(a.service.Diagnose())
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tVERSION\tENABLED\tVALID\tCONTENT\tSTATE")
	for _, m := range a.service.List() {
		d := m.Descriptor()
		_, _ = fmt.Fprintf(w, "%s\t%s\t%t\t%t\t%s\t%s\n",
			d.ID, d.Version, d.Enabled, m.Valid(), d.Content, m.State())
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if resolution.HasProblems() {
		fmt.Println()
		printResolution(resolution)
	}
	return nil
}
