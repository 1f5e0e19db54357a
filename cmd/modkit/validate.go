package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var validateJSON bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate mods without loading them",
	Long: `Validate scans the mods root and reports every mod's load-readiness:
static validity, missing dependencies, and identifier conflicts.

Exit codes:
  0 - All mods are loadable
  1 - Problems found
  2 - Could not scan the mods root

Examples:
  modkit validate
  modkit validate --root ./mods
  modkit validate --json`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "Output results as JSON")
}

func runValidate(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	a, err := newApp(ctx)
	if err != nil {
		printError(err)
		return &exitError{code: 2}
	}
	defer a.Close(ctx)

	resolution, err := a.service.Scan(ctx)
	if err != nil {
		printError(err)
		return &exitError{code: 2}
	}

	diagnostics := a.service.Diagnose()

	if validateJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(diagnostics); err != nil {
			return err
		}
	} else {
		for _, d := range diagnostics {
			status := "ok"
			if !d.CanLoad {
				status = "not loadable"
			}
			fmt.Printf("%s: %s\n", d.ID, status)
			for _, r := range d.StaticReasons {
				fmt.Printf("  invalid: %s\n", r)
			}
			for _, dep := range d.MissingDependencies {
				fmt.Printf("  missing dependency: %s\n", dep)
			}
			for _, dep := range d.DisabledDependencies {
				fmt.Printf("  disabled dependency: %s\n", dep)
			}
			for _, c := range d.Conflicts {
				fmt.Printf("  conflicts with: %s\n", c)
			}
		}
	}

	failed := resolution.HasProblems()
	for _, d := range diagnostics {
		if !d.CanLoad {
			failed = true
		}
	}
	if failed {
		return &exitError{code: 1}
	}
	return nil
}
