package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var enableCmd = &cobra.Command{
	Use:   "enable <id>",
	Short: "Enable a mod and persist its descriptor",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return setEnabled(args[0], true)
	},
}

var disableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Disable a mod and persist its descriptor",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return setEnabled(args[0], false)
	},
}

func init() {
	rootCmd.AddCommand(enableCmd)
	rootCmd.AddCommand(disableCmd)
}

func setEnabled(id string, enabled bool) error {
	ctx := context.Background()

	a, err := newApp(ctx)
	if err != nil {
		printError(err)
		return err
	}
	defer a.Close(ctx)

	if _, err := a.service.Scan(ctx); err != nil {
		printError(err)
		return err
	}

	resolution, err := a.service.SetEnabled(ctx, id, enabled, true)
	if err != nil {
		printError(err)
		return err
	}

	state := "disabled"
	if enabled {
		state = "enabled"
	}
	fmt.Printf("%s %s\n", id, state)
	if resolution.HasProblems() {
		printResolution(resolution)
	}
	return nil
}
