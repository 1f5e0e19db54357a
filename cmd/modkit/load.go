package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/modkit/internal/domain/resource"
)

var (
	loadAsync    bool
	loadMaxTicks int
)

var loadCmd = &cobra.Command{
	Use:   "load <id>",
	Short: "Load a mod and report the outcome",
	Long: `Load scans the mods root, loads the named mod, reports the instances
it provides, and unloads it again before exiting.

With --async the load runs cooperatively on the driver, exercising the
same incremental path a host frame loop would.

Examples:
  modkit load my-mod
  modkit load my-mod --async`,
	Args: cobra.ExactArgs(1),
	RunE: runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)
	loadCmd.Flags().BoolVar(&loadAsync, "async", false, "Load cooperatively on the driver")
	loadCmd.Flags().IntVar(&loadMaxTicks, "max-ticks", 100000, "Tick budget for async loads")
}

func runLoad(_ *cobra.Command, args []string) error {
	ctx := context.Background()
	id := args[0]

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

	m, ok := a.service.Get(id)
	if !ok {
		err := fmt.Errorf("mod %q not found", id)
		printError(err)
		return err
	}

	if loadAsync {
		if err := a.service.LoadAsync(ctx, id); err != nil {
			printError(err)
			return err
		}
		if err := a.service.Driver().Run(ctx, loadMaxTicks); err != nil {
			printError(err)
			return err
		}
	} else if err := a.service.Load(ctx, id); err != nil {
		printError(err)
		return err
	}

	if m.State() != resource.StateLoaded {
		d := m.Diagnose()
		err := fmt.Errorf("mod %q did not load (state %s, valid %t)", id, d.State, d.Valid)
		printError(err)
		return err
	}

	fmt.Printf("%s loaded (progress %.0f%%)\n", m.Descriptor(), m.Progress()*100)
	for _, asset := range m.Assets("") {
		fmt.Printf("  asset: %s (%s)\n", asset.Name, asset.Kind)
	}
	for _, scene := range m.SceneNames() {
		fmt.Printf("  scene: %s\n", scene)
	}

	return a.service.Unload(ctx, id)
}
