package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/modkit/internal/adapters/bundle"
	"github.com/felixgeelhaar/modkit/internal/adapters/logging"
	"github.com/felixgeelhaar/modkit/internal/domain/code"
	"github.com/felixgeelhaar/modkit/internal/domain/config"
	"github.com/felixgeelhaar/modkit/internal/domain/mod"
	"github.com/felixgeelhaar/modkit/internal/ports"
)

var (
	// Global flags
	cfgFile  string
	modsRoot string
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "modkit",
	Short: "A mod package lifecycle manager",
	Long: `Modkit discovers, validates, and manages mods: loadable packages of
code, scenes, and assets with declared dependencies and conflict
detection against other mods.`,
	SilenceErrors: true, // We handle error formatting ourselves
	SilenceUsage:  true, // Don't show usage on error
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: modkit.yaml)")
	rootCmd.PersistentFlags().StringVar(&modsRoot, "root", "", "mods root directory (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(versionCmd)
}

// printError prints an error message to stderr with proper formatting.
func printError(err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
}

// exitError carries a process exit code out of a command. Returning it
// instead of calling os.Exit lets deferred cleanup (the code host in
// particular) run before the process ends.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}

// app wires the full stack: config, logger, code host, scene graph, and
// the mod service. Commands build one, use it, and close it.
type app struct {
	cfg      *config.Config
	logger   ports.Logger
	codeHost *code.WazeroHost
	graph    *bundle.Graph
	service  *mod.Service
}

func newApp(ctx context.Context) (*app, error) {
	path := cfgFile
	if path == "" {
		path = config.DefaultFileName
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if modsRoot != "" {
		cfg.ModsRoot = modsRoot
	}

	level := parseLevel(cfg.Log.Level)
	if verbose {
		level = ports.LevelDebug
	}
	logger := logging.NewConsoleLogger(
		logging.WithLevel(level),
		logging.WithJSONFormat(cfg.Log.JSON),
	)

	platform, err := mod.ParsePlatform(cfg.Platform)
	if err != nil {
		return nil, err
	}

	codeHost, err := code.NewWazeroHost(ctx, logger)
	if err != nil {
		return nil, err
	}

	graph := bundle.NewGraph()
	factory := bundle.NewFactory(codeHost, graph, logger)

	loader := mod.NewLoader(mod.LoaderConfig{
		Root: cfg.ModsRoot,
		Runtime: mod.RuntimeConfig{
			Platform:    platform,
			HostVersion: cfg.HostVersion,
		},
		CodeExt: cfg.CodeExt,
	}, factory, graph, &ports.NoopHost{}, logger)

	service := mod.NewService(logger, mod.WithDiscoverer(loader))

	return &app{
		cfg:      cfg,
		logger:   logger,
		codeHost: codeHost,
		graph:    graph,
		service:  service,
	}, nil
}

// Close tears the stack down. Loaded mods are unloaded first.
func (a *app) Close(ctx context.Context) {
	a.service.Registry().Clear()
	if err := a.codeHost.Close(ctx); err != nil {
		a.logger.Warn(ctx, "closing code host failed", ports.F("error", err))
	}
}

func parseLevel(s string) ports.Level {
	switch s {
	case "debug":
		return ports.LevelDebug
	case "warn":
		return ports.LevelWarn
	case "error":
		return ports.LevelError
	default:
		return ports.LevelInfo
	}
}

// printResolution reports resolution problems to stderr.
func printResolution(r *mod.Resolution) {
	for id, missing := range r.Missing {
		_, _ = fmt.Fprintf(os.Stderr, "%s: missing dependencies: %v\n", id, missing)
	}
	for id, disabled := range r.Disabled {
		_, _ = fmt.Fprintf(os.Stderr, "%s: disabled dependencies: %v\n", id, disabled)
	}
	for id, conflicts := range r.Conflicts {
		_, _ = fmt.Fprintf(os.Stderr, "%s: conflicts with: %v\n", id, conflicts)
	}
}
