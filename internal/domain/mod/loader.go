package mod

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/felixgeelhaar/modkit/internal/ports"
)

// LoaderConfig configures mod discovery.
type LoaderConfig struct {
	// Root is the directory scanned for mods, one sub-directory per unit.
	Root string
	// Runtime identifies the running host.
	Runtime RuntimeConfig
	// CodeExt filters code files inside the platform directory.
	// Defaults to ".wasm".
	CodeExt string
}

// Loader discovers mods under a directory root following the layout
// contract: <root>/<id>/mod.json, a platform sub-directory per supported
// platform containing the code files, and the "<id>.assets" and
// "<id>.scenes" bundle files.
type Loader struct {
	cfg     LoaderConfig
	factory Factory
	graph   ports.SceneGraph
	host    ports.Host
	logger  ports.Logger
}

// NewLoader creates a discovery loader.
func NewLoader(cfg LoaderConfig, factory Factory, graph ports.SceneGraph, host ports.Host, logger ports.Logger) *Loader {
	if cfg.CodeExt == "" {
		cfg.CodeExt = ".wasm"
	}
	return &Loader{
		cfg:     cfg,
		factory: factory,
		graph:   graph,
		host:    host,
		logger:  logger,
	}
}

// Discover scans the root for mods. Per-unit failures are collected, not
// fatal: one broken descriptor never hides the rest of the directory.
func (l *Loader) Discover(ctx context.Context) (*DiscoveryResult, error) {
	result := &DiscoveryResult{
		Mods:   make([]*Mod, 0),
		Errors: make([]DiscoveryError, 0),
	}

	entries, err := os.ReadDir(l.cfg.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return nil, err
	}

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		if !entry.IsDir() {
			continue
		}

		dir := filepath.Join(l.cfg.Root, entry.Name())
		m, err := l.LoadFromPath(ctx, dir)
		if err != nil {
			result.Errors = append(result.Errors, DiscoveryError{Path: dir, Err: err})
			continue
		}
		result.Mods = append(result.Mods, m)
	}

	return result, nil
}

// LoadFromPath constructs a mod from one unit directory.
func (l *Loader) LoadFromPath(ctx context.Context, dir string) (*Mod, error) {
	descriptor, err := LoadDescriptor(filepath.Join(dir, DescriptorFileName))
	if err != nil {
		return nil, err
	}

	params := Params{
		Descriptor: descriptor,
		Dir:        dir,
		Runtime:    l.cfg.Runtime,
		Factory:    l.factory,
		Graph:      l.graph,
		Host:       l.host,
		Logger:     l.logger,
	}

	platformDir, err := l.platformDir(dir)
	if err == nil {
		id := descriptor.PathID()
		params.CodeFiles = l.codeFiles(platformDir)
		params.AssetsPath = filepath.Join(platformDir, id+".assets")
		params.ScenesPath = filepath.Join(platformDir, id+".scenes")

		if descriptor.Content.Has(ContentScenes) {
			if names, err := l.factory.SceneNames(params.ScenesPath); err == nil {
				params.SceneNames = names
			} else {
				l.logger.Warn(ctx, "reading scene bundle catalog failed",
					ports.F("mod", descriptor.ID), ports.F("error", err))
			}
		}
	}

	m, err := New(params)
	if err != nil {
		return nil, err
	}

	l.logger.Debug(ctx, "mod discovered",
		ports.F("mod", descriptor.ID),
		ports.F("version", descriptor.Version),
		ports.F("content", descriptor.Content.String()))
	return m, nil
}

// platformDir locates the sub-directory for the configured platform.
func (l *Loader) platformDir(dir string) (string, error) {
	name, err := l.cfg.Runtime.Platform.DirName()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// codeFiles lists the code binaries in the platform directory, sorted for
// a stable load order.
func (l *Loader) codeFiles(platformDir string) []string {
	entries, err := os.ReadDir(platformDir)
	if err != nil {
		return nil
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), l.cfg.CodeExt) {
			files = append(files, filepath.Join(platformDir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files
}

// Ensure Loader implements Discoverer.
var _ Discoverer = (*Loader)(nil)
