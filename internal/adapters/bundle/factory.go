package bundle

import (
	"github.com/felixgeelhaar/modkit/internal/domain/code"
	"github.com/felixgeelhaar/modkit/internal/domain/mod"
	"github.com/felixgeelhaar/modkit/internal/ports"
)

// Factory builds a mod's sub-resources: code through the code host, assets
// and scenes through the bundle readers. Sub-resource names are derived
// from the unit id so the driver can tell them apart from their mod.
type Factory struct {
	host   code.Host
	graph  *Graph
	logger ports.Logger
}

// NewFactory creates a sub-resource factory.
func NewFactory(host code.Host, graph *Graph, logger ports.Logger) *Factory {
	return &Factory{
		host:   host,
		graph:  graph,
		logger: logger,
	}
}

// Graph returns the scene graph scene resources attach into.
func (f *Factory) Graph() *Graph {
	return f.graph
}

// Code creates the code resource over the given binaries.
func (f *Factory) Code(unit string, files []string) (mod.CodeResource, error) {
	return code.NewResource(unit+":code", files, f.host, f.logger)
}

// Asset creates the asset resource over the mod's asset bundle.
func (f *Factory) Asset(unit string, path string) (mod.AssetResource, error) {
	return NewAssetResource(unit+":assets", path, f.logger)
}

// Scene creates one scene resource for the named scene.
func (f *Factory) Scene(unit string, path string, sceneName string) (mod.SceneResource, error) {
	return NewSceneResource(unit+":scene:"+sceneName, path, sceneName, f.graph, f.logger)
}

// SceneNames lists the scenes inside a bundle without loading it.
func (f *Factory) SceneNames(path string) ([]string, error) {
	m, err := readSceneManifest(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(m.Scenes))
	for _, s := range m.Scenes {
		names = append(names, s.Name)
	}
	return names, nil
}

var _ mod.Factory = (*Factory)(nil)
