// Package bundle reads mod content bundles: a JSON asset manifest and a
// JSON scene manifest per platform directory. It provides the asset and
// scene sub-resources and the factory that wires them into a mod.
package bundle

import (
	"encoding/json"
	"fmt"
	"os"
)

// assetEntry is one named entry of an asset manifest. Data is carried
// opaquely; only prefab entries get a closer look during component scans.
type assetEntry struct {
	Name string                 `json:"name"`
	Kind string                 `json:"kind"`
	Data map[string]interface{} `json:"data,omitempty"`
}

type assetManifest struct {
	Entries []assetEntry `json:"entries"`
}

// sceneObject is one object of a scene, carrying its component type names.
type sceneObject struct {
	Name       string   `json:"name"`
	Components []string `json:"components"`
}

type sceneEntry struct {
	Name    string        `json:"name"`
	Objects []sceneObject `json:"objects"`
}

type sceneManifest struct {
	Scenes []sceneEntry `json:"scenes"`
}

func readAssetManifest(path string) (*assetManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading asset bundle: %w", err)
	}
	var m assetManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing asset bundle %s: %w", path, err)
	}
	return &m, nil
}

func readSceneManifest(path string) (*sceneManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scene bundle: %w", err)
	}
	var m sceneManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing scene bundle %s: %w", path, err)
	}
	return &m, nil
}
