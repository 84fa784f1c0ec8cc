package rowan

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest is a declarative resource list, the file-format twin of calling
// Preload with hand-built descriptors. Both JSON and YAML parse:
//
//	version: 1
//	basepaths:
//	  "*": assets
//	  audio: assets/sfx
//	resources:
//	  - name: village
//	    kind: tmx
//	    src: maps/village.tmx
//	  - name: theme
//	    kind: audio
//	    src: music/theme.ogg
//	    stream: true
type Manifest struct {
	Version   int               `json:"version" yaml:"version"`
	BasePaths map[string]string `json:"basepaths" yaml:"basepaths"`
	Resources []ManifestEntry   `json:"resources" yaml:"resources"`
}

// ManifestEntry is one resource row of a manifest.
type ManifestEntry struct {
	Name   string `json:"name" yaml:"name"`
	Kind   string `json:"kind" yaml:"kind"`
	Src    string `json:"src" yaml:"src"`
	Stream bool   `json:"stream,omitempty" yaml:"stream,omitempty"`
}

// ParseManifest reads a manifest document and validates its entries into
// loader descriptors.
func ParseManifest(data []byte) (*Manifest, []Resource, error) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil, fmt.Errorf("%w: empty manifest", ErrParse)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, nil, fmt.Errorf("%w: manifest is neither JSON nor YAML: %v", ErrParse, err)
		}
	}
	if m.Version > 1 {
		return nil, nil, fmt.Errorf("%w: manifest version %d", ErrUnsupportedFormat, m.Version)
	}

	seen := make(map[string]bool, len(m.Resources))
	resources := make([]Resource, 0, len(m.Resources))
	for i, e := range m.Resources {
		if e.Name == "" {
			return nil, nil, fmt.Errorf("%w: manifest resource %d has no name", ErrParse, i)
		}
		if seen[e.Name] {
			return nil, nil, fmt.Errorf("%w: manifest resource %q listed twice", ErrParse, e.Name)
		}
		seen[e.Name] = true
		kind, err := ParseKind(e.Kind)
		if err != nil {
			return nil, nil, fmt.Errorf("manifest resource %q: %w", e.Name, err)
		}
		resources = append(resources, Resource{Name: e.Name, Kind: kind, Src: e.Src, Stream: e.Stream})
	}
	return &m, resources, nil
}

// PreloadManifest parses a manifest, applies its base paths, and preloads
// its resources as one batch.
func (l *Loader) PreloadManifest(data []byte, onComplete func()) error {
	m, resources, err := ParseManifest(data)
	if err != nil {
		return err
	}
	for kind, base := range m.BasePaths {
		if err := l.SetBasePath(kind, base); err != nil {
			return err
		}
	}
	return l.Preload(resources, onComplete)
}
