// Package dataset loads the static restaurant and place data.
package dataset

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/tablefinder/internal/domain/restaurant"
	"github.com/kailas-cloud/tablefinder/internal/repository/place"
)

//go:embed data/taipei.yaml
var defaultData []byte

// File is the on-disk dataset layout.
type File struct {
	Restaurants []restaurant.Restaurant `yaml:"restaurants"`
	Places      []place.Place           `yaml:"places"`
}

// Load reads a dataset from path. An empty path loads the embedded sample data.
func Load(path string) (File, error) {
	if path == "" {
		return Parse(defaultData)
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return File{}, fmt.Errorf("failed to read dataset %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return File{}, fmt.Errorf("dataset %s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates dataset YAML.
func Parse(data []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("failed to parse dataset: %w", err)
	}
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

// Validate checks every restaurant and rejects duplicate ids.
func (f File) Validate() error {
	if len(f.Restaurants) == 0 {
		return fmt.Errorf("dataset has no restaurants")
	}
	seen := make(map[string]struct{}, len(f.Restaurants))
	for i, r := range f.Restaurants {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("restaurants[%d]: %w", i, err)
		}
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("restaurants[%d]: duplicate id %q", i, r.ID)
		}
		seen[r.ID] = struct{}{}
	}
	return nil
}
