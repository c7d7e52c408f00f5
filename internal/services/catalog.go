package services

import (
	_ "embed"
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

// Entry maps one service key to the unit names it may be installed under.
type Entry struct {
	Key   string   `yaml:"key"`
	Units []string `yaml:"units"`
}

// Catalog is the fixed set of service-manager-backed keys this check
// knows about, plus the directories where unit files are expected.
type Catalog struct {
	UnitDirs []string `yaml:"unit_dirs"`
	Services []Entry  `yaml:"services"`
}

// DefaultCatalog returns the catalog embedded in the binary.
func DefaultCatalog() (*Catalog, error) {
	return parseCatalog(embeddedCatalog)
}

// LoadCatalog reads a catalog override from path, or the embedded default
// when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	return parseCatalog(data)
}

func parseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	if len(c.Services) == 0 {
		return nil, fmt.Errorf("catalog lists no services")
	}
	for _, e := range c.Services {
		if e.Key == "" || len(e.Units) == 0 {
			return nil, fmt.Errorf("catalog entry %+v needs a key and at least one unit", e)
		}
	}
	return &c, nil
}
