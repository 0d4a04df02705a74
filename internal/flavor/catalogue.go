package flavor

import (
	_ "embed"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed flavors.yaml
var embeddedCatalogue []byte

type catalogueFile struct {
	Flavors []Flavor `yaml:"flavors"`
}

// LoadCatalogue reads the flavor definitions from path, or from the embedded catalogue when path is empty.
func LoadCatalogue(path string) ([]Flavor, error) {
	data := embeddedCatalogue

	if trimmed := strings.TrimSpace(path); trimmed != "" {
		raw, err := os.ReadFile(trimmed)
		if err != nil {
			return nil, eris.Wrapf(err, "reading flavor catalogue: %s", trimmed)
		}
		data = raw
	}

	return ParseCatalogue(data)
}

// ParseCatalogue decodes a YAML flavor catalogue.
func ParseCatalogue(data []byte) ([]Flavor, error) {
	var file catalogueFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrap(err, "decoding flavor catalogue")
	}

	if len(file.Flavors) == 0 {
		return nil, eris.New("flavor catalogue defines no flavors")
	}

	return file.Flavors, nil
}
