package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileFormat is the on-disk catalog layout:
//
//	languages:
//	  en: English
//	  hi: Hindi
//	directions:
//	  - source: hi
//	    target: en
//	    model: Helsinki-NLP/opus-mt-hi-en
type fileFormat struct {
	Languages  map[string]string `yaml:"languages"`
	Directions []fileDirection   `yaml:"directions"`
}

type fileDirection struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
	Model  string `yaml:"model"`
}

// LoadFile reads a YAML catalog from path.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	languages := make(map[Code]string, len(f.Languages))
	for code, name := range f.Languages {
		languages[Code(code)] = name
	}

	directions := make(map[Direction]string, len(f.Directions))
	for i, d := range f.Directions {
		if d.Model == "" {
			return nil, fmt.Errorf("parse catalog: direction %d (%s->%s) has no model", i, d.Source, d.Target)
		}
		directions[Direction{Source: Code(d.Source), Target: Code(d.Target)}] = d.Model
	}

	return New(languages, directions)
}
