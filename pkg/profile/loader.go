package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/caseguard/caseguard/pkg/dimension"
	"github.com/caseguard/caseguard/pkg/risk"
	"github.com/caseguard/caseguard/pkg/routing"
)

// presetFile is the YAML form of a custom preset pack:
//
//	name: studio
//	dimensions:
//	  - key: CHAIN_OF_TITLE
//	    label: Chain of Title
//	routes:
//	  - dimension: CHAIN_OF_TITLE
//	    level: HIGH
//	    reviewer: Head of Business Affairs
type presetFile struct {
	Name       string `yaml:"name"`
	Dimensions []struct {
		Key   string `yaml:"key"`
		Label string `yaml:"label"`
	} `yaml:"dimensions"`
	Routes []struct {
		Dimension string `yaml:"dimension"`
		Level     string `yaml:"level"`
		Reviewer  string `yaml:"reviewer"`
	} `yaml:"routes"`
}

// LoadPreset parses a preset pack from a YAML file.
func LoadPreset(path string) (Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Preset{}, fmt.Errorf("load preset %q: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name = strings.TrimPrefix(name, "preset_")
	return ParsePreset(data, name)
}

// ParsePreset parses YAML preset data. fallbackName is used when the
// document carries no name.
func ParsePreset(data []byte, fallbackName string) (Preset, error) {
	var file presetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Preset{}, fmt.Errorf("parse preset: %w", err)
	}
	if file.Name == "" {
		file.Name = fallbackName
	}

	preset := Preset{Name: strings.ToLower(file.Name)}
	dims := make(map[string]dimension.Dimension, len(file.Dimensions))
	for _, d := range file.Dimensions {
		if d.Key == "" {
			return Preset{}, fmt.Errorf("parse preset %q: dimension with empty key", file.Name)
		}
		dim := dimension.Dimension{Key: d.Key, Label: d.Label}
		dims[d.Key] = dim
		preset.Dimensions = append(preset.Dimensions, dim)
	}
	for i, r := range file.Routes {
		dim, ok := dims[r.Dimension]
		if !ok {
			return Preset{}, fmt.Errorf("parse preset %q: route %d references undeclared dimension %q",
				file.Name, i, r.Dimension)
		}
		level, err := risk.ParseLevel(r.Level)
		if err != nil {
			return Preset{}, fmt.Errorf("parse preset %q: route %d: %w", file.Name, i, err)
		}
		preset.Routing = append(preset.Routing, routing.Entry{
			Dimension: dim,
			Level:     level,
			Reviewer:  r.Reviewer,
		})
	}
	return preset, nil
}

// LoadAll loads every preset_*.yaml file in a directory into the registry.
func (r *Registry) LoadAll(dir string) error {
	matches, err := filepath.Glob(filepath.Join(dir, "preset_*.yaml"))
	if err != nil {
		return err
	}
	for _, path := range matches {
		preset, err := LoadPreset(path)
		if err != nil {
			return err
		}
		r.Register(preset)
	}
	return nil
}
