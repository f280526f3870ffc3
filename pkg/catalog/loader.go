package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Loader discovers and parses tool definition files from catalog
// directories. Loading is a pure function of the directory contents:
// a bad file or a missing directory produces a warning, never an error.
type Loader struct {
	extensions map[string]bool
}

// NewLoader creates a loader recognizing .yaml and .yml definitions.
func NewLoader() *Loader {
	return &Loader{
		extensions: map[string]bool{
			".yaml": true,
			".yml":  true,
		},
	}
}

// Load scans the given directories in order and returns the merged
// specs keyed by tool name. Directory order encodes override priority:
// a spec from a later directory replaces an earlier one with the same
// name, and the override is recorded as a warning.
func (l *Loader) Load(dirs []string) (map[string]ToolSpec, []string) {
	specs := make(map[string]ToolSpec)
	var warnings []string

	for _, dir := range dirs {
		if _, err := os.Stat(dir); err != nil {
			warnings = append(warnings, fmt.Sprintf("catalog directory %s is not accessible: %v", dir, err))
			continue
		}

		files := l.discover(dir, &warnings)
		for _, path := range files {
			spec, err := l.parseFile(path)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("skipping %s: %v", path, err))
				continue
			}

			if prev, ok := specs[spec.Name]; ok {
				warnings = append(warnings, fmt.Sprintf(
					"tool %s from %s overrides definition from %s", spec.Name, path, prev.Origin))
			}
			specs[spec.Name] = spec
		}
	}

	log.Debug().
		Int("tools", len(specs)).
		Int("warnings", len(warnings)).
		Strs("dirs", dirs).
		Msg("Catalog load completed")

	return specs, warnings
}

// discover walks a directory tree collecting definition files in a
// stable order.
func (l *Loader) discover(dir string, warnings *[]string) []string {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			*warnings = append(*warnings, fmt.Sprintf("cannot read %s: %v", path, err))
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if l.extensions[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		*warnings = append(*warnings, fmt.Sprintf("cannot scan %s: %v", dir, err))
	}

	return files
}

func (l *Loader) parseFile(path string) (ToolSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ToolSpec{}, fmt.Errorf("read failed: %w", err)
	}

	var spec ToolSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return ToolSpec{}, fmt.Errorf("invalid YAML: %w", err)
	}

	spec.Origin = path
	spec.Normalize()

	if err := spec.Validate(); err != nil {
		return ToolSpec{}, err
	}

	return spec, nil
}
