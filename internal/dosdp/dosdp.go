// Package dosdp discovers DOSDP design pattern files. Only the YAML header
// is read; the pattern body belongs to dosdp-tools and is never interpreted
// here.
package dosdp

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Pattern is the header of one DOSDP design pattern file.
type Pattern struct {
	Name string `yaml:"pattern_name"`
	IRI  string `yaml:"pattern_iri"`
	// File is the path the header was read from, relative to nothing in
	// particular; callers pass whatever base they globbed with.
	File string `yaml:"-"`
}

// Discover reads the headers of every .yaml file directly under dir, sorted
// by file name. A pattern whose declared name differs from its file stem is
// an error, since rule wildcards bind stems to pattern names. A missing
// directory yields no patterns.
func Discover(dir string) ([]Pattern, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading pattern directory %s: %w", dir, err)
	}

	var patterns []Pattern
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if ext := filepath.Ext(name); ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, name)
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading pattern file %s: %w", path, err)
		}
		var p Pattern
		if err := yaml.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("parsing pattern file %s: %w", path, err)
		}
		if p.Name == "" {
			return nil, fmt.Errorf("pattern file %s has no pattern_name", path)
		}
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		if p.Name != stem {
			return nil, fmt.Errorf("pattern file %s declares pattern_name %q, want %q", path, p.Name, stem)
		}
		p.File = path
		patterns = append(patterns, p)
	}
	sort.Slice(patterns, func(i, j int) bool { return patterns[i].Name < patterns[j].Name })
	return patterns, nil
}

// Names returns the pattern names in order.
func Names(patterns []Pattern) []string {
	names := make([]string, len(patterns))
	for i, p := range patterns {
		names[i] = p.Name
	}
	return names
}
