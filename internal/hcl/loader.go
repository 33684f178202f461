package hcl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bdskit/ontomake/internal/config"
	"github.com/bdskit/ontomake/internal/ctxlog"
	"github.com/bdskit/ontomake/internal/schema"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct {
	// FlagOverrides are applied after the buildfile's own flags block is
	// evaluated, the way a release pipeline overrides them per invocation.
	// Overriding a flag the buildfile never declares is an error.
	FlagOverrides map[string]bool
}

// NewLoader creates a new HCL buildfile loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses the buildfile at path and translates it into the agnostic
// model. When path is a directory, every .hcl file directly inside it is
// merged in file-name order; exactly one of them must carry the project
// block.
func (l *Loader) Load(ctx context.Context, path string) (*config.Model, config.Evaluator, error) {
	logger := ctxlog.FromContext(ctx)

	files, dir, err := buildfilePaths(path)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("Discovered buildfiles.", "count", len(files), "dir", dir)

	parser := hclparse.NewParser()
	merged := &schema.Buildfile{}
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, nil, fmt.Errorf("failed to parse buildfile %s: %w", file, diags)
		}
		var root schema.Buildfile
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
			return nil, nil, fmt.Errorf("failed to decode buildfile %s: %w", file, diags)
		}
		if root.Project != nil {
			if merged.Project != nil {
				return nil, nil, fmt.Errorf("buildfile %s declares a second project block", file)
			}
			merged.Project = root.Project
		}
		merged.Tools = append(merged.Tools, root.Tools...)
		merged.Rules = append(merged.Rules, root.Rules...)
	}
	if merged.Project == nil {
		return nil, nil, fmt.Errorf("no project block found in %s", path)
	}

	model, eval, err := l.translate(ctx, path, dir, merged)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("Buildfile loading complete.", "tools", len(model.Tools), "rules", len(model.Rules))
	return model, eval, nil
}

// buildfilePaths resolves path to the list of .hcl files to parse and the
// directory relative targets resolve against.
func buildfilePaths(path string) ([]string, string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, "", fmt.Errorf("buildfile %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, filepath.Dir(path), nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, "", fmt.Errorf("reading buildfile directory %s: %w", path, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".hcl" {
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, "", fmt.Errorf("no .hcl files in %s", path)
	}
	sort.Strings(files)
	return files, path, nil
}

var _ config.Loader = (*Loader)(nil)
