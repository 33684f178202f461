package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bdskit/ontomake/internal/pattern"
	"github.com/hashicorp/hcl/v2"
)

// Model is the unified, format-agnostic representation of a buildfile: the
// project settings, the external tools, and the dependency rule table.
type Model struct {
	// Path is the buildfile this model was loaded from.
	Path string
	// Dir is the directory all relative targets and prerequisites resolve
	// against. Commands run with this as their working directory.
	Dir string

	Project *Project
	Tools   map[string]*Tool
	// Rules preserves declaration order; lookup ties break in favor of the
	// earlier rule.
	Rules []*Rule
}

// Project is the format-agnostic representation of the `project` block.
type Project struct {
	Name    string
	BaseIRI string
	// Shell runs every rule command as `shell -c <command>`.
	Shell string
	// Jobs are the dataset identifiers the wildcard rules fan out over.
	Jobs []string
	// Default is built when no targets are named on the command line.
	Default []string
	// Flags gate groups of rules via their `enabled` expressions.
	Flags map[string]bool
	// Paths are the directory conventions referenced from rule templates.
	Paths map[string]string
	// Patterns are the DOSDP pattern names discovered at load time, sorted.
	Patterns []string
}

// Tool is the format-agnostic representation of a `tool` block: an external
// command-line program treated as a black box.
type Tool struct {
	Name    string
	Command string
	// Env is injected into the environment of every rule command that
	// references this tool.
	Env map[string]string
}

// Rule is the format-agnostic representation of a `rule` block. Target and
// Deps are resolved to plain strings at load time; Command stays a deferred
// expression evaluated once per built target, with the target, stem and
// prerequisite bindings in scope.
type Rule struct {
	Name string
	Doc  string
	// Target is a literal path or a pattern with one '%' wildcard.
	Target string
	// Deps may contain '%' (substituted with the target's stem) and
	// filesystem globs (expanded at resolution time).
	Deps    []string
	Command hcl.Expression
	Enabled bool
	Atomic  bool
	Stdout  bool
	// Tools are the names of the tool blocks the command references,
	// recovered from the expression at load time.
	Tools []string
}

// Binding carries the per-target variables a rule command is evaluated with.
type Binding struct {
	Target string
	Stem   string
	Deps   []string
}

// Validate checks the model for structural errors: duplicate rule names or
// target patterns, malformed wildcards, and prerequisites that need a stem
// the target cannot supply.
func (m *Model) Validate() error {
	if m.Project == nil {
		return fmt.Errorf("buildfile %s has no project block", m.Path)
	}
	if m.Project.Shell == "" {
		return fmt.Errorf("project %q: shell must not be empty", m.Project.Name)
	}

	var errs []string
	names := make(map[string]string)
	targets := make(map[string]string)
	for _, r := range m.Rules {
		if prev, ok := names[r.Name]; ok {
			errs = append(errs, fmt.Sprintf("rule %q declared twice (previous target %s)", r.Name, prev))
		}
		names[r.Name] = r.Target

		if r.Target == "" {
			errs = append(errs, fmt.Sprintf("rule %q has an empty target", r.Name))
			continue
		}
		if err := pattern.Validate(r.Target); err != nil {
			errs = append(errs, fmt.Sprintf("rule %q: %v", r.Name, err))
		}
		canon := pattern.Canon(r.Target)
		if prev, ok := targets[canon]; ok {
			errs = append(errs, fmt.Sprintf("rules %q and %q declare the same target %s", prev, r.Name, canon))
		}
		targets[canon] = r.Name

		for _, d := range r.Deps {
			if err := pattern.Validate(d); err != nil {
				errs = append(errs, fmt.Sprintf("rule %q: prerequisite %q: %v", r.Name, d, err))
				continue
			}
			if pattern.HasWildcard(d) && !pattern.HasWildcard(r.Target) {
				errs = append(errs, fmt.Sprintf("rule %q: prerequisite %q uses '%%' but target %q has no wildcard to supply a stem", r.Name, d, r.Target))
			}
		}
		for _, tool := range r.Tools {
			if _, ok := m.Tools[tool]; !ok {
				errs = append(errs, fmt.Sprintf("rule %q references undefined tool %q", r.Name, tool))
			}
		}
	}
	for i, job := range m.Project.Jobs {
		if job == "" {
			errs = append(errs, fmt.Sprintf("project job %d is an empty string", i+1))
		}
	}
	for _, def := range m.Project.Default {
		if pattern.HasWildcard(def) {
			errs = append(errs, fmt.Sprintf("project default target %q must not contain '%%'", def))
		}
	}
	if len(errs) > 0 {
		sort.Strings(errs)
		return fmt.Errorf("invalid buildfile %s:\n  %s", m.Path, strings.Join(errs, "\n  "))
	}
	return nil
}

// RuleByName returns the named rule, or nil.
func (m *Model) RuleByName(name string) *Rule {
	for _, r := range m.Rules {
		if r.Name == name {
			return r
		}
	}
	return nil
}
