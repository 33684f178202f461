package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/bdskit/ontomake/internal/ctxlog"
	"github.com/bdskit/ontomake/internal/dag"
)

// List writes a table of the declared rules in declaration order, then the
// tools, jobs, and discovered patterns the rules draw on.
func (a *App) List(ctx context.Context) error {
	tw := tabwriter.NewWriter(a.outW, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTARGET\tENABLED\tDOC")
	for _, r := range a.model.Rules {
		enabled := "yes"
		if !r.Enabled {
			enabled = "no"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Name, r.Target, enabled, r.Doc)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	names := make([]string, 0, len(a.model.Tools))
	for name := range a.model.Tools {
		names = append(names, name)
	}
	sort.Strings(names)
	tools := make([]string, len(names))
	for i, n := range names {
		tools[i] = fmt.Sprintf("%s (%s)", n, a.model.Tools[n].Command)
	}

	fmt.Fprintln(a.outW)
	if len(tools) > 0 {
		fmt.Fprintf(a.outW, "tools:    %s\n", strings.Join(tools, ", "))
	}
	if len(a.model.Project.Jobs) > 0 {
		fmt.Fprintf(a.outW, "jobs:     %s\n", strings.Join(a.model.Project.Jobs, ", "))
	}
	if len(a.model.Project.Patterns) > 0 {
		fmt.Fprintf(a.outW, "patterns: %s\n", strings.Join(a.model.Project.Patterns, ", "))
	}
	return nil
}

// Graph renders the dependency tree of the requested targets without
// running anything, marking the targets a build would remake. Resolution
// is non-strict so missing sources render with a marker instead of failing.
func (a *App) Graph(ctx context.Context, targets []string) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	targets, err := a.resolveTargets(targets)
	if err != nil {
		return err
	}
	builder := &dag.Builder{Table: a.table, Dir: a.model.Dir, Strict: false}
	graph, err := builder.Build(ctx, targets)
	if err != nil {
		return fmt.Errorf("failed to build dependency graph: %w", err)
	}

	stale := make(map[*dag.Node]bool)
	for _, root := range graph.Requested {
		a.markStale(root, stale)
	}
	seen := make(map[string]bool)
	for _, root := range graph.Requested {
		a.renderNode(root, "", "", seen, stale)
	}
	return nil
}

// markStale mirrors the executor's staleness rule without running anything:
// an enabled target is stale when it is missing, older than a prerequisite,
// or downstream of a stale prerequisite.
func (a *App) markStale(n *dag.Node, memo map[*dag.Node]bool) bool {
	if v, ok := memo[n]; ok {
		return v
	}
	memo[n] = false

	depStale := false
	var newestDep time.Time
	for _, dep := range n.Deps {
		if a.markStale(dep, memo) {
			depStale = true
		}
		if info, err := os.Stat(a.absPath(dep.Path)); err == nil && info.ModTime().After(newestDep) {
			newestDep = info.ModTime()
		}
	}
	if n.Rule == nil || !n.Rule.Enabled {
		return false
	}

	stale := depStale || a.cfg.AlwaysBuild
	if !stale {
		if info, err := os.Stat(a.absPath(n.Path)); err != nil || newestDep.After(info.ModTime()) {
			stale = true
		}
	}
	memo[n] = stale
	return stale
}

func (a *App) renderNode(n *dag.Node, prefix, childPrefix string, seen map[string]bool, stale map[*dag.Node]bool) {
	repeated := seen[n.Path]
	fmt.Fprintf(a.outW, "%s%s%s\n", prefix, n.Path, a.annotate(n, repeated, stale[n]))
	if repeated {
		return
	}
	seen[n.Path] = true

	for i, dep := range n.Deps {
		if i == len(n.Deps)-1 {
			a.renderNode(dep, childPrefix+"└── ", childPrefix+"    ", seen, stale)
		} else {
			a.renderNode(dep, childPrefix+"├── ", childPrefix+"│   ", seen, stale)
		}
	}
}

// annotate labels a tree entry with its rule and staleness, or with its
// standing as a source file. Repeated subtrees are elided after their first
// rendering.
func (a *App) annotate(n *dag.Node, repeated, stale bool) string {
	var note string
	switch {
	case n.Rule == nil:
		if _, err := os.Stat(a.absPath(n.Path)); err != nil {
			note = " (source, missing)"
		} else {
			note = " (source)"
		}
	case !n.Rule.Enabled:
		note = fmt.Sprintf(" [%s, disabled]", n.Rule.Name)
	case stale:
		note = fmt.Sprintf(" [%s, stale]", n.Rule.Name)
	default:
		note = fmt.Sprintf(" [%s]", n.Rule.Name)
	}
	if repeated && len(n.Deps) > 0 {
		note += " (repeated)"
	}
	return note
}

func (a *App) absPath(rel string) string {
	return filepath.Join(a.model.Dir, filepath.FromSlash(rel))
}
