package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bdskit/ontomake/internal/ctxlog"
	"github.com/bdskit/ontomake/internal/toolrun"
	"github.com/bdskit/ontomake/internal/watch"
)

// Watch builds the requested targets, then keeps rebuilding them whenever
// a watched source file changes. Changing a buildfile reloads the rule
// table first. Watch blocks until ctx is canceled.
func (a *App) Watch(ctx context.Context, targets []string) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Watch method started.")

	if a.cfg.HealthcheckPort > 0 {
		a.startStatusServer()
	}

	if err := a.buildOnce(ctx, targets); err != nil {
		a.logger.Error("Initial build failed, watching for fixes.", "error", err)
	}

	dirs := a.watchDirs()
	w, err := watch.New(watch.Config{
		Dirs:     dirs,
		Debounce: a.cfg.Debounce,
		Ignore:   a.buildOutput,
	})
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer w.Close()

	a.logger.Info("👀 Watching for changes...", "dirs", dirs, "debounce", a.cfg.Debounce.String())
	return w.Run(ctx, func(ctx context.Context, changed []string) {
		a.metrics.ObserveWatchTrigger()
		a.logger.Info("Change detected, rebuilding.", "files", changed)

		if a.buildfileChanged(changed) {
			if err := a.reload(ctx); err != nil {
				a.logger.Error("Buildfile reload failed, keeping previous rules.", "error", err)
			}
		}
		if err := a.buildOnce(ctx, targets); err != nil {
			a.logger.Error("Rebuild failed.", "error", err)
		}
	})
}

// watchDirs is the project directory plus any configured path that points
// outside it, like a shared pattern directory one level up.
func (a *App) watchDirs() []string {
	dirs := []string{a.model.Dir}
	seen := map[string]bool{a.model.Dir: true}

	for _, p := range a.model.Project.Paths {
		full := filepath.Join(a.model.Dir, filepath.FromSlash(p))
		rel, err := filepath.Rel(a.model.Dir, full)
		if err != nil || !strings.HasPrefix(rel, "..") {
			continue
		}
		if seen[full] {
			continue
		}
		if info, err := os.Stat(full); err == nil && info.IsDir() {
			dirs = append(dirs, full)
			seen[full] = true
		}
	}
	sort.Strings(dirs[1:])
	return dirs
}

// buildOutput reports whether path is something the build itself writes,
// which must not retrigger it.
func (a *App) buildOutput(path string) bool {
	if strings.HasSuffix(path, toolrun.TmpSuffix) {
		return true
	}
	rel, err := filepath.Rel(a.model.Dir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	_, _, derived := a.table.Lookup(filepath.ToSlash(rel))
	return derived
}

func (a *App) buildfileChanged(changed []string) bool {
	for _, path := range changed {
		if filepath.Ext(path) == ".hcl" {
			return true
		}
	}
	return false
}
