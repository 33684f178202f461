// Package watch rebuilds on file changes. It wraps fsnotify with recursive
// directory watches and debouncing, so a burst of writes from an editor or
// a tool lands as one change set.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bdskit/ontomake/internal/ctxlog"
	"github.com/fsnotify/fsnotify"
)

// Config configures a Watcher.
type Config struct {
	// Dirs are the roots to watch, each recursively.
	Dirs []string

	// Debounce is how long to wait for more changes before reporting.
	Debounce time.Duration

	// Ignore filters out paths whose changes should not trigger a report,
	// such as files the build itself writes.
	Ignore func(path string) bool
}

// Watcher watches directory trees and reports debounced change sets.
type Watcher struct {
	cfg Config
	fs  *fsnotify.Watcher

	pendingMu sync.Mutex
	pending   map[string]struct{}
}

// New creates a Watcher over cfg.Dirs. Hidden directories are skipped.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 250 * time.Millisecond
	}

	w := &Watcher{
		cfg:     cfg,
		fs:      fsw,
		pending: make(map[string]struct{}),
	}
	for _, dir := range cfg.Dirs {
		if err := w.addRecursive(dir); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

// Run blocks, invoking onChange with each debounced set of changed paths,
// until ctx is canceled. Cancellation is the normal way to stop watching
// and returns nil.
func (w *Watcher) Run(ctx context.Context, onChange func(context.Context, []string)) error {
	logger := ctxlog.FromContext(ctx)

	ticker := time.NewTicker(w.cfg.Debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			logger.Error("Watcher error.", "error", err)

		case <-ticker.C:
			if changed := w.flush(); len(changed) > 0 {
				onChange(ctx, changed)
			}
		}
	}
}

// handleEvent accumulates one fsnotify event into the pending set. Newly
// created directories get watches of their own.
func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	logger := ctxlog.FromContext(ctx)
	path := event.Name

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := w.addRecursive(path); err != nil {
				logger.Warn("Failed to watch new directory.", "path", path, "error", err)
			}
			return
		}
	}
	// Chmod-only events churn without changing content.
	if event.Op == fsnotify.Chmod {
		return
	}
	if w.cfg.Ignore != nil && w.cfg.Ignore(path) {
		return
	}

	w.pendingMu.Lock()
	w.pending[path] = struct{}{}
	w.pendingMu.Unlock()

	logger.Debug("File change detected.", "path", path, "op", event.Op.String())
}

// flush drains the pending set, returning its paths sorted.
func (w *Watcher) flush() []string {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	if len(w.pending) == 0 {
		return nil
	}
	changed := make([]string, 0, len(w.pending))
	for path := range w.pending {
		changed = append(changed, path)
	}
	w.pending = make(map[string]struct{})
	sort.Strings(changed)
	return changed
}

// addRecursive adds watches for root and every directory below it,
// skipping hidden ones.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if base := filepath.Base(path); path != root && strings.HasPrefix(base, ".") {
			return filepath.SkipDir
		}
		return w.fs.Add(path)
	})
}
