package dag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bdskit/ontomake/internal/config"
	"github.com/bdskit/ontomake/internal/ctxlog"
)

// runNode settles one node: source files are stat'ed, disabled rules no-op,
// current targets are left alone, and stale targets are rebuilt through the
// runner. The node's terminal state is set on success; errors leave that to
// the worker.
func (e *Executor) runNode(ctx context.Context, node *Node) error {
	logger := ctxlog.FromContext(ctx).With("target", node.Path)
	abs := filepath.Join(e.Runner.Dir, filepath.FromSlash(node.Path))

	if node.Rule == nil {
		info, err := os.Stat(abs)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("%w: no rule builds %s and it does not exist", ErrUnresolvablePrereq, node.Path)
			}
			return fmt.Errorf("stat %s: %w", node.Path, err)
		}
		node.setModTime(info.ModTime())
		node.setState(Fresh)
		logger.Debug("Source file present.")
		return nil
	}

	if !node.Rule.Enabled {
		// A disabled rule leaves whatever a previous run produced. If the
		// file exists its timestamp still participates in staleness
		// decisions downstream.
		if info, err := os.Stat(abs); err == nil {
			node.setModTime(info.ModTime())
		}
		node.setState(Disabled)
		logger.Info("⏭️ Rule disabled, leaving target as-is.", "rule", node.Rule.Name)
		return nil
	}

	stale, reason := e.staleness(node, abs)
	if !stale {
		info, err := os.Stat(abs)
		if err != nil {
			return fmt.Errorf("stat %s: %w", node.Path, err)
		}
		node.setModTime(info.ModTime())
		node.setState(Fresh)
		logger.Debug("Target up to date.")
		return nil
	}

	logger.Info("🔨 Building target.", "rule", node.Rule.Name, "reason", reason)
	started := time.Now()
	err := e.Runner.Build(ctx, node.Rule, config.Binding{
		Target: node.Path,
		Stem:   node.Stem,
		Deps:   node.DepPaths,
	})
	if err != nil {
		return err
	}

	if e.Runner.DryRun {
		// Pretend the target was remade so everything downstream prints
		// its command too.
		node.setModTime(time.Now())
		node.setState(Built)
		return nil
	}

	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("rule %q did not produce %s", node.Rule.Name, node.Path)
	}
	node.setModTime(info.ModTime())
	node.setState(Built)
	logger.Info("✅ Built target.", "rule", node.Rule.Name, "duration", time.Since(started).Round(time.Millisecond))
	return nil
}

// staleness decides whether a target must be remade, and why. A target is
// stale when forced, absent, older than a prerequisite, or when any
// prerequisite was itself remade during this run.
func (e *Executor) staleness(node *Node, abs string) (bool, string) {
	if e.AlwaysBuild {
		return true, "forced"
	}
	info, err := os.Stat(abs)
	if err != nil {
		return true, "target missing"
	}
	mtime := info.ModTime()
	for _, dep := range node.Deps {
		if dep.State() == Built {
			return true, fmt.Sprintf("prerequisite %s was rebuilt", dep.Path)
		}
		if dep.ModTime().After(mtime) {
			return true, fmt.Sprintf("older than prerequisite %s", dep.Path)
		}
	}
	return false, ""
}
