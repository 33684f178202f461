package app

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bdskit/ontomake/internal/toolrun"
)

// Clean removes every file under the project directory that a rule could
// have produced, plus any temporary outputs left behind by aborted runs.
// Files no rule target matches are never touched. With DryRun set it only
// reports what it would remove.
func (a *App) Clean(ctx context.Context) error {
	a.logger.Debug("App.Clean method started.")

	removed := 0
	err := filepath.WalkDir(a.model.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if base := filepath.Base(path); path != a.model.Dir && strings.HasPrefix(base, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(a.model.Dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		derived := strings.HasSuffix(rel, toolrun.TmpSuffix)
		if !derived {
			_, _, derived = a.table.Lookup(rel)
		}
		if !derived {
			return nil
		}

		if a.cfg.DryRun {
			a.logger.Info("Would remove derived file.", "path", rel)
			removed++
			return nil
		}
		if err := os.Remove(path); err != nil {
			return err
		}
		a.logger.Info("🧹 Removed derived file.", "path", rel)
		removed++
		return nil
	})
	if err != nil {
		return fmt.Errorf("clean failed: %w", err)
	}

	a.logger.Info("Clean finished.", "removed", removed)
	return nil
}
