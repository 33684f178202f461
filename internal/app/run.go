package app

import (
	"context"
	"fmt"
	"time"

	"github.com/bdskit/ontomake/internal/ctxlog"
	"github.com/bdskit/ontomake/internal/dag"
	"github.com/bdskit/ontomake/internal/toolrun"
	"github.com/google/uuid"
)

// Build resolves the requested targets against the rule table and remakes
// every stale one, bottom-up. With no targets it builds the project's
// default targets.
func (a *App) Build(ctx context.Context, targets []string) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Build method started.")

	if a.cfg.HealthcheckPort > 0 {
		a.startStatusServer()
	}

	err := a.buildOnce(ctx, targets)
	a.logger.Debug("App.Build method finished.")
	return err
}

// buildOnce runs a single resolve-schedule-execute cycle. Watch mode calls
// it once per debounced change set; the run id tells interleaved runs apart
// in the log stream.
func (a *App) buildOnce(ctx context.Context, targets []string) error {
	start := time.Now()
	run := uuid.NewString()

	targets, err := a.resolveTargets(targets)
	if err != nil {
		return err
	}

	a.logger.Debug("Building dependency graph from the rule table...")
	builder := &dag.Builder{Table: a.table, Dir: a.model.Dir, Strict: true}
	graph, err := builder.Build(ctx, targets)
	if err != nil {
		return fmt.Errorf("failed to build dependency graph: %w", err)
	}
	a.logger.Debug("Dependency graph built.", "node_count", len(graph.Nodes))

	runner := toolrun.New(a.model, a.eval)
	runner.DryRun = a.cfg.DryRun
	runner.Stdout = a.outW

	a.logger.Info("🚀 Starting build run...", "run", run, "targets", targets, "workers", a.cfg.Workers)
	exec := dag.New(graph, runner, a.cfg.Workers)
	exec.AlwaysBuild = a.cfg.AlwaysBuild
	runErr := exec.Run(ctx)

	summary := graph.Census()
	a.metrics.ObserveRun(summary, time.Since(start), runErr)
	a.logger.Info("🏁 Build finished.",
		"run", run,
		"built", summary.Built,
		"fresh", summary.Fresh,
		"disabled", summary.Disabled,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"duration", time.Since(start).Round(time.Millisecond).String(),
	)

	if runErr != nil {
		return fmt.Errorf("execution failed: %w", runErr)
	}
	return nil
}
