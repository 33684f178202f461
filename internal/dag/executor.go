package dag

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/bdskit/ontomake/internal/ctxlog"
	"github.com/bdskit/ontomake/internal/toolrun"
)

// Executor walks a resolved graph with a pool of workers, remaking stale
// targets bottom-up. The first real failure cancels the run; everything
// downstream of it is skipped rather than attempted.
type Executor struct {
	Graph  *Graph
	Runner *toolrun.Runner
	// AlwaysBuild remakes every rule target regardless of timestamps.
	AlwaysBuild bool

	numWorkers int
	wg         sync.WaitGroup
}

// New creates an executor over graph with the given worker count.
func New(graph *Graph, runner *toolrun.Runner, workers int) *Executor {
	if workers < 1 {
		workers = 1
	}
	return &Executor{Graph: graph, Runner: runner, numWorkers: workers}
}

// Run executes the graph and returns the root-cause error of the first
// failure, or the context error when the run was aborted.
func (e *Executor) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	readyChan := make(chan *Node, len(e.Graph.Nodes))
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	rootCount := 0
	for _, node := range e.Graph.Nodes {
		if node.depCount.Load() == 0 {
			readyChan <- node
			rootCount++
		}
	}
	logger.Debug("Seeded ready queue with leaf nodes.", "count", rootCount)

	e.wg.Add(len(e.Graph.Nodes))
	logger.Debug("Starting worker pool.", "workers", e.numWorkers)
	for i := 0; i < e.numWorkers; i++ {
		go e.worker(runCtx, readyChan, cancel, i)
	}

	e.wg.Wait()
	close(readyChan)

	var failedPaths []string
	for _, node := range e.Graph.Nodes {
		if node.State() == Failed {
			failedPaths = append(failedPaths, node.Path)
		}
	}
	if len(failedPaths) > 0 {
		sort.Strings(failedPaths)
		var rootCause error
		for _, p := range failedPaths {
			if err := e.Graph.Nodes[p].Error; err != nil && !errors.Is(err, context.Canceled) {
				rootCause = err
				break
			}
		}
		if rootCause == nil {
			rootCause = e.Graph.Nodes[failedPaths[0]].Error
		}
		return fmt.Errorf("build failed for %s: %w", strings.Join(failedPaths, ", "), rootCause)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// worker is the processing loop for a single concurrent worker.
func (e *Executor) worker(ctx context.Context, readyChan chan *Node, cancel context.CancelFunc, workerID int) {
	logger := ctxlog.FromContext(ctx)
	for node := range readyChan {
		workerLogger := logger.With("workerID", workerID, "target", node.Path)

		if ctx.Err() != nil {
			node.skipOnce.Do(func() {
				workerLogger.Warn("Run aborted, skipping target.")
				node.Error = ctx.Err()
				node.setState(Skipped)
				e.wg.Done()
				e.skipDependents(ctx, node)
			})
			continue
		}

		node.setState(Running)
		err := e.runNode(ctx, node)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				workerLogger.Warn("Target aborted.", "error", err)
				node.Error = err
				node.setState(Skipped)
			} else {
				workerLogger.Error("Target failed.", "error", err)
				node.Error = err
				node.setState(Failed)
				cancel()
			}
			e.skipDependents(ctx, node)
			e.wg.Done()
			continue
		}

		for _, dependent := range node.Dependents {
			if dependent.depCount.Add(-1) == 0 {
				readyChan <- dependent
			}
		}
		e.wg.Done()
	}
}

// skipDependents marks everything downstream of node as skipped. Skipped
// nodes never reach the ready queue because their dependency counts never
// hit zero, so each must be retired here.
func (e *Executor) skipDependents(ctx context.Context, node *Node) {
	logger := ctxlog.FromContext(ctx)
	for _, dependent := range node.Dependents {
		dependent.skipOnce.Do(func() {
			logger.Warn("Skipping dependent target.", "target", dependent.Path, "prerequisite", node.Path)
			dependent.Error = fmt.Errorf("skipped: prerequisite %s did not complete", node.Path)
			dependent.setState(Skipped)
			e.wg.Done()
			e.skipDependents(ctx, dependent)
		})
	}
}
