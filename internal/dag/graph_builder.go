package dag

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bdskit/ontomake/internal/ctxlog"
	"github.com/bdskit/ontomake/internal/pattern"
	"github.com/bdskit/ontomake/internal/ruleset"
)

var (
	// ErrMissingTarget is returned when a requested target has no rule and
	// does not exist on disk.
	ErrMissingTarget = errors.New("missing target")
	// ErrUnresolvablePrereq is returned when a prerequisite has no rule and
	// does not exist on disk.
	ErrUnresolvablePrereq = errors.New("unresolvable prerequisite")
	// ErrCycle is returned when the rule table makes a target depend on
	// itself.
	ErrCycle = errors.New("dependency cycle")
)

// Builder resolves requested targets into a Graph by walking the rule table.
type Builder struct {
	Table *ruleset.Table
	// Dir is the project directory source files are checked against.
	Dir string
	// Strict makes resolution fail when a rule-less path is absent from
	// disk. The build command resolves strictly; inspection commands like
	// graph do not, so they can render what would be missing.
	Strict bool
}

// Build resolves targets and every transitive prerequisite into a graph.
// Resolution is memoized per path: a prerequisite shared by several targets
// becomes one node with several dependents.
func (b *Builder) Build(ctx context.Context, targets []string) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	g := &Graph{Nodes: make(map[string]*Node)}
	visiting := make(map[string]bool)

	var visit func(path string, chain []string) (*Node, error)
	visit = func(path string, chain []string) (*Node, error) {
		canon := pattern.Canon(path)
		if visiting[canon] {
			return nil, cycleError(chain, canon)
		}
		if n, ok := g.Nodes[canon]; ok {
			return n, nil
		}

		bound, ok, err := b.Table.Bind(canon)
		if err != nil {
			return nil, err
		}

		node := &Node{Path: canon}
		if ok {
			node.Rule = bound.Rule
			node.Stem = bound.Stem
			node.DepPaths = bound.Deps
		} else if b.Strict {
			if _, statErr := os.Stat(filepath.Join(b.Dir, filepath.FromSlash(canon))); statErr != nil {
				if len(chain) == 0 {
					return nil, fmt.Errorf("%w: no rule builds %s and it does not exist", ErrMissingTarget, canon)
				}
				return nil, fmt.Errorf("%w: no rule builds %s and it does not exist, required by %s",
					ErrUnresolvablePrereq, canon, chain[len(chain)-1])
			}
		}
		g.Nodes[canon] = node

		visiting[canon] = true
		for _, dep := range node.DepPaths {
			child, err := visit(dep, append(chain, canon))
			if err != nil {
				return nil, err
			}
			node.Deps = append(node.Deps, child)
			child.Dependents = append(child.Dependents, node)
			node.depCount.Add(1)
		}
		delete(visiting, canon)
		return node, nil
	}

	for _, target := range targets {
		node, err := visit(target, nil)
		if err != nil {
			return nil, err
		}
		g.Requested = append(g.Requested, node)
	}
	logger.Debug("Resolved build graph.", "targets", len(targets), "nodes", len(g.Nodes))
	return g, nil
}

// cycleError renders the cycle from its first occurrence on the chain.
func cycleError(chain []string, repeat string) error {
	start := 0
	for i, p := range chain {
		if p == repeat {
			start = i
			break
		}
	}
	loop := append(append([]string{}, chain[start:]...), repeat)
	return fmt.Errorf("%w: %s", ErrCycle, strings.Join(loop, " -> "))
}
