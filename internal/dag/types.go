package dag

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/bdskit/ontomake/internal/config"
)

// State tracks a node through its lifecycle. Terminal states record how the
// target left the run: untouched because it was current (Fresh), remade
// (Built), left as-is by a disabled rule (Disabled), abandoned because a
// prerequisite did not complete (Skipped), or Failed.
type State int32

const (
	Pending State = iota
	Running
	Fresh
	Built
	Disabled
	Skipped
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Fresh:
		return "fresh"
	case Built:
		return "built"
	case Disabled:
		return "disabled"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Node is one file in the dependency graph: either a rule target or a plain
// source file (Rule == nil).
type Node struct {
	// Path is the canonical slash-separated path relative to the project
	// directory, and the node's identity in the graph.
	Path string
	Rule *config.Rule
	Stem string
	// DepPaths is the resolved prerequisite list in rule order; Deps holds
	// the corresponding nodes.
	DepPaths   []string
	Deps       []*Node
	Dependents []*Node

	// Error is set before the state moves to Skipped or Failed.
	Error error

	depCount atomic.Int32
	state    atomic.Int32
	// mtime is the target's modification time in unix nanoseconds once the
	// node reaches a terminal state; zero means the file does not exist.
	mtime    atomic.Int64
	skipOnce sync.Once
}

// State returns the node's current lifecycle state.
func (n *Node) State() State {
	return State(n.state.Load())
}

func (n *Node) setState(s State) {
	n.state.Store(int32(s))
}

// ModTime returns the target's modification time recorded when the node
// completed. The zero time means the file was absent.
func (n *Node) ModTime() time.Time {
	ns := n.mtime.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func (n *Node) setModTime(t time.Time) {
	if t.IsZero() {
		n.mtime.Store(0)
		return
	}
	n.mtime.Store(t.UnixNano())
}

// Graph is the resolved build graph for one set of requested targets.
type Graph struct {
	// Nodes is keyed by canonical target path. Diamond prerequisites share
	// a single node.
	Nodes map[string]*Node
	// Requested preserves the order targets were asked for.
	Requested []*Node
}

// Summary counts terminal node states after a run.
type Summary struct {
	Built    int
	Fresh    int
	Disabled int
	Skipped  int
	Failed   int
}

// Census tallies the terminal states of every node.
func (g *Graph) Census() Summary {
	var s Summary
	for _, n := range g.Nodes {
		switch n.State() {
		case Built:
			s.Built++
		case Fresh:
			s.Fresh++
		case Disabled:
			s.Disabled++
		case Skipped:
			s.Skipped++
		case Failed:
			s.Failed++
		}
	}
	return s
}
