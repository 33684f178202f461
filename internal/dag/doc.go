// Package dag resolves requested targets into a file dependency graph and
// executes it with a worker pool.
//
// Resolution walks the rule table depth-first, memoizing one node per
// canonical path so shared prerequisites converge on a single node. A path
// no rule produces is a source file and must exist on disk.
//
// Execution runs bottom-up: a node becomes ready when its last prerequisite
// reaches a terminal state. Staleness follows file modification times; a
// target that is absent, older than a prerequisite, or downstream of a
// target remade in this run is rebuilt through its rule command. The first
// failure cancels the run and everything downstream of the failure is
// skipped, never half-built.
package dag
