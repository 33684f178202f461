// Package ruleset builds the dependency rule table from a loaded buildfile
// and answers the one question the graph needs: which rule produces a given
// target, and with which concrete prerequisites.
package ruleset

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/bdskit/ontomake/internal/config"
	"github.com/bdskit/ontomake/internal/pattern"
	"github.com/bmatcuk/doublestar/v4"
)

// Table is the ranked rule table. Wildcard rules are consulted most-literal
// first; a wildcard-free rule always outranks any pattern that could also
// produce its target.
type Table struct {
	dir   string
	exact map[string]*config.Rule
	// ranked holds the wildcard rules ordered by descending literal count,
	// declaration order breaking ties.
	ranked []*config.Rule
}

// Bound is a rule resolved against one concrete target: the stem captured
// from the wildcard and the prerequisite list with stems substituted and
// globs expanded.
type Bound struct {
	Rule   *config.Rule
	Target string
	Stem   string
	Deps   []string
}

// New builds the lookup table from the model's rules. The model must have
// been validated first.
func New(m *config.Model) *Table {
	t := &Table{
		dir:   m.Dir,
		exact: make(map[string]*config.Rule),
	}
	for _, r := range m.Rules {
		if pattern.HasWildcard(r.Target) {
			t.ranked = append(t.ranked, r)
			continue
		}
		t.exact[pattern.Canon(r.Target)] = r
	}
	sort.SliceStable(t.ranked, func(i, j int) bool {
		return pattern.Literals(t.ranked[i].Target) > pattern.Literals(t.ranked[j].Target)
	})
	return t
}

// Lookup returns the most specific rule able to produce target, along with
// the stem its wildcard captured. ok is false when no rule matches; such a
// target is a source file and must already exist.
func (t *Table) Lookup(target string) (rule *config.Rule, stem string, ok bool) {
	target = pattern.Canon(target)
	if r, found := t.exact[target]; found {
		return r, "", true
	}
	for _, r := range t.ranked {
		if s, matched := pattern.Match(r.Target, target); matched {
			return r, s, true
		}
	}
	return nil, "", false
}

// Bind resolves target against the table and materializes its prerequisite
// list: wildcards are substituted with the captured stem, glob prerequisites
// are expanded against the project directory, and duplicates are dropped.
// A glob that matches nothing contributes no prerequisites.
func (t *Table) Bind(target string) (*Bound, bool, error) {
	rule, stem, ok := t.Lookup(target)
	if !ok {
		return nil, false, nil
	}
	b := &Bound{Rule: rule, Target: pattern.Canon(target), Stem: stem}

	seen := make(map[string]struct{})
	add := func(dep string) {
		dep = pattern.Canon(dep)
		if _, dup := seen[dep]; dup {
			return
		}
		seen[dep] = struct{}{}
		b.Deps = append(b.Deps, dep)
	}

	for _, d := range rule.Deps {
		d = pattern.Subst(d, stem)
		if !pattern.IsGlob(d) {
			add(d)
			continue
		}
		// Globs may reach outside the project directory (the ../patterns
		// convention), so expand against the OS filesystem and relativize
		// the matches back.
		matches, err := doublestar.FilepathGlob(filepath.Join(t.dir, filepath.FromSlash(d)))
		if err != nil {
			return nil, false, fmt.Errorf("rule %q: glob prerequisite %q: %w", rule.Name, d, err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			rel, err := filepath.Rel(t.dir, m)
			if err != nil {
				return nil, false, fmt.Errorf("rule %q: glob match %q: %w", rule.Name, m, err)
			}
			add(filepath.ToSlash(rel))
		}
	}
	return b, true, nil
}
