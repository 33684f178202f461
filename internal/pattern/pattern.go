// Package pattern implements the '%' wildcard used by rule targets and
// prerequisites. A pattern holds at most one wildcard; the wildcard matches
// any non-empty substring, and the matched substring is called the stem.
package pattern

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// Wildcard is the single-character wildcard recognized in target and
// prerequisite patterns.
const Wildcard = "%"

// ErrMultipleWildcards is returned when a pattern contains more than one '%'.
var ErrMultipleWildcards = errors.New("pattern contains more than one '%' wildcard")

// Validate checks that p is a well-formed pattern.
func Validate(p string) error {
	if strings.Count(p, Wildcard) > 1 {
		return fmt.Errorf("%w: %q", ErrMultipleWildcards, p)
	}
	return nil
}

// HasWildcard reports whether p contains a '%' wildcard.
func HasWildcard(p string) bool {
	return strings.Contains(p, Wildcard)
}

// IsGlob reports whether s contains filesystem glob metacharacters. Glob
// prerequisites are expanded against the filesystem rather than matched
// against the rule table.
func IsGlob(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}

// Canon returns the canonical slash-separated form of a path as used for
// node identity: cleaned, with any leading "./" removed.
func Canon(p string) string {
	return path.Clean(strings.ReplaceAll(p, "\\", "/"))
}

// Match reports whether name matches p and returns the stem captured by the
// wildcard. A pattern without a wildcard matches only its literal self, with
// an empty stem. The wildcard never matches an empty string.
func Match(p, name string) (stem string, ok bool) {
	i := strings.Index(p, Wildcard)
	if i < 0 {
		return "", p == name
	}
	prefix, suffix := p[:i], p[i+1:]
	if len(name) <= len(prefix)+len(suffix) {
		return "", false
	}
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
		return "", false
	}
	return name[len(prefix) : len(name)-len(suffix)], true
}

// Subst replaces the wildcard in p with stem. Patterns without a wildcard
// are returned unchanged.
func Subst(p, stem string) string {
	i := strings.Index(p, Wildcard)
	if i < 0 {
		return p
	}
	return p[:i] + stem + p[i+1:]
}

// Literals returns the number of literal characters in p, ignoring the
// wildcard. Rule lookup prefers the candidate with the most literals.
func Literals(p string) int {
	return len(p) - strings.Count(p, Wildcard)
}
