// Package schema defines the HCL shapes of a buildfile. Decoding stops at
// hcl.Expression boundaries; the hcl package decides when each expression
// is evaluated.
package schema

import (
	"github.com/hashicorp/hcl/v2"
)

// Buildfile represents the top-level structure of an ontomake.hcl file.
type Buildfile struct {
	Project *Project `hcl:"project,block"`
	Tools   []*Tool  `hcl:"tool,block"`
	Rules   []*Rule  `hcl:"rule,block"`
	Body    hcl.Body `hcl:",remain"`
}

// AttrsBlock is an open attribute block whose names are chosen by the
// buildfile author, such as `flags` and `paths`.
type AttrsBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// Project represents the single `project` block.
type Project struct {
	Name    string         `hcl:"name,label"`
	BaseIRI hcl.Expression `hcl:"base_iri,optional"`
	Shell   hcl.Expression `hcl:"shell,optional"`
	Jobs    hcl.Expression `hcl:"jobs,optional"`
	Default hcl.Expression `hcl:"default,optional"`
	Flags   *AttrsBlock    `hcl:"flags,block"`
	Paths   *AttrsBlock    `hcl:"paths,block"`
}

// Tool represents a `tool` block: an external program rules shell out to.
type Tool struct {
	Name    string         `hcl:"name,label"`
	Command hcl.Expression `hcl:"command"`
	Env     hcl.Expression `hcl:"env,optional"`
}

// Rule represents a `rule` block. Everything except the command is resolved
// when the buildfile is loaded; the command is evaluated once per concrete
// target with the target, stem, deps and dep variables in scope.
type Rule struct {
	Name    string         `hcl:"name,label"`
	Doc     hcl.Expression `hcl:"doc,optional"`
	Target  hcl.Expression `hcl:"target"`
	Deps    hcl.Expression `hcl:"deps,optional"`
	Command hcl.Expression `hcl:"command"`
	Enabled hcl.Expression `hcl:"enabled,optional"`
	Atomic  hcl.Expression `hcl:"atomic,optional"`
	Stdout  hcl.Expression `hcl:"stdout,optional"`
}
