package hcl

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/bdskit/ontomake/internal/config"
	"github.com/bdskit/ontomake/internal/ctxlog"
	"github.com/bdskit/ontomake/internal/dosdp"
	"github.com/bdskit/ontomake/internal/schema"
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// translate evaluates the static parts of the merged buildfile and produces
// the agnostic model. Rule commands are the one thing left unevaluated; the
// returned Evaluator resolves them later against the same static scope.
func (l *Loader) translate(ctx context.Context, path, dir string, root *schema.Buildfile) (*config.Model, *Evaluator, error) {
	logger := ctxlog.FromContext(ctx)
	base := &hcl.EvalContext{Functions: baseFunctions()}

	p := root.Project
	shell, err := evalString(p.Shell, base, "/bin/sh")
	if err != nil {
		return nil, nil, fmt.Errorf("project %q: shell: %w", p.Name, err)
	}
	baseIRI, err := evalString(p.BaseIRI, base, "")
	if err != nil {
		return nil, nil, fmt.Errorf("project %q: base_iri: %w", p.Name, err)
	}
	jobs, err := evalStringList(p.Jobs, base)
	if err != nil {
		return nil, nil, fmt.Errorf("project %q: jobs: %w", p.Name, err)
	}
	defaults, err := evalStringList(p.Default, base)
	if err != nil {
		return nil, nil, fmt.Errorf("project %q: default: %w", p.Name, err)
	}
	flags, err := evalBoolAttrs(p.Flags, base)
	if err != nil {
		return nil, nil, fmt.Errorf("project %q: flags: %w", p.Name, err)
	}
	for name, v := range l.FlagOverrides {
		if _, ok := flags[name]; !ok {
			return nil, nil, fmt.Errorf("cannot override flag %q: not declared in project %q", name, p.Name)
		}
		flags[name] = v
	}
	paths, err := evalStringAttrs(p.Paths, base)
	if err != nil {
		return nil, nil, fmt.Errorf("project %q: paths: %w", p.Name, err)
	}

	// Pattern discovery happens at load time so rule expressions can fan
	// out over the pattern names the same way they fan out over jobs.
	var patternNames []string
	if pd, ok := paths["dosdp_patterns"]; ok {
		discovered, err := dosdp.Discover(resolveDir(dir, pd))
		if err != nil {
			return nil, nil, err
		}
		patternNames = dosdp.Names(discovered)
		logger.Debug("Discovered DOSDP patterns.", "count", len(patternNames), "dir", pd)
	}

	model := &config.Model{
		Path: path,
		Dir:  dir,
		Project: &config.Project{
			Name:     p.Name,
			BaseIRI:  baseIRI,
			Shell:    shell,
			Jobs:     jobs,
			Default:  defaults,
			Flags:    flags,
			Paths:    paths,
			Patterns: patternNames,
		},
		Tools: make(map[string]*config.Tool),
	}

	for _, t := range root.Tools {
		if _, dup := model.Tools[t.Name]; dup {
			return nil, nil, fmt.Errorf("tool %q declared twice", t.Name)
		}
		command, err := evalString(t.Command, base, "")
		if err != nil {
			return nil, nil, fmt.Errorf("tool %q: command: %w", t.Name, err)
		}
		if command == "" {
			return nil, nil, fmt.Errorf("tool %q has an empty command", t.Name)
		}
		env, err := evalStringAttrsExpr(t.Env, base)
		if err != nil {
			return nil, nil, fmt.Errorf("tool %q: env: %w", t.Name, err)
		}
		model.Tools[t.Name] = &config.Tool{Name: t.Name, Command: command, Env: env}
	}

	static := l.staticContext(model, patternNames)

	for _, r := range root.Rules {
		doc, err := evalString(r.Doc, static, "")
		if err != nil {
			return nil, nil, fmt.Errorf("rule %q: doc: %w", r.Name, err)
		}
		target, err := evalString(r.Target, static, "")
		if err != nil {
			return nil, nil, fmt.Errorf("rule %q: target: %w", r.Name, err)
		}
		deps, err := evalStringList(r.Deps, static)
		if err != nil {
			return nil, nil, fmt.Errorf("rule %q: deps: %w", r.Name, err)
		}
		enabled, err := evalBool(r.Enabled, static, true)
		if err != nil {
			return nil, nil, fmt.Errorf("rule %q: enabled: %w", r.Name, err)
		}
		atomic, err := evalBool(r.Atomic, static, true)
		if err != nil {
			return nil, nil, fmt.Errorf("rule %q: atomic: %w", r.Name, err)
		}
		stdout, err := evalBool(r.Stdout, static, false)
		if err != nil {
			return nil, nil, fmt.Errorf("rule %q: stdout: %w", r.Name, err)
		}
		model.Rules = append(model.Rules, &config.Rule{
			Name:    r.Name,
			Doc:     doc,
			Target:  target,
			Deps:    deps,
			Command: r.Command,
			Enabled: enabled,
			Atomic:  atomic,
			Stdout:  stdout,
			Tools:   toolRefs(r.Command),
		})
	}

	if err := model.Validate(); err != nil {
		return nil, nil, err
	}
	return model, &Evaluator{static: static}, nil
}

// staticContext builds the evaluation scope shared by rule attributes and,
// later, by every deferred command.
func (l *Loader) staticContext(m *config.Model, patternNames []string) *hcl.EvalContext {
	toolVals := make(map[string]cty.Value, len(m.Tools))
	for name, t := range m.Tools {
		toolVals[name] = cty.StringVal(t.Command)
	}

	funcs := baseFunctions()
	jobs := m.Project.Jobs
	funcs["jobfiles"] = substListFunc(func() []string { return jobs })
	funcs["patternfiles"] = substListFunc(func() []string { return patternNames })

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"project": cty.ObjectVal(map[string]cty.Value{
				"name":     cty.StringVal(m.Project.Name),
				"base_iri": cty.StringVal(m.Project.BaseIRI),
				"shell":    cty.StringVal(m.Project.Shell),
			}),
			"flags":    boolObj(m.Project.Flags),
			"paths":    stringObj(m.Project.Paths),
			"tool":     cty.ObjectVal(toolVals),
			"jobs":     stringList(jobs),
			"patterns": stringList(patternNames),
		},
		Functions: funcs,
	}
}

// toolRefs recovers the tool names an expression mentions, so the executor
// knows whose environment to inject and validation can catch typos early.
func toolRefs(expr hcl.Expression) []string {
	if expr == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, trav := range expr.Variables() {
		if trav.RootName() != "tool" || len(trav) < 2 {
			continue
		}
		attr, ok := trav[1].(hcl.TraverseAttr)
		if !ok {
			continue
		}
		if _, dup := seen[attr.Name]; dup {
			continue
		}
		seen[attr.Name] = struct{}{}
		out = append(out, attr.Name)
	}
	sort.Strings(out)
	return out
}

func resolveDir(dir, p string) string {
	p = filepath.FromSlash(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// --- expression evaluation helpers ---

func evalString(expr hcl.Expression, ctx *hcl.EvalContext, fallback string) (string, error) {
	if expr == nil {
		return fallback, nil
	}
	v, diags := expr.Value(ctx)
	if diags.HasErrors() {
		return "", diags
	}
	if v.IsNull() {
		return fallback, nil
	}
	v, err := convert.Convert(v, cty.String)
	if err != nil {
		return "", err
	}
	return v.AsString(), nil
}

func evalBool(expr hcl.Expression, ctx *hcl.EvalContext, fallback bool) (bool, error) {
	if expr == nil {
		return fallback, nil
	}
	v, diags := expr.Value(ctx)
	if diags.HasErrors() {
		return false, diags
	}
	if v.IsNull() {
		return fallback, nil
	}
	v, err := convert.Convert(v, cty.Bool)
	if err != nil {
		return false, err
	}
	return v.True(), nil
}

func evalStringList(expr hcl.Expression, ctx *hcl.EvalContext) ([]string, error) {
	if expr == nil {
		return nil, nil
	}
	v, diags := expr.Value(ctx)
	if diags.HasErrors() {
		return nil, diags
	}
	if v.IsNull() {
		return nil, nil
	}
	v, err := convert.Convert(v, cty.List(cty.String))
	if err != nil {
		return nil, err
	}
	var out []string
	for it := v.ElementIterator(); it.Next(); {
		_, ev := it.Element()
		if ev.IsNull() {
			continue
		}
		out = append(out, ev.AsString())
	}
	return out, nil
}

func evalStringAttrs(block *schema.AttrsBlock, ctx *hcl.EvalContext) (map[string]string, error) {
	out := make(map[string]string)
	if block == nil || block.Body == nil {
		return out, nil
	}
	attrs, diags := block.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}
	for name, attr := range attrs {
		s, err := evalString(attr.Expr, ctx, "")
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		out[name] = s
	}
	return out, nil
}

func evalBoolAttrs(block *schema.AttrsBlock, ctx *hcl.EvalContext) (map[string]bool, error) {
	out := make(map[string]bool)
	if block == nil || block.Body == nil {
		return out, nil
	}
	attrs, diags := block.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}
	for name, attr := range attrs {
		b, err := evalBool(attr.Expr, ctx, false)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		out[name] = b
	}
	return out, nil
}

// evalStringAttrsExpr evaluates a map-typed expression such as a tool's env.
func evalStringAttrsExpr(expr hcl.Expression, ctx *hcl.EvalContext) (map[string]string, error) {
	if expr == nil {
		return nil, nil
	}
	v, diags := expr.Value(ctx)
	if diags.HasErrors() {
		return nil, diags
	}
	if v.IsNull() {
		return nil, nil
	}
	v, err := convert.Convert(v, cty.Map(cty.String))
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	for it := v.ElementIterator(); it.Next(); {
		k, ev := it.Element()
		if ev.IsNull() {
			continue
		}
		out[k.AsString()] = ev.AsString()
	}
	return out, nil
}

func stringObj(m map[string]string) cty.Value {
	vals := make(map[string]cty.Value, len(m))
	for k, v := range m {
		vals[k] = cty.StringVal(v)
	}
	return cty.ObjectVal(vals)
}

func boolObj(m map[string]bool) cty.Value {
	vals := make(map[string]cty.Value, len(m))
	for k, v := range m {
		vals[k] = cty.BoolVal(v)
	}
	return cty.ObjectVal(vals)
}

func stringList(ss []string) cty.Value {
	if len(ss) == 0 {
		return cty.ListValEmpty(cty.String)
	}
	vals := make([]cty.Value, len(ss))
	for i, s := range ss {
		vals[i] = cty.StringVal(s)
	}
	return cty.ListVal(vals)
}
