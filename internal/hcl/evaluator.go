package hcl

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bdskit/ontomake/internal/config"
	"github.com/bdskit/ontomake/internal/ctxlog"
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// ErrMalformedTemplate is returned when a rule's command expression cannot
// be resolved into a command line.
var ErrMalformedTemplate = errors.New("malformed command template")

// Evaluator resolves deferred rule commands. Each evaluation layers the
// per-target binding over the buildfile's static scope, so commands see
// target, stem, deps and dep alongside everything rule attributes see.
type Evaluator struct {
	static *hcl.EvalContext
}

// Command evaluates rule's command for one concrete target.
func (e *Evaluator) Command(ctx context.Context, rule *config.Rule, b config.Binding) (string, error) {
	logger := ctxlog.FromContext(ctx)

	first := ""
	if len(b.Deps) > 0 {
		first = b.Deps[0]
	}
	child := e.static.NewChild()
	child.Variables = map[string]cty.Value{
		"target": cty.StringVal(b.Target),
		"stem":   cty.StringVal(b.Stem),
		"deps":   stringList(b.Deps),
		"dep":    cty.StringVal(first),
	}

	v, diags := rule.Command.Value(child)
	if diags.HasErrors() {
		return "", fmt.Errorf("%w: rule %q: %s", ErrMalformedTemplate, rule.Name, diags.Error())
	}
	v, err := convert.Convert(v, cty.String)
	if err != nil {
		return "", fmt.Errorf("%w: rule %q: %s", ErrMalformedTemplate, rule.Name, err)
	}
	command := v.AsString()
	if strings.TrimSpace(command) == "" {
		return "", fmt.Errorf("%w: rule %q evaluated to an empty command", ErrMalformedTemplate, rule.Name)
	}
	logger.Debug("Evaluated rule command.", "rule", rule.Name, "target", b.Target)
	return command, nil
}

var _ config.Evaluator = (*Evaluator)(nil)
