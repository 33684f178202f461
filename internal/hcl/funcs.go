package hcl

import (
	"os"

	"github.com/bdskit/ontomake/internal/pattern"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// baseFunctions are available everywhere in a buildfile, including the
// early-evaluated project attributes.
func baseFunctions() map[string]function.Function {
	return map[string]function.Function{
		"coalesce":   stdlib.CoalesceFunc,
		"concat":     stdlib.ConcatFunc,
		"distinct":   stdlib.DistinctFunc,
		"env":        envFunc,
		"flatten":    stdlib.FlattenFunc,
		"format":     stdlib.FormatFunc,
		"formatdate": stdlib.FormatDateFunc,
		"join":       stdlib.JoinFunc,
		"length":     stdlib.LengthFunc,
		"lower":      stdlib.LowerFunc,
		"regex":      stdlib.RegexFunc,
		"replace":    stdlib.ReplaceFunc,
		"sort":       stdlib.SortFunc,
		"split":      stdlib.SplitFunc,
		"trimprefix": stdlib.TrimPrefixFunc,
		"trimspace":  stdlib.TrimSpaceFunc,
		"trimsuffix": stdlib.TrimSuffixFunc,
		"upper":      stdlib.UpperFunc,
	}
}

// envFunc reads an environment variable with a fallback, mirroring how the
// flags of an ontology release are usually passed through CI.
var envFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "name", Type: cty.String},
		{Name: "fallback", Type: cty.String},
	},
	Type: function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		if v, ok := os.LookupEnv(args[0].AsString()); ok {
			return cty.StringVal(v), nil
		}
		return cty.StringVal(args[1].AsString()), nil
	},
})

// substListFunc builds a function that substitutes every stem into a single
// '%' pattern, producing one path per stem. jobfiles and patternfiles are
// both instances of this.
func substListFunc(stems func() []string) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "pattern", Type: cty.String},
		},
		Type: function.StaticReturnType(cty.List(cty.String)),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			p := args[0].AsString()
			if err := pattern.Validate(p); err != nil {
				return cty.NilVal, err
			}
			ss := stems()
			if len(ss) == 0 {
				return cty.ListValEmpty(cty.String), nil
			}
			vals := make([]cty.Value, len(ss))
			for i, s := range ss {
				vals[i] = cty.StringVal(pattern.Subst(p, s))
			}
			return cty.ListVal(vals), nil
		},
	})
}
