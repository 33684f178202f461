package config

import "context"

// Loader is the interface for a format-specific buildfile loader.
type Loader interface {
	// Load reads a buildfile, translates it into the format-agnostic model,
	// and returns a matching Evaluator for the deferred rule commands.
	Load(ctx context.Context, path string) (*Model, Evaluator, error)
}

// Evaluator resolves a rule's deferred command expression against the
// per-target binding. It is the bridge between the raw configuration format
// and the command line handed to the shell.
type Evaluator interface {
	Command(ctx context.Context, rule *Rule, b Binding) (string, error)
}
