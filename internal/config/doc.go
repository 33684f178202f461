// Package config defines the format-agnostic buildfile model, along with the
// core interfaces (Loader, Evaluator) for loading and interpreting
// configuration from various sources.
//
// The `config.Model` is the single source of truth for the `ruleset` and
// `dag` packages. Concrete implementations of the interfaces, such as for
// HCL, are provided in separate packages.
package config
