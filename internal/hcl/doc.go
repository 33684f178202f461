// Package hcl implements the config.Loader interface for HCL buildfiles.
//
// Loading splits expression evaluation into two phases. Project attributes,
// flags, paths, tool definitions and rule targets are evaluated immediately,
// in that order, so later blocks can reference earlier ones. Rule commands
// are captured unevaluated and resolved by the Evaluator once per concrete
// target, when the wildcard stem and prerequisite list are known.
package hcl
