// Package ruleset describes the outcome of applying a declarative rule
// configuration to the host rule engine.
//
// A [ConfigurationResult] is produced once per apply cycle. It carries the
// rule counts of every static ruleset, the live counts of the dynamic ruleset,
// and any [LimitationError]s the engine reported when it truncated the dynamic
// ruleset down to a platform quota.
//
// Static rulesets are named after the filter they were compiled from, using a
// well-known [DefaultPrefix] followed by the decimal filter identifier (for
// example "ruleset_2"). [ParseFilterID] and [Name] convert between the two.
package ruleset
