// Package host provides access to the native rule engine that actually runs
// the static rulesets.
//
// The engine is a collaborator: it may silently refuse to enable rulesets
// once its own caps are reached, so what it reports is the ground truth the
// rest of the module reconciles against.
package host

import (
	"context"
	"errors"
)

// Platform ceilings enforced by the rule engine.
const (
	DefaultMaxDynamicRules          = 5000
	DefaultMaxRegexpRules           = 1000
	DefaultMaxEnabledStaticRulesets = 50
)

// ErrUnavailable is returned when the host state cannot be read.
var ErrUnavailable = errors.New("host unavailable")

// Host is the live view of the rule engine.
type Host interface {
	// AvailableStaticRuleCount returns how many more static rules may be
	// enabled before the engine's global static quota is reached.
	AvailableStaticRuleCount(ctx context.Context) (int, error)
	// EnabledRulesets returns the names of the static rulesets the engine
	// currently has enabled.
	EnabledRulesets(ctx context.Context) ([]string, error)
}

var (
	_ Host = (*Memory)(nil)
	_ Host = (*File)(nil)
)

// Limits are the platform ceilings of the rule engine.
type Limits struct {
	// MaxDynamicRules is the maximum number of dynamic rules.
	MaxDynamicRules int `json:"maxDynamicRules,omitempty" yaml:"maxDynamicRules,omitempty" jsonschema:"title=Max Dynamic Rules,minimum=0"`
	// MaxRegexpRules is the maximum number of regular expression rules, per
	// category.
	MaxRegexpRules int `json:"maxRegexpRules,omitempty" yaml:"maxRegexpRules,omitempty" jsonschema:"title=Max Regexp Rules,minimum=0"`
	// MaxEnabledStaticRulesets is the maximum number of static rulesets that
	// can be enabled at once.
	MaxEnabledStaticRulesets int `json:"maxEnabledStaticRulesets,omitempty" yaml:"maxEnabledStaticRulesets,omitempty" jsonschema:"title=Max Enabled Static Rulesets,minimum=0"`
}

// DefaultLimits returns the ceilings of the Chromium rule engine.
func DefaultLimits() Limits {
	return Limits{
		MaxDynamicRules:          DefaultMaxDynamicRules,
		MaxRegexpRules:           DefaultMaxRegexpRules,
		MaxEnabledStaticRulesets: DefaultMaxEnabledStaticRulesets,
	}
}

// WithDefaults returns a copy of l where unset ceilings take their default
// values.
func (l Limits) WithDefaults() Limits {
	d := DefaultLimits()
	if l.MaxDynamicRules <= 0 {
		l.MaxDynamicRules = d.MaxDynamicRules
	}
	if l.MaxRegexpRules <= 0 {
		l.MaxRegexpRules = d.MaxRegexpRules
	}
	if l.MaxEnabledStaticRulesets <= 0 {
		l.MaxEnabledStaticRulesets = d.MaxEnabledStaticRulesets
	}

	return l
}
