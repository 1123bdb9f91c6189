package ruleset

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// DefaultPrefix is the name prefix the rule engine gives static rulesets.
const DefaultPrefix = "ruleset_"

// ErrInvalidName is returned when a ruleset name cannot be mapped to a filter.
var ErrInvalidName = errors.New("invalid ruleset name")

// StaticRuleset holds the counters of one precompiled static ruleset.
type StaticRuleset struct {
	// ID is the ruleset name, e.g. "ruleset_2".
	ID string `json:"id" jsonschema:"title=ID"`
	// RulesCount is the number of declarative rules in the ruleset.
	RulesCount int `json:"rulesCount" jsonschema:"title=Rules Count,minimum=0"`
	// RegexpRulesCount is the number of regular expression rules in the ruleset.
	RegexpRulesCount int `json:"regexpRulesCount" jsonschema:"title=Regexp Rules Count,minimum=0"`
}

// DynamicRules holds the counters of the dynamic ruleset after the rule
// engine enforced its quotas.
type DynamicRules struct {
	// Limitations lists the quota violations the engine reported.
	Limitations []LimitationError `json:"limitations,omitempty" jsonschema:"title=Limitations"`
	// RulesCount is the number of declarative rules that were kept.
	RulesCount int `json:"rulesCount" jsonschema:"title=Rules Count,minimum=0"`
	// RegexpRulesCount is the number of regular expression rules that were kept.
	RegexpRulesCount int `json:"regexpRulesCount" jsonschema:"title=Regexp Rules Count,minimum=0"`
}

// ConfigurationResult is the result of a single configuration apply.
type ConfigurationResult struct {
	StaticRulesets []StaticRuleset `json:"staticRulesets,omitempty" jsonschema:"title=Static Rulesets"`
	DynamicRules   DynamicRules    `json:"dynamicRules"             jsonschema:"title=Dynamic Rules"`
}

// Limitation returns the first limitation of the given kind, if any.
func (r *ConfigurationResult) Limitation(kind LimitationKind) (LimitationError, bool) {
	for _, l := range r.DynamicRules.Limitations {
		if l.Kind == kind {
			return l, true
		}
	}

	return LimitationError{}, false
}

// Counter is the rule count of the static ruleset compiled from one filter.
type Counter struct {
	FilterID         uint32
	RulesCount       int
	RegexpRulesCount int
}

// Counters maps each static ruleset in the result to its filter identifier.
// Rulesets whose names do not carry the prefix are returned in skipped.
func (r *ConfigurationResult) Counters(prefix string) (map[uint32]Counter, []string) {
	counters := make(map[uint32]Counter, len(r.StaticRulesets))

	var skipped []string

	for _, rs := range r.StaticRulesets {
		id, err := ParseFilterID(rs.ID, prefix)
		if err != nil {
			skipped = append(skipped, rs.ID)
			continue
		}

		counters[id] = Counter{
			FilterID:         id,
			RulesCount:       rs.RulesCount,
			RegexpRulesCount: rs.RegexpRulesCount,
		}
	}

	return counters, skipped
}

// ParseFilterID extracts the filter identifier from a ruleset name.
func ParseFilterID(name, prefix string) (uint32, error) {
	rest, ok := strings.CutPrefix(name, prefix)
	if !ok {
		return 0, fmt.Errorf("%w: %q: missing prefix %q", ErrInvalidName, name, prefix)
	}

	id, err := strconv.ParseUint(rest, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidName, name, err)
	}

	return uint32(id), nil
}

// ParseFilterIDs converts ruleset names into a sorted, duplicate-free list of
// filter identifiers. Names that do not carry the prefix followed by a number
// are returned in skipped.
func ParseFilterIDs(names []string, prefix string) ([]uint32, []string) {
	ids := make([]uint32, 0, len(names))

	var skipped []string

	for _, name := range names {
		id, err := ParseFilterID(name, prefix)
		if err != nil {
			skipped = append(skipped, name)
			continue
		}

		ids = append(ids, id)
	}

	slices.Sort(ids)

	return slices.Compact(ids), skipped
}

// Name returns the ruleset name of a filter.
func Name(prefix string, filterID uint32) string {
	return prefix + strconv.FormatUint(uint64(filterID), 10)
}

// Names returns the ruleset names of the given filters.
func Names(prefix string, filterIDs []uint32) []string {
	names := make([]string, 0, len(filterIDs))
	for _, id := range filterIDs {
		names = append(names, Name(prefix, id))
	}

	return names
}
