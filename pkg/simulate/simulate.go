// Package simulate stands in for the filter policy layer and the rule engine
// so that reconciliation can be exercised end to end in memory.
//
// An [Engine] applies the enabled filters to a capped [host.Memory], builds
// the [ruleset.ConfigurationResult] the real engine would report, and drives
// the [reconcile.Service] the same way the policy layer does after every
// apply.
package simulate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/macropower/rulelimits/pkg/filter"
	"github.com/macropower/rulelimits/pkg/host"
	"github.com/macropower/rulelimits/pkg/log"
	"github.com/macropower/rulelimits/pkg/reconcile"
	"github.com/macropower/rulelimits/pkg/ruleset"
)

// Dynamic describes the user rules requested on every apply.
type Dynamic struct {
	RulesCount       int `json:"rulesCount"       yaml:"rulesCount"`
	RegexpRulesCount int `json:"regexpRulesCount" yaml:"regexpRulesCount"`
}

// Engine is an in-memory policy layer and rule engine.
type Engine struct {
	registry *filter.Registry
	host     *host.Memory
	service  *reconcile.Service
	counts   map[uint32]ruleset.StaticRuleset
	prefix   string
	limits   host.Limits
	dynamic  Dynamic
	boundary uint32
	applies  int
}

// EngineOpt configures an [Engine].
type EngineOpt func(*Engine)

// WithPrefix sets the ruleset name prefix.
func WithPrefix(prefix string) EngineOpt {
	return func(e *Engine) {
		if prefix != "" {
			e.prefix = prefix
		}
	}
}

// WithCustomFiltersStartID sets the first custom filter identifier.
func WithCustomFiltersStartID(id uint32) EngineOpt {
	return func(e *Engine) {
		if id > 0 {
			e.boundary = id
		}
	}
}

// WithLimits sets the dynamic rule ceilings the engine enforces.
func WithLimits(l host.Limits) EngineOpt {
	return func(e *Engine) {
		e.limits = l.WithDefaults()
	}
}

// WithDynamic sets the requested dynamic rules.
func WithDynamic(d Dynamic) EngineOpt {
	return func(e *Engine) {
		e.dynamic = d
	}
}

// WithRuleCounts sets the rule counts of the static ruleset compiled from
// each filter. Filters without counts get empty rulesets.
func WithRuleCounts(counts map[uint32]ruleset.Counter) EngineOpt {
	return func(e *Engine) {
		for id, c := range counts {
			e.counts[id] = ruleset.StaticRuleset{
				RulesCount:       c.RulesCount,
				RegexpRulesCount: c.RegexpRulesCount,
			}
		}
	}
}

// NewEngine creates an [Engine].
func NewEngine(service *reconcile.Service, registry *filter.Registry, h *host.Memory, opts ...EngineOpt) *Engine {
	e := &Engine{
		registry: registry,
		host:     h,
		service:  service,
		counts:   map[uint32]ruleset.StaticRuleset{},
		prefix:   ruleset.DefaultPrefix,
		limits:   host.DefaultLimits(),
		boundary: filter.DefaultCustomFiltersStartID,
	}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Applies returns how many configurations were applied.
func (e *Engine) Applies() int {
	return e.applies
}

// Apply applies the enabled filters and runs a reconciliation pass with
// mode. It has the signature of [reconcile.UpdateFunc] and passes itself as
// the update callback.
func (e *Engine) Apply(ctx context.Context, mode reconcile.CheckMode) error {
	e.applies++

	var requested []uint32
	for _, f := range e.registry.EnabledWithMetadata() {
		if f.FilterID < e.boundary {
			requested = append(requested, f.FilterID)
		}
	}

	kept := e.host.Apply(ruleset.Names(e.prefix, requested))

	result, err := e.result(kept)
	if err != nil {
		return err
	}

	e.service.SetResult(result)

	log.WithContext(ctx).DebugContext(ctx, "applied configuration",
		slog.Int("apply", e.applies),
		slog.String("mode", mode.String()),
		slog.Int("requested", len(requested)),
		slog.Int("enabled", len(kept)),
	)

	_, err = e.service.CheckAndReconcile(ctx, mode, e.Apply)
	if err != nil {
		return fmt.Errorf("apply %d: %w", e.applies, err)
	}

	return nil
}

func (e *Engine) result(names []string) (*ruleset.ConfigurationResult, error) {
	result := &ruleset.ConfigurationResult{
		StaticRulesets: make([]ruleset.StaticRuleset, 0, len(names)),
	}

	for _, name := range names {
		id, err := ruleset.ParseFilterID(name, e.prefix)
		if err != nil {
			return nil, err
		}

		rs := e.counts[id]
		rs.ID = name
		result.StaticRulesets = append(result.StaticRulesets, rs)
	}

	result.DynamicRules = e.dynamicRules()

	return result, nil
}

// dynamicRules truncates the requested dynamic rules to the engine ceilings.
// Regexp rules are excluded first, and rule identifiers are assigned
// sequentially with regexp rules last.
func (e *Engine) dynamicRules() ruleset.DynamicRules {
	d := ruleset.DynamicRules{
		RulesCount:       e.dynamic.RulesCount,
		RegexpRulesCount: e.dynamic.RegexpRulesCount,
	}

	if d.RegexpRulesCount > e.limits.MaxRegexpRules {
		base := max(d.RulesCount-d.RegexpRulesCount, 0)

		excluded := make([]int, 0, d.RegexpRulesCount-e.limits.MaxRegexpRules)
		for i := e.limits.MaxRegexpRules; i < d.RegexpRulesCount; i++ {
			excluded = append(excluded, base+i+1)
		}

		d.Limitations = append(d.Limitations, ruleset.LimitationError{
			Kind:            ruleset.TooManyRegexpRules,
			Maximum:         e.limits.MaxRegexpRules,
			ExcludedRuleIDs: excluded,
		})
		d.RulesCount = max(d.RulesCount-len(excluded), 0)
		d.RegexpRulesCount = e.limits.MaxRegexpRules
	}

	if d.RulesCount > e.limits.MaxDynamicRules {
		excluded := make([]int, 0, d.RulesCount-e.limits.MaxDynamicRules)
		for i := e.limits.MaxDynamicRules; i < d.RulesCount; i++ {
			excluded = append(excluded, i+1)
		}

		d.Limitations = append(d.Limitations, ruleset.LimitationError{
			Kind:            ruleset.TooManyRules,
			Maximum:         e.limits.MaxDynamicRules,
			ExcludedRuleIDs: excluded,
		})
		d.RulesCount = e.limits.MaxDynamicRules
	}

	return d
}
