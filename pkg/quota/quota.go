// Package quota computes how much of each rule engine quota is in use.
//
// A [Calculator] combines the latest [ruleset.ConfigurationResult], the
// enabled filters and one live query to the [host.Host] into a [Snapshot].
// Nothing is cached between calls.
package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/macropower/rulelimits/pkg/filter"
	"github.com/macropower/rulelimits/pkg/host"
	"github.com/macropower/rulelimits/pkg/log"
	"github.com/macropower/rulelimits/pkg/ruleset"
)

// ErrNoConfiguration is returned when usage is requested before any
// configuration was applied.
var ErrNoConfiguration = errors.New("no configuration has been applied")

// Calculator derives a [Snapshot] from a configuration result.
type Calculator struct {
	filters  filter.Source
	host     host.Host
	prefix   string
	limits   host.Limits
	boundary uint32
}

// CalculatorOpt configures a [Calculator].
type CalculatorOpt func(*Calculator)

// WithPrefix sets the ruleset name prefix. Defaults to [ruleset.DefaultPrefix].
func WithPrefix(prefix string) CalculatorOpt {
	return func(c *Calculator) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// WithCustomFiltersStartID sets the group boundary above which filters are
// custom. Defaults to [filter.DefaultCustomFiltersStartID].
func WithCustomFiltersStartID(id uint32) CalculatorOpt {
	return func(c *Calculator) {
		if id > 0 {
			c.boundary = id
		}
	}
}

// WithLimits sets the platform ceilings. Unset values keep their defaults.
func WithLimits(l host.Limits) CalculatorOpt {
	return func(c *Calculator) {
		c.limits = l.WithDefaults()
	}
}

// NewCalculator creates a [Calculator].
func NewCalculator(filters filter.Source, h host.Host, opts ...CalculatorOpt) *Calculator {
	c := &Calculator{
		filters:  filters,
		host:     h,
		prefix:   ruleset.DefaultPrefix,
		limits:   host.DefaultLimits(),
		boundary: filter.DefaultCustomFiltersStartID,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Calculate returns the usage for result. The expected filters are the
// current divergence record and are carried through unchanged.
func (c *Calculator) Calculate(ctx context.Context, result *ruleset.ConfigurationResult, expected []uint32) (Snapshot, error) {
	if result == nil {
		return Snapshot{}, ErrNoConfiguration
	}

	counters, skipped := result.Counters(c.prefix)
	if len(skipped) > 0 {
		log.WithContext(ctx).DebugContext(ctx, "skipping rulesets without a filter identifier",
			slog.Any("rulesets", skipped),
		)
	}

	enabled := c.filters.EnabledWithMetadata()

	var (
		staticRules, staticRegexp uint
		rulesets                  uint
		actual                    = make([]uint32, 0, len(enabled))
	)

	for _, f := range enabled {
		// The boundary group counts as a ruleset but not towards rule sums.
		if f.GroupID <= c.boundary {
			rulesets++
			actual = append(actual, f.FilterID)
		}
		if f.GroupID >= c.boundary {
			continue
		}

		counter, ok := counters[f.FilterID]
		if !ok {
			continue
		}

		staticRules += toUint(counter.RulesCount)
		staticRegexp += toUint(counter.RegexpRulesCount)
	}

	available, err := c.host.AvailableStaticRuleCount(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("get available static rule count: %w", err)
	}

	return NewSnapshot(View{
		Dynamic:       c.dynamic(result),
		DynamicRegexp: c.dynamicRegexp(result),
		StaticRulesets: Limit{
			Enabled: rulesets,
			Maximum: toUint(c.limits.MaxEnabledStaticRulesets),
		},
		StaticRules: Limit{
			Enabled: staticRules,
			Maximum: staticRules + toUint(available),
		},
		StaticRegexp: Limit{
			Enabled: staticRegexp,
			Maximum: toUint(c.limits.MaxRegexpRules),
		},
		ActuallyEnabledFilters: actual,
		ExpectedEnabledFilters: expected,
	}), nil
}

// ActuallyEnabledFilters returns the enabled filters that occupy a static
// ruleset slot.
func (c *Calculator) ActuallyEnabledFilters() []uint32 {
	ids := make([]uint32, 0)
	for _, f := range c.filters.EnabledWithMetadata() {
		if f.GroupID <= c.boundary {
			ids = append(ids, f.FilterID)
		}
	}

	return ids
}

func (c *Calculator) dynamic(result *ruleset.ConfigurationResult) Limit {
	if l, ok := result.Limitation(ruleset.TooManyRules); ok && l.Maximum > 0 {
		return Limit{Enabled: toUint(l.Maximum), Maximum: toUint(l.Maximum)}
	}

	return Limit{
		Enabled: toUint(result.DynamicRules.RulesCount),
		Maximum: toUint(c.limits.MaxDynamicRules),
	}
}

func (c *Calculator) dynamicRegexp(result *ruleset.ConfigurationResult) Limit {
	live := toUint(result.DynamicRules.RegexpRulesCount)
	ceiling := toUint(c.limits.MaxRegexpRules)

	l, ok := result.Limitation(ruleset.TooManyRegexpRules)
	if !ok {
		return Limit{Enabled: live, Maximum: ceiling}
	}

	maximum := toUint(l.Maximum)
	if maximum == 0 {
		maximum = ceiling
	}

	return Limit{
		Enabled: live + uint(len(l.ExcludedRuleIDs)),
		Maximum: maximum,
	}
}

// toUint clamps negative counts reported by collaborators to zero.
func toUint(n int) uint {
	if n < 0 {
		return 0
	}

	return uint(n)
}
