// Package drift detects divergence between the static filters that should be
// enabled and the static rulesets the rule engine actually kept enabled.
package drift

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/macropower/rulelimits/pkg/divergence"
	"github.com/macropower/rulelimits/pkg/filter"
	"github.com/macropower/rulelimits/pkg/host"
	"github.com/macropower/rulelimits/pkg/log"
	"github.com/macropower/rulelimits/pkg/ruleset"
)

// Report is the outcome of one [Detector.Detect] run.
type Report struct {
	// Expected lists the static filters that should be enabled.
	Expected []uint32 `json:"expected"`
	// Actual lists the static filters the rule engine has enabled.
	Actual []uint32 `json:"actual"`
	// FiltersToDisable lists the expected filters the engine did not enable.
	FiltersToDisable []uint32 `json:"filtersToDisable"`
	// Broken is true when Expected and Actual differ.
	Broken bool `json:"broken"`
	// Healed is true when a previous divergence record was cleared.
	Healed bool `json:"healed"`
}

// Detector compares filter state with the rule engine and aligns
// bookkeeping with what the engine actually runs.
type Detector struct {
	filters  filter.Source
	state    filter.StateWriter
	host     host.Host
	store    *divergence.Store
	prefix   string
	boundary uint32
}

// DetectorOpt configures a [Detector].
type DetectorOpt func(*Detector)

// WithPrefix sets the ruleset name prefix.
func WithPrefix(prefix string) DetectorOpt {
	return func(d *Detector) {
		if prefix != "" {
			d.prefix = prefix
		}
	}
}

// WithCustomFiltersStartID sets the first custom filter identifier.
func WithCustomFiltersStartID(id uint32) DetectorOpt {
	return func(d *Detector) {
		if id > 0 {
			d.boundary = id
		}
	}
}

// NewDetector creates a [Detector].
func NewDetector(
	filters filter.Source,
	state filter.StateWriter,
	h host.Host,
	store *divergence.Store,
	opts ...DetectorOpt,
) *Detector {
	d := &Detector{
		filters:  filters,
		state:    state,
		host:     h,
		store:    store,
		prefix:   ruleset.DefaultPrefix,
		boundary: filter.DefaultCustomFiltersStartID,
	}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Compare reads both filter sets and classifies them without side effects.
func (d *Detector) Compare(ctx context.Context) (*Report, error) {
	expected := d.expected()

	names, err := d.host.EnabledRulesets(ctx)
	if err != nil {
		return nil, fmt.Errorf("get enabled rulesets: %w", err)
	}

	actual, skipped := ruleset.ParseFilterIDs(names, d.prefix)
	if len(skipped) > 0 {
		log.WithContext(ctx).DebugContext(ctx, "ignoring rulesets without a filter identifier",
			slog.Any("rulesets", skipped),
		)
	}

	toDisable := make([]uint32, 0)
	for _, id := range expected {
		if _, found := slices.BinarySearch(actual, id); !found {
			toDisable = append(toDisable, id)
		}
	}

	return &Report{
		Expected:         expected,
		Actual:           actual,
		FiltersToDisable: toDisable,
		Broken:           !slices.Equal(expected, actual),
	}, nil
}

// Detect compares both filter sets and applies the side effects of the
// outcome. When broken, the expected set is recorded, filter state is
// aligned with the engine, and realign is called. When healthy, a non-empty
// divergence record is cleared.
func (d *Detector) Detect(ctx context.Context, realign func(context.Context) error) (*Report, error) {
	report, err := d.Compare(ctx)
	if err != nil {
		return nil, err
	}

	logger := log.WithContext(ctx)

	if !report.Broken {
		prev := d.store.Load(ctx)
		if len(prev) == 0 {
			return report, nil
		}

		err = d.store.Clear(ctx)
		if err != nil {
			return nil, fmt.Errorf("clear divergence record: %w", err)
		}

		report.Healed = true

		logger.InfoContext(ctx, "rule engine is consistent again, cleared divergence record",
			log.IDs("previous", prev),
		)

		return report, nil
	}

	logger.WarnContext(ctx, "rule engine diverged from filter state",
		log.IDs("expected", report.Expected),
		log.IDs("actual", report.Actual),
		log.IDs("filters_to_disable", report.FiltersToDisable),
	)

	err = d.store.Save(ctx, report.Expected)
	if err != nil {
		return nil, fmt.Errorf("record divergence: %w", err)
	}

	d.state.EnableFilters(ctx, report.Actual)
	d.state.DisableFilters(ctx, report.FiltersToDisable)

	if realign != nil {
		err = realign(ctx)
		if err != nil {
			return report, fmt.Errorf("realign configuration: %w", err)
		}
	}

	return report, nil
}

// expected returns the sorted, duplicate-free identifiers of the enabled
// non-custom filters.
func (d *Detector) expected() []uint32 {
	ids := make([]uint32, 0)
	for _, f := range d.filters.EnabledWithMetadata() {
		if f.FilterID < d.boundary {
			ids = append(ids, f.FilterID)
		}
	}

	slices.Sort(ids)

	return slices.Compact(ids)
}
