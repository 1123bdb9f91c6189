package quota

import "slices"

// Limit is the usage of one capped rule category.
type Limit struct {
	Enabled uint `json:"enabled" yaml:"enabled"`
	Maximum uint `json:"maximum" yaml:"maximum"`
}

// Exceeded reports whether more rules are enabled than the category allows.
func (l Limit) Exceeded() bool {
	return l.Enabled > l.Maximum
}

// Remaining returns how many more rules fit in the category.
func (l Limit) Remaining() uint {
	if l.Exceeded() {
		return 0
	}

	return l.Maximum - l.Enabled
}

// Snapshot is the usage of every capped rule category at one point in time,
// along with the filters the engine runs and the filters it was asked to run.
type Snapshot struct {
	actuallyEnabled []uint32
	expectedEnabled []uint32

	Dynamic        Limit
	DynamicRegexp  Limit
	StaticRulesets Limit
	StaticRules    Limit
	StaticRegexp   Limit
}

// NewSnapshot creates a [Snapshot] from its serializable form. The filter
// lists are copied.
func NewSnapshot(v View) Snapshot {
	return Snapshot{
		Dynamic:         v.Dynamic,
		DynamicRegexp:   v.DynamicRegexp,
		StaticRulesets:  v.StaticRulesets,
		StaticRules:     v.StaticRules,
		StaticRegexp:    v.StaticRegexp,
		actuallyEnabled: cloneIDs(v.ActuallyEnabledFilters),
		expectedEnabled: cloneIDs(v.ExpectedEnabledFilters),
	}
}

// ActuallyEnabledFilters returns the filters the rule engine has enabled.
func (s Snapshot) ActuallyEnabledFilters() []uint32 {
	return cloneIDs(s.actuallyEnabled)
}

// ExpectedEnabledFilters returns the filters that were expected to be
// enabled when divergence was last detected. Empty means no divergence.
func (s Snapshot) ExpectedEnabledFilters() []uint32 {
	return cloneIDs(s.expectedEnabled)
}

// Broken reports whether a divergence is on record.
func (s Snapshot) Broken() bool {
	return len(s.expectedEnabled) > 0
}

// Exceeded returns the names of the categories whose usage is over the limit.
func (s Snapshot) Exceeded() []string {
	var out []string
	for _, c := range s.Categories() {
		if c.Limit.Exceeded() {
			out = append(out, c.Name)
		}
	}

	return out
}

// Category is a named [Limit].
type Category struct {
	Name  string
	Limit Limit
}

// Category names, in display order.
const (
	CategoryDynamic        = "dynamic"
	CategoryDynamicRegexp  = "dynamicRegexp"
	CategoryStaticRulesets = "staticRulesets"
	CategoryStaticRules    = "staticRules"
	CategoryStaticRegexp   = "staticRegexp"
)

// Categories returns every limit of the snapshot by name.
func (s Snapshot) Categories() []Category {
	return []Category{
		{Name: CategoryDynamic, Limit: s.Dynamic},
		{Name: CategoryDynamicRegexp, Limit: s.DynamicRegexp},
		{Name: CategoryStaticRulesets, Limit: s.StaticRulesets},
		{Name: CategoryStaticRules, Limit: s.StaticRules},
		{Name: CategoryStaticRegexp, Limit: s.StaticRegexp},
	}
}

// View is the serializable form of a [Snapshot].
type View struct {
	Dynamic                Limit    `json:"dynamicRulesEnabledMaximum"        yaml:"dynamicRulesEnabledMaximum"`
	DynamicRegexp          Limit    `json:"dynamicRulesRegexpsEnabledMaximum" yaml:"dynamicRulesRegexpsEnabledMaximum"`
	StaticRulesets         Limit    `json:"staticFiltersEnabledMaximum"       yaml:"staticFiltersEnabledMaximum"`
	StaticRules            Limit    `json:"staticRulesEnabledMaximum"         yaml:"staticRulesEnabledMaximum"`
	StaticRegexp           Limit    `json:"staticRulesRegexpsEnabledMaximum"  yaml:"staticRulesRegexpsEnabledMaximum"`
	ActuallyEnabledFilters []uint32 `json:"actuallyEnabledFilters"            yaml:"actuallyEnabledFilters"`
	ExpectedEnabledFilters []uint32 `json:"expectedEnabledFilters"            yaml:"expectedEnabledFilters"`
}

// View returns the serializable form of the snapshot.
func (s Snapshot) View() View {
	return View{
		Dynamic:                s.Dynamic,
		DynamicRegexp:          s.DynamicRegexp,
		StaticRulesets:         s.StaticRulesets,
		StaticRules:            s.StaticRules,
		StaticRegexp:           s.StaticRegexp,
		ActuallyEnabledFilters: s.ActuallyEnabledFilters(),
		ExpectedEnabledFilters: s.ExpectedEnabledFilters(),
	}
}

func cloneIDs(ids []uint32) []uint32 {
	if ids == nil {
		return []uint32{}
	}

	return slices.Clone(ids)
}
