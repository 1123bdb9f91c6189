package filter

import (
	"errors"
	"fmt"

	"github.com/macropower/rulelimits/pkg/ruleset"
)

// ErrDuplicateFilter is returned when the catalog lists a filter twice.
var ErrDuplicateFilter = errors.New("duplicate filter")

// Config describes the filter catalog and how filters map to rulesets.
type Config struct {
	// RulesetPrefix is prepended to a filter identifier to form the name of
	// its static ruleset.
	RulesetPrefix string `json:"rulesetPrefix,omitempty" jsonschema:"title=Ruleset Prefix"`
	// Catalog lists the known filters.
	Catalog []Metadata `json:"catalog,omitempty" jsonschema:"title=Catalog"`
	// CustomFiltersStartID is the first identifier reserved for custom filters.
	// It is also the group boundary: filters in higher groups are custom.
	CustomFiltersStartID uint32 `json:"customFiltersStartId,omitempty" jsonschema:"title=Custom Filters Start ID,minimum=1"`
}

// NewConfig returns a [Config] with default values.
func NewConfig() *Config {
	c := &Config{}
	c.EnsureDefaults()

	return c
}

// EnsureDefaults sets unset fields to their default values.
func (c *Config) EnsureDefaults() {
	if c.RulesetPrefix == "" {
		c.RulesetPrefix = ruleset.DefaultPrefix
	}
	if c.CustomFiltersStartID == 0 {
		c.CustomFiltersStartID = DefaultCustomFiltersStartID
	}
}

// Validate checks the catalog for duplicate filters.
func (c *Config) Validate() error {
	seen := make(map[uint32]bool, len(c.Catalog))
	for i, m := range c.Catalog {
		if seen[m.FilterID] {
			return fmt.Errorf("catalog[%d]: %w: %d", i, ErrDuplicateFilter, m.FilterID)
		}

		seen[m.FilterID] = true
	}

	return nil
}
