package ruleset_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/rulelimits/pkg/ruleset"
)

func TestParseFilterID(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		name    string
		want    uint32
		wantErr bool
	}{
		"simple":          {name: "ruleset_2", want: 2},
		"large":           {name: "ruleset_4294967295", want: 4294967295},
		"missing prefix":  {name: "filter_2", wantErr: true},
		"not a number":    {name: "ruleset_abc", wantErr: true},
		"negative":        {name: "ruleset_-1", wantErr: true},
		"overflow":        {name: "ruleset_4294967296", wantErr: true},
		"empty remainder": {name: "ruleset_", wantErr: true},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := ruleset.ParseFilterID(tc.name, ruleset.DefaultPrefix)
			if tc.wantErr {
				require.ErrorIs(t, err, ruleset.ErrInvalidName)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseFilterIDs(t *testing.T) {
	t.Parallel()

	ids, skipped := ruleset.ParseFilterIDs([]string{"ruleset_9", "ruleset_2", "ruleset_9", "ruleset_1"}, ruleset.DefaultPrefix)
	assert.Equal(t, []uint32{1, 2, 9}, ids)
	assert.Empty(t, skipped)

	ids, skipped = ruleset.ParseFilterIDs([]string{"bogus", "ruleset_1", "ruleset_x"}, ruleset.DefaultPrefix)
	assert.Equal(t, []uint32{1}, ids)
	assert.Equal(t, []string{"bogus", "ruleset_x"}, skipped)
}

func TestNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ruleset_7", ruleset.Name(ruleset.DefaultPrefix, 7))
	assert.Equal(t, []string{"x1", "x2"}, ruleset.Names("x", []uint32{1, 2}))
}

func TestCounters(t *testing.T) {
	t.Parallel()

	result := &ruleset.ConfigurationResult{
		StaticRulesets: []ruleset.StaticRuleset{
			{ID: "ruleset_1", RulesCount: 100, RegexpRulesCount: 3},
			{ID: "ruleset_2", RulesCount: 50},
			{ID: "custom", RulesCount: 7},
		},
	}

	counters, skipped := result.Counters(ruleset.DefaultPrefix)
	assert.Equal(t, []string{"custom"}, skipped)
	require.Len(t, counters, 2)
	assert.Equal(t, ruleset.Counter{FilterID: 1, RulesCount: 100, RegexpRulesCount: 3}, counters[1])
	assert.Equal(t, 50, counters[2].RulesCount)
}

func TestLimitation(t *testing.T) {
	t.Parallel()

	result := &ruleset.ConfigurationResult{
		DynamicRules: ruleset.DynamicRules{
			Limitations: []ruleset.LimitationError{
				{Kind: ruleset.TooManyRegexpRules, Maximum: 1000, ExcludedRuleIDs: []int{4, 5}},
				{Kind: ruleset.TooManyRegexpRules, Maximum: 1},
			},
		},
	}

	l, ok := result.Limitation(ruleset.TooManyRegexpRules)
	require.True(t, ok)
	assert.Equal(t, 1000, l.Maximum)
	assert.Contains(t, l.Error(), "regexp")

	_, ok = result.Limitation(ruleset.TooManyRules)
	assert.False(t, ok)
}

func TestLimitationKindText(t *testing.T) {
	t.Parallel()

	var l ruleset.LimitationError

	err := json.Unmarshal([]byte(`{"kind":"too-many-rules","maximum":5000,"excludedRuleIds":[1]}`), &l)
	require.NoError(t, err)
	assert.Equal(t, ruleset.TooManyRules, l.Kind)
	assert.Equal(t, 5000, l.Maximum)

	err = json.Unmarshal([]byte(`{"kind":"too-many-cats"}`), &l)
	require.ErrorIs(t, err, ruleset.ErrUnknownLimitationKind)

	_, err = ruleset.LimitationKind(42).MarshalText()
	require.ErrorIs(t, err, ruleset.ErrUnknownLimitationKind)
	assert.Equal(t, "LimitationKind(42)", ruleset.LimitationKind(42).String())
}
