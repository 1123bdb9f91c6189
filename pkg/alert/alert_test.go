package alert_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/rulelimits/pkg/alert"
	"github.com/macropower/rulelimits/pkg/quota"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		expr    string
		wantErr bool
	}{
		"valid":             {expr: `usage(staticRules) > 0.9`},
		"uses lists":        {expr: `broken && size(missing(expected, actual)) > 2`},
		"empty":             {expr: ``, wantErr: true},
		"not boolean":       {expr: `usage(staticRules)`, wantErr: true},
		"unknown variable":  {expr: `filters.size() > 1`, wantErr: true},
		"invalid syntax":    {expr: `dynamic.enabled >`, wantErr: true},
		"unknown function":  {expr: `frobnicate(dynamic)`, wantErr: true},
		"remaining is int":  {expr: `remaining(staticRulesets) < 5`},
		"category equality": {expr: `dynamic.enabled == dynamic.maximum`},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			r, err := alert.New(name, tc.expr, alert.SeverityInfo, "")
			if tc.wantErr {
				require.Error(t, err)
				assert.Nil(t, r)

				return
			}

			require.NoError(t, err)
			assert.NotNil(t, r)
		})
	}
}

func TestEvaluate_DefaultRules(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		view quota.View
		want []string
	}{
		"healthy": {
			view: quota.View{
				Dynamic:        quota.Limit{Enabled: 10, Maximum: 5000},
				StaticRulesets: quota.Limit{Enabled: 3, Maximum: 50},
			},
		},
		"diverged": {
			view: quota.View{
				ExpectedEnabledFilters: []uint32{1, 2, 3},
				ActuallyEnabledFilters: []uint32{1, 2},
			},
			want: []string{"filters-diverged"},
		},
		"exceeded": {
			view: quota.View{
				StaticRulesets: quota.Limit{Enabled: 51, Maximum: 50},
				DynamicRegexp:  quota.Limit{Enabled: 1003, Maximum: 1000},
			},
			want: []string{"static-rulesets-exceeded", "dynamic-regexp-exceeded"},
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			alerts := alert.Evaluate(alert.DefaultRules(), quota.NewSnapshot(tc.view))

			names := make([]string, 0, len(alerts))
			for _, a := range alerts {
				names = append(names, a.Name)
			}

			assert.ElementsMatch(t, tc.want, names)
		})
	}
}

func TestEvaluate_CustomRule(t *testing.T) {
	t.Parallel()

	rules := []*alert.Rule{
		alert.MustNew("static-rules-nearly-full", `usage(staticRules) >= 0.9`, "", "Static rules almost full"),
		alert.MustNew("many-missing", `size(missing(expected, actual)) > 1`, alert.SeverityCritical, ""),
	}

	snap := quota.NewSnapshot(quota.View{
		StaticRules:            quota.Limit{Enabled: 27000, Maximum: 30000},
		ExpectedEnabledFilters: []uint32{1, 2, 3},
		ActuallyEnabledFilters: []uint32{1, 2},
	})

	alerts := alert.Evaluate(rules, snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, alert.Alert{
		Name:     "static-rules-nearly-full",
		Severity: alert.SeverityWarning,
		Message:  "Static rules almost full",
	}, alerts[0])
}

func TestRule_MatchUncompiled(t *testing.T) {
	t.Parallel()

	r := &alert.Rule{Name: "raw", Expr: "broken"}
	assert.Panics(t, func() {
		r.Match(alert.Vars(quota.Snapshot{}))
	})

	require.NoError(t, r.Compile())
	assert.False(t, r.Match(alert.Vars(quota.Snapshot{})))
}

func TestConfig(t *testing.T) {
	t.Parallel()

	c := alert.NewConfig()
	c.EnsureDefaults()
	require.NoError(t, c.Compile())
	assert.Len(t, c.All(), len(alert.DefaultRules()))

	c.Rules = []*alert.Rule{{Name: "custom", Expr: "broken"}}
	c.DisableDefaults = true
	require.NoError(t, c.Compile())
	require.Len(t, c.All(), 1)
	assert.Equal(t, "custom", c.All()[0].Name)

	c.Rules = append(c.Rules, &alert.Rule{Name: "bad", Expr: "1 + 1"})
	require.ErrorContains(t, c.Compile(), `rules[1] "bad"`)
}
