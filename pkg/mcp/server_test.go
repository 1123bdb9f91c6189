package mcp_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/macropower/rulelimits/pkg/alert"
	"github.com/macropower/rulelimits/pkg/divergence"
	"github.com/macropower/rulelimits/pkg/drift"
	"github.com/macropower/rulelimits/pkg/filter"
	"github.com/macropower/rulelimits/pkg/host"
	"github.com/macropower/rulelimits/pkg/kv"
	"github.com/macropower/rulelimits/pkg/log"
	"github.com/macropower/rulelimits/pkg/mcp"
	"github.com/macropower/rulelimits/pkg/quota"
	"github.com/macropower/rulelimits/pkg/reconcile"
	"github.com/macropower/rulelimits/pkg/ruleset"
	"github.com/macropower/rulelimits/pkg/simulate"
)

type fixture struct {
	engine  *simulate.Engine
	service *reconcile.Service
	ring    *log.Ring
	session *sdk.ClientSession
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	registry := filter.NewRegistry([]filter.Metadata{
		{FilterID: 1, GroupID: 1, Enabled: true},
		{FilterID: 2, GroupID: 2, Enabled: true},
		{FilterID: 3, GroupID: 3, Enabled: true},
	})
	h := host.NewMemory(host.WithMaxEnabledRulesets(2), host.WithAvailable(1000))
	store := divergence.NewStore(kv.NewMemory(nil))
	limits := host.Limits{MaxDynamicRules: 10, MaxRegexpRules: 2}

	svc := reconcile.NewService(
		quota.NewCalculator(registry, h, quota.WithLimits(limits)),
		drift.NewDetector(registry, registry, h, store),
		store,
	)

	engine := simulate.NewEngine(svc, registry, h,
		simulate.WithLimits(limits),
		simulate.WithDynamic(simulate.Dynamic{RulesCount: 14, RegexpRulesCount: 3}),
		simulate.WithRuleCounts(map[uint32]ruleset.Counter{
			1: {RulesCount: 100, RegexpRulesCount: 1},
			2: {RulesCount: 200, RegexpRulesCount: 2},
			3: {RulesCount: 300, RegexpRulesCount: 3},
		}),
	)

	ring := log.NewRing(8)

	server := mcp.NewServer("", svc,
		mcp.WithUpdate(engine.Apply),
		mcp.WithRules(alert.DefaultRules()),
		mcp.WithRing(ring),
	)

	ctx := t.Context()
	clientTransport, serverTransport := sdk.NewInMemoryTransports()

	serverSession, err := server.Server().Connect(ctx, serverTransport)
	require.NoError(t, err)

	client := sdk.NewClient(&sdk.Implementation{Name: "client"}, nil)
	clientSession, err := client.Connect(ctx, clientTransport)
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, clientSession.Close())
		assert.NoError(t, serverSession.Wait())
	})

	return &fixture{
		engine:  engine,
		service: svc,
		ring:    ring,
		session: clientSession,
	}
}

func (f *fixture) call(ctx context.Context, t *testing.T, name string, args map[string]any) map[string]any {
	t.Helper()

	if args == nil {
		args = map[string]any{}
	}

	r, err := f.session.CallTool(ctx, &sdk.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.False(t, r.IsError, "tool %s returned an error: %v", name, r.Content)

	out, ok := r.StructuredContent.(map[string]any)
	require.True(t, ok, "structured content of %s: %T", name, r.StructuredContent)

	return out
}

func TestServer_ListTools(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	res, err := f.session.ListTools(t.Context(), nil)
	require.NoError(t, err)

	names := make([]string, 0, len(res.Tools))
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}

	assert.ElementsMatch(t, []string{
		"get_limits",
		"check_and_reconcile",
		"clear_warning",
		"recent_diagnostics",
	}, names)
}

func TestServer_GetLimitsBeforeApply(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	got := f.call(t.Context(), t, "get_limits", nil)
	assert.Equal(t, "no-configuration", got["status"])
	assert.NotContains(t, got, "limits")
	assert.Equal(t, []any{}, got["exceeded"])
}

func TestServer_ReconcileCycle(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	f := newFixture(t)

	// Apply without checking: the engine keeps two of three filters.
	require.NoError(t, f.engine.Apply(ctx, reconcile.CheckModeSkip))

	got := f.call(ctx, t, "get_limits", nil)
	assert.Equal(t, "ok", got["status"])
	assert.Equal(t, false, got["filterLimitsExceeded"])
	assert.Equal(t, []any{"dynamicRegexp"}, got["exceeded"])

	limits, ok := got["limits"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"enabled": float64(10), "maximum": float64(10)}, limits["dynamicRulesEnabledMaximum"])
	assert.Equal(t, map[string]any{"enabled": float64(3), "maximum": float64(2)}, limits["dynamicRulesRegexpsEnabledMaximum"])
	assert.Equal(t, []any{float64(1), float64(2)}, limits["actuallyEnabledFilters"])
	assert.Equal(t, []any{}, limits["expectedEnabledFilters"])

	got = f.call(ctx, t, "check_and_reconcile", nil)
	assert.Equal(t, true, got["broken"])
	assert.Equal(t, false, got["skipped"])
	assert.Equal(t, []any{float64(1), float64(2), float64(3)}, got["expected"])
	assert.Equal(t, []any{float64(1), float64(2)}, got["actual"])
	assert.Equal(t, []any{float64(3)}, got["filtersToDisable"])
	assert.Equal(t, reconcile.StateDiverged, f.service.State())

	got = f.call(ctx, t, "get_limits", nil)
	assert.Equal(t, true, got["filterLimitsExceeded"])

	alerts, ok := got["alerts"].([]any)
	require.True(t, ok)

	alertNames := make([]any, 0, len(alerts))
	for _, a := range alerts {
		m, ok := a.(map[string]any)
		require.True(t, ok)

		alertNames = append(alertNames, m["name"])
	}

	assert.ElementsMatch(t, []any{"filters-diverged", "dynamic-regexp-exceeded"}, alertNames)
	assert.Contains(t, got["message"], "Divergence recorded")

	got = f.call(ctx, t, "clear_warning", nil)
	assert.Equal(t, "Divergence warning cleared.", got["message"])

	got = f.call(ctx, t, "get_limits", nil)
	assert.Equal(t, false, got["filterLimitsExceeded"])

	got = f.call(ctx, t, "check_and_reconcile", map[string]any{"skip": true})
	assert.Equal(t, true, got["skipped"])
	assert.Equal(t, "Check skipped.", got["message"])

	got = f.call(ctx, t, "check_and_reconcile", nil)
	assert.Equal(t, false, got["broken"])
	assert.Equal(t, "Filters are consistent.", got["message"])
	assert.Equal(t, reconcile.StateConsistent, f.service.State())
}

func TestServer_RecentDiagnostics(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	f := newFixture(t)

	for _, line := range []string{"one\n", "two\n", "three\n"} {
		_, err := f.ring.Write([]byte(line))
		require.NoError(t, err)
	}

	tcs := map[string]struct {
		args map[string]any
		want []any
	}{
		"default": {
			want: []any{"one", "two", "three"},
		},
		"limited": {
			args: map[string]any{"lines": 2},
			want: []any{"two", "three"},
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			got := f.call(ctx, t, "recent_diagnostics", tc.args)
			assert.Equal(t, tc.want, got["lines"])
		})
	}
}
