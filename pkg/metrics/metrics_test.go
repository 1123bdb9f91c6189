package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/macropower/rulelimits/pkg/metrics"
	"github.com/macropower/rulelimits/pkg/quota"
)

func TestMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewPedanticRegistry()
	m := metrics.New(reg)

	m.ObservePass(metrics.OutcomeDiverged, 10*time.Millisecond)
	m.ObservePass(metrics.OutcomeSkipped, 0)
	m.ObservePass(metrics.OutcomeDiverged, time.Millisecond)
	m.ObserveConfiguration()
	m.ObserveSnapshot(quota.NewSnapshot(quota.View{
		Dynamic:                quota.Limit{Enabled: 42, Maximum: 5000},
		ExpectedEnabledFilters: []uint32{1, 2, 3},
	}))

	assert.InDelta(t, 2, testutil.ToFloat64(m.PassesTotal.WithLabelValues(metrics.OutcomeDiverged)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.PassesTotal.WithLabelValues(metrics.OutcomeSkipped)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ConfigurationsSet), 0)
	assert.InDelta(t, 42, testutil.ToFloat64(m.QuotaEnabled.WithLabelValues(quota.CategoryDynamic)), 0)
	assert.InDelta(t, 5000, testutil.ToFloat64(m.QuotaMaximum.WithLabelValues(quota.CategoryDynamic)), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.DivergedFilters), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.PassDuration))

	m.ObserveDivergence(0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.DivergedFilters), 0)
}

func TestMetrics_Nil(t *testing.T) {
	t.Parallel()

	var m *metrics.Metrics

	assert.NotPanics(t, func() {
		m.ObservePass(metrics.OutcomeError, time.Second)
		m.ObserveSnapshot(quota.Snapshot{})
		m.ObserveDivergence(1)
		m.ObserveConfiguration()
	})
}
