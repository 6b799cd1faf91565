package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsForTesting_Registers(t *testing.T) {
	m := NewMetricsForTesting()
	reg := prometheus.NewPedanticRegistry()

	require.NoError(t, reg.Register(m.Refreshes))
	require.NoError(t, reg.Register(m.ActiveWarnings))
	require.NoError(t, reg.Register(m.GeocodeRequests))

	m.Refreshes.WithLabelValues(OutcomeSuccess).Inc()
	m.ActiveWarnings.Set(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Refreshes.WithLabelValues(OutcomeSuccess)))
	n, err := testutil.GatherAndCount(reg, "geosphere_warnings_refreshes_total", "geosphere_warnings_active_warnings")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestNewMetricsForTesting_Independent(t *testing.T) {
	a, b := NewMetricsForTesting(), NewMetricsForTesting()
	a.MalformedPayloads.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.MalformedPayloads))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.MalformedPayloads))
}
