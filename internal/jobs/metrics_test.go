package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTrackerCountsOutcomes(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	assert.NoError(t, m.Track("scan").End(nil))
	boom := errors.New("boom")
	assert.ErrorIs(t, m.Track("scan").End(boom), boom)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("scan", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("scan", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("scan")))
}

func TestSetFindings(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.SetFindings("user_role", 3)
	m.SetFindings("user_role", 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.findings.WithLabelValues("user_role")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.SetFindings("role_profile", 2)
	assert.NoError(t, m.Track("scan").End(nil))
}
