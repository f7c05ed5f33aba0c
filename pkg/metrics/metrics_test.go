package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("doctime", reg)

	m.CasesAutoCompleted.Add(3)
	m.SMSSent.WithLabelValues("sent").Inc()

	assert.Equal(t, 3.0, testutil.ToFloat64(m.CasesAutoCompleted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SMSSent.WithLabelValues("sent")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "doctime_cases_auto_completed_total")
	assert.Contains(t, names, "doctime_notifications_sms_total")
}

func TestTwoInstancesDoNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop()
		Nop()
	})
}
