package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	require.NoError(t, metrics.Track("invoices:overdue-scan").End(nil))

	failure := errors.New("boom")
	require.ErrorIs(t, metrics.Track("invoices:overdue-scan").End(failure), failure)

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues("invoices:overdue-scan", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues("invoices:overdue-scan", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.failures.WithLabelValues("invoices:overdue-scan")))
}

func TestCountersIgnoreNonPositiveAdds(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.AddInvoicesCreated("org-1", 3)
	metrics.AddInvoicesCreated("org-1", 0)
	metrics.AddEntriesPosted("org-1", -2)

	require.Equal(t, 3.0, testutil.ToFloat64(metrics.invoicesCreated.WithLabelValues("org-1")))
	require.Equal(t, 0.0, testutil.ToFloat64(metrics.entriesPosted.WithLabelValues("org-1")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	require.NoError(t, metrics.Track("noop").End(nil))
	metrics.AddInvoicesCreated("org-1", 1)
	metrics.AddEntriesPosted("org-1", 1)
}
