package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersAndCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.MessagesPosted.Inc()
	m.MessagesPosted.Inc()
	m.CaptureFinalized.WithLabelValues(TriggerSweep).Inc()
	m.HTTPRequests.WithLabelValues("/messages", "201").Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.MessagesPosted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CaptureFinalized.WithLabelValues(TriggerSweep)))

	expected := `
# HELP dropbox_capture_finalized_total Capture sessions finalized by trigger
# TYPE dropbox_capture_finalized_total counter
dropbox_capture_finalized_total{trigger="sweep"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "dropbox_capture_finalized_total"))
}

func TestNew_DoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
