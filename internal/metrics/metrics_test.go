package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSinkRecordsEvaluations(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewSink(reg)
	require.NoError(t, err)

	sink.RecordEvaluation("applied")
	sink.RecordEvaluation("applied")
	sink.RecordEvaluation("held")
	sink.ObserveOptimizeDuration(25 * time.Millisecond)
	sink.RecordPlan(64.5, 80, 1.42, 0.21)

	assert.InDelta(t, 2.0, testutil.ToFloat64(sink.evaluations.WithLabelValues("applied")), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(sink.evaluations.WithLabelValues("held")), 1e-9)
	assert.InDelta(t, 64.5, testutil.ToFloat64(sink.batterySoc), 1e-9)
	assert.InDelta(t, 80.0, testutil.ToFloat64(sink.targetSoc), 1e-9)
	assert.InDelta(t, 1.42, testutil.ToFloat64(sink.costEUR), 1e-9)
	assert.InDelta(t, 0.21, testutil.ToFloat64(sink.avgPrice), 1e-9)
}

func TestSinkReRegisterReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()

	first, err := NewSink(reg)
	require.NoError(t, err)
	first.RecordEvaluation("applied")

	second, err := NewSink(reg)
	require.NoError(t, err)
	second.RecordEvaluation("applied")

	assert.InDelta(t, 2.0, testutil.ToFloat64(second.evaluations.WithLabelValues("applied")), 1e-9)
}

func TestNilSinkIsNoop(t *testing.T) {
	var sink *Sink
	sink.RecordEvaluation("error")
	sink.ObserveOptimizeDuration(time.Second)
	sink.RecordPlan(0, 0, 0, 0)
}
