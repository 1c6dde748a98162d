package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petems/voice-input/internal/conditioner"
)

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	m, err := NewPipeline(prometheus.NewRegistry())
	require.NoError(t, err)
	return m
}

func TestNewPipelineDoubleRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewPipeline(registry)
	require.NoError(t, err)

	_, err = NewPipeline(registry)
	assert.Error(t, err)
}

func TestRecordingOutcomes(t *testing.T) {
	m := newTestPipeline(t)

	m.RecordingSubmitted()
	m.RecordingSubmitted()
	m.RecordingDiscarded("queue_full")
	m.RecordingDiscarded("empty")

	assert.InDelta(t, 2, testutil.ToFloat64(m.recordingsTotal.WithLabelValues("submitted")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.recordingsTotal.WithLabelValues("queue_full")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.recordingsTotal.WithLabelValues("empty")), 0)
}

func TestAutoStopped(t *testing.T) {
	m := newTestPipeline(t)
	m.AutoStopped()
	assert.InDelta(t, 1, testutil.ToFloat64(m.autoStopsTotal), 0)
}

func TestJobProcessed(t *testing.T) {
	m := newTestPipeline(t)

	m.JobProcessed(20*time.Millisecond, conditioner.Stats{Gain: 2.5, InputRMS: 0.05})
	m.QueueDepth(3)

	assert.InDelta(t, 1, testutil.ToFloat64(m.jobsProcessedTotal), 0)
	assert.InDelta(t, 2.5, testutil.ToFloat64(m.lastGain), 1e-6)
	assert.InDelta(t, 0.05, testutil.ToFloat64(m.lastInputRMS), 1e-6)
	assert.InDelta(t, 3, testutil.ToFloat64(m.queueDepth), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.conditioningDuration))
}

func TestSnapshotFailed(t *testing.T) {
	m := newTestPipeline(t)

	m.SnapshotFailed("pre")
	m.SnapshotFailed("pre")
	m.SnapshotFailed("post")

	assert.InDelta(t, 2, testutil.ToFloat64(m.snapshotFailures.WithLabelValues("pre")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.snapshotFailures.WithLabelValues("post")), 0)
}
