// Package metrics provides Prometheus metrics for the capture and
// conditioning pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/petems/voice-input/internal/conditioner"
)

const namespace = "voice_input"

// Pipeline contains the capture, queue and worker metrics.
type Pipeline struct {
	recordingsTotal      *prometheus.CounterVec
	autoStopsTotal       prometheus.Counter
	jobsProcessedTotal   prometheus.Counter
	snapshotFailures     *prometheus.CounterVec
	conditioningDuration prometheus.Histogram
	queueDepth           prometheus.Gauge
	lastGain             prometheus.Gauge
	lastInputRMS         prometheus.Gauge
}

// NewPipeline creates the pipeline metrics and registers them with registry.
func NewPipeline(registry prometheus.Registerer) (*Pipeline, error) {
	m := &Pipeline{
		recordingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recordings_total",
				Help:      "Total number of stopped recordings by outcome",
			},
			[]string{"result"}, // submitted, queue_full, empty, closed
		),
		autoStopsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auto_stops_total",
			Help:      "Total number of recordings stopped by the duration cap",
		}),
		jobsProcessedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_processed_total",
			Help:      "Total number of recordings conditioned by the worker",
		}),
		snapshotFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshot_write_failures_total",
				Help:      "Total number of snapshot WAV files that could not be written",
			},
			[]string{"kind"},
		),
		conditioningDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conditioning_duration_seconds",
			Help:      "Time taken to condition and store one recording",
			// 1ms to ~4s
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Recordings waiting for the conditioning worker",
		}),
		lastGain: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_gain",
			Help:      "Gain applied to the most recent recording",
		}),
		lastInputRMS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_input_rms",
			Help:      "Input RMS level of the most recent recording",
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Describe implements prometheus.Collector.
func (m *Pipeline) Describe(ch chan<- *prometheus.Desc) {
	m.recordingsTotal.Describe(ch)
	m.autoStopsTotal.Describe(ch)
	m.jobsProcessedTotal.Describe(ch)
	m.snapshotFailures.Describe(ch)
	m.conditioningDuration.Describe(ch)
	m.queueDepth.Describe(ch)
	m.lastGain.Describe(ch)
	m.lastInputRMS.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Pipeline) Collect(ch chan<- prometheus.Metric) {
	m.recordingsTotal.Collect(ch)
	m.autoStopsTotal.Collect(ch)
	m.jobsProcessedTotal.Collect(ch)
	m.snapshotFailures.Collect(ch)
	m.conditioningDuration.Collect(ch)
	m.queueDepth.Collect(ch)
	m.lastGain.Collect(ch)
	m.lastInputRMS.Collect(ch)
}

// AutoStopped records a recording ended by the duration cap.
func (m *Pipeline) AutoStopped() {
	m.autoStopsTotal.Inc()
}

// RecordingSubmitted records a recording accepted by the queue.
func (m *Pipeline) RecordingSubmitted() {
	m.recordingsTotal.WithLabelValues("submitted").Inc()
}

// RecordingDiscarded records a stopped recording that never reached the queue.
func (m *Pipeline) RecordingDiscarded(reason string) {
	m.recordingsTotal.WithLabelValues(reason).Inc()
}

// QueueDepth records the number of pending jobs.
func (m *Pipeline) QueueDepth(n int) {
	m.queueDepth.Set(float64(n))
}

// JobProcessed records one conditioned recording.
func (m *Pipeline) JobProcessed(d time.Duration, st conditioner.Stats) {
	m.jobsProcessedTotal.Inc()
	m.conditioningDuration.Observe(d.Seconds())
	m.lastGain.Set(float64(st.Gain))
	m.lastInputRMS.Set(float64(st.InputRMS))
}

// SnapshotFailed records a snapshot write failure.
func (m *Pipeline) SnapshotFailed(kind string) {
	m.snapshotFailures.WithLabelValues(kind).Inc()
}
