package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/petems/voice-input/internal/conditioner"
	"github.com/petems/voice-input/internal/snapshot"
)

// Snapshots issues unique snapshot paths.
type Snapshots interface {
	Path(kind string) string
}

// Metrics receives worker measurements.
type Metrics interface {
	QueueDepth(n int)
	JobProcessed(d time.Duration, st conditioner.Stats)
	SnapshotFailed(kind string)
}

// WAVWriter stores samples as a 16-bit PCM file.
type WAVWriter func(path string, samples []float32, sampleRate uint32, channels uint16) error

// WorkerConfig wires a Worker.
type WorkerConfig struct {
	Queue     *Queue
	Snapshots Snapshots
	Params    conditioner.Params
	Logger    zerolog.Logger
	Metrics   Metrics // optional
	// Completions receives one value per job in submission order. Optional.
	Completions chan<- Completion
	// WriteWAV defaults to snapshot.WriteWAV.
	WriteWAV WAVWriter
}

// Worker conditions queued recordings one at a time.
type Worker struct {
	queue       *Queue
	snapshots   Snapshots
	params      conditioner.Params
	log         zerolog.Logger
	metrics     Metrics
	completions chan<- Completion
	writeWAV    WAVWriter
}

// NewWorker creates a worker for cfg.Queue.
func NewWorker(cfg WorkerConfig) *Worker {
	w := &Worker{
		queue:       cfg.Queue,
		snapshots:   cfg.Snapshots,
		params:      cfg.Params,
		log:         cfg.Logger.With().Str("component", "worker").Logger(),
		metrics:     cfg.Metrics,
		completions: cfg.Completions,
		writeWAV:    cfg.WriteWAV,
	}
	if w.writeWAV == nil {
		w.writeWAV = snapshot.WriteWAV
	}
	return w
}

// Run consumes jobs until the queue is closed and drained or ctx is done.
// A job that has been dequeued always runs to completion.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Debug().Int("capacity", w.queue.Cap()).Msg("Worker started")
	defer w.log.Debug().Msg("Worker stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case job, ok := <-w.queue.Jobs():
			if !ok {
				return nil
			}
			if w.metrics != nil {
				w.metrics.QueueDepth(w.queue.Len())
			}

			c := w.process(job)

			if w.completions == nil {
				continue
			}
			select {
			case w.completions <- c:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

type conditioned struct {
	samples []float32
	stats   conditioner.Stats
}

func (w *Worker) process(job Job) Completion {
	start := time.Now()
	log := w.log.With().Str("job", job.ID).Logger()
	log.Debug().
		Int("samples", len(job.Samples)).
		Uint32("sample_rate", job.SampleRate).
		Uint16("channels", job.Channels).
		Msg("Processing recording")

	prePath := w.snapshots.Path(snapshot.KindPre)
	postPath := w.snapshots.Path(snapshot.KindPost)

	prePath = w.write(log, snapshot.KindPre, prePath, job.Samples, job)

	// Conditioning is CPU bound; it runs on its own goroutine and the worker
	// waits for it so only one job is ever in flight.
	done := make(chan conditioned, 1)
	go func() {
		out, st := conditioner.Condition(job.Samples, w.params)
		done <- conditioned{samples: out, stats: st}
	}()
	result := <-done

	postPath = w.write(log, snapshot.KindPost, postPath, result.samples, job)

	elapsed := time.Since(start)
	if w.metrics != nil {
		w.metrics.JobProcessed(elapsed, result.stats)
	}

	log.Info().
		Float32("input_rms", result.stats.InputRMS).
		Float32("gain", result.stats.Gain).
		Float32("noise_threshold", result.stats.NoiseThreshold).
		Int("gated", result.stats.Gated).
		Dur("elapsed", elapsed).
		Msg("Recording conditioned")

	return Completion{
		JobID:      job.ID,
		PrePath:    prePath,
		PostPath:   postPath,
		SampleRate: job.SampleRate,
		Channels:   job.Channels,
		Stats:      result.stats,
	}
}

// write returns path on success and "" when the snapshot could not be stored.
func (w *Worker) write(log zerolog.Logger, kind, path string, samples []float32, job Job) string {
	if err := w.writeWAV(path, samples, job.SampleRate, job.Channels); err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrSnapshotWrite, kind, err)
		log.Error().Err(err).Str("path", path).Msg("Snapshot not saved")
		if w.metrics != nil {
			w.metrics.SnapshotFailed(kind)
		}
		return ""
	}
	log.Debug().Str("kind", kind).Str("path", path).Msg("Snapshot saved")
	return path
}
