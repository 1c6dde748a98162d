// Package pipeline moves finished recordings from the stop path to the
// background conditioning worker.
package pipeline

import (
	"errors"
	"sync"
	"time"

	"github.com/petems/voice-input/internal/conditioner"
)

// DefaultCapacity is the number of recordings that may wait for the worker.
const DefaultCapacity = 4

var (
	ErrQueueFull     = errors.New("processing queue full")
	ErrQueueClosed   = errors.New("processing queue closed")
	ErrSnapshotWrite = errors.New("snapshot write failed")
)

// Job is one stopped recording. Samples are owned by the job.
type Job struct {
	ID         string
	Samples    []float32
	SampleRate uint32
	Channels   uint16
	CapturedAt time.Time
}

// Completion is emitted once per processed job. An empty path means that
// snapshot could not be written.
type Completion struct {
	JobID      string
	PrePath    string
	PostPath   string
	SampleRate uint32
	Channels   uint16
	Stats      conditioner.Stats
}

// Path returns the best available snapshot, preferring the conditioned one.
func (c Completion) Path() string {
	if c.PostPath != "" {
		return c.PostPath
	}
	return c.PrePath
}

// Queue is a bounded FIFO whose Enqueue never blocks.
type Queue struct {
	mu     sync.RWMutex
	jobs   chan Job
	closed bool
}

// NewQueue creates a queue holding at most capacity pending jobs.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{jobs: make(chan Job, capacity)}
}

// Enqueue submits job, failing with ErrQueueFull instead of waiting.
func (q *Queue) Enqueue(job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Jobs is the receive side consumed by the worker.
func (q *Queue) Jobs() <-chan Job { return q.jobs }

// Len returns the number of pending jobs.
func (q *Queue) Len() int { return len(q.jobs) }

// Cap returns the queue capacity.
func (q *Queue) Cap() int { return cap(q.jobs) }

// Close stops accepting jobs. Pending jobs are still delivered.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.jobs)
}
