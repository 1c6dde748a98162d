package pipeline

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/petems/voice-input/internal/conditioner"
	"github.com/petems/voice-input/internal/snapshot"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"),
	)
}

type fakeMetrics struct {
	mu        sync.Mutex
	processed int
	failures  map[string]int
	gains     []float32
}

func (f *fakeMetrics) QueueDepth(int) {}

func (f *fakeMetrics) JobProcessed(_ time.Duration, st conditioner.Stats) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed++
	f.gains = append(f.gains, st.Gain)
}

func (f *fakeMetrics) SnapshotFailed(kind string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures == nil {
		f.failures = map[string]int{}
	}
	f.failures[kind]++
}

func newSnapshots(t *testing.T) *snapshot.Cache {
	t.Helper()
	c, err := snapshot.New(snapshot.Options{Dir: t.TempDir(), Logger: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func constant(n int, v float32) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func TestQueueRejectsWhenFull(t *testing.T) {
	q := NewQueue(4)

	for i := 0; i < 4; i++ {
		require.NoError(t, q.Enqueue(Job{ID: string(rune('a' + i))}))
	}
	assert.Equal(t, 4, q.Len())

	done := make(chan error, 1)
	go func() { done <- q.Enqueue(Job{ID: "overflow"}) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrQueueFull)
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}
	assert.Equal(t, 4, q.Len())
}

func TestQueueDefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, NewQueue(0).Cap())
	assert.Equal(t, 2, NewQueue(2).Cap())
}

func TestQueueClosed(t *testing.T) {
	q := NewQueue(2)
	require.NoError(t, q.Enqueue(Job{ID: "pending"}))
	q.Close()
	q.Close()

	assert.ErrorIs(t, q.Enqueue(Job{ID: "late"}), ErrQueueClosed)

	job, ok := <-q.Jobs()
	require.True(t, ok)
	assert.Equal(t, "pending", job.ID)

	_, ok = <-q.Jobs()
	assert.False(t, ok)
}

func TestCompletionPath(t *testing.T) {
	assert.Equal(t, "post.wav", Completion{PrePath: "pre.wav", PostPath: "post.wav"}.Path())
	assert.Equal(t, "pre.wav", Completion{PrePath: "pre.wav"}.Path())
	assert.Empty(t, Completion{}.Path())
}

func TestWorkerProcessesJobsInOrder(t *testing.T) {
	q := NewQueue(4)
	snaps := newSnapshots(t)
	metrics := &fakeMetrics{}
	completions := make(chan Completion, 4)

	w := NewWorker(WorkerConfig{
		Queue:       q,
		Snapshots:   snaps,
		Params:      conditioner.DefaultParams(),
		Logger:      zerolog.Nop(),
		Metrics:     metrics,
		Completions: completions,
	})

	ids := []string{"first", "second", "third"}
	for _, id := range ids {
		require.NoError(t, q.Enqueue(Job{ID: id, Samples: constant(160, 0.5), SampleRate: 16000, Channels: 1}))
	}
	q.Close()

	require.NoError(t, w.Run(context.Background()))
	close(completions)

	var got []Completion
	for c := range completions {
		got = append(got, c)
	}
	require.Len(t, got, 3)

	paths := map[string]bool{}
	for i, c := range got {
		assert.Equal(t, ids[i], c.JobID)
		assert.Equal(t, uint32(16000), c.SampleRate)
		assert.InDelta(t, 0.5, c.Stats.Gain, 1e-6)

		require.NotEmpty(t, c.PrePath)
		require.NotEmpty(t, c.PostPath)
		assert.True(t, strings.HasPrefix(c.PrePath, snaps.Dir()))
		assert.FileExists(t, c.PrePath)
		assert.FileExists(t, c.PostPath)

		assert.False(t, paths[c.PrePath], "duplicate path %s", c.PrePath)
		assert.False(t, paths[c.PostPath], "duplicate path %s", c.PostPath)
		paths[c.PrePath], paths[c.PostPath] = true, true
	}

	pre, rate, channels, err := snapshot.ReadWAV(got[0].PrePath)
	require.NoError(t, err)
	assert.Equal(t, uint32(16000), rate)
	assert.Equal(t, uint16(1), channels)
	require.Len(t, pre, 160)
	assert.InDelta(t, 0.5, pre[0], 1e-3)

	post, _, _, err := snapshot.ReadWAV(got[0].PostPath)
	require.NoError(t, err)
	require.Len(t, post, 160)
	for _, s := range post {
		assert.InDelta(t, 0.25, s, 1e-3)
	}

	assert.Equal(t, 3, metrics.processed)
}

func TestWorkerSnapshotFailureDoesNotAbortJob(t *testing.T) {
	q := NewQueue(4)
	metrics := &fakeMetrics{}
	completions := make(chan Completion, 2)

	failPre := func(path string, samples []float32, rate uint32, channels uint16) error {
		if strings.Contains(path, snapshot.KindPre+"_") {
			return errors.New("disk full")
		}
		return snapshot.WriteWAV(path, samples, rate, channels)
	}

	w := NewWorker(WorkerConfig{
		Queue:       q,
		Snapshots:   newSnapshots(t),
		Params:      conditioner.DefaultParams(),
		Logger:      zerolog.Nop(),
		Metrics:     metrics,
		Completions: completions,
		WriteWAV:    failPre,
	})

	require.NoError(t, q.Enqueue(Job{ID: "one", Samples: constant(100, 0.005), SampleRate: 8000, Channels: 1}))
	require.NoError(t, q.Enqueue(Job{ID: "two", Samples: constant(100, 0.005), SampleRate: 8000, Channels: 1}))
	q.Close()

	require.NoError(t, w.Run(context.Background()))

	for _, id := range []string{"one", "two"} {
		c := <-completions
		assert.Equal(t, id, c.JobID)
		assert.Empty(t, c.PrePath)
		assert.NotEmpty(t, c.PostPath)
		assert.FileExists(t, c.PostPath)
		assert.InDelta(t, 10, c.Stats.Gain, 1e-4)
	}
	assert.Equal(t, 2, metrics.failures[snapshot.KindPre])
	assert.Zero(t, metrics.failures[snapshot.KindPost])
}

func TestWorkerInvalidFormatOmitsBothSnapshots(t *testing.T) {
	q := NewQueue(1)
	completions := make(chan Completion, 1)
	w := NewWorker(WorkerConfig{
		Queue:       q,
		Snapshots:   newSnapshots(t),
		Params:      conditioner.DefaultParams(),
		Logger:      zerolog.Nop(),
		Completions: completions,
	})

	require.NoError(t, q.Enqueue(Job{ID: "bad", Samples: constant(10, 0.1)}))
	q.Close()
	require.NoError(t, w.Run(context.Background()))

	c := <-completions
	assert.Empty(t, c.PrePath)
	assert.Empty(t, c.PostPath)
}

func TestWorkerStopsOnCancel(t *testing.T) {
	q := NewQueue(1)
	w := NewWorker(WorkerConfig{Queue: q, Snapshots: newSnapshots(t), Logger: zerolog.Nop()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorkerWithoutCompletionChannel(t *testing.T) {
	q := NewQueue(1)
	snaps := newSnapshots(t)
	w := NewWorker(WorkerConfig{Queue: q, Snapshots: snaps, Params: conditioner.DefaultParams(), Logger: zerolog.Nop()})

	require.NoError(t, q.Enqueue(Job{ID: "solo", Samples: constant(32, 0.2), SampleRate: 16000, Channels: 2}))
	q.Close()
	require.NoError(t, w.Run(context.Background()))

	entries, err := os.ReadDir(snaps.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
