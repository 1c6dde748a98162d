package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	c, err := New(Options{Dir: t.TempDir(), TTL: ttl, Logger: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNewCreatesProcessDirectory(t *testing.T) {
	parent := t.TempDir()
	c, err := New(Options{Dir: parent, Logger: zerolog.Nop()})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(parent, fmt.Sprintf("voice-input-%d", os.Getpid())), c.Dir())
	assert.DirExists(t, c.Dir())

	require.NoError(t, c.Close())
	assert.NoDirExists(t, c.Dir())
}

func TestNewCustomPrefix(t *testing.T) {
	c, err := New(Options{Dir: t.TempDir(), Prefix: "dictation", Logger: zerolog.Nop()})
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, fmt.Sprintf("dictation-%d", os.Getpid()), filepath.Base(c.Dir()))
}

func TestPathIsUnique(t *testing.T) {
	c := newCache(t, 0)
	pattern := regexp.MustCompile(`^pre_\d+_[0-9a-f-]{36}\.wav$`)

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		p := c.Path(KindPre)
		assert.Equal(t, c.Dir(), filepath.Dir(p))
		assert.Regexp(t, pattern, filepath.Base(p))
		assert.False(t, seen[p], "duplicate path %s", p)
		seen[p] = true
	}
	assert.Equal(t, 100, c.Len())
}

func TestForgetRemovesFile(t *testing.T) {
	c := newCache(t, 0)
	p := c.Path(KindPost)
	require.NoError(t, WriteWAV(p, []float32{0.1, 0.2}, 16000, 1))
	require.FileExists(t, p)

	c.Forget(p)
	assert.NoFileExists(t, p)
	assert.Zero(t, c.Len())
}

func TestClearRemovesTrackedFiles(t *testing.T) {
	c := newCache(t, 0)
	var paths []string
	for i := 0; i < 3; i++ {
		p := c.Path(KindPre)
		require.NoError(t, WriteWAV(p, []float32{0.5}, 16000, 1))
		paths = append(paths, p)
	}
	// Issued but never written.
	c.Path(KindPost)

	c.Clear()
	for _, p := range paths {
		assert.NoFileExists(t, p)
	}
	assert.Zero(t, c.Len())
	assert.DirExists(t, c.Dir())
}

func TestExpiredSnapshotsAreRemoved(t *testing.T) {
	c := newCache(t, 50*time.Millisecond)
	p := c.Path(KindPre)
	require.NoError(t, WriteWAV(p, []float32{0.5}, 16000, 1))

	assert.Eventually(t, func() bool {
		_, err := os.Stat(p)
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "clip.wav")
	samples := []float32{0, 0.5, -0.5, 1, -1, 0.25}

	require.NoError(t, WriteWAV(path, samples, 44100, 2))

	got, rate, channels, err := ReadWAV(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(44100), rate)
	assert.Equal(t, uint16(2), channels)
	require.Len(t, got, len(samples))
	for i := range samples {
		assert.InDelta(t, samples[i], got[i], 1e-3, "sample %d", i)
	}
}

func TestWriteClampsOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, WriteWAV(path, []float32{2, -3}, 8000, 1))

	got, _, _, err := ReadWAV(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, 1, got[0], 1e-3)
	assert.InDelta(t, -1, got[1], 1e-3)
}

func TestWriteRejectsInvalidFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	assert.ErrorIs(t, WriteWAV(path, []float32{0.1}, 0, 1), ErrInvalidFormat)
	assert.ErrorIs(t, WriteWAV(path, []float32{0.1}, 16000, 0), ErrInvalidFormat)
	assert.NoFileExists(t, path)
}

func TestReadRejectsNonWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("definitely not audio, just some text"), 0o644))

	_, _, _, err := ReadWAV(path)
	assert.ErrorIs(t, err, ErrInvalidWAV)
}

func TestReadMissingFile(t *testing.T) {
	_, _, _, err := ReadWAV(filepath.Join(t.TempDir(), "missing.wav"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
