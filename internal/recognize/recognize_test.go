package recognize

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petems/voice-input/internal/snapshot"
)

func TestPostProcess(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"whitespace", "  hello   world  ", "Hello world"},
		{"markers", "[music] hello [Noise], there [BLANK_AUDIO]", "Hello there"},
		{"multi word marker", "[background noise] testing", "Testing"},
		{"cyrillic markers", "[музыка] привет [music]", "Привет"},
		{"only markers", "[music] [applause]", ""},
		{"repetition", "this is a test this is a test and more", "This is a test and more"},
		{"cyrillic repetition", "это тест это тест и еще текст", "Это тест и еще текст"},
		{"longest repetition wins", "a b a b a b a b", "A b a b"},
		{"no repetition", "one two three four", "One two three four"},
		{"single repeated word kept", "no no no", "No no no"},
		{"already capitalized", "Done", "Done"},
		{"newlines", "first line\nsecond line", "First line second line"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PostProcess(tt.in))
		})
	}
}

func TestResample(t *testing.T) {
	in := []float32{0, 1, 0, -1}

	same := Resample(in, 16000, 16000)
	assert.Equal(t, in, same)

	up := Resample(in, 8000, 16000)
	require.Len(t, up, 8)
	assert.InDeltaSlice(t, []float32{0, 0.5, 1, 0.5, 0, -0.5, -1, -1}, up, 1e-6)

	down := Resample([]float32{0, 1, 2, 3, 4, 5}, 48000, 16000)
	assert.InDeltaSlice(t, []float32{0, 3}, down, 1e-6)

	assert.Empty(t, Resample(nil, 44100, 16000))
}

func TestFirstChannel(t *testing.T) {
	assert.Equal(t, []float32{1, 3, 5}, FirstChannel([]float32{1, 2, 3, 4, 5, 6}, 2))
	assert.Equal(t, []float32{1, 2}, FirstChannel([]float32{1, 2}, 1))
}

func TestPadToDuration(t *testing.T) {
	padded := PadToDuration([]float32{0.5}, 16000, DefaultMinDuration)
	assert.Len(t, padded, 17600)
	assert.Equal(t, float32(0.5), padded[0])
	assert.Zero(t, padded[17599])

	long := make([]float32, 20000)
	assert.Len(t, PadToDuration(long, 16000, DefaultMinDuration), 20000)
	assert.Empty(t, PadToDuration(nil, 16000, DefaultMinDuration))
}

func TestLoadSamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	stereo := make([]float32, 2*8000) // 1 s at 8 kHz
	for i := 0; i < len(stereo); i += 2 {
		stereo[i] = 0.5
		stereo[i+1] = -0.5
	}
	require.NoError(t, snapshot.WriteWAV(path, stereo, 8000, 2))

	samples, err := LoadSamples(path, TargetSampleRate, DefaultMinDuration)
	require.NoError(t, err)
	assert.Len(t, samples, 17600)
	assert.InDelta(t, 0.5, samples[0], 1e-3)
	assert.InDelta(t, 0.5, samples[15999], 1e-3)
	assert.Zero(t, samples[17000])
}

func TestLoadSamplesMissingFile(t *testing.T) {
	_, err := LoadSamples(filepath.Join(t.TempDir(), "missing.wav"), TargetSampleRate, 0)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func writeClip(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "post.wav")
	require.NoError(t, snapshot.WriteWAV(path, make([]float32, 4800), 48000, 1))
	return path
}

func TestCommandRecognize(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}
	// $1 is the prepared input; fail unless it exists.
	rec := NewCommand(CommandOptions{
		Command: "sh",
		Args:    []string{"-c", `test -f "$1" && echo "  hello   world [music] hello world"`, "sh", "{input}"},
		TempDir: t.TempDir(),
		Logger:  zerolog.Nop(),
	})

	text, err := rec.Recognize(context.Background(), writeClip(t))
	require.NoError(t, err)
	assert.Equal(t, "Hello world", text)
}

func TestCommandRecognizeFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}
	rec := NewCommand(CommandOptions{
		Command: "sh",
		Args:    []string{"-c", "echo model missing >&2; exit 3"},
		TempDir: t.TempDir(),
		Logger:  zerolog.Nop(),
	})

	_, err := rec.Recognize(context.Background(), writeClip(t))
	require.ErrorIs(t, err, ErrRecognition)
	assert.Contains(t, err.Error(), "model missing")
}

func TestCommandRecognizeMissingAudio(t *testing.T) {
	rec := NewCommand(CommandOptions{Command: "true", Logger: zerolog.Nop()})
	_, err := rec.Recognize(context.Background(), filepath.Join(t.TempDir(), "gone.wav"))
	assert.ErrorIs(t, err, ErrAudioNotFound)
}

func TestCommandExpand(t *testing.T) {
	rec := NewCommand(CommandOptions{Command: "whisper-cli", ModelPath: "/models/ggml-base.bin", Language: "en"})
	args := rec.expand("/tmp/in.wav")
	assert.Equal(t, []string{"-m", "/models/ggml-base.bin", "-f", "/tmp/in.wav", "-l", "en", "-nt", "-np"}, args)
}

func TestModelFile(t *testing.T) {
	name, err := ModelFile("Base")
	require.NoError(t, err)
	assert.Equal(t, "ggml-base.bin", name)

	name, err = ModelFile("large")
	require.NoError(t, err)
	assert.Equal(t, "ggml-large-v3.bin", name)

	_, err = ModelFile("enormous")
	assert.Error(t, err)
}

func TestEnsureModelDownloadsOnce(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.URL.Path != "/ggml-tiny.bin" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("model-bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	path, err := EnsureModel(ctx, "tiny", dir, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ggml-tiny.bin"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "model-bytes", string(data))
	assert.NoFileExists(t, path+".tmp")

	_, err = EnsureModel(ctx, "tiny", dir, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(1), requests.Load())
}

func TestEnsureModelHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	dir := t.TempDir()
	_, err := EnsureModel(context.Background(), "base.en", dir, srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
	assert.NoFileExists(t, filepath.Join(dir, "ggml-base.en.bin"))
}
