package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewLoader(filepath.Join(t.TempDir(), "missing.json")).Load()
	require.NoError(t, err)

	assert.Equal(t, ModePushToTalk, cfg.Mode)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "portaudio", cfg.Audio.Backend)
	assert.Equal(t, 30, cfg.Capture.MaxRecordSeconds)
	assert.Equal(t, 10, cfg.Capture.BufferDurationSeconds)
	assert.False(t, cfg.Capture.RetentionTrim)
	assert.Equal(t, 4, cfg.Queue.Capacity)
	assert.Equal(t, 10*time.Minute, cfg.Snapshots.TTL)
	assert.Equal(t, 1100*time.Millisecond, cfg.Recognition.MinDuration)
	assert.True(t, cfg.Inject.AppendSpace)
	assert.InDelta(t, 0.95, cfg.Conditioning.PeakPreventionThreshold, 1e-6)
	assert.InDelta(t, 0.2, cfg.Conditioning.SoftNoiseGateFactor, 1e-6)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"mode": "Toggle",
		"audio": {"backend": "malgo", "device": "USB Mic"},
		"queue": {"capacity": 8},
		"recognition": {"language": "en"}
	}`), 0o644))

	t.Setenv("VOICE_INPUT_AUDIO_DEVICE", "Built-in")
	t.Setenv("VOICE_INPUT_CAPTURE_MAX_RECORD_SECONDS", "12")

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, ModeToggle, cfg.Mode)
	assert.Equal(t, "malgo", cfg.Audio.Backend)
	assert.Equal(t, "Built-in", cfg.Audio.Device)
	assert.Equal(t, 12, cfg.Capture.MaxRecordSeconds)
	assert.Equal(t, 8, cfg.Queue.Capacity)
	assert.Equal(t, "en", cfg.Recognition.Language)
	assert.Equal(t, "whisper-cli", cfg.Recognition.Command)
	assert.Equal(t, path, cfg.Path())
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"mode": "Sometimes"}`), 0o644))

	_, err := NewLoader(path).Load()
	assert.ErrorIs(t, err, ErrInvalid)

	require.NoError(t, os.WriteFile(path, []byte(`{"queue": {"capacity": 0}}`), 0o644))
	_, err = NewLoader(path).Load()
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	_, err := NewLoader(path).Load()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalid)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	cfg.Mode = ModeToggle
	cfg.Audio.Device = "Studio"
	require.NoError(t, cfg.Save())

	again, err := NewLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, ModeToggle, again.Mode)
	assert.Equal(t, "Studio", again.Audio.Device)
	assert.Equal(t, cfg.Snapshots.TTL, again.Snapshots.TTL)
}

func TestConversions(t *testing.T) {
	cfg, err := NewLoader(filepath.Join(t.TempDir(), "none.json")).Load()
	require.NoError(t, err)
	cfg.Capture.RetentionTrim = true
	cfg.Conditioning.MaxGain = 4

	opts := cfg.CaptureOptions()
	assert.Equal(t, 30, opts.MaxRecordSeconds)
	assert.True(t, opts.RetentionTrim)

	p := cfg.ConditionerParams()
	assert.InDelta(t, 4, p.MaxGain, 1e-6)
	assert.InDelta(t, 0.12, p.TargetRMS, 1e-6)
	assert.NotZero(t, p.Epsilon)
}

func TestModelsDir(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, ModelsPath(), cfg.ModelsDir())
	cfg.Recognition.ModelsDir = "/opt/models"
	assert.Equal(t, "/opt/models", cfg.ModelsDir())
}
