package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/petems/voice-input/internal/capture"
	"github.com/petems/voice-input/internal/conditioner"
)

const (
	ModePushToTalk = "PushToTalk"
	ModeToggle     = "Toggle"

	appName   = "voice-input"
	envPrefix = "VOICE_INPUT"
)

var ErrInvalid = errors.New("invalid config")

type Config struct {
	Hotkey       string             `json:"hotkey" mapstructure:"hotkey"`
	HotkeyDarwin string             `json:"hotkey_darwin" mapstructure:"hotkey_darwin"`
	Mode         string             `json:"mode" mapstructure:"mode"` // "PushToTalk" or "Toggle"
	LogLevel     string             `json:"log_level" mapstructure:"log_level"`
	Audio        AudioConfig        `json:"audio" mapstructure:"audio"`
	Capture      CaptureConfig      `json:"capture" mapstructure:"capture"`
	Conditioning ConditioningConfig `json:"conditioning" mapstructure:"conditioning"`
	Queue        QueueConfig        `json:"queue" mapstructure:"queue"`
	Snapshots    SnapshotConfig     `json:"snapshots" mapstructure:"snapshots"`
	Recognition  RecognitionConfig  `json:"recognition" mapstructure:"recognition"`
	Inject       InjectConfig       `json:"inject" mapstructure:"inject"`
	Metrics      MetricsConfig      `json:"metrics" mapstructure:"metrics"`

	path string
}

type AudioConfig struct {
	Backend      string `json:"backend" mapstructure:"backend"` // "portaudio", "malgo", "pulse"
	Device       string `json:"device" mapstructure:"device"`   // empty = system default
	SampleFormat string `json:"sample_format" mapstructure:"sample_format"`
}

type CaptureConfig struct {
	MaxRecordSeconds      int  `json:"max_record_seconds" mapstructure:"max_record_seconds"`
	BufferDurationSeconds int  `json:"buffer_duration_seconds" mapstructure:"buffer_duration_seconds"`
	RetentionTrim         bool `json:"retention_trim" mapstructure:"retention_trim"`
}

type ConditioningConfig struct {
	TargetRMS               float32 `json:"target_rms" mapstructure:"target_rms"`
	MinGain                 float32 `json:"min_gain" mapstructure:"min_gain"`
	MaxGain                 float32 `json:"max_gain" mapstructure:"max_gain"`
	PeakPreventionThreshold float32 `json:"peak_prevention_threshold" mapstructure:"peak_prevention_threshold"`
	SoftNoiseGateFactor     float32 `json:"soft_noise_gate_factor" mapstructure:"soft_noise_gate_factor"`
}

type QueueConfig struct {
	Capacity int `json:"capacity" mapstructure:"capacity"`
}

type SnapshotConfig struct {
	Dir string        `json:"dir" mapstructure:"dir"` // parent of the per-process directory
	TTL time.Duration `json:"ttl" mapstructure:"ttl"`
}

type RecognitionConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	Command      string        `json:"command" mapstructure:"command"`
	Args         []string      `json:"args" mapstructure:"args"`
	Model        string        `json:"model" mapstructure:"model"` // "base", "small.en", etc.
	ModelsDir    string        `json:"models_dir" mapstructure:"models_dir"`
	ModelURL     string        `json:"model_url" mapstructure:"model_url"`
	AutoDownload bool          `json:"auto_download" mapstructure:"auto_download"`
	Language     string        `json:"language" mapstructure:"language"` // "auto", "en", etc.
	MinDuration  time.Duration `json:"min_duration" mapstructure:"min_duration"`
}

type InjectConfig struct {
	Enabled     bool `json:"enabled" mapstructure:"enabled"`
	PreferPaste bool `json:"prefer_paste" mapstructure:"prefer_paste"`
	AppendSpace bool `json:"append_space" mapstructure:"append_space"`
}

type MetricsConfig struct {
	Listen string `json:"listen" mapstructure:"listen"` // e.g. "127.0.0.1:9464"; empty disables
}

func setDefaults(v *viper.Viper) {
	params := conditioner.DefaultParams()
	opts := capture.DefaultOptions()

	v.SetDefault("hotkey", "Alt+Space")
	v.SetDefault("hotkey_darwin", "Ctrl+Space")
	v.SetDefault("mode", ModePushToTalk)
	v.SetDefault("log_level", "info")

	v.SetDefault("audio.backend", "portaudio")
	v.SetDefault("audio.device", "")
	v.SetDefault("audio.sample_format", "f32")

	v.SetDefault("capture.max_record_seconds", opts.MaxRecordSeconds)
	v.SetDefault("capture.buffer_duration_seconds", opts.BufferDurationSeconds)
	v.SetDefault("capture.retention_trim", false)

	v.SetDefault("conditioning.target_rms", params.TargetRMS)
	v.SetDefault("conditioning.min_gain", params.MinGain)
	v.SetDefault("conditioning.max_gain", params.MaxGain)
	v.SetDefault("conditioning.peak_prevention_threshold", params.PeakPreventionThreshold)
	v.SetDefault("conditioning.soft_noise_gate_factor", params.SoftNoiseGateFactor)

	v.SetDefault("queue.capacity", 4)

	v.SetDefault("snapshots.dir", "")
	v.SetDefault("snapshots.ttl", 10*time.Minute)

	v.SetDefault("recognition.enabled", true)
	v.SetDefault("recognition.command", "whisper-cli")
	v.SetDefault("recognition.args", []string{})
	v.SetDefault("recognition.model", "base")
	v.SetDefault("recognition.models_dir", "")
	v.SetDefault("recognition.model_url", "")
	v.SetDefault("recognition.auto_download", true)
	v.SetDefault("recognition.language", "auto")
	v.SetDefault("recognition.min_duration", 1100*time.Millisecond)

	v.SetDefault("inject.enabled", true)
	v.SetDefault("inject.prefer_paste", true)
	v.SetDefault("inject.append_space", true)

	v.SetDefault("metrics.listen", "")
}

// Loader reads the config file, environment and bound flags.
type Loader struct {
	v    *viper.Viper
	path string
}

// NewLoader creates a loader for path; empty means the platform default.
func NewLoader(path string) *Loader {
	if path == "" {
		path = configPath()
	}
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v, path: path}
}

// Viper exposes the underlying instance so commands can bind flags.
func (l *Loader) Viper() *viper.Viper { return l.v }

// Load reads the config from disk or returns defaults
func (l *Loader) Load() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", l.path, err)
		}
	}

	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.path = l.path

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads the config from the platform default location.
func Load() (*Config, error) {
	return NewLoader("").Load()
}

// Validate checks values that would otherwise fail deep inside the pipeline.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModePushToTalk, ModeToggle:
	default:
		return fmt.Errorf("%w: mode %q", ErrInvalid, c.Mode)
	}
	if c.Capture.MaxRecordSeconds <= 0 {
		return fmt.Errorf("%w: capture.max_record_seconds must be positive", ErrInvalid)
	}
	if c.Capture.BufferDurationSeconds <= 0 {
		return fmt.Errorf("%w: capture.buffer_duration_seconds must be positive", ErrInvalid)
	}
	if c.Queue.Capacity <= 0 {
		return fmt.Errorf("%w: queue.capacity must be positive", ErrInvalid)
	}
	if c.Conditioning.MinGain > c.Conditioning.MaxGain {
		return fmt.Errorf("%w: conditioning.min_gain exceeds max_gain", ErrInvalid)
	}
	if c.Conditioning.PeakPreventionThreshold <= 0 || c.Conditioning.PeakPreventionThreshold > 1 {
		return fmt.Errorf("%w: conditioning.peak_prevention_threshold must be in (0, 1]", ErrInvalid)
	}
	return nil
}

// Path returns the file the config was loaded from.
func (c *Config) Path() string {
	if c.path == "" {
		return configPath()
	}
	return c.path
}

// Save writes the config to disk
func (c *Config) Save() error {
	path := c.Path()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

// PlatformHotkey returns the appropriate hotkey for the current platform
func (c *Config) PlatformHotkey() string {
	if runtime.GOOS == "darwin" && c.HotkeyDarwin != "" {
		return c.HotkeyDarwin
	}
	return c.Hotkey
}

// CaptureOptions converts the capture and conditioning sections.
func (c *Config) CaptureOptions() capture.Options {
	return capture.Options{
		MaxRecordSeconds:        c.Capture.MaxRecordSeconds,
		BufferDurationSeconds:   c.Capture.BufferDurationSeconds,
		RetentionTrim:           c.Capture.RetentionTrim,
		PeakPreventionThreshold: c.Conditioning.PeakPreventionThreshold,
		SoftNoiseGateFactor:     c.Conditioning.SoftNoiseGateFactor,
	}
}

// ConditionerParams returns the worker's conditioning parameters.
func (c *Config) ConditionerParams() conditioner.Params {
	p := conditioner.DefaultParams()
	p.TargetRMS = c.Conditioning.TargetRMS
	p.MinGain = c.Conditioning.MinGain
	p.MaxGain = c.Conditioning.MaxGain
	p.PeakPreventionThreshold = c.Conditioning.PeakPreventionThreshold
	p.SoftNoiseGateFactor = c.Conditioning.SoftNoiseGateFactor
	return p
}

// ModelsDir returns the configured models directory or the platform default.
func (c *Config) ModelsDir() string {
	if c.Recognition.ModelsDir != "" {
		return c.Recognition.ModelsDir
	}
	return ModelsPath()
}

// configPath returns the platform-specific config file path
func configPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("APPDATA")
	default: // linux
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.config"
		}
	}

	return filepath.Join(base, appName, "config.json")
}

// ModelsPath returns the platform-specific models directory path
func ModelsPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("LOCALAPPDATA")
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.local/share"
		}
	}

	return filepath.Join(base, appName, "models")
}
