// Package config loads and validates the voicenote configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the resolved application configuration.
type Config struct {
	Recordings RecordingsConfig `mapstructure:"recordings" yaml:"recordings"`
	Capture    CaptureConfig    `mapstructure:"capture" yaml:"capture"`
	Playback   PlaybackConfig   `mapstructure:"playback" yaml:"playback"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
}

// RecordingsConfig controls the clip store and session limits.
type RecordingsConfig struct {
	Directory    string        `mapstructure:"directory" yaml:"directory"`
	FilePrefix   string        `mapstructure:"file_prefix" yaml:"file_prefix"`
	Extension    string        `mapstructure:"extension" yaml:"extension"`
	MaxDuration  time.Duration `mapstructure:"max_duration" yaml:"max_duration"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// MarshalYAML writes durations in their string form ("5m0s") so saved
// config files stay human-editable.
func (r RecordingsConfig) MarshalYAML() (interface{}, error) {
	return struct {
		Directory    string `yaml:"directory"`
		FilePrefix   string `yaml:"file_prefix"`
		Extension    string `yaml:"extension"`
		MaxDuration  string `yaml:"max_duration"`
		PollInterval string `yaml:"poll_interval"`
	}{
		Directory:    r.Directory,
		FilePrefix:   r.FilePrefix,
		Extension:    r.Extension,
		MaxDuration:  r.MaxDuration.String(),
		PollInterval: r.PollInterval.String(),
	}, nil
}

// CaptureConfig describes the capture backend and encoding profile.
type CaptureConfig struct {
	Command     string `mapstructure:"command" yaml:"command"`
	InputFormat string `mapstructure:"input_format" yaml:"input_format"`
	InputDevice string `mapstructure:"input_device" yaml:"input_device"`
	SampleRate  int    `mapstructure:"sample_rate" yaml:"sample_rate"`
	Channels    int    `mapstructure:"channels" yaml:"channels"`
	BitrateKbps int    `mapstructure:"bitrate_kbps" yaml:"bitrate_kbps"`
}

// PlaybackConfig describes the playback and probe backends.
type PlaybackConfig struct {
	Command      string `mapstructure:"command" yaml:"command"`
	ProbeCommand string `mapstructure:"probe_command" yaml:"probe_command"`
}

// ServerConfig controls the HTTP control server.
type ServerConfig struct {
	Listen string `mapstructure:"listen" yaml:"listen"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Recordings: RecordingsConfig{
			Directory:    os.ExpandEnv("$HOME/.local/share/voicenote/recordings"),
			FilePrefix:   "voicenote_",
			Extension:    ".m4a",
			MaxDuration:  5 * time.Minute,
			PollInterval: 100 * time.Millisecond,
		},
		Capture: CaptureConfig{
			Command:     "ffmpeg",
			InputFormat: "pulse",
			InputDevice: "default",
			SampleRate:  44100,
			Channels:    1,
			BitrateKbps: 96,
		},
		Playback: PlaybackConfig{
			Command:      "ffplay",
			ProbeCommand: "ffprobe",
		},
		Server: ServerConfig{
			Listen: ":8080",
		},
	}
}

// Load reads the configuration file at path, applying defaults for any
// missing values and VOICENOTE_* environment overrides. A missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	applyDefaults(v)

	v.SetEnvPrefix("VOICENOTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, statErr := os.Stat(path); statErr == nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			// No file: defaults plus env only.
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.Recordings.Directory = os.ExpandEnv(cfg.Recordings.Directory)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(v *viper.Viper) {
	def := Default()
	v.SetDefault("recordings.directory", def.Recordings.Directory)
	v.SetDefault("recordings.file_prefix", def.Recordings.FilePrefix)
	v.SetDefault("recordings.extension", def.Recordings.Extension)
	v.SetDefault("recordings.max_duration", def.Recordings.MaxDuration)
	v.SetDefault("recordings.poll_interval", def.Recordings.PollInterval)
	v.SetDefault("capture.command", def.Capture.Command)
	v.SetDefault("capture.input_format", def.Capture.InputFormat)
	v.SetDefault("capture.input_device", def.Capture.InputDevice)
	v.SetDefault("capture.sample_rate", def.Capture.SampleRate)
	v.SetDefault("capture.channels", def.Capture.Channels)
	v.SetDefault("capture.bitrate_kbps", def.Capture.BitrateKbps)
	v.SetDefault("playback.command", def.Playback.Command)
	v.SetDefault("playback.probe_command", def.Playback.ProbeCommand)
	v.SetDefault("server.listen", def.Server.Listen)
}

// Validate checks the configuration for values the session manager cannot
// work with. All problems are reported together.
func (c *Config) Validate() error {
	var problems []string

	if c.Recordings.Directory == "" {
		problems = append(problems, "recordings.directory must not be empty")
	}
	if c.Recordings.MaxDuration <= 0 {
		problems = append(problems, "recordings.max_duration must be positive")
	}
	if c.Recordings.PollInterval <= 0 {
		problems = append(problems, "recordings.poll_interval must be positive")
	}
	if c.Recordings.PollInterval > 0 && c.Recordings.MaxDuration > 0 &&
		c.Recordings.PollInterval >= c.Recordings.MaxDuration {
		problems = append(problems, "recordings.poll_interval must be shorter than recordings.max_duration")
	}
	if c.Capture.SampleRate <= 0 {
		problems = append(problems, "capture.sample_rate must be positive")
	}
	if c.Capture.Channels <= 0 {
		problems = append(problems, "capture.channels must be positive")
	}
	if c.Capture.BitrateKbps <= 0 {
		problems = append(problems, "capture.bitrate_kbps must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

// Save writes the configuration to path as YAML, creating parent
// directories as needed.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// DefaultPath returns the conventional config file location.
func DefaultPath() string {
	return os.ExpandEnv("$HOME/.config/voicenote.yaml")
}
