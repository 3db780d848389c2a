package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "no-such.yaml"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Recordings.MaxDuration != 5*time.Minute {
		t.Errorf("expected 5m max duration, got %v", cfg.Recordings.MaxDuration)
	}
	if cfg.Recordings.PollInterval != 100*time.Millisecond {
		t.Errorf("expected 100ms poll interval, got %v", cfg.Recordings.PollInterval)
	}
	if cfg.Capture.Channels != 1 {
		t.Errorf("expected mono capture, got %d channels", cfg.Capture.Channels)
	}
	if cfg.Capture.SampleRate != 44100 {
		t.Errorf("unexpected sample rate: %d", cfg.Capture.SampleRate)
	}
	if cfg.Recordings.Extension != ".m4a" {
		t.Errorf("unexpected extension: %s", cfg.Recordings.Extension)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voicenote.yaml")
	content := `
recordings:
  directory: /tmp/voicenote-test
  max_duration: 90s
  poll_interval: 50ms
capture:
  sample_rate: 22050
  bitrate_kbps: 64
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Recordings.Directory != "/tmp/voicenote-test" {
		t.Errorf("directory not overridden: %s", cfg.Recordings.Directory)
	}
	if cfg.Recordings.MaxDuration != 90*time.Second {
		t.Errorf("max duration not overridden: %v", cfg.Recordings.MaxDuration)
	}
	if cfg.Recordings.PollInterval != 50*time.Millisecond {
		t.Errorf("poll interval not overridden: %v", cfg.Recordings.PollInterval)
	}
	if cfg.Capture.SampleRate != 22050 {
		t.Errorf("sample rate not overridden: %d", cfg.Capture.SampleRate)
	}
	// Untouched values keep their defaults.
	if cfg.Capture.Channels != 1 {
		t.Errorf("channels default lost: %d", cfg.Capture.Channels)
	}
	if cfg.Playback.Command != "ffplay" {
		t.Errorf("playback default lost: %s", cfg.Playback.Command)
	}
}

func TestValidateAccumulatesProblems(t *testing.T) {
	cfg := Default()
	cfg.Recordings.Directory = ""
	cfg.Recordings.MaxDuration = 0
	cfg.Capture.SampleRate = -1

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation failure")
	}
	msg := err.Error()
	for _, want := range []string{"recordings.directory", "recordings.max_duration", "capture.sample_rate"} {
		if !strings.Contains(msg, want) {
			t.Errorf("validation message missing %q: %s", want, msg)
		}
	}
}

func TestValidateRejectsPollSlowerThanMax(t *testing.T) {
	cfg := Default()
	cfg.Recordings.PollInterval = 10 * time.Minute

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected rejection of poll interval >= max duration")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "voicenote.yaml")

	cfg := Default()
	cfg.Recordings.Directory = filepath.Join(dir, "clips")
	cfg.Recordings.MaxDuration = 2 * time.Minute

	if err := cfg.Save(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if loaded.Recordings.Directory != cfg.Recordings.Directory {
		t.Errorf("directory lost in round trip: %s", loaded.Recordings.Directory)
	}
	if loaded.Recordings.MaxDuration != 2*time.Minute {
		t.Errorf("max duration lost in round trip: %v", loaded.Recordings.MaxDuration)
	}
}
