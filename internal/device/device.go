package device

import (
	"context"
	"errors"
	"os"
	"time"
)

// ErrPermission indicates the capture backend was denied access to the
// microphone or input device.
var ErrPermission = errors.New("input device permission denied")

// logLevel returns the loglevel passed to the ffmpeg family of commands.
// The CLI's -v flag exports FFMPEG_LOGLEVEL to surface their output.
func logLevel() string {
	if lvl := os.Getenv("FFMPEG_LOGLEVEL"); lvl != "" {
		return lvl
	}
	return "error"
}

// CaptureProfile is the fixed encoding profile used for voice clips.
type CaptureProfile struct {
	SampleRate  int
	Channels    int
	BitrateKbps int
}

// Capture records encoded audio from the default input into a file.
// Implementations own exactly one capture process at a time.
type Capture interface {
	// Start begins capturing into outputPath. It returns once the backend
	// process is running (or has failed to start).
	Start(ctx context.Context, profile CaptureProfile, outputPath string) error

	// Stop ends the capture and finalizes the output file.
	Stop() error

	// Level returns the most recent normalized input level in [0, 1].
	Level() float64

	// Err reports a capture failure observed after Start returned, e.g. the
	// backend process dying mid-recording. Nil while capture is healthy.
	Err() error
}

// Playback plays audio from a file reference. Load must be called before
// any other method; Stop releases the backend and may be called at any time.
type Playback interface {
	// Load prepares the source and returns its total duration.
	Load(source string) (time.Duration, error)

	Play() error
	Pause() error
	Resume() error

	// Seek repositions playback to pos. Valid while playing or paused.
	Seek(pos time.Duration) error

	// Position returns the current playback position.
	Position() time.Duration

	// Finished reports whether the source played to its natural end.
	Finished() bool

	// Stop releases the backend. Idempotent.
	Stop() error
}
