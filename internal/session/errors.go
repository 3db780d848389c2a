package session

import "errors"

// Session manager error taxonomy. StartRecording, StopRecording, and
// StartPlayback wrap these sentinels with detail; callers match with
// errors.Is. CancelRecording and Release never surface errors — teardown
// always succeeds from the caller's point of view.
var (
	// ErrAlreadyRecording: StartRecording while a recording is active.
	ErrAlreadyRecording = errors.New("recording already in progress")

	// ErrNoActiveRecording: StopRecording with no active session.
	ErrNoActiveRecording = errors.New("no active recording")

	// ErrPermission: the capture device was denied microphone access.
	ErrPermission = errors.New("microphone permission denied")

	// ErrRecordingIO: storage failed while allocating or committing a clip.
	ErrRecordingIO = errors.New("recording storage failure")

	// ErrEmptyRecording: the capture device produced a zero-length file.
	ErrEmptyRecording = errors.New("recording produced no audio")

	// ErrDevice: the capture device reported a runtime failure.
	ErrDevice = errors.New("audio device failure")

	// ErrPlayback: the source could not be loaded or played.
	ErrPlayback = errors.New("playback failure")
)
