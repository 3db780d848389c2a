// Package session mediates voice-note capture and playback: at most one
// active recording session and one active playback session, progress
// published to observers, and resource cleanup guaranteed on every exit
// path including device failures.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/prodylabs/voicenote/internal/device"
	"github.com/prodylabs/voicenote/internal/store"
)

// Config controls session limits and the capture encoding profile.
type Config struct {
	MaxDuration  time.Duration
	PollInterval time.Duration
	Profile      device.CaptureProfile
	ProbeCommand string
}

// Manager owns the capture and playback devices. A single logical caller
// issues commands; the only background activity is one poll goroutine per
// active session.
type Manager struct {
	cfg      Config
	capture  device.Capture
	playback device.Playback
	store    *store.Store
	logger   *slog.Logger
	bc       *broadcaster

	// clock and probe are injectable for tests.
	clock func() time.Time
	probe func(source string) time.Duration

	// playCmd serializes playback start/stop sequences, which call the
	// device outside mu. The poll loop takes it with TryLock so a command
	// waiting on the loop's done channel cannot deadlock against a tick.
	playCmd sync.Mutex

	mu      sync.Mutex
	rec     *recordingSession
	play    *playbackSession
	lastErr error
}

type recordingSession struct {
	path      string
	startedAt time.Time
	elapsed   time.Duration
	amplitude float64
	stop      chan struct{}
	stopOnce  sync.Once
	done      chan struct{}
}

func (s *recordingSession) requestStop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

type playbackSession struct {
	source   string
	total    time.Duration
	progress float64
	paused   bool
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func (s *playbackSession) requestStop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// New creates a manager over the given devices and clip store.
func New(cfg Config, capture device.Capture, playback device.Playback, st *store.Store, logger *slog.Logger) *Manager {
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = 5 * time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		cfg:      cfg,
		capture:  capture,
		playback: playback,
		store:    st,
		logger:   logger,
		bc:       newBroadcaster(),
		clock:    time.Now,
	}
	m.probe = func(source string) time.Duration {
		return device.ProbeDuration(cfg.ProbeCommand, source)
	}
	return m
}

// Subscribe registers an observer of state snapshots. The returned cancel
// function must be called when the observer is done.
func (m *Manager) Subscribe(buffer int) (<-chan Snapshot, func()) {
	return m.bc.subscribe(buffer)
}

// State returns the current state snapshot.
func (m *Manager) State() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// LastError returns the most recent surfaced error, nil when none.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// ClearError clears the observable last-error value.
func (m *Manager) ClearError() {
	m.mu.Lock()
	m.lastErr = nil
	m.mu.Unlock()
	m.publish()
}

// StartRecording allocates a new clip file and begins capturing into it.
// Returns the clip path the recording will commit to on a clean stop.
func (m *Manager) StartRecording() (string, error) {
	m.mu.Lock()
	if m.rec != nil {
		m.mu.Unlock()
		return "", ErrAlreadyRecording
	}

	path, err := m.store.NewClipPath(m.clock())
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrRecordingIO, err)
		m.lastErr = wrapped
		m.mu.Unlock()
		m.publish()
		return "", wrapped
	}

	if err := m.capture.Start(context.Background(), m.cfg.Profile, path); err != nil {
		m.store.Delete(path)
		wrapped := fmt.Errorf("%w: %v", ErrDevice, err)
		if errors.Is(err, device.ErrPermission) {
			wrapped = fmt.Errorf("%w: %v", ErrPermission, err)
		}
		m.lastErr = wrapped
		m.mu.Unlock()
		m.publish()
		return "", wrapped
	}

	sess := &recordingSession{
		path:      path,
		startedAt: m.clock(),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	m.rec = sess
	m.mu.Unlock()

	go m.recordLoop(sess)

	m.logger.Info("recording started", "path", path)
	m.publish()
	return path, nil
}

// recordLoop polls elapsed duration and input level until the session is
// stopped, the device fails, or the maximum duration is reached.
func (m *Manager) recordLoop(sess *recordingSession) {
	defer close(sess.done)

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sess.stop:
			return
		case <-ticker.C:
			m.mu.Lock()
			if m.rec != sess {
				m.mu.Unlock()
				return
			}
			sess.elapsed = m.clock().Sub(sess.startedAt)
			sess.amplitude = m.capture.Level()
			devErr := m.capture.Err()
			expired := sess.elapsed >= m.cfg.MaxDuration
			if devErr != nil || expired {
				// Take ownership so a racing StopRecording sees no session.
				m.rec = nil
			}
			m.mu.Unlock()

			if devErr != nil {
				m.failRecording(sess, devErr)
				return
			}
			if expired {
				m.logger.Info("maximum recording duration reached", "path", sess.path, "max", m.cfg.MaxDuration)
				if _, _, err := m.finishRecording(sess); err != nil {
					m.logger.Error("auto-stop failed", "path", sess.path, "error", err)
				}
				return
			}
			m.publish()
		}
	}
}

// StopRecording ends the active recording and commits the clip. The clip
// file is only valid after this returns without error.
func (m *Manager) StopRecording() (string, time.Duration, error) {
	m.mu.Lock()
	sess := m.rec
	if sess == nil {
		m.mu.Unlock()
		return "", 0, ErrNoActiveRecording
	}
	m.rec = nil
	m.mu.Unlock()

	// Poll loop first, device second: no tick may touch a released handle.
	sess.requestStop()
	<-sess.done

	return m.finishRecording(sess)
}

// finishRecording releases the capture device and validates the clip. The
// caller has already detached the session and stopped its poll loop.
func (m *Manager) finishRecording(sess *recordingSession) (string, time.Duration, error) {
	elapsed := m.clock().Sub(sess.startedAt)

	if err := m.capture.Stop(); err != nil {
		m.store.Delete(sess.path)
		wrapped := fmt.Errorf("%w: %v", ErrDevice, err)
		m.setErr(wrapped)
		return "", 0, wrapped
	}

	info, err := os.Stat(sess.path)
	if err != nil || info.Size() == 0 {
		m.store.Delete(sess.path)
		wrapped := ErrEmptyRecording
		if err != nil {
			wrapped = fmt.Errorf("%w: %v", ErrEmptyRecording, err)
		}
		m.setErr(wrapped)
		return "", 0, wrapped
	}

	m.logger.Info("recording stopped", "path", sess.path, "duration", elapsed, "size", info.Size())
	m.publish()
	return sess.path, elapsed, nil
}

// failRecording tears down a recording after a device runtime failure.
func (m *Manager) failRecording(sess *recordingSession, devErr error) {
	if err := m.capture.Stop(); err != nil {
		m.logger.Debug("capture stop failed during failure teardown", "error", err)
	}
	m.store.Delete(sess.path)
	m.setErr(fmt.Errorf("%w: %v", ErrDevice, devErr))
}

// CancelRecording discards the active recording, deleting the partial
// file. Best effort: it never surfaces an error; internal teardown
// failures are logged and swallowed.
func (m *Manager) CancelRecording() {
	m.mu.Lock()
	sess := m.rec
	m.rec = nil
	m.mu.Unlock()
	if sess == nil {
		return
	}

	sess.requestStop()
	<-sess.done

	if err := m.capture.Stop(); err != nil {
		m.logger.Warn("capture stop failed during cancel", "error", err)
	}
	m.store.Delete(sess.path)
	m.logger.Info("recording cancelled", "path", sess.path)
	m.publish()
}

// StartPlayback loads and plays source. An active playback session is
// fully stopped first. The whole stop-load-play sequence is atomic with
// respect to other playback commands, so two concurrent starts cannot
// release each other's device.
func (m *Manager) StartPlayback(source string) error {
	m.playCmd.Lock()
	defer m.playCmd.Unlock()

	m.stopPlayback()

	total, err := m.playback.Load(source)
	if err != nil {
		_ = m.playback.Stop()
		wrapped := fmt.Errorf("%w: %v", ErrPlayback, err)
		m.setErr(wrapped)
		return wrapped
	}
	if err := m.playback.Play(); err != nil {
		_ = m.playback.Stop()
		wrapped := fmt.Errorf("%w: %v", ErrPlayback, err)
		m.setErr(wrapped)
		return wrapped
	}

	sess := &playbackSession{
		source: source,
		total:  total,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	m.mu.Lock()
	m.play = sess
	m.mu.Unlock()

	go m.playLoop(sess)

	m.logger.Info("playback started", "source", source, "total", total)
	m.publish()
	return nil
}

// playLoop polls playback progress until the session is stopped or the
// source reaches its natural end. Paused sessions keep the loop alive but
// publish nothing.
func (m *Manager) playLoop(sess *playbackSession) {
	defer close(sess.done)

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sess.stop:
			return
		case <-ticker.C:
			// A command owns the device right now; skip the tick rather
			// than racing its stop-load-play sequence.
			if !m.playCmd.TryLock() {
				continue
			}
			m.mu.Lock()
			if m.play != sess {
				m.mu.Unlock()
				m.playCmd.Unlock()
				return
			}
			if sess.paused {
				m.mu.Unlock()
				m.playCmd.Unlock()
				continue
			}
			finished := m.playback.Finished()
			if finished {
				m.play = nil
			} else if sess.total > 0 {
				sess.progress = clampFraction(float64(m.playback.Position()) / float64(sess.total))
			}
			m.mu.Unlock()

			if finished {
				if err := m.playback.Stop(); err != nil {
					m.logger.Debug("playback stop after completion failed", "error", err)
				}
				m.playCmd.Unlock()
				m.logger.Info("playback completed", "source", sess.source)
				m.publish()
				return
			}
			m.playCmd.Unlock()
			m.publish()
		}
	}
}

// StopPlayback stops the active playback session and resets progress.
// Idempotent: safe to call when already idle.
func (m *Manager) StopPlayback() {
	m.playCmd.Lock()
	defer m.playCmd.Unlock()
	m.stopPlayback()
}

// stopPlayback tears the active session down. Caller holds playCmd.
func (m *Manager) stopPlayback() {
	m.mu.Lock()
	sess := m.play
	m.play = nil
	m.mu.Unlock()
	if sess == nil {
		return
	}

	sess.requestStop()
	<-sess.done

	if err := m.playback.Stop(); err != nil {
		m.logger.Warn("playback device stop failed", "error", err)
	}
	m.logger.Info("playback stopped", "source", sess.source)
	m.publish()
}

// TogglePause pauses a playing session or resumes a paused one. No-op when
// idle.
func (m *Manager) TogglePause() {
	m.mu.Lock()
	sess := m.play
	if sess == nil {
		m.mu.Unlock()
		return
	}
	var err error
	if sess.paused {
		if err = m.playback.Resume(); err == nil {
			sess.paused = false
		}
	} else {
		if err = m.playback.Pause(); err == nil {
			sess.paused = true
		}
	}
	m.mu.Unlock()

	if err != nil {
		m.setErr(fmt.Errorf("%w: %v", ErrPlayback, err))
		return
	}
	m.publish()
}

// SeekTo repositions playback to the given fraction of the total duration.
// Out-of-range input is clamped; the new progress value is published
// immediately rather than on the next poll tick.
func (m *Manager) SeekTo(fraction float64) {
	fraction = clampFraction(fraction)

	m.mu.Lock()
	sess := m.play
	if sess == nil {
		m.mu.Unlock()
		return
	}
	pos := time.Duration(fraction * float64(sess.total))
	err := m.playback.Seek(pos)
	if err == nil {
		sess.progress = fraction
	}
	m.mu.Unlock()

	if err != nil {
		m.setErr(fmt.Errorf("%w: %v", ErrPlayback, err))
		return
	}
	m.publish()
}

// DeleteRecording removes a clip's backing file. Best effort; the result
// is a flag, never an error.
func (m *Manager) DeleteRecording(ref string) bool {
	ok := m.store.Delete(ref)
	m.logger.Debug("clip delete requested", "ref", ref, "deleted", ok)
	return ok
}

// AudioDuration probes a clip's total duration. Advisory: returns zero on
// any failure.
func (m *Manager) AudioDuration(ref string) time.Duration {
	return m.probe(ref)
}

// Release is the terminal cleanup call: it cancels any active recording
// (discarding it), stops any active playback, and closes all subscriber
// channels. It never surfaces errors.
func (m *Manager) Release() {
	m.CancelRecording()
	m.StopPlayback()
	m.bc.closeAll()
	m.logger.Info("session manager released")
}

func (m *Manager) setErr(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
	m.logger.Error("session error", "error", err)
	m.publish()
}

func (m *Manager) publish() {
	m.mu.Lock()
	s := m.snapshotLocked()
	m.mu.Unlock()
	m.bc.publish(s)
}

func (m *Manager) snapshotLocked() Snapshot {
	var s Snapshot
	if m.rec != nil {
		s.Recording = true
		s.Elapsed = m.rec.elapsed
		s.Amplitude = m.rec.amplitude
	}
	if m.play != nil {
		s.Playing = true
		s.Paused = m.play.paused
		s.Progress = m.play.progress
		s.Total = m.play.total
	}
	if m.lastErr != nil {
		s.LastError = m.lastErr.Error()
	}
	return s
}

func clampFraction(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
