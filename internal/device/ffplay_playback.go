package device

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// FFplayPlayback plays clips through an external ffplay process. Pause and
// resume freeze the process with SIGSTOP/SIGCONT; seeking relaunches the
// player at the target offset. Position is derived from wall clock while the
// process is running.
type FFplayPlayback struct {
	command      string
	probeCommand string

	mu        sync.Mutex
	source    string
	total     time.Duration
	cmd       *exec.Cmd
	loaded    bool
	playing   bool
	paused    bool
	finished  bool
	accrued   time.Duration
	startedAt time.Time
}

// NewFFplayPlayback creates a playback backend. Empty commands fall back to
// ffplay and ffprobe.
func NewFFplayPlayback(command, probeCommand string) *FFplayPlayback {
	if command == "" {
		command = "ffplay"
	}
	if probeCommand == "" {
		probeCommand = "ffprobe"
	}
	return &FFplayPlayback{command: command, probeCommand: probeCommand}
}

func (p *FFplayPlayback) Load(source string) (time.Duration, error) {
	if _, err := exec.LookPath(p.command); err != nil {
		return 0, fmt.Errorf("no suitable audio player found: %w", err)
	}
	info, err := os.Stat(source)
	if err != nil {
		return 0, fmt.Errorf("audio file not found: %s", source)
	}
	if info.Size() == 0 {
		return 0, fmt.Errorf("audio file is empty: %s", source)
	}

	total := ProbeDuration(p.probeCommand, source)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.source = source
	p.total = total
	p.loaded = true
	p.playing = false
	p.paused = false
	p.finished = false
	p.accrued = 0
	return total, nil
}

func (p *FFplayPlayback) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		return errors.New("no source loaded")
	}
	if p.cmd != nil {
		return errors.New("playback already started")
	}
	return p.spawnLocked(0)
}

// spawnLocked launches ffplay at the given offset. Caller holds p.mu.
func (p *FFplayPlayback) spawnLocked(offset time.Duration) error {
	args := []string{
		"-nodisp",
		"-autoexit",
		"-hide_banner",
		"-loglevel", logLevel(),
	}
	if offset > 0 {
		args = append(args, "-ss", fmt.Sprintf("%.3f", offset.Seconds()))
	}
	args = append(args, p.source)

	cmd := exec.Command(p.command, args...)
	if logLevel() != "error" {
		cmd.Stderr = os.Stderr
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", p.command, err)
	}

	p.cmd = cmd
	p.accrued = offset
	p.startedAt = time.Now()
	p.playing = true
	p.paused = false
	p.finished = false

	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.cmd != cmd {
			// Superseded by a seek or stop; that path owns the state.
			return
		}
		p.cmd = nil
		p.playing = false
		p.paused = false
		p.finished = true
		if p.total > 0 {
			p.accrued = p.total
		}
		if err != nil {
			slog.Debug("ffplay exited with error", "error", err)
		}
	}()

	return nil
}

func (p *FFplayPlayback) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil || !p.playing {
		return nil
	}
	if err := p.cmd.Process.Signal(syscall.SIGSTOP); err != nil {
		return fmt.Errorf("failed to pause playback: %w", err)
	}
	p.accrued += time.Since(p.startedAt)
	if p.total > 0 && p.accrued > p.total {
		p.accrued = p.total
	}
	p.playing = false
	p.paused = true
	return nil
}

func (p *FFplayPlayback) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused {
		return nil
	}
	if p.cmd == nil {
		// Seek happened while paused; relaunch at the stored offset.
		return p.spawnLocked(p.accrued)
	}
	if err := p.cmd.Process.Signal(syscall.SIGCONT); err != nil {
		return fmt.Errorf("failed to resume playback: %w", err)
	}
	p.startedAt = time.Now()
	p.playing = true
	p.paused = false
	return nil
}

func (p *FFplayPlayback) Seek(pos time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		return errors.New("no source loaded")
	}
	if pos < 0 {
		pos = 0
	}
	if p.total > 0 && pos > p.total {
		pos = p.total
	}

	wasPaused := p.paused
	p.killLocked()
	if wasPaused {
		// Stay paused at the new offset; Resume relaunches from here.
		p.accrued = pos
		p.paused = true
		return nil
	}
	return p.spawnLocked(pos)
}

func (p *FFplayPlayback) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos := p.accrued
	if p.playing {
		pos += time.Since(p.startedAt)
	}
	if p.total > 0 && pos > p.total {
		pos = p.total
	}
	return pos
}

func (p *FFplayPlayback) Finished() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finished
}

func (p *FFplayPlayback) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.killLocked()
	p.loaded = false
	p.paused = false
	p.finished = false
	p.accrued = 0
	p.total = 0
	p.source = ""
	return nil
}

// killLocked terminates the current player process, if any. Caller holds p.mu.
func (p *FFplayPlayback) killLocked() {
	if p.cmd == nil {
		return
	}
	cmd := p.cmd
	p.cmd = nil
	p.playing = false
	if cmd.Process != nil {
		// SIGCONT first so a stopped process can receive the kill.
		_ = cmd.Process.Signal(syscall.SIGCONT)
		_ = cmd.Process.Kill()
	}
	// The goroutine started in spawnLocked reaps the process.
}
