package device

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FFmpegCapture records the default input device through an external ffmpeg
// process. The process writes the encoded clip to the session file and a
// second raw s16le stream to stdout, which feeds the live level meter.
type FFmpegCapture struct {
	command     string
	inputFormat string
	inputDevice string

	mu      sync.Mutex
	cmd     *exec.Cmd
	stderr  *bytes.Buffer
	waitErr chan error
	runErr  error
	stopped bool

	levelMu sync.Mutex
	level   float64
}

// NewFFmpegCapture creates a capture backend. Empty arguments fall back to
// ffmpeg with the pulse default source.
func NewFFmpegCapture(command, inputFormat, inputDevice string) *FFmpegCapture {
	if command == "" {
		command = "ffmpeg"
	}
	if inputFormat == "" {
		inputFormat = "pulse"
	}
	if inputDevice == "" {
		inputDevice = "default"
	}
	return &FFmpegCapture{
		command:     command,
		inputFormat: inputFormat,
		inputDevice: inputDevice,
	}
}

func (c *FFmpegCapture) Start(ctx context.Context, profile CaptureProfile, outputPath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cmd != nil {
		return errors.New("capture already started")
	}

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", logLevel(),
		"-f", c.inputFormat,
		"-i", c.inputDevice,
		// Encoded clip output.
		"-ac", strconv.Itoa(profile.Channels),
		"-ar", strconv.Itoa(profile.SampleRate),
		"-c:a", "aac",
		"-b:a", fmt.Sprintf("%dk", profile.BitrateKbps),
		"-y", outputPath,
		// Raw PCM tap for the level meter.
		"-ac", "1",
		"-ar", strconv.Itoa(profile.SampleRate),
		"-f", "s16le",
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, c.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if logLevel() != "error" {
		cmd.Stderr = io.MultiWriter(&stderr, os.Stderr)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	// Catch immediate failures (bad device, denied access) before
	// reporting the capture as started.
	select {
	case err := <-waitErr:
		return classifyStartErr(err, stderr.String())
	case <-time.After(250 * time.Millisecond):
	}

	c.cmd = cmd
	c.stderr = &stderr
	c.waitErr = waitErr
	c.runErr = nil
	c.stopped = false

	go c.meterLoop(stdout)

	return nil
}

// meterLoop computes an RMS level over each PCM chunk until the pipe closes.
// Reads are not sample-aligned: a trailing half-sample is carried into the
// next chunk so every 16-bit sample stays intact.
func (c *FFmpegCapture) meterLoop(stdout io.ReadCloser) {
	defer stdout.Close()

	buf := make([]byte, 4096)
	fill := 0
	for {
		n, err := stdout.Read(buf[fill:])
		fill += n
		if even := fill &^ 1; even > 0 {
			c.setLevel(rmsLevel(buf[:even]))
			if even < fill {
				buf[0] = buf[even]
				fill = 1
			} else {
				fill = 0
			}
		}
		if err != nil {
			c.setLevel(0)
			c.observeExit()
			return
		}
	}
}

// observeExit records an unexpected process death so Err can surface it.
func (c *FFmpegCapture) observeExit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || c.cmd == nil {
		return
	}
	select {
	case err, ok := <-c.waitErr:
		if !ok {
			return
		}
		detail := strings.TrimSpace(c.stderr.String())
		if err == nil {
			err = errors.New("ffmpeg exited during capture")
		}
		if detail != "" {
			c.runErr = fmt.Errorf("capture process died: %w: %s", err, detail)
		} else {
			c.runErr = fmt.Errorf("capture process died: %w", err)
		}
	default:
		// Pipe closed but the process is still winding down; Stop will
		// collect it.
	}
}

func (c *FFmpegCapture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cmd == nil {
		return nil
	}
	cmd := c.cmd
	waitErr := c.waitErr
	stderr := c.stderr
	runErr := c.runErr
	c.cmd = nil
	c.waitErr = nil
	c.stderr = nil
	c.runErr = nil
	c.stopped = true

	if runErr != nil {
		// Process already died; nothing left to signal.
		return runErr
	}

	// SIGINT lets ffmpeg finalize the container before exiting.
	if cmd.Process != nil {
		if err := cmd.Process.Signal(os.Interrupt); err != nil {
			slog.Debug("failed to interrupt ffmpeg, killing", "error", err)
			_ = cmd.Process.Kill()
		}
	}

	select {
	case err := <-waitErr:
		if stopErr := normalizeExit(err); stopErr != nil {
			return fmt.Errorf("ffmpeg capture failed: %w: %s", stopErr, strings.TrimSpace(stderr.String()))
		}
		return nil
	case <-time.After(5 * time.Second):
		slog.Warn("ffmpeg did not exit within timeout, force killing")
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		<-waitErr
		return nil
	}
}

func (c *FFmpegCapture) Level() float64 {
	c.levelMu.Lock()
	defer c.levelMu.Unlock()
	return c.level
}

func (c *FFmpegCapture) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runErr
}

func (c *FFmpegCapture) setLevel(v float64) {
	c.levelMu.Lock()
	c.level = v
	c.levelMu.Unlock()
}

// rmsLevel returns the normalized root-mean-square of s16le samples.
func rmsLevel(pcm []byte) float64 {
	if len(pcm) < 2 {
		return 0
	}
	var sum float64
	n := len(pcm) / 2
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		f := float64(s) / 32768.0
		sum += f * f
	}
	v := math.Sqrt(sum / float64(n))
	if v > 1 {
		v = 1
	}
	return v
}

// classifyStartErr maps an early ffmpeg exit to a typed start failure.
func classifyStartErr(err error, stderr string) error {
	detail := strings.TrimSpace(stderr)
	lower := strings.ToLower(detail)
	if strings.Contains(lower, "permission denied") || strings.Contains(lower, "access denied") {
		return fmt.Errorf("%w: %s", ErrPermission, detail)
	}
	if err == nil {
		err = errors.New("ffmpeg exited before capture started")
	}
	if detail != "" {
		return fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, detail)
	}
	return fmt.Errorf("ffmpeg exited before capture started: %w", err)
}

// normalizeExit treats signal-driven exits as a clean stop. ffmpeg returns
// 255 after SIGINT even when the output file was finalized correctly.
func normalizeExit(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.ExitCode() == 255 {
			return nil
		}
		if state := exitErr.ProcessState; state != nil {
			s := state.String()
			if s == "signal: interrupt" || s == "signal: killed" {
				return nil
			}
		}
		return exitErr
	}
	return err
}
