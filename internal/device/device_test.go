package device

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"
)

func TestRMSLevelSilence(t *testing.T) {
	if got := rmsLevel(make([]byte, 1024)); got != 0 {
		t.Fatalf("silence should meter at 0, got %v", got)
	}
}

func TestRMSLevelFullScale(t *testing.T) {
	pcm := make([]byte, 512)
	fullScale := int16(math.MinInt16)
	for i := 0; i < len(pcm); i += 2 {
		binary.LittleEndian.PutUint16(pcm[i:], uint16(fullScale))
	}
	got := rmsLevel(pcm)
	if got < 0.99 || got > 1 {
		t.Fatalf("full-scale signal should meter near 1, got %v", got)
	}
}

func TestRMSLevelTooShort(t *testing.T) {
	if got := rmsLevel([]byte{0x01}); got != 0 {
		t.Fatalf("sub-sample input should meter at 0, got %v", got)
	}
}

// levelReader feeds scripted PCM chunks to meterLoop and records the meter
// level observed after each one. Reads happen on the loop's goroutine, so
// each observation is sequenced after the previous chunk was metered.
type levelReader struct {
	capture *FFmpegCapture
	chunks  [][]byte
	levels  []float64
	next    int
}

func (r *levelReader) Read(p []byte) (int, error) {
	if r.next > 0 {
		r.levels = append(r.levels, r.capture.Level())
	}
	if r.next >= len(r.chunks) {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[r.next])
	r.next++
	return n, nil
}

func (r *levelReader) Close() error { return nil }

func TestMeterLoopCarriesHalfSample(t *testing.T) {
	// Four full-scale samples, delivered so the first chunk ends in the
	// middle of a sample. Without the carry, every sample after the split
	// is read misaligned and the level collapses to near zero.
	pcm := make([]byte, 8)
	fullScale := int16(math.MinInt16)
	for i := 0; i < len(pcm); i += 2 {
		binary.LittleEndian.PutUint16(pcm[i:], uint16(fullScale))
	}

	c := &FFmpegCapture{}
	r := &levelReader{capture: c, chunks: [][]byte{pcm[:3], pcm[3:]}}
	c.meterLoop(r)

	if len(r.levels) != 2 {
		t.Fatalf("expected 2 level observations, got %d", len(r.levels))
	}
	for i, level := range r.levels {
		if level < 0.99 {
			t.Fatalf("chunk %d metered at %v; sample alignment lost across reads", i, level)
		}
	}
}

func TestLogLevelDefaultsToError(t *testing.T) {
	t.Setenv("FFMPEG_LOGLEVEL", "")
	if got := logLevel(); got != "error" {
		t.Fatalf("expected error, got %q", got)
	}
}

func TestLogLevelHonorsEnv(t *testing.T) {
	t.Setenv("FFMPEG_LOGLEVEL", "debug")
	if got := logLevel(); got != "debug" {
		t.Fatalf("expected debug, got %q", got)
	}
}

func TestClassifyStartErrPermission(t *testing.T) {
	err := classifyStartErr(errors.New("exit status 1"), "default: Permission denied\n")
	if !errors.Is(err, ErrPermission) {
		t.Fatalf("expected ErrPermission, got %v", err)
	}
}

func TestClassifyStartErrGeneric(t *testing.T) {
	err := classifyStartErr(errors.New("exit status 1"), "Unknown input format: 'pulse'")
	if errors.Is(err, ErrPermission) {
		t.Fatal("non-permission failure misclassified")
	}
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestNormalizeExitNil(t *testing.T) {
	if normalizeExit(nil) != nil {
		t.Fatal("nil must normalize to nil")
	}
}

func TestNormalizeExitPlainError(t *testing.T) {
	err := errors.New("pipe broke")
	if normalizeExit(err) == nil {
		t.Fatal("non-exit errors must pass through")
	}
}
