package device

import (
	"encoding/json"
	"log/slog"
	"os/exec"
	"strconv"
	"time"
)

// ProbeDuration queries a clip's total duration with ffprobe. The probe is
// advisory: any failure returns zero rather than an error.
func ProbeDuration(command, source string) time.Duration {
	if command == "" {
		command = "ffprobe"
	}

	out, err := exec.Command(command,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		source,
	).Output()
	if err != nil {
		slog.Debug("duration probe failed", "source", source, "error", err)
		return 0
	}

	var result struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &result); err != nil {
		slog.Debug("duration probe returned unparseable output", "source", source, "error", err)
		return 0
	}

	seconds, err := strconv.ParseFloat(result.Format.Duration, 64)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}
