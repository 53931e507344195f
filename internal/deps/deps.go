// Package deps verifies the external binaries the ingest pipeline
// shells out to.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"alogger/internal/config"
)

// Requirement defines an external dependency alogger relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements derives the dependency list from configuration.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{Name: "downloader", Command: cfg.Tools.YtDlpBinary, Description: "fetches media and metadata from source URLs"},
		{Name: "transcriber", Command: cfg.Tools.WhisperBinary, Description: "produces transcript JSON from media"},
		{Name: "ffmpeg", Command: cfg.Tools.FFmpegBinary, Description: "merges and transcodes audio/video streams"},
		{Name: "ffprobe", Command: cfg.Tools.FFprobeBinary, Description: "inspects media stream composition"},
	}
}

// CheckBinaries evaluates the provided requirements and reports
// availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// MissingRequired returns the names of unavailable non-optional
// dependencies.
func MissingRequired(statuses []Status) []string {
	var missing []string
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status.Name)
		}
	}
	return missing
}
