package worker

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"alogger/internal/logging"
	"alogger/internal/pipeline"
)

// cleanupJobFiles removes a killed job's partial output: media files
// named after its content id (including in-progress .part files) and
// its transcript directory. Best effort; missing files are ignored.
func (r *Runtime) cleanupJobFiles(outcome pipeline.Outcome) {
	if outcome.ContentID == "" {
		if outcome.MediaPath != "" {
			r.removeFile(outcome.MediaPath)
		}
		return
	}

	entries, err := os.ReadDir(r.cfg.Paths.MediaDir)
	if err == nil {
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasPrefix(entry.Name(), outcome.ContentID) {
				continue
			}
			r.removeFile(filepath.Join(r.cfg.Paths.MediaDir, entry.Name()))
		}
	}

	transcriptDir := filepath.Join(r.cfg.Paths.TranscriptDir, outcome.ContentID)
	if err := os.RemoveAll(transcriptDir); err != nil && !errors.Is(err, os.ErrNotExist) {
		r.logger.Warn("remove transcript directory",
			logging.String("path", transcriptDir), logging.Error(err))
	}
}

func (r *Runtime) removeFile(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		r.logger.Warn("remove partial file",
			logging.String("path", path), logging.Error(err))
	}
}
