package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the configuration for values that would prevent ingest
// from operating.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.DBPath) == "" {
		problems = append(problems, "paths.db_path must be set")
	}
	if strings.TrimSpace(c.Paths.MediaDir) == "" {
		problems = append(problems, "paths.media_dir must be set")
	}
	if strings.TrimSpace(c.Paths.TranscriptDir) == "" {
		problems = append(problems, "paths.transcript_dir must be set")
	}
	if c.Tools.YtDlpBinary == "" {
		problems = append(problems, "tools.yt_dlp_binary must be set")
	}
	if c.Tools.WhisperBinary == "" {
		problems = append(problems, "tools.whisper_binary must be set")
	}
	if c.Tools.FFmpegBinary == "" {
		problems = append(problems, "tools.ffmpeg_binary must be set")
	}
	if c.Tools.FFprobeBinary == "" {
		problems = append(problems, "tools.ffprobe_binary must be set")
	}
	if c.Workers.Count < 1 {
		problems = append(problems, "workers.count must be at least 1")
	}
	if c.Workers.PollIntervalSeconds <= 0 {
		problems = append(problems, "workers.poll_interval_seconds must be positive")
	}
	if c.Notifications.WebhookURL != "" {
		parsed, err := url.Parse(c.Notifications.WebhookURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			problems = append(problems, fmt.Sprintf("notifications.webhook_url %q is not a valid URL", c.Notifications.WebhookURL))
		}
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not supported (console, json)", c.Logging.Format))
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}
