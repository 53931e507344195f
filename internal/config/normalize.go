package config

import "strings"

func (c *Config) normalize() error {
	pathFields := []*string{
		&c.Paths.DBPath,
		&c.Paths.MediaDir,
		&c.Paths.TranscriptDir,
		&c.Paths.LogDir,
		&c.Tools.WhisperModelDir,
	}
	for _, field := range pathFields {
		trimmed := strings.TrimSpace(*field)
		if trimmed == "" {
			*field = ""
			continue
		}
		expanded, err := expandPath(trimmed)
		if err != nil {
			return err
		}
		*field = expanded
	}

	c.Tools.YtDlpBinary = strings.TrimSpace(c.Tools.YtDlpBinary)
	c.Tools.WhisperBinary = strings.TrimSpace(c.Tools.WhisperBinary)
	c.Tools.FFmpegBinary = strings.TrimSpace(c.Tools.FFmpegBinary)
	c.Tools.FFprobeBinary = strings.TrimSpace(c.Tools.FFprobeBinary)
	c.Tools.WhisperModel = strings.TrimSpace(c.Tools.WhisperModel)
	c.Tools.WhisperLang = strings.TrimSpace(c.Tools.WhisperLang)
	c.Notifications.WebhookURL = strings.TrimSpace(c.Notifications.WebhookURL)
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))

	return nil
}
