// Package config loads, normalizes, and validates alogger configuration.
//
// Configuration is TOML with sections for paths (database, media and
// transcript directories), external tools (yt-dlp, whisper, ffmpeg,
// ffprobe), worker pool sizing and poll cadence, logging, and webhook
// notifications. Load resolves the file, applies defaults, expands paths,
// and validates before returning.
package config
