// Package testsupport provides shared helpers for package tests.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"alogger/internal/config"
)

// ConfigOption allows callers to customize the generated test
// configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per
// test. It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DBPath = filepath.Join(base, "alogger.db")
	cfgVal.Paths.MediaDir = filepath.Join(base, "media")
	cfgVal.Paths.TranscriptDir = filepath.Join(base, "transcripts")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Workers.Count = 1
	cfgVal.Workers.PollIntervalSeconds = 0.05
	cfgVal.Workers.StopTimeoutSeconds = 2

	builder := &configBuilder{t: t, baseDir: base, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithWorkerCount overrides the worker count on the test config.
func WithWorkerCount(count int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workers.Count = count
	}
}

// WithWebhook points notifications at the given URL.
func WithWebhook(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.WebhookURL = url
	}
}

// WithStubbedBinaries writes stub executables for the provided names
// and prepends them to PATH. A name may carry a script body via
// StubScript; plain names exit 0 silently.
func WithStubbedBinaries(stubs ...Stub) ConfigOption {
	return func(b *configBuilder) {
		if len(stubs) == 0 {
			stubs = []Stub{{Name: "yt-dlp"}, {Name: "whisper"}, {Name: "ffmpeg"}, {Name: "ffprobe"}}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		for _, stub := range stubs {
			script := stub.Script
			if script == "" {
				script = "#!/bin/sh\nexit 0\n"
			}
			target := filepath.Join(binDir, stub.Name)
			if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", stub.Name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// Stub describes one fake binary placed on PATH for a test.
type Stub struct {
	Name   string
	Script string
}
