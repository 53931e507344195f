package ffprobe_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"alogger/internal/media/ffprobe"
)

// stubProbe writes a fake ffprobe that prints the probed file's own
// contents, letting each test file declare its stream layout.
func stubProbe(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	script := "#!/bin/sh\nfor a in \"$@\"; do last=\"$a\"; done\ncat \"$last\"\n"
	path := filepath.Join(dir, "ffprobe")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func writeMedia(t *testing.T, dir, name, payload string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write media: %v", err)
	}
	return path
}

func TestInspectReportsStreams(t *testing.T) {
	prober, err := ffprobe.New(stubProbe(t))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	dir := t.TempDir()
	path := writeMedia(t, dir, "clip.mp4",
		`{"streams":[{"codec_type":"video"},{"codec_type":"audio"}],"format":{"format_name":"mov,mp4","duration":"12.5"}}`)

	info, err := prober.Inspect(context.Background(), path)
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if info.Audio != ffprobe.PresencePresent || info.Video != ffprobe.PresencePresent {
		t.Fatalf("unexpected presence: %#v", info)
	}
	if info.FormatName != "mov,mp4" || info.DurationSeconds != 12.5 {
		t.Fatalf("unexpected format info: %#v", info)
	}
}

func TestInspectIgnoresCoverArt(t *testing.T) {
	prober, _ := ffprobe.New(stubProbe(t))
	dir := t.TempDir()
	path := writeMedia(t, dir, "audio.m4a",
		`{"streams":[{"codec_type":"audio"},{"codec_type":"video","disposition":{"attached_pic":1}}],"format":{}}`)

	info, err := prober.Inspect(context.Background(), path)
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if info.Video != ffprobe.PresenceAbsent {
		t.Fatalf("cover art must not count as video: %#v", info)
	}
	if info.Audio != ffprobe.PresencePresent {
		t.Fatalf("expected audio present: %#v", info)
	}
}

func TestPresenceDegradesToUnknown(t *testing.T) {
	prober, err := ffprobe.New("/bin/false")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if got := prober.HasAudio(context.Background(), "/nonexistent.mp4"); got != ffprobe.PresenceUnknown {
		t.Fatalf("tool failure should yield unknown, got %v", got)
	}

	badJSON, _ := ffprobe.New(stubProbe(t))
	dir := t.TempDir()
	path := writeMedia(t, dir, "garbage.mp4", "not json at all")
	if got := badJSON.HasVideo(context.Background(), path); got != ffprobe.PresenceUnknown {
		t.Fatalf("parse failure should yield unknown, got %v", got)
	}
}

func TestNewRequiresBinary(t *testing.T) {
	if _, err := ffprobe.New("  "); err == nil {
		t.Fatal("expected error for empty binary")
	}
}
